package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordDecisionUnavailable(t *testing.T) {
	var a *Analytics
	err := a.RecordDecision(context.Background(), RequestLog{RequestID: "r1"})
	assert.ErrorIs(t, err, ErrUnavailable)

	a = &Analytics{}
	err = a.RecordDecision(context.Background(), RequestLog{RequestID: "r1"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStatsUnavailable(t *testing.T) {
	var a *Analytics

	_, err := a.FillRateStats(context.Background(), "app1", time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = a.IntentMixStats(context.Background(), "app1", time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNoopServiceNeverFails(t *testing.T) {
	svc := NoopService{}
	assert.NoError(t, svc.RecordDecision(context.Background(), RequestLog{}))
	svc.Close()
}

func TestCloseNilSafe(t *testing.T) {
	var a *Analytics
	a.Close()
	(&Analytics{}).Close()
}
