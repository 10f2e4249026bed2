package analytics

import "context"

// NoopService discards request logs. Used in tests and when ClickHouse is
// not configured.
type NoopService struct{}

func (NoopService) RecordDecision(ctx context.Context, row RequestLog) error { return nil }
func (NoopService) Close()                                                   {}
