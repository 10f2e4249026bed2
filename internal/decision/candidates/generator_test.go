package candidates

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ceedads/addecision/internal/models"
)

// stubSource is a controllable Source for generator tests.
type stubSource struct {
	app   *models.App
	pool  []models.Candidate
	err   error
	calls int
}

func (s *stubSource) Candidates(ctx context.Context) ([]models.Candidate, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.pool, nil
}

func (s *stubSource) GetApp(id string) *models.App {
	if s.app != nil && s.app.ID == id {
		return s.app
	}
	return nil
}

func activeApp() *models.App {
	return &models.App{
		ID:        "app1",
		Platforms: []models.Platform{models.PlatformWeb, models.PlatformIOS},
		Active:    true,
	}
}

func webRequest(context string) models.DecisionRequest {
	return models.DecisionRequest{
		AppID:       "app1",
		Platform:    models.PlatformWeb,
		Language:    models.LanguageEng,
		ContextText: context,
	}
}

func candidateIDs(cands []models.Candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.ID
	}
	return ids
}

func TestGenerateEligibilityFilters(t *testing.T) {
	src := &stubSource{
		app: activeApp(),
		pool: []models.Candidate{
			{ID: "ad1", Format: models.FormatActionCard, Active: true},
			{ID: "ad2", Format: models.FormatActionCard, Active: false},
			{ID: "ad3", Format: models.FormatActionCard, Active: true,
				Languages: []models.Language{models.LanguageJpn}},
			{ID: "ad4", Format: models.FormatActionCard, Active: true,
				Languages: []models.Language{models.LanguageEng, models.LanguageJpn}},
		},
	}
	g := New(src, 50, 10, zap.NewNop())

	res := g.Generate(context.Background(), webRequest("hello"), models.OpportunityAssessment{})
	got := candidateIDs(res.Candidates)
	want := []string{"ad1", "ad4"}
	if len(got) != len(want) {
		t.Fatalf("eligible = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("eligible = %v, want %v", got, want)
		}
	}
	if res.FallbackUsed {
		t.Error("FallbackUsed = true on healthy primary source")
	}
}

func TestGenerateStaticTargeting(t *testing.T) {
	static := func(id string, tp *models.StaticTargetingParams) models.Candidate {
		return models.Candidate{
			ID: id, Format: models.FormatStatic, Active: true,
			StaticConfig: &models.StaticConfig{TargetingParams: tp},
		}
	}

	testCases := []struct {
		name string
		req  models.DecisionRequest
		tp   *models.StaticTargetingParams
		want bool
	}{
		{
			name: "no targeting params serves everywhere",
			req:  webRequest("anything"),
			tp:   nil,
			want: true,
		},
		{
			name: "geo match",
			req: models.DecisionRequest{AppID: "app1", Platform: models.PlatformWeb,
				Language: models.LanguageEng, Country: "JP"},
			tp:   &models.StaticTargetingParams{Geo: []string{"jp", "US"}},
			want: true,
		},
		{
			name: "geo mismatch",
			req: models.DecisionRequest{AppID: "app1", Platform: models.PlatformWeb,
				Language: models.LanguageEng, Country: "DE"},
			tp:   &models.StaticTargetingParams{Geo: []string{"JP", "US"}},
			want: false,
		},
		{
			name: "geo required but unknown country",
			req:  webRequest("anything"),
			tp:   &models.StaticTargetingParams{Geo: []string{"JP"}},
			want: false,
		},
		{
			name: "device type match",
			req: models.DecisionRequest{AppID: "app1", Platform: models.PlatformWeb,
				Language: models.LanguageEng, DeviceType: "mobile"},
			tp:   &models.StaticTargetingParams{DeviceTypes: []string{"mobile", "tablet"}},
			want: true,
		},
		{
			name: "keyword present in context",
			req:  webRequest("looking for running shoes"),
			tp:   &models.StaticTargetingParams{Keywords: []string{"shoes"}},
			want: true,
		},
		{
			name: "keyword absent from context",
			req:  webRequest("looking for a new laptop"),
			tp:   &models.StaticTargetingParams{Keywords: []string{"shoes"}},
			want: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := &stubSource{app: activeApp(), pool: []models.Candidate{static("ad1", tc.tp)}}
			g := New(src, 50, 10, zap.NewNop())
			res := g.Generate(context.Background(), tc.req, models.OpportunityAssessment{})
			if got := len(res.Candidates) == 1; got != tc.want {
				t.Errorf("eligible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGenerateUnknownOrInactiveApp(t *testing.T) {
	pool := []models.Candidate{{ID: "ad1", Format: models.FormatActionCard, Active: true}}

	src := &stubSource{app: activeApp(), pool: pool}
	g := New(src, 50, 10, zap.NewNop())
	req := webRequest("hello")
	req.AppID = "nope"
	if res := g.Generate(context.Background(), req, models.OpportunityAssessment{}); len(res.Candidates) != 0 {
		t.Errorf("unknown app produced %d candidates, want 0", len(res.Candidates))
	}

	inactive := activeApp()
	inactive.Active = false
	src = &stubSource{app: inactive, pool: pool}
	g = New(src, 50, 10, zap.NewNop())
	if res := g.Generate(context.Background(), webRequest("hello"), models.OpportunityAssessment{}); len(res.Candidates) != 0 {
		t.Errorf("inactive app produced %d candidates, want 0", len(res.Candidates))
	}
}

func TestGenerateCapIsDeterministic(t *testing.T) {
	// Pool deliberately out of ID order; the cap must keep the lowest IDs.
	src := &stubSource{
		app: activeApp(),
		pool: []models.Candidate{
			{ID: "ad5", Format: models.FormatActionCard, Active: true},
			{ID: "ad1", Format: models.FormatActionCard, Active: true},
			{ID: "ad3", Format: models.FormatActionCard, Active: true},
			{ID: "ad2", Format: models.FormatActionCard, Active: true},
		},
	}
	g := New(src, 2, 10, zap.NewNop())

	for i := 0; i < 3; i++ {
		res := g.Generate(context.Background(), webRequest("hello"), models.OpportunityAssessment{})
		got := candidateIDs(res.Candidates)
		if len(got) != 2 || got[0] != "ad1" || got[1] != "ad2" {
			t.Fatalf("run %d: capped set = %v, want [ad1 ad2]", i, got)
		}
	}
}

func TestGenerateFallbackOnPrimaryFailure(t *testing.T) {
	src := &stubSource{
		app: activeApp(),
		pool: []models.Candidate{
			{ID: "ad1", Format: models.FormatActionCard, Active: true},
			{ID: "ad2", Format: models.FormatActionCard, Active: true},
		},
	}
	g := New(src, 50, 10, zap.NewNop())
	req := webRequest("hello")

	// A successful run populates the fallback cache.
	res := g.Generate(context.Background(), req, models.OpportunityAssessment{})
	if len(res.Candidates) != 2 || res.FallbackUsed {
		t.Fatalf("priming run = %+v", res)
	}

	src.err = errors.New("inventory unavailable")
	res = g.Generate(context.Background(), req, models.OpportunityAssessment{})
	if !res.FallbackUsed {
		t.Error("FallbackUsed = false after primary failure with warm cache")
	}
	got := candidateIDs(res.Candidates)
	if len(got) != 2 || got[0] != "ad1" || got[1] != "ad2" {
		t.Errorf("fallback set = %v, want [ad1 ad2]", got)
	}
}

func TestGenerateFailureWithColdCache(t *testing.T) {
	src := &stubSource{app: activeApp(), err: errors.New("inventory unavailable")}
	g := New(src, 50, 10, zap.NewNop())

	res := g.Generate(context.Background(), webRequest("hello"), models.OpportunityAssessment{})
	if len(res.Candidates) != 0 {
		t.Errorf("cold-cache failure produced %d candidates, want 0", len(res.Candidates))
	}
	// No fallback content was served, so the flag must stay false.
	if res.FallbackUsed {
		t.Error("FallbackUsed = true with empty fallback cache")
	}
}

func TestGenerateEmptyPoolIsValidNoFill(t *testing.T) {
	src := &stubSource{app: activeApp()}
	g := New(src, 50, 10, zap.NewNop())

	res := g.Generate(context.Background(), webRequest("hello"), models.OpportunityAssessment{})
	if len(res.Candidates) != 0 || res.FallbackUsed {
		t.Errorf("empty pool result = %+v, want empty with no fallback", res)
	}
}

func TestFallbackCacheBounds(t *testing.T) {
	c := newFallbackCache(2)

	c.put([]models.Candidate{{ID: "ad1"}, {ID: "ad2"}, {ID: "ad3"}})
	if got := c.get(); len(got) != 2 {
		t.Errorf("cache kept %d candidates, want 2", len(got))
	}

	// Empty results never clobber a warm cache.
	c.put(nil)
	if got := c.get(); len(got) != 2 {
		t.Errorf("cache after empty put kept %d candidates, want 2", len(got))
	}
}
