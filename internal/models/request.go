package models

import "time"

// Platform identifies the SDK runtime that issued an ad request.
type Platform string

const (
	PlatformWeb Platform = "web"
	PlatformIOS Platform = "ios"
)

// Language is a locale code for resolved ad content.
type Language string

const (
	LanguageEng Language = "eng"
	LanguageJpn Language = "jpn"
)

// RequestStatus is the terminal status of one logged ad request.
type RequestStatus string

const (
	StatusSuccess RequestStatus = "success"
	StatusError   RequestStatus = "error"
	StatusNoFill  RequestStatus = "no_fill"
)

// ContextTextMode controls how much of the raw context text is persisted in
// the request log. The decision core always sees the full text; only the log
// row is redacted.
type ContextTextMode string

const (
	ContextTextTruncated ContextTextMode = "truncated"
	ContextTextHashed    ContextTextMode = "hashed"
	ContextTextFull      ContextTextMode = "full"
)

// DecisionRequest is the validated input for one decision run. The HTTP layer
// owns field validation; the decision core treats these values as trusted.
// A DecisionRequest belongs to exactly one run and is never persisted as-is.
type DecisionRequest struct {
	AppID       string
	Platform    Platform
	Language    Language
	ContextText string
	Country     string
	DeviceType  string
	ReceivedAt  time.Time
}

// App is a publisher application registered with the platform. Apps scope
// candidate eligibility and carry the per-app serving policy.
type App struct {
	ID          string          `json:"id"`
	OrgID       string          `json:"org_id"`
	Name        string          `json:"name"`
	Platforms   []Platform      `json:"platforms"`
	Languages   []Language      `json:"languages"`
	ContextMode ContextTextMode `json:"context_mode"`
	// LegacyDecision pins the app to the v1 selector instead of the scored
	// v2 pipeline.
	LegacyDecision bool `json:"legacy_decision"`
	Active         bool `json:"active"`
}

// SupportsPlatform reports whether the app is configured to serve the
// given platform.
func (a *App) SupportsPlatform(p Platform) bool {
	for _, ap := range a.Platforms {
		if ap == p {
			return true
		}
	}
	return false
}
