package models

// AdFormat is the creative format of a candidate or resolved ad.
type AdFormat string

const (
	FormatActionCard AdFormat = "action_card"
	FormatLeadGen    AdFormat = "lead_gen"
	FormatStatic     AdFormat = "static"
	FormatFollowup   AdFormat = "followup"
)

// LocalizedText holds per-language variants of a display string.
type LocalizedText map[Language]string

// Resolve returns the variant for lang, falling back to the other supported
// language and finally to any non-empty variant. An empty map resolves to "".
func (lt LocalizedText) Resolve(lang Language) string {
	if v, ok := lt[lang]; ok && v != "" {
		return v
	}
	other := LanguageEng
	if lang == LanguageEng {
		other = LanguageJpn
	}
	if v, ok := lt[other]; ok && v != "" {
		return v
	}
	for _, v := range lt {
		if v != "" {
			return v
		}
	}
	return ""
}

// AutocompleteType is the browser autocomplete hint for lead gen inputs.
type AutocompleteType string

// LeadGenConfig configures the lead_gen format, an email capture form
// embedded in the ad unit.
type LeadGenConfig struct {
	Placeholder      LocalizedText    `json:"placeholder"`
	SubmitButtonText LocalizedText    `json:"submit_button_text"`
	AutocompleteType AutocompleteType `json:"autocomplete_type"`
	SuccessMessage   LocalizedText    `json:"success_message"`
}

// StaticTargetingParams narrows where a static creative may serve. Empty
// slices are wildcards.
type StaticTargetingParams struct {
	Keywords    []string `json:"keywords,omitempty"`
	Geo         []string `json:"geo,omitempty"`
	DeviceTypes []string `json:"device_types,omitempty"`
}

// StaticConfig configures the static display format.
type StaticConfig struct {
	DisplayPosition string                 `json:"display_position"`
	TargetingParams *StaticTargetingParams `json:"targeting_params,omitempty"`
}

// FollowupConfig configures the followup (sponsored question) format.
type FollowupConfig struct {
	QuestionText LocalizedText `json:"question_text"`
	TapAction    string        `json:"tap_action"`
	TapActionURL string        `json:"tap_action_url,omitempty"`
}

// ResolvedLeadGenConfig is LeadGenConfig with text resolved to one language.
type ResolvedLeadGenConfig struct {
	Placeholder      string           `json:"placeholder"`
	SubmitButtonText string           `json:"submitButtonText"`
	AutocompleteType AutocompleteType `json:"autocompleteType"`
	SuccessMessage   string           `json:"successMessage"`
}

// ResolvedFollowupConfig is FollowupConfig with text resolved to one language.
type ResolvedFollowupConfig struct {
	QuestionText string `json:"questionText"`
	TapAction    string `json:"tapAction"`
	TapActionURL string `json:"tapActionUrl,omitempty"`
}

// ResolvedAd is the single-language ad payload returned to the SDK. All
// localized fields are resolved against the request language before the
// response leaves the server.
type ResolvedAd struct {
	ID             string                  `json:"id"`
	AdvertiserID   string                  `json:"advertiserId"`
	AdvertiserName string                  `json:"advertiserName"`
	Format         AdFormat                `json:"format"`
	Title          string                  `json:"title"`
	Description    string                  `json:"description"`
	CTAText        string                  `json:"ctaText"`
	CTAURL         string                  `json:"ctaUrl"`
	LeadGenConfig  *ResolvedLeadGenConfig  `json:"leadGenConfig,omitempty"`
	StaticConfig   *StaticConfig           `json:"staticConfig,omitempty"`
	FollowupConfig *ResolvedFollowupConfig `json:"followupConfig,omitempty"`
}
