package models

// Candidate is a monetizable creative eligible for a decision run. Candidates
// are loaded from the advertiser inventory and are immutable for the duration
// of one run; the ranker never mutates them.
type Candidate struct {
	ID             string   `json:"id"`
	AdvertiserID   string   `json:"advertiser_id"`
	AdvertiserName string   `json:"advertiser_name"`
	Format         AdFormat `json:"format"`

	Title       LocalizedText `json:"title"`
	Description LocalizedText `json:"description"`
	CTAText     LocalizedText `json:"cta_text"`
	CTAURL      string        `json:"cta_url"`

	LeadGenConfig  *LeadGenConfig  `json:"lead_gen_config,omitempty"`
	StaticConfig   *StaticConfig   `json:"static_config,omitempty"`
	FollowupConfig *FollowupConfig `json:"followup_config,omitempty"`

	// Keywords are the content features relevance is scored against.
	Keywords []string `json:"keywords"`
	// BaseScore is the intrinsic quality/bid proxy set at trafficking time.
	BaseScore float64 `json:"base_score"`

	Platforms []Platform `json:"platforms"`
	Languages []Language `json:"languages"`
	Active    bool       `json:"active"`
}

// SupportsPlatform reports whether the candidate may serve on p. An empty
// platform list means the creative is platform-agnostic.
func (c *Candidate) SupportsPlatform(p Platform) bool {
	if len(c.Platforms) == 0 {
		return true
	}
	for _, cp := range c.Platforms {
		if cp == p {
			return true
		}
	}
	return false
}

// SupportsLanguage reports whether the candidate has content for lang. An
// empty language list means all languages.
func (c *Candidate) SupportsLanguage(lang Language) bool {
	if len(c.Languages) == 0 {
		return true
	}
	for _, cl := range c.Languages {
		if cl == lang {
			return true
		}
	}
	return false
}

// Resolve flattens the candidate into the single-language SDK payload.
func (c *Candidate) Resolve(lang Language) *ResolvedAd {
	ad := &ResolvedAd{
		ID:             c.ID,
		AdvertiserID:   c.AdvertiserID,
		AdvertiserName: c.AdvertiserName,
		Format:         c.Format,
		Title:          c.Title.Resolve(lang),
		Description:    c.Description.Resolve(lang),
		CTAText:        c.CTAText.Resolve(lang),
		CTAURL:         c.CTAURL,
	}
	if c.LeadGenConfig != nil {
		ad.LeadGenConfig = &ResolvedLeadGenConfig{
			Placeholder:      c.LeadGenConfig.Placeholder.Resolve(lang),
			SubmitButtonText: c.LeadGenConfig.SubmitButtonText.Resolve(lang),
			AutocompleteType: c.LeadGenConfig.AutocompleteType,
			SuccessMessage:   c.LeadGenConfig.SuccessMessage.Resolve(lang),
		}
	}
	if c.StaticConfig != nil {
		cfg := *c.StaticConfig
		ad.StaticConfig = &cfg
	}
	if c.FollowupConfig != nil {
		ad.FollowupConfig = &ResolvedFollowupConfig{
			QuestionText: c.FollowupConfig.QuestionText.Resolve(lang),
			TapAction:    c.FollowupConfig.TapAction,
			TapActionURL: c.FollowupConfig.TapActionURL,
		}
	}
	return ad
}
