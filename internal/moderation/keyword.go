package moderation

import "strings"

// keywordCategory is one lexical table with its fixed policy weight.
// The confidences and the category order are enforcement policy: the
// dispatcher branches on confidence thresholds, so changing either
// silently changes which content reaches the classifier.
type keywordCategory struct {
	violationType ViolationType
	confidence    int
	reason        string
	keywords      []string
}

// keywordCategories is checked in priority order; the first category with a
// lexical match wins.
var keywordCategories = []keywordCategory{
	{
		violationType: ViolationAntiNational,
		confidence:    80,
		reason:        "Content contains anti-national language",
		keywords: []string{
			"down with the nation", "destroy the country", "overthrow the government",
			"death to the state", "burn the flag",
		},
	},
	{
		violationType: ViolationHarassment,
		confidence:    75,
		reason:        "Content contains harassing language",
		keywords: []string{
			"kill yourself", "kys", "nobody likes you", "you are worthless",
			"everyone hates you", "go die",
		},
	},
	{
		violationType: ViolationViolence,
		confidence:    70,
		reason:        "Content contains violent language",
		keywords: []string{
			"i will kill", "beat you up", "shoot them", "stab you",
			"bomb the", "break your legs",
		},
	},
	{
		violationType: ViolationSexualHarassment,
		confidence:    75,
		reason:        "Content contains sexually harassing language",
		keywords: []string{
			"send nudes", "unsolicited explicit", "sexual favors",
			"show me your body",
		},
	},
	{
		violationType: ViolationHateSpeech,
		confidence:    80,
		reason:        "Content contains hate speech",
		keywords: []string{
			"subhuman filth", "vermin people", "ethnic cleansing",
			"your kind doesn't belong", "inferior race",
		},
	},
	{
		violationType: ViolationSpam,
		confidence:    60,
		reason:        "Content appears to be spam",
		keywords: []string{
			"buy now", "limited offer", "click this link", "free money",
			"earn from home", "crypto giveaway",
		},
	},
}

// KeywordFilter is a synchronous, always-available deterministic classifier.
type KeywordFilter struct {
	categories []keywordCategory
}

// NewKeywordFilter creates a filter with the default policy tables.
func NewKeywordFilter() *KeywordFilter {
	return &KeywordFilter{categories: keywordCategories}
}

// Filter checks content against each category table in priority order and
// returns a verdict with the matching category's fixed confidence. Content
// with no lexical match gets a clean verdict with confidence 0.
func (f *KeywordFilter) Filter(content string) Verdict {
	lowered := strings.ToLower(content)

	for _, category := range f.categories {
		for _, keyword := range category.keywords {
			if strings.Contains(lowered, keyword) {
				return Verdict{
					IsViolation:   true,
					ViolationType: category.violationType,
					Confidence:    category.confidence,
					Reason:        category.reason,
					Source:        SourceKeyword,
				}
			}
		}
	}

	return Verdict{
		IsViolation: false,
		Confidence:  0,
		Reason:      "No policy keywords matched",
		Source:      SourceKeyword,
	}
}
