// Package moderation triages user content between a free deterministic
// keyword filter and a quota-limited external classifier.
package moderation

import "time"

// ViolationType categorizes a confirmed policy violation.
type ViolationType string

const (
	ViolationAntiNational     ViolationType = "anti_national"
	ViolationHarassment       ViolationType = "harassment"
	ViolationSexualHarassment ViolationType = "sexual_harassment"
	ViolationHateSpeech       ViolationType = "hate_speech"
	ViolationViolence         ViolationType = "violence"
	ViolationSpam             ViolationType = "spam"
	ViolationOther            ViolationType = "other"
)

// Source identifies which stage of the pipeline produced a verdict.
type Source string

const (
	SourceKeyword     Source = "keyword"
	SourceClassifier  Source = "classifier"
	SourceUnavailable Source = "unavailable"
)

// Verdict is the structured output of a moderation check.
type Verdict struct {
	IsViolation   bool          `json:"is_violation"`
	ViolationType ViolationType `json:"violation_type,omitempty"`
	Confidence    int           `json:"confidence"`
	Reason        string        `json:"reason"`
	Source        Source        `json:"source"`
}

// QuotaStatus is a read-only snapshot of the classifier quota.
type QuotaStatus struct {
	Remaining int64     `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
	Limited   bool      `json:"limited"`
}

// ClampConfidence forces a confidence value into [0, 100]. Classifier
// responses are untrusted input and have reported values outside the range.
func ClampConfidence(confidence int) int {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}

// ParseViolationType maps a classifier-reported category onto a known
// violation type, defaulting to "other" for unrecognized categories.
func ParseViolationType(category string) ViolationType {
	switch ViolationType(category) {
	case ViolationAntiNational, ViolationHarassment, ViolationSexualHarassment,
		ViolationHateSpeech, ViolationViolence, ViolationSpam:
		return ViolationType(category)
	default:
		return ViolationOther
	}
}
