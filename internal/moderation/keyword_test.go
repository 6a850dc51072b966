package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordFilter_CleanContent(t *testing.T) {
	filter := NewKeywordFilter()

	verdict := filter.Filter("this is totally normal text")
	assert.False(t, verdict.IsViolation)
	assert.Equal(t, 0, verdict.Confidence)
	assert.Equal(t, SourceKeyword, verdict.Source)
	assert.Empty(t, verdict.ViolationType)
}

func TestKeywordFilter_CategoryConfidences(t *testing.T) {
	filter := NewKeywordFilter()

	tests := []struct {
		name       string
		content    string
		wantType   ViolationType
		confidence int
	}{
		{"anti-national", "we should overthrow the government now", ViolationAntiNational, 80},
		{"harassment", "seriously, kill yourself", ViolationHarassment, 75},
		{"violence", "i will kill you for this", ViolationViolence, 70},
		{"sexual harassment", "just send nudes already", ViolationSexualHarassment, 75},
		{"hate speech", "they are subhuman filth", ViolationHateSpeech, 80},
		{"spam", "buy now!!! limited offer!!!", ViolationSpam, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := filter.Filter(tt.content)
			assert.True(t, verdict.IsViolation)
			assert.Equal(t, tt.wantType, verdict.ViolationType)
			assert.Equal(t, tt.confidence, verdict.Confidence)
			assert.Equal(t, SourceKeyword, verdict.Source)
			assert.NotEmpty(t, verdict.Reason)
		})
	}
}

func TestKeywordFilter_PriorityOrder(t *testing.T) {
	filter := NewKeywordFilter()

	t.Run("violence beats spam", func(t *testing.T) {
		verdict := filter.Filter("i will kill you, also buy now")
		assert.True(t, verdict.IsViolation)
		assert.Equal(t, ViolationViolence, verdict.ViolationType)
	})

	t.Run("harassment beats violence", func(t *testing.T) {
		verdict := filter.Filter("kill yourself or i will kill you")
		assert.True(t, verdict.IsViolation)
		assert.Equal(t, ViolationHarassment, verdict.ViolationType)
	})

	t.Run("anti-national beats everything", func(t *testing.T) {
		verdict := filter.Filter("burn the flag, kill yourself, buy now")
		assert.True(t, verdict.IsViolation)
		assert.Equal(t, ViolationAntiNational, verdict.ViolationType)
	})
}

func TestKeywordFilter_CaseInsensitive(t *testing.T) {
	filter := NewKeywordFilter()

	verdict := filter.Filter("BUY NOW and get FREE MONEY")
	assert.True(t, verdict.IsViolation)
	assert.Equal(t, ViolationSpam, verdict.ViolationType)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0, ClampConfidence(-20))
	assert.Equal(t, 0, ClampConfidence(0))
	assert.Equal(t, 55, ClampConfidence(55))
	assert.Equal(t, 100, ClampConfidence(100))
	assert.Equal(t, 100, ClampConfidence(150))
}

func TestParseViolationType(t *testing.T) {
	assert.Equal(t, ViolationHateSpeech, ParseViolationType("hate_speech"))
	assert.Equal(t, ViolationSpam, ParseViolationType("spam"))
	assert.Equal(t, ViolationOther, ParseViolationType("something_new"))
	assert.Equal(t, ViolationOther, ParseViolationType(""))
}
