package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/internal/counter"
)

// fakeClassifier scripts the external classifier for dispatch tests.
type fakeClassifier struct {
	verdict *Verdict
	err     error
	calls   int
}

func (f *fakeClassifier) Classify(ctx context.Context, content string) (*Verdict, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v := *f.verdict
	return &v, nil
}

func setupQuota(t *testing.T, dailyLimit int64) *QuotaTracker {
	store := counter.NewLocalStore(counter.LocalOptions{SweepInterval: time.Hour})
	t.Cleanup(func() {
		store.Close()
	})
	return NewQuotaTracker(store, dailyLimit)
}

func setupDispatcher(t *testing.T, classifier Classifier, quota *QuotaTracker) *Dispatcher {
	d, err := NewDispatcher(NewKeywordFilter(), classifier, quota)
	require.NoError(t, err)
	return d
}

func TestDispatcher_HighConfidenceKeywordShortCircuits(t *testing.T) {
	ctx := context.Background()
	classifier := &fakeClassifier{verdict: &Verdict{Source: SourceClassifier}}
	d := setupDispatcher(t, classifier, setupQuota(t, 10))

	verdict := d.Moderate(ctx, "seriously, kill yourself")

	assert.True(t, verdict.IsViolation)
	assert.Equal(t, ViolationHarassment, verdict.ViolationType)
	assert.Equal(t, SourceKeyword, verdict.Source)
	assert.Equal(t, 0, classifier.calls, "classifier must not be invoked for clear-cut cases")

	status, err := d.QuotaStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), status.Remaining, "quota must be untouched")
}

func TestDispatcher_QuotaExhaustedReturnsKeywordVerdict(t *testing.T) {
	ctx := context.Background()
	quota := setupQuota(t, 1)

	ok, err := quota.Consume(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	classifier := &fakeClassifier{verdict: &Verdict{IsViolation: true, Confidence: 90, Source: SourceClassifier}}
	d := setupDispatcher(t, classifier, quota)

	verdict := d.Moderate(ctx, "this is totally normal text")

	assert.False(t, verdict.IsViolation)
	assert.Equal(t, 0, verdict.Confidence)
	assert.Equal(t, SourceKeyword, verdict.Source)
	assert.Equal(t, 0, classifier.calls, "no classifier call once quota is exhausted")
}

func TestDispatcher_ConfidentClassifierWins(t *testing.T) {
	ctx := context.Background()
	classifier := &fakeClassifier{verdict: &Verdict{
		IsViolation:   true,
		ViolationType: ViolationHateSpeech,
		Confidence:    85,
		Reason:        "Semantic match for hate speech",
		Source:        SourceClassifier,
	}}
	quota := setupQuota(t, 10)
	d := setupDispatcher(t, classifier, quota)

	verdict := d.Moderate(ctx, "some subtly hateful text with no keywords")

	assert.True(t, verdict.IsViolation)
	assert.Equal(t, ViolationHateSpeech, verdict.ViolationType)
	assert.Equal(t, SourceClassifier, verdict.Source)
	assert.Equal(t, 1, classifier.calls)

	// Exactly one quota consume per successful call
	status, err := d.QuotaStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), status.Remaining)
}

func TestDispatcher_UnsureClassifierPrefersKeywordViolation(t *testing.T) {
	ctx := context.Background()
	classifier := &fakeClassifier{verdict: &Verdict{
		IsViolation: false,
		Confidence:  40,
		Source:      SourceClassifier,
	}}
	d := setupDispatcher(t, classifier, setupQuota(t, 10))

	// Spam matches at confidence 60, below the short-circuit threshold,
	// so the classifier runs but the keyword flag still wins
	verdict := d.Moderate(ctx, "buy now while it lasts")

	assert.True(t, verdict.IsViolation)
	assert.Equal(t, ViolationSpam, verdict.ViolationType)
	assert.Equal(t, SourceKeyword, verdict.Source)
	assert.Equal(t, 1, classifier.calls)
}

func TestDispatcher_UnsureClassifierCleanContent(t *testing.T) {
	ctx := context.Background()
	classifier := &fakeClassifier{verdict: &Verdict{
		IsViolation: false,
		Confidence:  30,
		Reason:      "Nothing conclusive",
		Source:      SourceClassifier,
	}}
	d := setupDispatcher(t, classifier, setupQuota(t, 10))

	verdict := d.Moderate(ctx, "this is totally normal text")

	assert.False(t, verdict.IsViolation)
	assert.Equal(t, SourceClassifier, verdict.Source)
	assert.Equal(t, 30, verdict.Confidence)
}

func TestDispatcher_ClassifierErrorFailsOpen(t *testing.T) {
	ctx := context.Background()
	classifier := &fakeClassifier{err: errors.New("connection refused")}
	quota := setupQuota(t, 10)
	d := setupDispatcher(t, classifier, quota)

	verdict := d.Moderate(ctx, "this is totally normal text")

	assert.False(t, verdict.IsViolation)
	assert.Equal(t, SourceUnavailable, verdict.Source)
	assert.Contains(t, verdict.Reason, "unavailable")
	assert.Equal(t, 1, classifier.calls)

	// Errors never consume quota
	status, err := d.QuotaStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), status.Remaining)
}

func TestDispatcher_ClampsClassifierConfidence(t *testing.T) {
	ctx := context.Background()
	classifier := &fakeClassifier{verdict: &Verdict{
		IsViolation:   true,
		ViolationType: ViolationViolence,
		Confidence:    150,
		Source:        SourceClassifier,
	}}
	d := setupDispatcher(t, classifier, setupQuota(t, 10))

	verdict := d.Moderate(ctx, "no keywords in here")

	assert.True(t, verdict.IsViolation)
	assert.Equal(t, 100, verdict.Confidence)
}

func TestDispatcher_NoClassifierConfigured(t *testing.T) {
	ctx := context.Background()
	d := setupDispatcher(t, nil, nil)

	verdict := d.Moderate(ctx, "this is totally normal text")
	assert.False(t, verdict.IsViolation)
	assert.Equal(t, SourceKeyword, verdict.Source)

	_, err := d.QuotaStatus(ctx)
	assert.Error(t, err)
}

func TestNewDispatcher_Validation(t *testing.T) {
	_, err := NewDispatcher(nil, nil, nil)
	assert.Error(t, err)

	_, err = NewDispatcher(NewKeywordFilter(), &fakeClassifier{}, nil)
	assert.Error(t, err)
}
