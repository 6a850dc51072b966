package moderation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"palisade/internal/metrics"
)

// Dispatch thresholds. The keyword filter's fixed category confidences are
// calibrated against these, so they move together or not at all.
const (
	// keywordTrustThreshold is the minimum keyword confidence that
	// short-circuits dispatch without spending classifier quota.
	keywordTrustThreshold = 70

	// classifierTrustThreshold is the minimum classifier confidence
	// (exclusive) at which the classifier verdict overrides the keyword
	// filter.
	classifierTrustThreshold = 60
)

// Dispatcher triages content between the keyword filter and the external
// classifier, spending classifier quota only on content the filter cannot
// decide.
type Dispatcher struct {
	filter     *KeywordFilter
	classifier Classifier
	quota      *QuotaTracker
}

// NewDispatcher creates a Dispatcher. The classifier may be nil, in which
// case every verdict comes from the keyword filter.
func NewDispatcher(filter *KeywordFilter, classifier Classifier, quota *QuotaTracker) (*Dispatcher, error) {
	if filter == nil {
		return nil, fmt.Errorf("keyword filter is required")
	}
	if classifier != nil && quota == nil {
		return nil, fmt.Errorf("quota tracker is required when a classifier is configured")
	}

	return &Dispatcher{
		filter:     filter,
		classifier: classifier,
		quota:      quota,
	}, nil
}

// Moderate produces a verdict for content:
//
//  1. High-confidence keyword violations return immediately; the
//     classifier is never invoked for clear-cut cases.
//  2. With the quota exhausted, the keyword verdict is returned as-is,
//     even when it found nothing.
//  3. Otherwise the classifier runs once; a confident classifier verdict
//     wins, a lower-confidence keyword violation is preferred over an
//     unsure classifier, and quota is consumed only on success.
//  4. Classifier errors resolve to a non-violating verdict with
//     source=unavailable. Ordinary content stays postable when the
//     classifier is down; step 1 already caught the clear-cut cases.
func (d *Dispatcher) Moderate(ctx context.Context, content string) Verdict {
	kwVerdict := d.filter.Filter(content)
	if kwVerdict.IsViolation && kwVerdict.Confidence >= keywordTrustThreshold {
		return d.record(kwVerdict)
	}

	if d.classifier == nil {
		return d.record(kwVerdict)
	}

	exhausted, err := d.quota.Exhausted(ctx)
	if err != nil {
		log.Error().Err(err).Msg("moderation: quota check failed, using keyword verdict")
		return d.record(kwVerdict)
	}
	if exhausted {
		metrics.ClassifierQuotaExhaustedTotal.Inc()
		return d.record(kwVerdict)
	}

	clVerdict, err := d.classifier.Classify(ctx, content)
	if err != nil {
		metrics.ClassifierCallsTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("moderation: classifier unavailable, failing open")
		return d.record(Verdict{
			IsViolation: false,
			Confidence:  0,
			Reason:      "Semantic classifier unavailable: " + err.Error(),
			Source:      SourceUnavailable,
		})
	}
	metrics.ClassifierCallsTotal.WithLabelValues("success").Inc()

	if _, err := d.quota.Consume(ctx); err != nil {
		log.Error().Err(err).Msg("moderation: failed to count classifier call")
	}

	clVerdict.Confidence = ClampConfidence(clVerdict.Confidence)

	if clVerdict.Confidence > classifierTrustThreshold {
		return d.record(*clVerdict)
	}
	if kwVerdict.IsViolation {
		// The filter flagged something the classifier isn't sure about.
		return d.record(kwVerdict)
	}
	return d.record(*clVerdict)
}

// QuotaStatus exposes the current quota snapshot without mutating it.
func (d *Dispatcher) QuotaStatus(ctx context.Context) (QuotaStatus, error) {
	if d.quota == nil {
		return QuotaStatus{}, fmt.Errorf("no quota tracker configured")
	}
	return d.quota.Status(ctx)
}

func (d *Dispatcher) record(v Verdict) Verdict {
	metrics.ModerationVerdictsTotal.WithLabelValues(string(v.Source), strconv.FormatBool(v.IsViolation)).Inc()
	return v
}
