package metrics

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marketeam/adpilot/pkg/models"
)

// Tier labels the two LLM cost tiers tracked for operational visibility.
type Tier string

const (
	TierFast    Tier = "fast"
	TierQuality Tier = "quality"
)

var (
	llmCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adpilot_llm_calls_total",
		Help: "Number of LLM calls issued, by cost tier.",
	}, []string{"tier"})

	imageCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adpilot_image_generation_calls_total",
		Help: "Number of image-generation submissions issued.",
	})

	campaignRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adpilot_campaign_runs_total",
		Help: "Number of campaign runs, by outcome.",
	}, []string{"outcome"})
)

// RecordCampaignRun counts a finished campaign run by outcome.
func RecordCampaignRun(outcome string) {
	campaignRuns.WithLabelValues(outcome).Inc()
}

// Tally accumulates the per-run call counts. Counters are atomic because
// fan-out tasks record concurrently.
type Tally struct {
	fast    atomic.Int64
	quality atomic.Int64
	image   atomic.Int64
}

// RecordLLMCall counts one LLM call against the run and the process-wide
// prometheus counters.
func (t *Tally) RecordLLMCall(tier Tier) {
	llmCalls.WithLabelValues(string(tier)).Inc()
	if t == nil {
		return
	}
	switch tier {
	case TierQuality:
		t.quality.Add(1)
	default:
		t.fast.Add(1)
	}
}

// RecordImageCall counts one image-generation submission.
func (t *Tally) RecordImageCall() {
	imageCalls.Inc()
	if t != nil {
		t.image.Add(1)
	}
}

// Snapshot returns the tally in its response form.
func (t *Tally) Snapshot() models.CallTally {
	if t == nil {
		return models.CallTally{}
	}
	return models.CallTally{
		FastLLMCalls:    t.fast.Load(),
		QualityLLMCalls: t.quality.Load(),
		ImageCalls:      t.image.Load(),
	}
}

type tallyKey struct{}

// WithTally attaches a run-scoped tally to the context so the HTTP clients
// can record calls without the components threading it explicitly.
func WithTally(ctx context.Context, t *Tally) context.Context {
	return context.WithValue(ctx, tallyKey{}, t)
}

// TallyFrom returns the tally attached to ctx, or nil. A nil tally still
// records into the process-wide prometheus counters.
func TallyFrom(ctx context.Context) *Tally {
	t, _ := ctx.Value(tallyKey{}).(*Tally)
	return t
}
