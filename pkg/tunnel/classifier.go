package tunnel

import (
	"math/rand/v2"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// Classification thresholds. A query is labelled Tunneling when any one is exceeded.
const (
	EntropyThreshold = 4.2
	LengthThreshold  = 55
	ScoreThreshold   = 60
)

// Confidence shaping
const (
	maxConfidence       = 0.99
	tunnelingBase       = 0.7
	tunnelingJitterSpan = 0.1
	normalBase          = 0.8
	normalJitterSpan    = 0.15
)

// Rand is the jitter source for confidence values.
// Float64 must return a value in [0, 1) and be safe for concurrent use
// when the classifier is shared between workers.
type Rand interface {
	Float64() float64
}

// globalRand draws from the math/rand/v2 top-level source
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Classification is a label with an advisory confidence
type Classification struct {
	Label      record.Label `json:"label"`
	Confidence float64      `json:"confidence"`
}

// Classifier labels queries as Normal or Tunneling
type Classifier struct {
	rand Rand
}

// NewClassifier creates a classifier. A nil Rand uses the process-wide source.
func NewClassifier(r Rand) *Classifier {
	if r == nil {
		r = globalRand{}
	}
	return &Classifier{rand: r}
}

// Classify labels a query from its entropy, length and a precomputed threat score.
// Pass 0 for score when it is not yet known.
func (c *Classifier) Classify(entropy float64, length int, score int) Classification {
	if entropy > EntropyThreshold || length > LengthThreshold || score > ScoreThreshold {
		jitter := c.jitter(tunnelingJitterSpan)
		return Classification{
			Label:      record.LabelTunneling,
			Confidence: min(maxConfidence, tunnelingBase+float64(max(score, 0))/200+jitter),
		}
	}

	jitter := c.jitter(normalJitterSpan)
	return Classification{
		Label:      record.LabelNormal,
		Confidence: min(maxConfidence, normalBase+jitter),
	}
}

// ClassifyQuery classifies raw query text, computing entropy and length itself
func (c *Classifier) ClassifyQuery(query string, score int) Classification {
	return c.Classify(CalculateEntropy(query), QueryLength(query), score)
}

// jitter returns a perturbation in [0, span)
func (c *Classifier) jitter(span float64) float64 {
	f := c.rand.Float64()
	if f < 0 || f >= 1 {
		f = 0
	}
	return f * span
}
