package scoring

import (
	"fmt"
	"math"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
)

// Score domain and risk bucket boundaries. A score belongs to the first bucket
// whose minimum it meets.
const (
	MinScore           = 300
	MaxScore           = 850
	LowRiskMinScore    = 720
	MediumRiskMinScore = 620
	HighRiskMinScore   = 500
)

const weightSumTolerance = 1e-9

// Weights is the per-component weight vector. It must sum to 1.
type Weights struct {
	BusinessViability        float64 `json:"business_viability" mapstructure:"business_viability"`
	PaymentHistory           float64 `json:"payment_history" mapstructure:"payment_history"`
	FinancialManagement      float64 `json:"financial_management" mapstructure:"financial_management"`
	PersonalCreditworthiness float64 `json:"personal_creditworthiness" mapstructure:"personal_creditworthiness"`
	EducationBackground      float64 `json:"education_background" mapstructure:"education_background"`
	SocialVerification       float64 `json:"social_verification" mapstructure:"social_verification"`
}

// DefaultWeights returns the published component weights, which sum to one.
func DefaultWeights() Weights {
	return Weights{
		BusinessViability:        0.25,
		PaymentHistory:           0.20,
		FinancialManagement:      0.18,
		PersonalCreditworthiness: 0.15,
		EducationBackground:      0.12,
		SocialVerification:       0.10,
	}
}

func (w Weights) Of(c Component) float64 {
	return ComponentScoreSet(w).Value(c)
}

// Validate requires every weight to be finite and non-negative with a sum of one.
func (w Weights) Validate() error {
	sum := 0.0
	for _, c := range Components() {
		v := w.Of(c)
		if !isFinite(v) || v < 0 {
			return errors.NewConfigurationError(fmt.Sprintf("weight for %s must be a non-negative number, got %v", c, v), nil)
		}
		sum += v
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return errors.NewConfigurationError(fmt.Sprintf("component weights must sum to 1.0, got %.12f", sum), nil)
	}
	return nil
}

// RiskThresholds are the minimum scores of the LOW, MEDIUM and HIGH buckets.
type RiskThresholds struct {
	Low    int `json:"low" mapstructure:"low"`
	Medium int `json:"medium" mapstructure:"medium"`
	High   int `json:"high" mapstructure:"high"`
}

// DefaultRiskThresholds returns the 720/620/500 cut-offs.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{Low: LowRiskMinScore, Medium: MediumRiskMinScore, High: HighRiskMinScore}
}

// Validate requires the cut-offs to be strictly ascending from high to low risk
// within the score range.
func (t RiskThresholds) Validate() error {
	if !(MinScore < t.High && t.High < t.Medium && t.Medium < t.Low && t.Low <= MaxScore) {
		return errors.NewConfigurationError(fmt.Sprintf(
			"risk thresholds must satisfy %d < high < medium < low <= %d, got high=%d medium=%d low=%d",
			MinScore, MaxScore, t.High, t.Medium, t.Low), nil)
	}
	return nil
}

// Classify maps a score to its risk bucket.
func (t RiskThresholds) Classify(score int) RiskLevel {
	switch {
	case score >= t.Low:
		return RiskLow
	case score >= t.Medium:
		return RiskMedium
	case score >= t.High:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// Aggregator turns a ComponentScoreSet into a YECS score and risk level.
type Aggregator struct {
	weights    Weights
	thresholds RiskThresholds
}

// NewAggregator checks the weight and threshold invariants once, at construction.
func NewAggregator(w Weights, t RiskThresholds) (*Aggregator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{weights: w, thresholds: t}, nil
}

func (a *Aggregator) Weights() Weights             { return a.weights }
func (a *Aggregator) Thresholds() RiskThresholds   { return a.thresholds }
func (a *Aggregator) Classify(score int) RiskLevel { return a.thresholds.Classify(score) }

// Raw returns the weighted sum of the components, in [0,100].
func (a *Aggregator) Raw(s ComponentScoreSet) float64 {
	raw := 0.0
	for _, c := range Components() {
		raw += a.weights.Of(c) * s.Value(c)
	}
	return raw
}

// Aggregate computes round(300 + raw/100*550) and its risk level.
func (a *Aggregator) Aggregate(s ComponentScoreSet) (int, RiskLevel, error) {
	if err := s.Validate(); err != nil {
		return 0, "", err
	}
	score := int(math.Round(MinScore + a.Raw(s)/100*(MaxScore-MinScore)))
	if score < MinScore {
		score = MinScore
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score, a.thresholds.Classify(score), nil
}
