package scoring

import (
	"fmt"
	"math"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
)

// NeutralComponentScore is returned by pluggable scorers that have no signal to work with.
const NeutralComponentScore = 50.0

const IndustryOther = "other"

var defaultIndustryMultipliers = map[string]float64{
	"technology":            1.00,
	"healthcare":            1.00,
	"education":             0.98,
	"professional_services": 0.97,
	"manufacturing":         0.95,
	"retail":                0.92,
	"agriculture":           0.90,
	"construction":          0.90,
	"food_service":          0.88,
	"hospitality":           0.88,
	IndustryOther:           0.93,
}

var industryAliases = map[string]string{
	"tech":              "technology",
	"software":          "technology",
	"it":                "technology",
	"health":            "healthcare",
	"medical":           "healthcare",
	"consulting":        "professional_services",
	"services":          "professional_services",
	"farming":           "agriculture",
	"restaurant":        "food_service",
	"food":              "food_service",
	"food_and_beverage": "food_service",
	"ecommerce":         "retail",
	"e_commerce":        "retail",
	"travel":            "hospitality",
}

// DefaultIndustryMultipliers returns a copy of the built-in industry risk table.
func DefaultIndustryMultipliers() map[string]float64 {
	out := make(map[string]float64, len(defaultIndustryMultipliers))
	for k, v := range defaultIndustryMultipliers {
		out[k] = v
	}
	return out
}

var educationScores = map[EducationLevel]float64{
	EducationNone:       25,
	EducationHighSchool: 40,
	EducationAssociate:  55,
	EducationBachelor:   70,
	EducationMaster:     85,
	EducationDoctorate:  100,
}

// Params are the immutable tunables shared by the component scorers.
type Params struct {
	// RevenueSaturation is the projection at which the revenue factor reaches 1.
	RevenueSaturation float64
	// ExperienceScale is the e-folding time in years of the experience factor.
	ExperienceScale     float64
	IndustryMultipliers map[string]float64
	Credit              CreditSignalScorer
	Social              SocialSignalScorer
}

func DefaultParams() Params {
	return Params{
		RevenueSaturation:   1_000_000,
		ExperienceScale:     5,
		IndustryMultipliers: DefaultIndustryMultipliers(),
		Credit:              BureauScorer{},
		Social:              PresenceScorer{},
	}
}

// Validate rejects parameters that would push a component outside [0,100] or make
// it insensitive to its inputs.
func (p Params) Validate() error {
	if !(p.RevenueSaturation > 0) || !isFinite(p.RevenueSaturation) {
		return errors.NewConfigurationError(fmt.Sprintf("revenue saturation must be positive, got %v", p.RevenueSaturation), nil)
	}
	if !(p.ExperienceScale > 0) || !isFinite(p.ExperienceScale) {
		return errors.NewConfigurationError(fmt.Sprintf("experience scale must be positive, got %v", p.ExperienceScale), nil)
	}
	for industry, m := range p.IndustryMultipliers {
		if key := industryKey(industry); key != industry || key == "" {
			return errors.NewConfigurationError(fmt.Sprintf("industry %q is never matched, use the key %q", industry, key), nil)
		}
		if !(m > 0 && m <= 1) {
			return errors.NewConfigurationError(fmt.Sprintf("industry multiplier for %q must be in (0,1], got %v", industry, m), nil)
		}
	}
	return nil
}

// NormalizeIndustry folds an industry onto a key of p.IndustryMultipliers, falling
// back to the built-in table and then IndustryOther.
func (p Params) NormalizeIndustry(s string) string {
	return normalizeIndustry(s, p.IndustryMultipliers)
}

func (p Params) industryMultiplier(industry string) float64 {
	if m, ok := p.IndustryMultipliers[industry]; ok {
		return m
	}
	if m, ok := p.IndustryMultipliers[IndustryOther]; ok {
		return m
	}
	return defaultIndustryMultipliers[IndustryOther]
}

// ScoreBusinessViability combines plan quality, a log-saturating revenue factor and a
// diminishing-returns experience factor, scaled by the industry risk multiplier.
func ScoreBusinessViability(a Applicant, p Params) float64 {
	revenue := 0.0
	if p.RevenueSaturation > 0 {
		revenue = math.Min(1, math.Log10(1+a.RevenueProjection)/math.Log10(1+p.RevenueSaturation))
	}

	experience := 0.0
	if p.ExperienceScale > 0 {
		experience = 1 - math.Exp(-a.YearsOfExperience/p.ExperienceScale)
	}

	raw := 40*a.BusinessPlanQuality + 30*revenue + 30*experience
	return clamp100(raw * p.industryMultiplier(a.Industry))
}

// ScorePaymentHistory weights utility payments slightly above rent.
func ScorePaymentHistory(a Applicant, _ Params) float64 {
	return clamp100(100 * (0.55*a.UtilityPaymentScore + 0.45*a.RentPaymentScore))
}

const (
	targetSavingsRate = 0.30
	maxDebtToIncome   = 0.80
	targetReserve     = 6.0 // months of expenses
)

// ScoreFinancialManagement rewards savings rate, low leverage and cash reserves.
// Each term is monotone, so negative cash flow and higher debt never raise the score.
func ScoreFinancialManagement(a Applicant, _ Params) float64 {
	savingsRate := 0.0
	if a.MonthlyIncome > 0 {
		savingsRate = (a.MonthlyIncome - a.MonthlyExpenses) / a.MonthlyIncome
	}

	var dti float64
	switch {
	case a.DebtAmount == 0:
		dti = 0
	case a.MonthlyIncome == 0:
		dti = math.Inf(1)
	default:
		dti = a.DebtAmount / (12 * a.MonthlyIncome)
	}

	reserveMonths := targetReserve
	if a.MonthlyExpenses > 0 {
		reserveMonths = a.SavingsAmount / a.MonthlyExpenses
	}

	cashFlow := 40 * clip(savingsRate/targetSavingsRate, 0, 1)
	leverage := 40 * clip(1-dti/maxDebtToIncome, 0, 1)
	reserves := 20 * clip(reserveMonths/targetReserve, 0, 1)

	return clamp100(cashFlow + leverage + reserves)
}

// ScorePersonalCreditworthiness delegates to the configured credit scorer, or the
// bureau-score mapping when none is set.
func ScorePersonalCreditworthiness(a Applicant, p Params) float64 {
	credit := p.Credit
	if credit == nil {
		credit = BureauScorer{}
	}
	return clamp100(credit.Score(a))
}

func ScoreEducationBackground(a Applicant, _ Params) float64 {
	return educationScores[a.EducationLevel]
}

func ScoreSocialVerification(a Applicant, p Params) float64 {
	social := p.Social
	if social == nil {
		social = PresenceScorer{}
	}
	return clamp100(social.Score(a))
}

type componentFunc func(Applicant, Params) float64

var componentFuncs = map[Component]componentFunc{
	BusinessViability:        ScoreBusinessViability,
	PaymentHistory:           ScorePaymentHistory,
	FinancialManagement:      ScoreFinancialManagement,
	PersonalCreditworthiness: ScorePersonalCreditworthiness,
	EducationBackground:      ScoreEducationBackground,
	SocialVerification:       ScoreSocialVerification,
}

// ScoreComponents evaluates all six scorers sequentially.
func ScoreComponents(a Applicant, p Params) ComponentScoreSet {
	var set ComponentScoreSet
	for _, c := range Components() {
		set.set(c, componentFuncs[c](a, p))
	}
	return set
}
