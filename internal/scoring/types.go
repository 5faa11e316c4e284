package scoring

import (
	"fmt"
	"time"
)

type Component string

const (
	BusinessViability        Component = "business_viability"
	PaymentHistory           Component = "payment_history"
	FinancialManagement      Component = "financial_management"
	PersonalCreditworthiness Component = "personal_creditworthiness"
	EducationBackground      Component = "education_background"
	SocialVerification       Component = "social_verification"
)

// Components lists the six components in descending weight order.
func Components() []Component {
	return []Component{
		BusinessViability,
		PaymentHistory,
		FinancialManagement,
		PersonalCreditworthiness,
		EducationBackground,
		SocialVerification,
	}
}

// ComponentScoreSet holds exactly one [0,100] value per component.
type ComponentScoreSet struct {
	BusinessViability        float64 `json:"business_viability"`
	PaymentHistory           float64 `json:"payment_history"`
	FinancialManagement      float64 `json:"financial_management"`
	PersonalCreditworthiness float64 `json:"personal_creditworthiness"`
	EducationBackground      float64 `json:"education_background"`
	SocialVerification       float64 `json:"social_verification"`
}

func (s ComponentScoreSet) Value(c Component) float64 {
	switch c {
	case BusinessViability:
		return s.BusinessViability
	case PaymentHistory:
		return s.PaymentHistory
	case FinancialManagement:
		return s.FinancialManagement
	case PersonalCreditworthiness:
		return s.PersonalCreditworthiness
	case EducationBackground:
		return s.EducationBackground
	case SocialVerification:
		return s.SocialVerification
	}
	panic(fmt.Sprintf("scoring: unknown component %q", c))
}

func (s *ComponentScoreSet) set(c Component, v float64) {
	switch c {
	case BusinessViability:
		s.BusinessViability = v
	case PaymentHistory:
		s.PaymentHistory = v
	case FinancialManagement:
		s.FinancialManagement = v
	case PersonalCreditworthiness:
		s.PersonalCreditworthiness = v
	case EducationBackground:
		s.EducationBackground = v
	case SocialVerification:
		s.SocialVerification = v
	default:
		panic(fmt.Sprintf("scoring: unknown component %q", c))
	}
}

// Validate reports the first component outside [0,100].
func (s ComponentScoreSet) Validate() error {
	for _, c := range Components() {
		if v := s.Value(c); !isFinite(v) || v < 0 || v > 100 {
			return fmt.Errorf("component %s out of range: %v", c, v)
		}
	}
	return nil
}

// Rounded returns a copy with every component rounded to one decimal for display.
func (s ComponentScoreSet) Rounded() ComponentScoreSet {
	var out ComponentScoreSet
	for _, c := range Components() {
		out.set(c, round1(s.Value(c)))
	}
	return out
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// Favorable reports whether the risk level counts as a favorable outcome in fairness audits.
func (r RiskLevel) Favorable() bool {
	return r == RiskLow || r == RiskMedium
}

// severity orders risk levels from lowest (0) to highest risk.
func (r RiskLevel) severity() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 3
	}
}

// ParseRiskLevel accepts only the exact RiskLevel names.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch r := RiskLevel(s); r {
	case RiskLow, RiskMedium, RiskHigh, RiskVeryHigh:
		return r, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// DemographicSnapshot is copied into every ScoreRecord at scoring time.
type DemographicSnapshot struct {
	AgeBracket     string `json:"age_bracket"`
	EducationLevel string `json:"education_level"`
	Industry       string `json:"industry"`
}

// Attribute returns the snapshot value for an audited attribute name.
func (d DemographicSnapshot) Attribute(name string) (string, bool) {
	switch name {
	case AttributeAgeBracket:
		return d.AgeBracket, true
	case AttributeEducationLevel:
		return d.EducationLevel, true
	case AttributeIndustry:
		return d.Industry, true
	}
	return "", false
}

const (
	AttributeAgeBracket     = "age_bracket"
	AttributeEducationLevel = "education_level"
	AttributeIndustry       = "industry"
)

// DemographicAttributes lists every attribute a snapshot carries.
func DemographicAttributes() []string {
	return []string{AttributeAgeBracket, AttributeEducationLevel, AttributeIndustry}
}

// ScoreRecord is the immutable result of one scoring request.
type ScoreRecord struct {
	ScoreID         string              `json:"score_id"`
	UserID          string              `json:"user_id"`
	YECSScore       int                 `json:"yecs_score"`
	RiskLevel       RiskLevel           `json:"risk_level"`
	ComponentScores ComponentScoreSet   `json:"component_scores"`
	CreatedAt       time.Time           `json:"created_at"`
	Demographics    DemographicSnapshot `json:"demographics"`
}

// Result is the aggregate output of the engine for one applicant.
type Result struct {
	YECSScore       int
	RiskLevel       RiskLevel
	ComponentScores ComponentScoreSet
	Demographics    DemographicSnapshot
}
