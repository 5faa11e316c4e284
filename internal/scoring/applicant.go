package scoring

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
)

// ApplicantRecord is the raw, caller-owned input to a scoring request. Pointer
// fields distinguish a missing value from a zero value.
type ApplicantRecord struct {
	UserID    string          `json:"user_id"`
	Age       *int            `json:"age"`
	Business  BusinessProfile `json:"business_profile"`
	Financial FinancialData   `json:"financial_data"`
	Bureau    *BureauData     `json:"bureau_data,omitempty"`
	Social    *SocialSignals  `json:"social_signals,omitempty"`
}

type BusinessProfile struct {
	BusinessPlanQuality *float64 `json:"business_plan_quality"`
	RevenueProjection   *float64 `json:"revenue_projection"`
	YearsOfExperience   *float64 `json:"years_of_experience"`
	Industry            string   `json:"industry"`
	EducationLevel      string   `json:"education_level"`
}

type FinancialData struct {
	MonthlyIncome       *float64 `json:"monthly_income"`
	MonthlyExpenses     *float64 `json:"monthly_expenses"`
	SavingsAmount       *float64 `json:"savings_amount"`
	DebtAmount          *float64 `json:"debt_amount"`
	UtilityPaymentScore *float64 `json:"utility_payment_score"`
	RentPaymentScore    *float64 `json:"rent_payment_score"`
}

// BureauData carries optional traditional credit signals.
type BureauData struct {
	TraditionalCreditScore *int     `json:"traditional_credit_score,omitempty"`
	CreditUtilization      *float64 `json:"credit_utilization,omitempty"`
	RecentInquiries        *int     `json:"recent_credit_inquiries,omitempty"`
}

func (b *BureauData) empty() bool {
	return b == nil || (b.TraditionalCreditScore == nil && b.CreditUtilization == nil && b.RecentInquiries == nil)
}

// SocialSignals are optional presence signals, each in [0,1].
type SocialSignals struct {
	IdentityVerification *float64 `json:"identity_verification,omitempty"`
	ProfessionalNetwork  *float64 `json:"professional_network,omitempty"`
	OnlinePresence       *float64 `json:"online_presence,omitempty"`
	CommunityInvolvement *float64 `json:"community_involvement,omitempty"`
}

// Applicant is a validated ApplicantRecord with every required value present.
type Applicant struct {
	UserID string
	Age    int

	BusinessPlanQuality float64
	RevenueProjection   float64
	YearsOfExperience   float64
	Industry            string
	EducationLevel      EducationLevel

	MonthlyIncome       float64
	MonthlyExpenses     float64
	SavingsAmount       float64
	DebtAmount          float64
	UtilityPaymentScore float64
	RentPaymentScore    float64

	// Bureau is nil when no bureau signal was supplied.
	Bureau *BureauData
	Social SocialSignals
}

// Snapshot derives the demographic attributes recorded with a score.
func (a Applicant) Snapshot() DemographicSnapshot {
	return DemographicSnapshot{
		AgeBracket:     AgeBracket(a.Age),
		EducationLevel: string(a.EducationLevel),
		Industry:       a.Industry,
	}
}

const (
	MinApplicantAge = 18
	MaxApplicantAge = 120
)

// Validate checks fields in a fixed order and fails on the first problem.
// Anomalous values are rejected, never clamped. Industries are folded onto the
// built-in risk table.
func (r ApplicantRecord) Validate() (Applicant, error) {
	return r.ValidateWith(DefaultParams())
}

// ValidateWith is Validate with the industry folded onto p's risk table, so a
// configured industry keeps its own key.
func (r ApplicantRecord) ValidateWith(p Params) (Applicant, error) {
	var a Applicant
	var err error

	a.UserID = strings.TrimSpace(r.UserID)
	if a.UserID == "" {
		return Applicant{}, errors.NewValidationError("user_id", "is required")
	}

	if r.Age == nil {
		return Applicant{}, errors.NewValidationError("age", "is required")
	}
	if *r.Age < MinApplicantAge || *r.Age > MaxApplicantAge {
		return Applicant{}, errors.NewValidationError("age",
			fmt.Sprintf("must be between %d and %d", MinApplicantAge, MaxApplicantAge))
	}
	a.Age = *r.Age

	b := r.Business
	if a.BusinessPlanQuality, err = unitInterval("business_plan_quality", b.BusinessPlanQuality); err != nil {
		return Applicant{}, err
	}
	if a.RevenueProjection, err = nonNegative("revenue_projection", b.RevenueProjection); err != nil {
		return Applicant{}, err
	}
	if a.YearsOfExperience, err = nonNegative("years_of_experience", b.YearsOfExperience); err != nil {
		return Applicant{}, err
	}
	if strings.TrimSpace(b.Industry) == "" {
		return Applicant{}, errors.NewValidationError("industry", "is required")
	}
	a.Industry = p.NormalizeIndustry(b.Industry)
	if strings.TrimSpace(b.EducationLevel) == "" {
		return Applicant{}, errors.NewValidationError("education_level", "is required")
	}
	if a.EducationLevel, err = ParseEducationLevel(b.EducationLevel); err != nil {
		return Applicant{}, errors.NewValidationError("education_level", err.Error())
	}

	f := r.Financial
	if a.MonthlyIncome, err = nonNegative("monthly_income", f.MonthlyIncome); err != nil {
		return Applicant{}, err
	}
	if a.MonthlyExpenses, err = nonNegative("monthly_expenses", f.MonthlyExpenses); err != nil {
		return Applicant{}, err
	}
	if a.SavingsAmount, err = nonNegative("savings_amount", f.SavingsAmount); err != nil {
		return Applicant{}, err
	}
	if a.DebtAmount, err = nonNegative("debt_amount", f.DebtAmount); err != nil {
		return Applicant{}, err
	}
	if a.UtilityPaymentScore, err = unitInterval("utility_payment_score", f.UtilityPaymentScore); err != nil {
		return Applicant{}, err
	}
	if a.RentPaymentScore, err = unitInterval("rent_payment_score", f.RentPaymentScore); err != nil {
		return Applicant{}, err
	}

	if !r.Bureau.empty() {
		if err := validateBureau(r.Bureau); err != nil {
			return Applicant{}, err
		}
		bureau := *r.Bureau
		a.Bureau = &bureau
	}

	if r.Social != nil {
		if err := validateSocial(r.Social); err != nil {
			return Applicant{}, err
		}
		a.Social = *r.Social
	}

	return a, nil
}

func validateBureau(b *BureauData) error {
	if s := b.TraditionalCreditScore; s != nil && (*s < MinScore || *s > MaxScore) {
		return errors.NewValidationError("traditional_credit_score",
			fmt.Sprintf("must be between %d and %d", MinScore, MaxScore))
	}
	if b.CreditUtilization != nil {
		if _, err := unitInterval("credit_utilization", b.CreditUtilization); err != nil {
			return err
		}
	}
	if n := b.RecentInquiries; n != nil && *n < 0 {
		return errors.NewValidationError("recent_credit_inquiries", "must not be negative")
	}
	return nil
}

func validateSocial(s *SocialSignals) error {
	checks := []struct {
		field string
		v     *float64
	}{
		{"identity_verification", s.IdentityVerification},
		{"professional_network", s.ProfessionalNetwork},
		{"online_presence", s.OnlinePresence},
		{"community_involvement", s.CommunityInvolvement},
	}
	for _, c := range checks {
		if c.v == nil {
			continue
		}
		if _, err := unitInterval(c.field, c.v); err != nil {
			return err
		}
	}
	return nil
}

func finite(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, errors.NewValidationError(field, "is required")
	}
	if !isFinite(*v) {
		return 0, errors.NewValidationError(field, "must be a finite number")
	}
	return *v, nil
}

func nonNegative(field string, v *float64) (float64, error) {
	x, err := finite(field, v)
	if err != nil {
		return 0, err
	}
	if x < 0 {
		return 0, errors.NewValidationError(field, "must not be negative")
	}
	return x, nil
}

func unitInterval(field string, v *float64) (float64, error) {
	x, err := finite(field, v)
	if err != nil {
		return 0, err
	}
	if x < 0 || x > 1 {
		return 0, errors.NewValidationError(field, "must be between 0 and 1")
	}
	return x, nil
}

// AgeBracket buckets an age for the demographic snapshot.
func AgeBracket(age int) string {
	switch {
	case age < 25:
		return "under_25"
	case age < 35:
		return "25_34"
	case age < 45:
		return "35_44"
	case age < 55:
		return "45_54"
	default:
		return "55_plus"
	}
}

type EducationLevel string

const (
	EducationNone       EducationLevel = "none"
	EducationHighSchool EducationLevel = "high_school"
	EducationAssociate  EducationLevel = "associate"
	EducationBachelor   EducationLevel = "bachelor"
	EducationMaster     EducationLevel = "master"
	EducationDoctorate  EducationLevel = "doctorate"
)

// ParseEducationLevel maps free-form input such as "MBA" or "Bachelor's Degree"
// onto a canonical level. Higher degrees are matched first.
func ParseEducationLevel(s string) (EducationLevel, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", " ", "_", " ", "'", "").Replace(v)

	switch {
	case strings.Contains(v, "phd") || strings.Contains(v, "doctor"):
		return EducationDoctorate, nil
	case strings.Contains(v, "master") || strings.Contains(v, "mba"):
		return EducationMaster, nil
	case strings.Contains(v, "bachelor"):
		return EducationBachelor, nil
	case strings.Contains(v, "associate"):
		return EducationAssociate, nil
	case strings.Contains(v, "high school") || strings.Contains(v, "highschool") || v == "ged" || v == "secondary":
		return EducationHighSchool, nil
	case v == "none" || v == "no formal" || v == "no formal education":
		return EducationNone, nil
	}
	return "", fmt.Errorf("unknown education level %q", s)
}

var industryReplacer = strings.NewReplacer(" ", "_", "-", "_", "&", "and")

func industryKey(s string) string {
	return industryReplacer.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// normalizeIndustry prefers keys of the configured table over aliases and the
// built-in table.
func normalizeIndustry(s string, configured map[string]float64) string {
	v := industryKey(s)
	if _, ok := configured[v]; ok {
		return v
	}
	if alias, ok := industryAliases[v]; ok {
		return alias
	}
	if _, ok := defaultIndustryMultipliers[v]; ok {
		return v
	}
	return IndustryOther
}
