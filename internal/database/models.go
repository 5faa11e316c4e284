package database

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a registered applicant identity.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Age       int       `json:"age" db:"age"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BusinessProfile is one submission of business information. Optional numeric
// fields stay nil when the applicant did not supply them.
type BusinessProfile struct {
	ID                   string    `json:"id" db:"id"`
	UserID               string    `json:"user_id" db:"user_id"`
	BusinessName         string    `json:"business_name" db:"business_name"`
	Industry             string    `json:"industry" db:"industry"`
	EducationLevel       string    `json:"education_level" db:"education_level"`
	BusinessPlanQuality  *float64  `json:"business_plan_quality" db:"business_plan_quality"`
	RevenueProjection    *float64  `json:"revenue_projection" db:"revenue_projection"`
	YearsOfExperience    *float64  `json:"years_of_experience" db:"years_of_experience"`
	IdentityVerification *float64  `json:"identity_verification,omitempty" db:"identity_verification"`
	ProfessionalNetwork  *float64  `json:"professional_network,omitempty" db:"professional_network"`
	OnlinePresence       *float64  `json:"online_presence,omitempty" db:"online_presence"`
	CommunityInvolvement *float64  `json:"community_involvement,omitempty" db:"community_involvement"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}

// FinancialData is one submission of financial and alternative payment data.
type FinancialData struct {
	ID                     string    `json:"id" db:"id"`
	UserID                 string    `json:"user_id" db:"user_id"`
	MonthlyIncome          *float64  `json:"monthly_income" db:"monthly_income"`
	MonthlyExpenses        *float64  `json:"monthly_expenses" db:"monthly_expenses"`
	SavingsAmount          *float64  `json:"savings_amount" db:"savings_amount"`
	DebtAmount             *float64  `json:"debt_amount" db:"debt_amount"`
	UtilityPaymentScore    *float64  `json:"utility_payment_score" db:"utility_payment_score"`
	RentPaymentScore       *float64  `json:"rent_payment_score" db:"rent_payment_score"`
	TraditionalCreditScore *int      `json:"traditional_credit_score,omitempty" db:"traditional_credit_score"`
	CreditUtilization      *float64  `json:"credit_utilization,omitempty" db:"credit_utilization"`
	RecentCreditInquiries  *int      `json:"recent_credit_inquiries,omitempty" db:"recent_credit_inquiries"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
}

// NewUser creates a new user with generated ID
func NewUser(email, firstName, lastName string, age int) *User {
	return &User{
		ID:        uuid.New().String(),
		Email:     NormalizeEmail(email),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Age:       age,
		CreatedAt: time.Now().UTC(),
	}
}

// NormalizeEmail trims and lowercases an address before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
