package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

// Repository handles applicant data: users, business profiles and financial data.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// CreateUser inserts a user. A duplicate email yields a conflict error.
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	var exists int
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT 1 FROM users WHERE email = ?`), user.Email).Scan(&exists)
	switch {
	case err == nil:
		return errors.NewConflictError("User with this email already exists")
	case err != sql.ErrNoRows:
		return fmt.Errorf("failed to query user: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users (id, email, first_name, last_name, age, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), user.ID, user.Email, user.FirstName, user.LastName, user.Age, user.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("User with this email already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	var (
		user      User
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, email, first_name, last_name, age, created_at
		FROM users WHERE id = ?
	`), id).Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Age, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("User")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	user.CreatedAt = time.Unix(0, createdAt).UTC()
	return &user, nil
}

func (r *Repository) CreateBusinessProfile(ctx context.Context, p *BusinessProfile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO business_profiles (
			id, user_id, business_name, industry, education_level,
			business_plan_quality, revenue_projection, years_of_experience,
			identity_verification, professional_network, online_presence, community_involvement,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), p.ID, p.UserID, p.BusinessName, p.Industry, p.EducationLevel,
		p.BusinessPlanQuality, p.RevenueProjection, p.YearsOfExperience,
		p.IdentityVerification, p.ProfessionalNetwork, p.OnlinePresence, p.CommunityInvolvement,
		p.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create business profile: %w", err)
	}
	return nil
}

// LatestBusinessProfile returns the most recent profile submitted for the user.
func (r *Repository) LatestBusinessProfile(ctx context.Context, userID string) (*BusinessProfile, error) {
	var (
		p                                    BusinessProfile
		plan, revenue, years                 sql.NullFloat64
		identity, network, online, community sql.NullFloat64
		createdAt                            int64
	)
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, user_id, business_name, industry, education_level,
			business_plan_quality, revenue_projection, years_of_experience,
			identity_verification, professional_network, online_presence, community_involvement,
			created_at
		FROM business_profiles WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`), userID).Scan(&p.ID, &p.UserID, &p.BusinessName, &p.Industry, &p.EducationLevel,
		&plan, &revenue, &years, &identity, &network, &online, &community, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("Business profile")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query business profile: %w", err)
	}

	p.BusinessPlanQuality = nullFloat(plan)
	p.RevenueProjection = nullFloat(revenue)
	p.YearsOfExperience = nullFloat(years)
	p.IdentityVerification = nullFloat(identity)
	p.ProfessionalNetwork = nullFloat(network)
	p.OnlinePresence = nullFloat(online)
	p.CommunityInvolvement = nullFloat(community)
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return &p, nil
}

func (r *Repository) CreateFinancialData(ctx context.Context, f *FinancialData) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO financial_data (
			id, user_id, monthly_income, monthly_expenses, savings_amount, debt_amount,
			utility_payment_score, rent_payment_score,
			traditional_credit_score, credit_utilization, recent_credit_inquiries,
			created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), f.ID, f.UserID, f.MonthlyIncome, f.MonthlyExpenses, f.SavingsAmount, f.DebtAmount,
		f.UtilityPaymentScore, f.RentPaymentScore,
		f.TraditionalCreditScore, f.CreditUtilization, f.RecentCreditInquiries,
		f.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create financial data: %w", err)
	}
	return nil
}

// LatestFinancialData returns the most recent financial submission for the user.
func (r *Repository) LatestFinancialData(ctx context.Context, userID string) (*FinancialData, error) {
	var (
		f                               FinancialData
		income, expenses, savings, debt sql.NullFloat64
		utility, rent, utilization      sql.NullFloat64
		creditScore, inquiries          sql.NullInt64
		createdAt                       int64
	)
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, user_id, monthly_income, monthly_expenses, savings_amount, debt_amount,
			utility_payment_score, rent_payment_score,
			traditional_credit_score, credit_utilization, recent_credit_inquiries,
			created_at
		FROM financial_data WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`), userID).Scan(&f.ID, &f.UserID, &income, &expenses, &savings, &debt,
		&utility, &rent, &creditScore, &utilization, &inquiries, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("Financial data")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query financial data: %w", err)
	}

	f.MonthlyIncome = nullFloat(income)
	f.MonthlyExpenses = nullFloat(expenses)
	f.SavingsAmount = nullFloat(savings)
	f.DebtAmount = nullFloat(debt)
	f.UtilityPaymentScore = nullFloat(utility)
	f.RentPaymentScore = nullFloat(rent)
	f.TraditionalCreditScore = nullInt(creditScore)
	f.CreditUtilization = nullFloat(utilization)
	f.RecentCreditInquiries = nullInt(inquiries)
	f.CreatedAt = time.Unix(0, createdAt).UTC()
	return &f, nil
}

// LoadApplicant assembles the scoring input from the user's latest submissions.
func (r *Repository) LoadApplicant(ctx context.Context, userID string) (scoring.ApplicantRecord, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return scoring.ApplicantRecord{}, err
	}
	profile, err := r.LatestBusinessProfile(ctx, userID)
	if err != nil {
		return scoring.ApplicantRecord{}, err
	}
	financial, err := r.LatestFinancialData(ctx, userID)
	if err != nil {
		return scoring.ApplicantRecord{}, err
	}
	return BuildApplicantRecord(user, profile, financial), nil
}

// BuildApplicantRecord maps stored rows onto the scoring input.
func BuildApplicantRecord(user *User, p *BusinessProfile, f *FinancialData) scoring.ApplicantRecord {
	age := user.Age
	rec := scoring.ApplicantRecord{
		UserID: user.ID,
		Age:    &age,
		Business: scoring.BusinessProfile{
			BusinessPlanQuality: p.BusinessPlanQuality,
			RevenueProjection:   p.RevenueProjection,
			YearsOfExperience:   p.YearsOfExperience,
			Industry:            p.Industry,
			EducationLevel:      p.EducationLevel,
		},
		Financial: scoring.FinancialData{
			MonthlyIncome:       f.MonthlyIncome,
			MonthlyExpenses:     f.MonthlyExpenses,
			SavingsAmount:       f.SavingsAmount,
			DebtAmount:          f.DebtAmount,
			UtilityPaymentScore: f.UtilityPaymentScore,
			RentPaymentScore:    f.RentPaymentScore,
		},
	}

	if f.TraditionalCreditScore != nil || f.CreditUtilization != nil || f.RecentCreditInquiries != nil {
		rec.Bureau = &scoring.BureauData{
			TraditionalCreditScore: f.TraditionalCreditScore,
			CreditUtilization:      f.CreditUtilization,
			RecentInquiries:        f.RecentCreditInquiries,
		}
	}
	if p.IdentityVerification != nil || p.ProfessionalNetwork != nil || p.OnlinePresence != nil || p.CommunityInvolvement != nil {
		rec.Social = &scoring.SocialSignals{
			IdentityVerification: p.IdentityVerification,
			ProfessionalNetwork:  p.ProfessionalNetwork,
			OnlinePresence:       p.OnlinePresence,
			CommunityInvolvement: p.CommunityInvolvement,
		}
	}
	return rec
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
