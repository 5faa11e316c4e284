package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/yecs/internal/database"
	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/fairness"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
	"github.com/ZanzyTHEbar/yecs/internal/service"
)

const serviceName = "YECS API"

// Handler serves the applicant and scoring endpoints.
type Handler struct {
	svc     *service.ScoringService
	repo    *database.Repository
	db      *database.DB
	redis   *database.RedisClient
	version string
	now     func() time.Time
}

type createUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Age       int    `json:"age"`
}

type businessProfileRequest struct {
	BusinessName         string   `json:"business_name"`
	Industry             string   `json:"industry"`
	EducationLevel       string   `json:"education_level"`
	BusinessPlanQuality  *float64 `json:"business_plan_quality"`
	RevenueProjection    *float64 `json:"revenue_projection"`
	YearsOfExperience    *float64 `json:"years_of_experience"`
	IdentityVerification *float64 `json:"identity_verification"`
	ProfessionalNetwork  *float64 `json:"professional_network"`
	OnlinePresence       *float64 `json:"online_presence"`
	CommunityInvolvement *float64 `json:"community_involvement"`
}

type financialDataRequest struct {
	MonthlyIncome          *float64 `json:"monthly_income"`
	MonthlyExpenses        *float64 `json:"monthly_expenses"`
	SavingsAmount          *float64 `json:"savings_amount"`
	DebtAmount             *float64 `json:"debt_amount"`
	UtilityPaymentScore    *float64 `json:"utility_payment_score"`
	RentPaymentScore       *float64 `json:"rent_payment_score"`
	TraditionalCreditScore *int     `json:"traditional_credit_score"`
	CreditUtilization      *float64 `json:"credit_utilization"`
	RecentCreditInquiries  *int     `json:"recent_credit_inquiries"`
}

// bindPayload validates the raw body against schema and decodes it into dst.
func bindPayload(c *gin.Context, schema payloadSchema, dst interface{}) error {
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.NewPayloadTooLargeError(tooLarge.Limit)
		}
		return errors.NewValidationError("body", "could not be read")
	}
	if err := schema.validate(body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.NewValidationError("body", "must be a valid JSON object")
	}
	return nil
}

// abort attaches err for ErrorHandler. Failures without a category are treated
// as the store being unavailable.
func abort(c *gin.Context, op string, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) &&
		!stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded) {
		err = errors.NewStorageError(op, err)
	}
	_ = c.Error(err)
	c.Abort()
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"version":   h.version,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// health reports the reachability of the database and, when configured, Redis.
func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			checks["database"] = gin.H{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			checks["database"] = gin.H{"status": "healthy", "pool": h.db.GetPoolStats()}
		}
	}
	if h.redis.IsEnabled() {
		if err := h.redis.HealthCheck(ctx); err != nil {
			checks["redis"] = gin.H{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			checks["redis"] = gin.H{"status": "healthy"}
		}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"service":   serviceName,
		"version":   h.version,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := bindPayload(c, createUserSchema, &req); err != nil {
		abort(c, "create_user", err)
		return
	}

	user := database.NewUser(req.Email, req.FirstName, req.LastName, req.Age)
	if err := h.repo.CreateUser(c.Request.Context(), user); err != nil {
		abort(c, "create_user", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id": user.ID,
		"email":   user.Email,
		"message": "User created successfully",
	})
}

func (h *Handler) createBusinessProfile(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("id")

	if _, err := h.repo.GetUser(ctx, userID); err != nil {
		abort(c, "get_user", err)
		return
	}

	var req businessProfileRequest
	if err := bindPayload(c, businessProfileSchema, &req); err != nil {
		abort(c, "create_business_profile", err)
		return
	}

	profile := &database.BusinessProfile{
		UserID:               userID,
		BusinessName:         req.BusinessName,
		Industry:             req.Industry,
		EducationLevel:       req.EducationLevel,
		BusinessPlanQuality:  req.BusinessPlanQuality,
		RevenueProjection:    req.RevenueProjection,
		YearsOfExperience:    req.YearsOfExperience,
		IdentityVerification: req.IdentityVerification,
		ProfessionalNetwork:  req.ProfessionalNetwork,
		OnlinePresence:       req.OnlinePresence,
		CommunityInvolvement: req.CommunityInvolvement,
	}
	if err := h.repo.CreateBusinessProfile(ctx, profile); err != nil {
		abort(c, "create_business_profile", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"business_profile_id": profile.ID,
		"message":             "Business profile created successfully",
	})
}

func (h *Handler) createFinancialData(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("id")

	if _, err := h.repo.GetUser(ctx, userID); err != nil {
		abort(c, "get_user", err)
		return
	}

	var req financialDataRequest
	if err := bindPayload(c, financialDataSchema, &req); err != nil {
		abort(c, "create_financial_data", err)
		return
	}

	data := &database.FinancialData{
		UserID:                 userID,
		MonthlyIncome:          req.MonthlyIncome,
		MonthlyExpenses:        req.MonthlyExpenses,
		SavingsAmount:          req.SavingsAmount,
		DebtAmount:             req.DebtAmount,
		UtilityPaymentScore:    req.UtilityPaymentScore,
		RentPaymentScore:       req.RentPaymentScore,
		TraditionalCreditScore: req.TraditionalCreditScore,
		CreditUtilization:      req.CreditUtilization,
		RecentCreditInquiries:  req.RecentCreditInquiries,
	}
	if err := h.repo.CreateFinancialData(ctx, data); err != nil {
		abort(c, "create_financial_data", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"financial_data_id": data.ID,
		"message":           "Financial data created successfully",
	})
}

func (h *Handler) calculateScore(c *gin.Context) {
	ctx := c.Request.Context()

	applicant, err := h.repo.LoadApplicant(ctx, c.Param("id"))
	if err != nil {
		abort(c, "load_applicant", err)
		return
	}

	rec, err := h.svc.ScoreApplicant(ctx, applicant)
	if err != nil {
		abort(c, "append", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":          rec.UserID,
		"score_id":         rec.ScoreID,
		"yecs_score":       rec.YECSScore,
		"risk_level":       rec.RiskLevel,
		"component_scores": rec.ComponentScores.Rounded(),
		"timestamp":        rec.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (h *Handler) scoreHistory(c *gin.Context) {
	userID := c.Param("id")

	records, err := h.svc.History(c.Request.Context(), userID)
	if err != nil {
		abort(c, "read_user", err)
		return
	}

	history := make([]scoring.ScoreRecord, len(records))
	for i, rec := range records {
		rec.ComponentScores = rec.ComponentScores.Rounded()
		history[i] = rec
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       userID,
		"score_history": history,
	})
}

// biasAnalysis always answers 200; an empty history is reported as insufficient samples.
func (h *Handler) biasAnalysis(c *gin.Context) {
	report, err := h.svc.RunBiasAnalysis(c.Request.Context())
	if err != nil {
		abort(c, "read_all", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp":     report.Timestamp.Format(time.RFC3339Nano),
		"total_records": report.TotalRecords,
		"bias_detected": report.BiasDetected(),
		"bias_analysis": report.Attributes,
		"bias_report":   fairness.RenderMarkdown(report),
	})
}
