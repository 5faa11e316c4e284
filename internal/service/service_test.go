package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/fairness"
	"github.com/ZanzyTHEbar/yecs/internal/monitoring"
	"github.com/ZanzyTHEbar/yecs/internal/resilience"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
	"github.com/ZanzyTHEbar/yecs/internal/store"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int         { return &v }

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func applicant(userID string) scoring.ApplicantRecord {
	return scoring.ApplicantRecord{
		UserID: userID,
		Age:    intp(31),
		Business: scoring.BusinessProfile{
			BusinessPlanQuality: f64(0.7),
			RevenueProjection:   f64(250000),
			YearsOfExperience:   f64(6),
			Industry:            "retail",
			EducationLevel:      "master",
		},
		Financial: scoring.FinancialData{
			MonthlyIncome:       f64(8000),
			MonthlyExpenses:     f64(5000),
			SavingsAmount:       f64(20000),
			DebtAmount:          f64(10000),
			UtilityPaymentScore: f64(0.95),
			RentPaymentScore:    f64(0.9),
		},
	}
}

func newService(t *testing.T, history store.ScoreHistoryStore, opts ...Option) *ScoringService {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	svc, err := New(DefaultConfig(), history, opts...)
	require.NoError(t, err)
	return svc
}

// failingStore never accepts a write.
type failingStore struct {
	*store.Memory
	appends int
}

func (f *failingStore) Append(context.Context, scoring.ScoreRecord) error {
	f.appends++
	return fmt.Errorf("disk I/O error")
}

func TestScoreApplicant_RecordsResult(t *testing.T) {
	ctx := context.Background()
	history := store.NewMemory()
	svc := newService(t, history, WithIDGenerator(func() string { return "score-1" }))

	rec, err := svc.ScoreApplicant(ctx, applicant("user-1"))
	require.NoError(t, err)

	assert.Equal(t, "score-1", rec.ScoreID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.True(t, fixedNow.Equal(rec.CreatedAt))
	assert.GreaterOrEqual(t, rec.YECSScore, scoring.MinScore)
	assert.LessOrEqual(t, rec.YECSScore, scoring.MaxScore)
	assert.Equal(t, svc.Aggregator().Classify(rec.YECSScore), rec.RiskLevel)
	assert.Equal(t, scoring.DemographicSnapshot{AgeBracket: "25_34", EducationLevel: "master", Industry: "retail"}, rec.Demographics)

	got, err := svc.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec, got[0])
}

func TestScoreApplicant_MissingMonthlyIncome(t *testing.T) {
	history := store.NewMemory()
	svc := newService(t, history)

	rec := applicant("user-1")
	rec.Financial.MonthlyIncome = nil

	_, err := svc.ScoreApplicant(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, "monthly_income", errors.ToAppError(err).Field)
	assert.Contains(t, err.Error(), "monthly_income")
	assert.Equal(t, 0, history.Len())
}

func TestScoreApplicant_StorageFailureAppendsNothing(t *testing.T) {
	inner := &failingStore{Memory: store.NewMemory()}
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.JitterEnabled = false
	history := store.WithRetry(inner, cfg, nil, nil)

	svc := newService(t, history)
	_, err := svc.ScoreApplicant(context.Background(), applicant("user-1"))

	require.Error(t, err)
	assert.True(t, errors.IsStorage(err))
	assert.Equal(t, 3, inner.appends)
	assert.Equal(t, 0, inner.Len())
}

func TestScoreApplicant_CancelledBeforeAppend(t *testing.T) {
	history := store.NewMemory()
	svc := newService(t, history)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ScoreApplicant(ctx, applicant("user-1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, history.Len())
}

func TestScoreApplicant_Deterministic(t *testing.T) {
	svc := newService(t, store.NewMemory())

	a, err := svc.ScoreApplicant(context.Background(), applicant("user-1"))
	require.NoError(t, err)
	b, err := svc.ScoreApplicant(context.Background(), applicant("user-1"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ScoreID, b.ScoreID)
	assert.Equal(t, a.YECSScore, b.YECSScore)
	assert.Equal(t, a.ComponentScores, b.ComponentScores)
}

func TestScoreApplicant_AlternateWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = scoring.Weights{SocialVerification: 1}
	cfg.Params.Social = scoring.NeutralScorer{}

	svc, err := New(cfg, store.NewMemory())
	require.NoError(t, err)

	rec, err := svc.ScoreApplicant(context.Background(), applicant("user-1"))
	require.NoError(t, err)
	assert.Equal(t, 575, rec.YECSScore)
	assert.Equal(t, scoring.RiskHigh, rec.RiskLevel)
}

func TestScoreApplicant_LogsWithoutFinancialValues(t *testing.T) {
	var buf bytes.Buffer
	svc := newService(t, store.NewMemory(),
		WithLogger(monitoring.NewLoggerWithWriter(&buf, "info")),
		WithIDGenerator(func() string { return "score-log" }))

	_, err := svc.ScoreApplicant(context.Background(), applicant("user-1"))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "user-1")
	assert.Contains(t, buf.String(), "score-log")
	assert.NotContains(t, buf.String(), "8000")
	assert.NotContains(t, buf.String(), "250000")
}

func TestScoreApplicant_ConcurrentUsers(t *testing.T) {
	history := store.NewMemory()
	svc := newService(t, history, WithMetrics(monitoring.NewMetrics()))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ScoreApplicant(context.Background(), applicant(fmt.Sprintf("user-%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, history.Len())
}

func TestNew_RejectsInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"weights do not sum to one", func(c *Config) { c.Weights.BusinessViability = 0.5 }},
		{"non-monotone thresholds", func(c *Config) { c.Thresholds.Medium = c.Thresholds.Low + 10 }},
		{"zero tolerance", func(c *Config) { c.Bias.Tolerance = 0 }},
		{"unknown attribute", func(c *Config) { c.Bias.Attributes = []string{"zodiac"} }},
		{"bad saturation", func(c *Config) { c.Params.RevenueSaturation = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, store.NewMemory())
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err))
		})
	}

	_, err := New(DefaultConfig(), nil)
	assert.True(t, errors.IsConfiguration(err))
}

func TestRunBiasAnalysis_EmptyHistory(t *testing.T) {
	svc := newService(t, store.NewMemory())

	report, err := svc.RunBiasAnalysis(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalRecords)
	assert.True(t, fixedNow.Equal(report.Timestamp))
	assert.False(t, report.BiasDetected())
	for _, attr := range scoring.DemographicAttributes() {
		res, ok := report.Attributes[attr]
		require.True(t, ok, attr)
		assert.True(t, res.InsufficientSample)
		assert.Nil(t, res.DisparityRatio)
	}
}

func TestRunBiasAnalysis_DetectsDisparity(t *testing.T) {
	ctx := context.Background()
	history := store.NewMemory()

	add := func(industry string, n, favorable int) {
		for i := 0; i < n; i++ {
			risk, score := scoring.RiskHigh, 550
			if i < favorable {
				risk, score = scoring.RiskMedium, 650
			}
			require.NoError(t, history.Append(ctx, scoring.ScoreRecord{
				ScoreID:   fmt.Sprintf("%s-%d", industry, i),
				UserID:    fmt.Sprintf("%s-user-%d", industry, i),
				YECSScore: score,
				RiskLevel: risk,
				CreatedAt: fixedNow,
				Demographics: scoring.DemographicSnapshot{
					AgeBracket:     "35_44",
					EducationLevel: "bachelor",
					Industry:       industry,
				},
			}))
		}
	}
	add("technology", 100, 90)
	add("retail", 100, 50)

	cfg := DefaultConfig()
	cfg.Bias = fairness.Config{Tolerance: 0.8, MinGroupSize: 30, Attributes: []string{scoring.AttributeIndustry}}
	svc, err := New(cfg, history)
	require.NoError(t, err)

	report, err := svc.RunBiasAnalysis(ctx)
	require.NoError(t, err)

	res := report.Attributes[scoring.AttributeIndustry]
	require.NotNil(t, res.DisparityRatio)
	assert.InDelta(t, 0.556, *res.DisparityRatio, 0.001)
	assert.True(t, res.BiasDetected)
	assert.Equal(t, "technology", res.ReferenceGroup)
	assert.Equal(t, "retail", res.DisadvantagedGroup)
}

func TestRunBiasAnalysis_StorageFailure(t *testing.T) {
	svc := newService(t, readFailStore{})
	_, err := svc.RunBiasAnalysis(context.Background())
	assert.Error(t, err)
}

type readFailStore struct{ store.ScoreHistoryStore }

func (readFailStore) ReadAll(context.Context) ([]scoring.ScoreRecord, error) {
	return nil, errors.NewStorageError("read_all", fmt.Errorf("offline"))
}
