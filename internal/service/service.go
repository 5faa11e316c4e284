package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/fairness"
	"github.com/ZanzyTHEbar/yecs/internal/monitoring"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
	"github.com/ZanzyTHEbar/yecs/internal/store"
)

// Config is the immutable configuration a ScoringService is built from.
type Config struct {
	Weights    scoring.Weights
	Thresholds scoring.RiskThresholds
	Params     scoring.Params
	Bias       fairness.Config
}

func DefaultConfig() Config {
	return Config{
		Weights:    scoring.DefaultWeights(),
		Thresholds: scoring.DefaultRiskThresholds(),
		Params:     scoring.DefaultParams(),
		Bias:       fairness.DefaultConfig(),
	}
}

type Option func(*ScoringService)

func WithLogger(l *monitoring.Logger) Option {
	return func(s *ScoringService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(s *ScoringService) { s.metrics = m }
}

// WithClock overrides the record timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *ScoringService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithIDGenerator(next func() string) Option {
	return func(s *ScoringService) {
		if next != nil {
			s.newID = next
		}
	}
}

// ScoringService scores applicants, records every score in the history ledger and
// audits that ledger for disparate impact.
type ScoringService struct {
	engine   *scoring.Engine
	analyzer *fairness.Analyzer
	history  store.ScoreHistoryStore

	logger  *monitoring.Logger
	metrics *monitoring.Metrics
	clock   func() time.Time
	newID   func() string
}

// New fails with a ConfigurationError when weights, thresholds, scorer parameters
// or bias settings are invalid.
func New(cfg Config, history store.ScoreHistoryStore, opts ...Option) (*ScoringService, error) {
	if history == nil {
		return nil, errors.NewConfigurationError("score history store is required", nil)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	agg, err := scoring.NewAggregator(cfg.Weights, cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	analyzer, err := fairness.NewAnalyzer(cfg.Bias)
	if err != nil {
		return nil, err
	}

	s := &ScoringService{
		engine:   scoring.NewEngine(cfg.Params, agg),
		analyzer: analyzer,
		history:  history,
		logger:   monitoring.NopLogger(),
		clock:    time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ScoreApplicant validates the record, scores it and appends the result to the
// history. Nothing is appended when any step fails.
func (s *ScoringService) ScoreApplicant(ctx context.Context, rec scoring.ApplicantRecord) (scoring.ScoreRecord, error) {
	start := time.Now()

	applicant, err := s.engine.Prepare(rec)
	if err != nil {
		if appErr := errors.ToAppError(err); appErr != nil {
			s.logger.ValidationLogger(rec.UserID, appErr.Field, appErr.Message())
		}
		s.metrics.RecordScoringFailure("validation")
		return scoring.ScoreRecord{}, err
	}

	result, err := s.engine.Evaluate(ctx, applicant)
	if err != nil {
		s.metrics.RecordScoringFailure(failureReason(err))
		return scoring.ScoreRecord{}, err
	}

	record := scoring.ScoreRecord{
		ScoreID:         s.newID(),
		UserID:          applicant.UserID,
		YECSScore:       result.YECSScore,
		RiskLevel:       result.RiskLevel,
		ComponentScores: result.ComponentScores,
		CreatedAt:       s.clock().UTC().Round(0),
		Demographics:    result.Demographics,
	}

	// a caller that gave up must not leave a record behind
	if err := ctx.Err(); err != nil {
		s.metrics.RecordScoringFailure("timeout")
		return scoring.ScoreRecord{}, err
	}

	if err := s.history.Append(ctx, record); err != nil {
		s.metrics.RecordScoringFailure(failureReason(err))
		s.logger.Error("Failed to record score",
			"user_id", record.UserID,
			"score_id", record.ScoreID,
			"error", err,
		)
		return scoring.ScoreRecord{}, err
	}

	elapsed := time.Since(start)
	s.metrics.RecordScore(string(record.RiskLevel), record.YECSScore, elapsed)
	s.logger.ScoreLogger(record.UserID, record.ScoreID, record.YECSScore, string(record.RiskLevel), elapsed)
	return record, nil
}

// RunBiasAnalysis audits the full score history. The report is returned, not stored.
func (s *ScoringService) RunBiasAnalysis(ctx context.Context) (fairness.Report, error) {
	records, err := s.history.ReadAll(ctx)
	if err != nil {
		return fairness.Report{}, err
	}

	report := s.analyzer.Analyze(records, s.clock().UTC())

	s.metrics.RecordBiasRun()
	for _, attr := range report.AttributeNames() {
		res := report.Attributes[attr]
		s.metrics.RecordBiasAttribute(attr, res.DisparityRatio, res.BiasDetected)
		s.logger.BiasLogger(attr, res.DisparityRatio, res.BiasDetected, res.InsufficientSample)
	}
	return report, nil
}

// History returns a user's score records, most recent first.
func (s *ScoringService) History(ctx context.Context, userID string) ([]scoring.ScoreRecord, error) {
	records, err := s.history.ReadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []scoring.ScoreRecord{}
	}
	return records, nil
}

func (s *ScoringService) Aggregator() *scoring.Aggregator { return s.engine.Aggregator() }

func (s *ScoringService) BiasConfig() fairness.Config { return s.analyzer.Config() }

func failureReason(err error) string {
	switch errors.ToAppError(err).Category {
	case errors.CategoryValidation:
		return "validation"
	case errors.CategoryStorage:
		return "storage"
	case errors.CategoryTimeout:
		return "timeout"
	default:
		return "internal"
	}
}
