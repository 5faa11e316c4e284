package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/yecs/internal/database"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

// SQL stores the ledger in the score_records table of a sqlite or postgres database.
type SQL struct {
	db *database.DB
}

func NewSQL(db *database.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Backend() string { return "sql_" + string(s.db.Dialect()) }

const scoreColumns = `score_id, user_id, yecs_score, risk_level,
	business_viability, payment_history, financial_management,
	personal_creditworthiness, education_background, social_verification,
	age_bracket, education_level, industry, created_at`

// Append is a single INSERT, so readers never see a partial record. A repeated
// score id is ignored, which keeps retried appends idempotent.
func (s *SQL) Append(ctx context.Context, rec scoring.ScoreRecord) error {
	cs := rec.ComponentScores
	d := rec.Demographics

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO score_records (`+scoreColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (score_id) DO NOTHING
	`), rec.ScoreID, rec.UserID, rec.YECSScore, string(rec.RiskLevel),
		cs.BusinessViability, cs.PaymentHistory, cs.FinancialManagement,
		cs.PersonalCreditworthiness, cs.EducationBackground, cs.SocialVerification,
		d.AgeBracket, d.EducationLevel, d.Industry, rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to append score record: %w", err)
	}
	return nil
}

func (s *SQL) ReadUser(ctx context.Context, userID string) ([]scoring.ScoreRecord, error) {
	return s.query(ctx, `SELECT `+scoreColumns+` FROM score_records
		WHERE user_id = ? ORDER BY created_at DESC, score_id DESC`, userID)
}

func (s *SQL) ReadAll(ctx context.Context) ([]scoring.ScoreRecord, error) {
	return s.query(ctx, `SELECT `+scoreColumns+` FROM score_records`)
}

func (s *SQL) query(ctx context.Context, query string, args ...interface{}) ([]scoring.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query score records: %w", err)
	}
	defer rows.Close()

	var out []scoring.ScoreRecord
	for rows.Next() {
		var (
			rec       scoring.ScoreRecord
			risk      string
			createdAt int64
		)
		cs := &rec.ComponentScores
		d := &rec.Demographics
		if err := rows.Scan(&rec.ScoreID, &rec.UserID, &rec.YECSScore, &risk,
			&cs.BusinessViability, &cs.PaymentHistory, &cs.FinancialManagement,
			&cs.PersonalCreditworthiness, &cs.EducationBackground, &cs.SocialVerification,
			&d.AgeBracket, &d.EducationLevel, &d.Industry, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan score record: %w", err)
		}
		if rec.RiskLevel, err = scoring.ParseRiskLevel(risk); err != nil {
			return nil, fmt.Errorf("corrupt score record %s: %w", rec.ScoreID, err)
		}
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate score records: %w", err)
	}
	return out, nil
}
