package fairness

import (
	"fmt"
	"sort"
	"time"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

const (
	DefaultTolerance    = 0.8
	DefaultMinGroupSize = 30

	// UnknownGroup labels records whose snapshot lacks the attribute.
	UnknownGroup = "unknown"
)

// Config controls which attributes are audited and when a disparity counts as bias.
type Config struct {
	// Tolerance is the lowest acceptable disparate-impact ratio.
	Tolerance float64 `json:"tolerance" mapstructure:"tolerance"`
	// MinGroupSize is the smallest group that takes part in the verdict.
	MinGroupSize int      `json:"min_group_size" mapstructure:"min_group_size"`
	Attributes   []string `json:"attributes" mapstructure:"attributes"`
}

func DefaultConfig() Config {
	return Config{
		Tolerance:    DefaultTolerance,
		MinGroupSize: DefaultMinGroupSize,
		Attributes:   scoring.DemographicAttributes(),
	}
}

func (c Config) Validate() error {
	if !(c.Tolerance > 0 && c.Tolerance <= 1) {
		return errors.NewConfigurationError(fmt.Sprintf("bias tolerance must be in (0,1], got %v", c.Tolerance), nil)
	}
	if c.MinGroupSize < 1 {
		return errors.NewConfigurationError(fmt.Sprintf("bias min_group_size must be positive, got %d", c.MinGroupSize), nil)
	}
	if len(c.Attributes) == 0 {
		return errors.NewConfigurationError("at least one bias attribute is required", nil)
	}
	seen := make(map[string]bool, len(c.Attributes))
	for _, attr := range c.Attributes {
		if _, ok := (scoring.DemographicSnapshot{}).Attribute(attr); !ok {
			return errors.NewConfigurationError(fmt.Sprintf("unknown bias attribute %q", attr), nil)
		}
		if seen[attr] {
			return errors.NewConfigurationError(fmt.Sprintf("duplicate bias attribute %q", attr), nil)
		}
		seen[attr] = true
	}
	return nil
}

// GroupStats describes one attribute value's slice of the population.
type GroupStats struct {
	Count         int     `json:"count"`
	MeanScore     float64 `json:"mean_score"`
	StdDevScore   float64 `json:"std_score"`
	FavorableRate float64 `json:"favorable_rate"`
	// MeanRatio is the group mean divided by the attribute's overall mean.
	MeanRatio          float64 `json:"mean_ratio"`
	InsufficientSample bool    `json:"insufficient_sample"`
}

type AttributeResult struct {
	BiasDetected bool `json:"bias_detected"`
	// DisparityRatio is nil when fewer than two groups meet MinGroupSize.
	DisparityRatio       *float64              `json:"disparity_ratio"`
	ReferenceGroup       string                `json:"reference_group,omitempty"`
	DisadvantagedGroup   string                `json:"disadvantaged_group,omitempty"`
	OverallMean          float64               `json:"overall_mean"`
	OverallFavorableRate float64               `json:"overall_favorable_rate"`
	EligibleGroups       int                   `json:"eligible_groups"`
	InsufficientSample   bool                  `json:"insufficient_sample"`
	Groups               map[string]GroupStats `json:"groups"`
}

// Report is recomputed on every analysis and never persisted by the analyzer.
type Report struct {
	Timestamp    time.Time                  `json:"timestamp"`
	TotalRecords int                        `json:"total_records"`
	Tolerance    float64                    `json:"tolerance"`
	MinGroupSize int                        `json:"min_group_size"`
	Attributes   map[string]AttributeResult `json:"attributes"`
}

// BiasDetected reports whether any attribute was flagged.
func (r Report) BiasDetected() bool {
	for _, res := range r.Attributes {
		if res.BiasDetected {
			return true
		}
	}
	return false
}

// AttributeNames returns the audited attributes in sorted order.
func (r Report) AttributeNames() []string {
	names := make([]string, 0, len(r.Attributes))
	for name := range r.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedGroups returns the group names of an attribute in sorted order.
func (a AttributeResult) SortedGroups() []string {
	names := make([]string, 0, len(a.Groups))
	for name := range a.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Analyzer audits score history for disparate impact. It is read-only.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer validates cfg and keeps its own copy of the attribute list.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Attributes = append([]string(nil), cfg.Attributes...)
	return &Analyzer{cfg: cfg}, nil
}

func (a *Analyzer) Config() Config {
	cfg := a.cfg
	cfg.Attributes = append([]string(nil), a.cfg.Attributes...)
	return cfg
}

// Analyze partitions records by each configured attribute and compares favorable
// outcome rates between groups.
func (a *Analyzer) Analyze(records []scoring.ScoreRecord, now time.Time) Report {
	report := Report{
		Timestamp:    now,
		TotalRecords: len(records),
		Tolerance:    a.cfg.Tolerance,
		MinGroupSize: a.cfg.MinGroupSize,
		Attributes:   make(map[string]AttributeResult, len(a.cfg.Attributes)),
	}

	for _, attr := range a.cfg.Attributes {
		report.Attributes[attr] = a.analyzeAttribute(records, attr)
	}
	return report
}

type groupAcc struct {
	scores    []float64
	favorable int
}

func (a *Analyzer) analyzeAttribute(records []scoring.ScoreRecord, attr string) AttributeResult {
	groups := make(map[string]*groupAcc)
	all := make([]float64, 0, len(records))
	favorable := 0

	for _, rec := range records {
		value, _ := rec.Demographics.Attribute(attr)
		if value == "" {
			value = UnknownGroup
		}
		g, ok := groups[value]
		if !ok {
			g = &groupAcc{}
			groups[value] = g
		}
		g.scores = append(g.scores, float64(rec.YECSScore))
		all = append(all, float64(rec.YECSScore))
		if rec.RiskLevel.Favorable() {
			g.favorable++
			favorable++
		}
	}

	res := AttributeResult{
		OverallMean: mean(all),
		Groups:      make(map[string]GroupStats, len(groups)),
	}
	if len(records) > 0 {
		res.OverallFavorableRate = float64(favorable) / float64(len(records))
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		minRate, maxRate   float64
		minGroup, maxGroup string
		excluded           bool
	)

	for _, name := range names {
		g := groups[name]
		stats := GroupStats{
			Count:         len(g.scores),
			MeanScore:     mean(g.scores),
			StdDevScore:   stddev(g.scores),
			FavorableRate: float64(g.favorable) / float64(len(g.scores)),
		}
		if res.OverallMean > 0 {
			stats.MeanRatio = stats.MeanScore / res.OverallMean
		}

		if stats.Count < a.cfg.MinGroupSize {
			stats.InsufficientSample = true
			excluded = true
		} else {
			if res.EligibleGroups == 0 || stats.FavorableRate < minRate {
				minRate, minGroup = stats.FavorableRate, name
			}
			if res.EligibleGroups == 0 || stats.FavorableRate > maxRate {
				maxRate, maxGroup = stats.FavorableRate, name
			}
			res.EligibleGroups++
		}
		res.Groups[name] = stats
	}

	if res.EligibleGroups < 2 {
		res.InsufficientSample = true
		return res
	}

	ratio := 1.0
	if maxRate > 0 {
		ratio = minRate / maxRate
	}
	res.DisparityRatio = &ratio
	res.InsufficientSample = excluded
	res.BiasDetected = ratio < a.cfg.Tolerance
	if minGroup != maxGroup {
		res.ReferenceGroup = maxGroup
		res.DisadvantagedGroup = minGroup
	}
	return res
}
