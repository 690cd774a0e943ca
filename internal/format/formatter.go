package format

import (
	"sort"
	"time"
)

// FormatVersion tags the output document layout.
const FormatVersion = "2.0"

// Timing carries the run's clock values, rendered as ISO 8601 strings.
type Timing struct {
	RequestTime   string `json:"request_time,omitempty"`
	ExecutionTime string `json:"execution_time,omitempty"`
}

// Document is the standard-form results document. Raw sensor channels are
// never carried; only analyses survive formatting.
type Document struct {
	AnalysisSummary AnalysisSummary `json:"analysis_summary"`
	Results         []ResultEntry   `json:"results"`
	Metadata        DocMetadata     `json:"metadata"`
}

// AnalysisSummary summarizes the run outcome.
type AnalysisSummary struct {
	TotalResults int    `json:"total_results"`
	Status       string `json:"status"`
}

// ResultEntry wraps one rule-compliance block.
type ResultEntry struct {
	RuleCompliance RuleCompliance `json:"rule_compliance"`
}

// RuleCompliance is the per-run compliance tally plus per-rule detail.
type RuleCompliance struct {
	TotalRules  int                  `json:"total_rules"`
	PassedRules int                  `json:"passed_rules"`
	FailedRules int                  `json:"failed_rules"`
	Rules       map[string]RuleEntry `json:"rules"`
}

// RuleEntry is one rule's formatted outcome.
type RuleEntry struct {
	RuleName      string `json:"rule_name"`
	Passed        bool   `json:"passed"`
	ExecutionTime string `json:"execution_time"`
}

// DocMetadata describes the document itself.
type DocMetadata struct {
	FormatVersion string    `json:"format_version"`
	GeneratedBy   string    `json:"generated_by"`
	Algorithm     string    `json:"algorithm,omitempty"`
	Timing        DocTiming `json:"timing"`
}

// DocTiming holds the three clock values of the run.
type DocTiming struct {
	RequestTime    string `json:"request_time,omitempty"`
	ExecutionTime  string `json:"execution_time,omitempty"`
	GenerationTime string `json:"generation_time"`
}

// Formatter renders merged results into the standard document form. The
// output is deterministic except for generation_time.
type Formatter struct {
	Algorithm   string
	GeneratedBy string

	// now is swappable for tests.
	now func() time.Time
}

// NewFormatter creates a formatter. GeneratedBy defaults to "autoclave".
func NewFormatter(algorithm string) *Formatter {
	return &Formatter{Algorithm: algorithm, GeneratedBy: "autoclave", now: time.Now}
}

// Format builds the standard-form document from merged results and the run's
// timing values. Legacy compact timestamps are normalized to ISO 8601.
func (f *Formatter) Format(merged *MergedResults, timing Timing) *Document {
	status := "passed"
	if !merged.AllPassed() {
		status = "failed"
	}

	compliance := RuleCompliance{
		TotalRules:  merged.Total,
		PassedRules: merged.Passed,
		FailedRules: merged.Failed,
		Rules:       make(map[string]RuleEntry, len(merged.Rules)),
	}
	ids := make([]string, 0, len(merged.Rules))
	for id := range merged.Rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rule := merged.Rules[id]
		compliance.Rules[id] = RuleEntry{
			RuleName:      rule.RuleID,
			Passed:        rule.Passed,
			ExecutionTime: rule.ExecutionTime.String(),
		}
	}

	nowFn := f.now
	if nowFn == nil {
		nowFn = time.Now
	}

	return &Document{
		AnalysisSummary: AnalysisSummary{
			TotalResults: merged.Total,
			Status:       status,
		},
		Results: []ResultEntry{{RuleCompliance: compliance}},
		Metadata: DocMetadata{
			FormatVersion: FormatVersion,
			GeneratedBy:   f.GeneratedBy,
			Algorithm:     f.Algorithm,
			Timing: DocTiming{
				RequestTime:    NormalizeTimestamp(timing.RequestTime),
				ExecutionTime:  NormalizeTimestamp(timing.ExecutionTime),
				GenerationTime: nowFn().UTC().Format(time.RFC3339),
			},
		},
	}
}

// legacyCompactLayout is the YYYYMMDD_HHMMSS form older callers still send.
const legacyCompactLayout = "20060102_150405"

// NormalizeTimestamp converts a legacy compact timestamp to ISO 8601.
// Already-ISO values and unrecognized strings pass through unchanged.
func NormalizeTimestamp(value string) string {
	if value == "" {
		return ""
	}
	if t, err := time.Parse(legacyCompactLayout, value); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return value
}
