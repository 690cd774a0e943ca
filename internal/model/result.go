package model

import "time"

// RuleResult is the outcome of evaluating a single rule.
type RuleResult struct {
	RuleID        string
	Passed        bool
	ActualValue   any
	Threshold     any
	Severity      string
	Stage         string
	Message       string
	Analysis      map[string]any
	ExecutionTime time.Duration
}

// ComplianceReport aggregates per-rule outcomes for one run.
type ComplianceReport struct {
	Total   int
	Passed  int
	Failed  int
	Rules   []RuleResult
	Started time.Time
	Ended   time.Time
}

// Recount recomputes the counters from the rule list.
func (r *ComplianceReport) Recount() {
	r.Total = len(r.Rules)
	r.Passed = 0
	r.Failed = 0
	for _, rule := range r.Rules {
		if rule.Passed {
			r.Passed++
		} else {
			r.Failed++
		}
	}
}
