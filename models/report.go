package models

import "fmt"

// ReportFailure records one failed item in a batch run. One item's
// failure never rolls back or blocks the others.
type ReportFailure struct {
	Subject string
	Reason  string
}

// Report is the outcome of a generate, validate or send run: one
// human-readable line per affected bill or cashcall, plus per-item
// failures for the caller to inspect.
type Report struct {
	DryRun       bool
	Lines        []string
	BillsCreated int
	Validated    int
	Sent         int
	Failures     []ReportFailure
}

// NewReport creates an empty report.
func NewReport(dryRun bool) *Report {
	return &Report{DryRun: dryRun}
}

// Addf appends a formatted line to the report.
func (r *Report) Addf(format string, args ...any) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}

// Failf records a per-item failure and a matching report line.
func (r *Report) Failf(subject string, format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	r.Failures = append(r.Failures, ReportFailure{Subject: subject, Reason: reason})
	r.Lines = append(r.Lines, fmt.Sprintf("%s: %s", subject, reason))
}

// OK reports whether the run completed without per-item failures.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}
