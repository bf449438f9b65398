package preflight

import (
	"fmt"
	"io"
)

// Status is the outcome of a single check.
type Status int

const (
	StatusOK Status = iota
	StatusWarn
	StatusFail
)

// Tag is the fixed-width marker printed in front of a report line.
func (s Status) Tag() string {
	switch s {
	case StatusOK:
		return "[ OK ]"
	case StatusWarn:
		return "[WARN]"
	default:
		return "[FAIL]"
	}
}

// Result is one line of the report.
type Result struct {
	Name    string
	Status  Status
	Message string
}

// Report holds the results in the order the checks were declared.
type Report struct {
	Results []Result
}

// Failed reports whether any check failed outright. Warnings do not block
// an install.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFail {
			return true
		}
	}
	return false
}

// Find returns the result for the named check.
func (r *Report) Find(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return Result{}, false
}

// Write prints the report.
func (r *Report) Write(w io.Writer) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, res := range r.Results {
		fmt.Fprintf(w, "  %s %s: %s\n", res.Status.Tag(), res.Name, res.Message)
	}
}
