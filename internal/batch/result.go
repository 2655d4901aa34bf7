package batch

import (
	"fmt"
	"time"

	"github.com/coastertools/buildscale/internal/rules"
)

// Status is the per-(file, factor) outcome.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome summarizes one group.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
)

// FileResult is one entry of the run report. A parse failure yields a
// single entry with no scale (all variants depend on the one parse); all
// other failures are per scale factor.
type FileResult struct {
	Source string `json:"source"`
	Scale  string `json:"scale,omitempty"`
	Output string `json:"output,omitempty"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// GroupResult aggregates one group's file results.
type GroupResult struct {
	Dir      string       `json:"dir"`
	Outcome  Outcome      `json:"outcome"`
	Files    []FileResult `json:"files"`
	Warnings []string     `json:"warnings,omitempty"`
}

func (g *GroupResult) fail(source, scale string, err error) {
	g.Files = append(g.Files, FileResult{
		Source: source, Scale: scale, Status: StatusFailed, Error: err.Error(),
	})
}

func (g *GroupResult) written(source, scale, output string) {
	g.Files = append(g.Files, FileResult{
		Source: source, Scale: scale, Output: output, Status: StatusWritten,
	})
}

func (g *GroupResult) warnf(format string, a ...any) {
	g.Warnings = append(g.Warnings, fmt.Sprintf(format, a...))
}

// finish derives the group outcome from its file results.
func (g *GroupResult) finish() {
	var written, failed int
	for _, f := range g.Files {
		switch f.Status {
		case StatusWritten:
			written++
		case StatusFailed:
			failed++
		}
	}
	switch {
	case failed == 0:
		g.Outcome = OutcomeSucceeded
	case written > 0:
		g.Outcome = OutcomePartial
	default:
		g.Outcome = OutcomeFailed
	}
}

// Report is the aggregated result of one batch run.
type Report struct {
	Groups    []*GroupResult `json:"groups"`
	Written   int            `json:"written"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Cancelled bool           `json:"cancelled,omitempty"`
	Elapsed   time.Duration  `json:"elapsed_ns"`
}

func (r *Report) tally() {
	for _, g := range r.Groups {
		for _, f := range g.Files {
			switch f.Status {
			case StatusWritten:
				r.Written++
			case StatusSkipped:
				r.Skipped++
			case StatusFailed:
				r.Failed++
			}
		}
	}
}

// AddSkipped records explicitly supplied inputs no document template
// matched. They count as skipped, never as failures.
func (r *Report) AddSkipped(sources []string, reason string) {
	if len(sources) == 0 {
		return
	}
	g := &GroupResult{Dir: "(unmatched inputs)", Outcome: OutcomeSucceeded}
	for _, s := range sources {
		g.Files = append(g.Files, FileResult{Source: s, Status: StatusSkipped, Error: reason})
	}
	r.Groups = append(r.Groups, g)
	r.Skipped += len(sources)
}

// IntegrityError reports a material reference in an object document that
// does not resolve to a material written for the same scale factor.
type IntegrityError struct {
	Object string
	Ref    string
	Scale  rules.Factor
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: reference %q does not resolve among the %s outputs",
		e.Object, e.Ref, e.Scale.Tag())
}
