// File: internal/report/report.go

// Package report renders the end-of-run console summary: captured artifacts,
// trailing console output, and per-checkpoint verification hints. Pure
// formatting; report generation is best-effort and never fails.
package report

import (
	"fmt"
	"io"

	"github.com/xkilldash9x/reflow/internal/capture"
	"github.com/xkilldash9x/reflow/internal/consolelog"
	"github.com/xkilldash9x/reflow/internal/scenario"
)

// hints explains what each checkpoint is evidence of. Checkpoints without an
// entry are listed without commentary.
var hints = map[string]string{
	"01_homepage":          "primary window at rest, before any interaction",
	"02_fullscreen":        "content loaded in full (non-split) layout",
	"03_split_screen":      "the secondary view's own surface",
	"04_split_interaction": "both panes side by side after interacting in the view",
	"05_before_close":      "final state before teardown",
}

// Summary is the structured report handed to the writer.
type Summary struct {
	RunID         string
	Mode          string
	FinalPhase    string
	SplitDetected bool
	SplitTimedOut bool
	ViewURL       string
	Steps         []scenario.StepResult
	Artifacts     []capture.Artifact
	ConsoleTail   []consolelog.Entry
}

// Summarize assembles a Summary from run outputs. Absent inputs produce
// absent sections, never errors.
func Summarize(runID, mode string, out *scenario.Outcome, tail []consolelog.Entry) Summary {
	s := Summary{
		RunID:       runID,
		Mode:        mode,
		ConsoleTail: tail,
	}
	if out != nil {
		s.FinalPhase = out.Phase.String()
		s.SplitDetected = out.SplitDetected
		s.SplitTimedOut = out.SplitTimedOut
		s.ViewURL = out.ViewURL
		s.Steps = out.Steps
		s.Artifacts = out.Artifacts
	}
	return s
}

// Write emits the human-readable summary. Best-effort: write errors are
// ignored, consistent with "never fails".
func (s Summary) Write(w io.Writer) {
	fmt.Fprintf(w, "\n=== reflow run %s ===\n", s.RunID)
	if s.Mode != "" {
		fmt.Fprintf(w, "connection: %s\n", s.Mode)
	}
	if s.FinalPhase != "" {
		fmt.Fprintf(w, "final phase: %s\n", s.FinalPhase)
	}

	switch {
	case s.SplitDetected:
		fmt.Fprintf(w, "split layout: detected (view url: %s)\n", s.ViewURL)
	case s.SplitTimedOut:
		fmt.Fprintln(w, "split layout: not observed within the discovery window")
	}

	if len(s.Steps) > 0 {
		fmt.Fprintln(w, "\nsteps:")
		for _, st := range s.Steps {
			if st.Detail != "" {
				fmt.Fprintf(w, "  [%s] %s: %s\n", st.Status, st.Name, st.Detail)
			} else {
				fmt.Fprintf(w, "  [%s] %s\n", st.Status, st.Name)
			}
		}
	}

	if len(s.Artifacts) > 0 {
		fmt.Fprintln(w, "\nartifacts:")
		for _, a := range s.Artifacts {
			fmt.Fprintf(w, "  %s\n", a.Path)
		}

		fmt.Fprintln(w, "\nverification hints:")
		for _, a := range s.Artifacts {
			if hint, ok := hints[a.Checkpoint]; ok {
				fmt.Fprintf(w, "  %s: %s\n", a.Checkpoint, hint)
			}
		}
	}

	if len(s.ConsoleTail) > 0 {
		fmt.Fprintln(w, "\nrecent console output:")
		for _, e := range s.ConsoleTail {
			fmt.Fprintf(w, "  [%s] %s\n", e.Severity, e.Text)
		}
	}
	fmt.Fprintln(w)
}
