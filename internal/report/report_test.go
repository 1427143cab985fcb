package report

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/reflow/internal/capture"
	"github.com/xkilldash9x/reflow/internal/consolelog"
	"github.com/xkilldash9x/reflow/internal/scenario"
)

func TestSummarize(t *testing.T) {
	out := &scenario.Outcome{
		Phase:         scenario.PhaseCompleted,
		SplitDetected: true,
		ViewURL:       "https://github.com/example",
		Steps: []scenario.StepResult{
			{Name: "capture 01_homepage", Status: scenario.StepDone, Detail: "test_screenshots/01_homepage.png"},
		},
		Artifacts: []capture.Artifact{
			{Checkpoint: "01_homepage", Path: "test_screenshots/01_homepage.png"},
		},
	}
	tail := []consolelog.Entry{{Severity: "log", Text: "booted", At: time.Now()}}

	got := Summarize("ab12cd34", "attached", out, tail)
	want := Summary{
		RunID:         "ab12cd34",
		Mode:          "attached",
		FinalPhase:    "Completed",
		SplitDetected: true,
		ViewURL:       "https://github.com/example",
		Steps:         out.Steps,
		Artifacts:     out.Artifacts,
		ConsoleTail:   tail,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_NilOutcome(t *testing.T) {
	got := Summarize("ab12cd34", "attached", nil, nil)
	assert.Equal(t, "ab12cd34", got.RunID)
	assert.Empty(t, got.FinalPhase)
	assert.Empty(t, got.Steps)
	assert.Empty(t, got.Artifacts)
}

func TestWrite_FullSummary(t *testing.T) {
	s := Summary{
		RunID:         "ab12cd34",
		Mode:          "attached",
		FinalPhase:    "Completed",
		SplitDetected: true,
		ViewURL:       "https://github.com/example",
		Steps: []scenario.StepResult{
			{Name: "open primary content", Status: scenario.StepDone},
			{Name: "capture 03_split_screen", Status: scenario.StepSkipped, Detail: "context canceled"},
		},
		Artifacts: []capture.Artifact{
			{Checkpoint: "01_homepage", Path: "test_screenshots/01_homepage.png"},
			{Checkpoint: "04_split_interaction", Path: "test_screenshots/04_split_interaction.png"},
		},
		ConsoleTail: []consolelog.Entry{{Severity: "error", Text: "renderer hiccup"}},
	}

	var b strings.Builder
	s.Write(&b)
	text := b.String()

	assert.Contains(t, text, "=== reflow run ab12cd34 ===")
	assert.Contains(t, text, "connection: attached")
	assert.Contains(t, text, "split layout: detected (view url: https://github.com/example)")
	assert.Contains(t, text, "[done] open primary content")
	assert.Contains(t, text, "[skipped] capture 03_split_screen: context canceled")
	assert.Contains(t, text, "test_screenshots/04_split_interaction.png")
	assert.Contains(t, text, "04_split_interaction: both panes side by side")
	assert.Contains(t, text, "[error] renderer hiccup")
}

func TestWrite_TimedOutSummary(t *testing.T) {
	s := Summary{RunID: "ab12cd34", FinalPhase: "Completed", SplitTimedOut: true}

	var b strings.Builder
	s.Write(&b)
	text := b.String()

	assert.Contains(t, text, "split layout: not observed within the discovery window")
	assert.NotContains(t, text, "artifacts:")
	assert.NotContains(t, text, "recent console output:")
	assert.NotContains(t, text, "verification hints:")
}
