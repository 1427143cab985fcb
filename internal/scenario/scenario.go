// File: internal/scenario/scenario.go

// Package scenario executes the ordered interaction sequence that exercises
// the target application's full and split layouts, capturing evidence at
// named checkpoints. Individual step failures degrade to skips; the scenario
// always runs to completion so the captured evidence stays diagnostic.
package scenario

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/cdproto/target"

	"github.com/xkilldash9x/reflow/internal/capture"
)

// ErrElementResolution means no selector in a step's fallback chain located
// the element within the step timeout. Recoverable per step.
var ErrElementResolution = errors.New("scenario: no selector resolved the element")

// Phase is the scenario state machine. Completed is reached even when the
// split never occurred; the harness records behavior, it does not assert it.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseCapturingHome
	PhaseOpeningPrimary
	PhaseAwaitingDynamicView
	PhaseSplitDetected
	PhaseSplitTimedOut
	PhaseClosingOrFinal
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "NotStarted"
	case PhaseCapturingHome:
		return "CapturingHome"
	case PhaseOpeningPrimary:
		return "OpeningPrimary"
	case PhaseAwaitingDynamicView:
		return "AwaitingDynamicView"
	case PhaseSplitDetected:
		return "SplitDetected"
	case PhaseSplitTimedOut:
		return "SplitTimedOut"
	case PhaseClosingOrFinal:
		return "ClosingOrFinal"
	case PhaseCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Locator is one way of describing an element. Steps carry an ordered chain
// of locators; the first that resolves wins.
type Locator struct {
	Description string
	Selector    string
	// ByQuery restricts matching to document.querySelector semantics
	// (first match); the default resolves CSS, XPath, or plain text.
	ByQuery bool
}

// StepStatus records how a step ended.
type StepStatus int

const (
	StepDone StepStatus = iota
	StepSkipped
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepDone:
		return "done"
	case StepSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// StepResult is the record of one executed step.
type StepResult struct {
	Name   string
	Status StepStatus
	Detail string
}

// Outcome is everything a run produced.
type Outcome struct {
	Phase         Phase
	SplitDetected bool
	SplitTimedOut bool
	ViewURL       string
	Steps         []StepResult
	Artifacts     []capture.Artifact
	// ArtifactWriteFailed marks a filesystem-level capture failure. The
	// scenario continues past it, but the run reports failure at exit.
	ArtifactWriteFailed bool
}

// ViewFinder discovers the secondary content view. The view registry
// satisfies it.
type ViewFinder interface {
	DiscoverDynamicView(ctx context.Context, timeout, pollInterval time.Duration) (*target.Info, error)
}

// Binder derives an interaction context for one browsing context. The debug
// session satisfies it.
type Binder interface {
	TargetContext(id target.ID) (context.Context, context.CancelFunc)
}

// CheckpointCapturer saves one checkpoint image.
type CheckpointCapturer interface {
	Capture(targetCtx context.Context, checkpoint string) (*capture.Artifact, error)
}

// Driver performs element-level interactions against a browsing context.
type Driver interface {
	// Click resolves the locator and clicks it.
	Click(targetCtx context.Context, loc Locator) error
	// ClickNth clicks the index-th element matching selector.
	ClickNth(targetCtx context.Context, selector string, index int) error
	// Text reads the text content of the located element.
	Text(targetCtx context.Context, loc Locator) (string, error)
	// Count reports how many elements match selector.
	Count(targetCtx context.Context, selector string) (int, error)
}
