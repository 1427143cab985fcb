// File: internal/scenario/runner.go
package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"go.uber.org/zap"

	"github.com/xkilldash9x/reflow/internal/capture"
	"github.com/xkilldash9x/reflow/internal/config"
	"github.com/xkilldash9x/reflow/internal/poll"
	"github.com/xkilldash9x/reflow/internal/views"
)

// Runner executes the layout-verification scenario against the Host and, if
// one appears, the DynamicView.
type Runner struct {
	scenCfg config.ScenarioConfig
	discCfg config.DiscoveryConfig

	finder   ViewFinder
	binder   Binder
	capturer CheckpointCapturer
	driver   Driver
	settle   func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

// NewRunner wires a runner from its collaborators.
func NewRunner(
	scenCfg config.ScenarioConfig,
	discCfg config.DiscoveryConfig,
	finder ViewFinder,
	binder Binder,
	capturer CheckpointCapturer,
	driver Driver,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		scenCfg:  scenCfg,
		discCfg:  discCfg,
		finder:   finder,
		binder:   binder,
		capturer: capturer,
		driver:   driver,
		settle:   poll.Settle,
		logger:   logger.Named("scenario"),
	}
}

// triggerLocators is the fallback chain for the control that opens the
// secondary view: the labelled button first, any button as degradation.
func (r *Runner) triggerLocators() []Locator {
	chain := []Locator{}
	if r.scenCfg.TriggerLabel != "" {
		chain = append(chain, Locator{
			Description: fmt.Sprintf("button containing %q", r.scenCfg.TriggerLabel),
			Selector:    fmt.Sprintf(`//button[contains(., %q)]`, r.scenCfg.TriggerLabel),
		})
	}
	chain = append(chain, Locator{
		Description: "first button element",
		Selector:    "button",
		ByQuery:     true,
	})
	return chain
}

// Run drives the state machine to Completed. hostCtx is the interaction
// context for the Host browsing context. Run never aborts on a recoverable
// step failure; only a canceled context or a dead Host stops it early.
func (r *Runner) Run(ctx context.Context, hostCtx context.Context) (*Outcome, error) {
	out := &Outcome{Phase: PhaseNotStarted}

	// -- CapturingHome --
	r.enter(out, PhaseCapturingHome)
	r.captureStep(ctx, out, hostCtx, "01_homepage")
	if err := ctx.Err(); err != nil {
		return out, err
	}

	// -- OpeningPrimary --
	r.enter(out, PhaseOpeningPrimary)
	r.clickStep(ctx, out, hostCtx, "open primary content", r.triggerLocators())
	// The click presumably triggers an asynchronous layout change; give the
	// page a bounded settle interval before recording the full layout.
	if err := r.settle(ctx, r.scenCfg.SettleDelay); err != nil {
		return out, err
	}
	r.captureStep(ctx, out, hostCtx, "02_fullscreen")

	// -- AwaitingDynamicView --
	r.enter(out, PhaseAwaitingDynamicView)
	view, err := r.finder.DiscoverDynamicView(ctx, r.discCfg.ViewTimeout, r.discCfg.PollInterval)
	switch {
	case err == nil:
		r.enter(out, PhaseSplitDetected)
		out.SplitDetected = true
		out.ViewURL = view.URL
		out.Steps = append(out.Steps, StepResult{Name: "await dynamic view", Status: StepDone, Detail: view.URL})
		r.runSplitSteps(ctx, out, hostCtx, view.TargetID)
	case errors.Is(err, views.ErrDynamicViewTimeout):
		// Benign: the harness records the non-split state as evidence.
		r.enter(out, PhaseSplitTimedOut)
		out.SplitTimedOut = true
		out.Steps = append(out.Steps, StepResult{Name: "await dynamic view", Status: StepSkipped, Detail: "no secondary view appeared"})
		r.logger.Warn("No dynamic view appeared; continuing with non-split evidence.")
	default:
		return out, err
	}

	// -- ClosingOrFinal --
	r.enter(out, PhaseClosingOrFinal)
	r.captureStep(ctx, out, hostCtx, "05_before_close")

	r.enter(out, PhaseCompleted)
	return out, nil
}

// runSplitSteps handles everything that only makes sense once a secondary
// view exists: capturing it, clicking a link inside it, and recording the
// resulting split layout.
func (r *Runner) runSplitSteps(ctx context.Context, out *Outcome, hostCtx context.Context, viewID target.ID) {
	viewCtx, cancel := r.binder.TargetContext(viewID)
	defer cancel()

	// Evidence of the view itself.
	r.captureStep(ctx, out, viewCtx, "03_split_screen")

	// Click a link inside the view to exercise the split layout further.
	// The second link is preferred (the first is typically a logo), the
	// first is the fallback. Enumeration is bounded: the view may never
	// render an anchor at all.
	countCtx, cancelCount := context.WithTimeout(viewCtx, r.scenCfg.StepTimeout)
	n, err := r.driver.Count(countCtx, "a[href]")
	cancelCount()
	if err != nil || n == 0 {
		out.Steps = append(out.Steps, StepResult{Name: "click view link", Status: StepSkipped, Detail: "no links found in view"})
		r.logger.Warn("No links found in dynamic view.", zap.Error(err))
	} else {
		index := 0
		if n > 1 {
			index = 1
		}
		attemptCtx, cancelAttempt := context.WithTimeout(viewCtx, r.scenCfg.StepTimeout)
		err := r.driver.ClickNth(attemptCtx, "a[href]", index)
		cancelAttempt()
		if err != nil {
			out.Steps = append(out.Steps, StepResult{Name: "click view link", Status: StepSkipped, Detail: err.Error()})
			r.logger.Warn("Link click in dynamic view failed.", zap.Error(err))
		} else {
			out.Steps = append(out.Steps, StepResult{Name: "click view link", Status: StepDone})
			if err := r.settle(ctx, r.scenCfg.SettleDelay); err != nil {
				return
			}
		}
	}

	// The split layout is judged from the Host surface, where both panes
	// are visible side by side.
	r.captureStep(ctx, out, hostCtx, "04_split_interaction")
}

// enter advances the state machine.
func (r *Runner) enter(out *Outcome, p Phase) {
	r.logger.Debug("Phase transition.", zap.String("from", out.Phase.String()), zap.String("to", p.String()))
	out.Phase = p
}

// captureStep saves one checkpoint, degrading to a skipped step when the
// context is gone and to a recorded write failure when the filesystem is.
func (r *Runner) captureStep(ctx context.Context, out *Outcome, targetCtx context.Context, checkpoint string) {
	art, err := r.capturer.Capture(targetCtx, checkpoint)
	if err != nil {
		if errors.Is(err, capture.ErrArtifactWrite) {
			out.ArtifactWriteFailed = true
			r.logger.Error("Artifact write failed.", zap.String("checkpoint", checkpoint), zap.Error(err))
		} else {
			r.logger.Warn("Checkpoint skipped; context unavailable.", zap.String("checkpoint", checkpoint), zap.Error(err))
		}
		out.Steps = append(out.Steps, StepResult{Name: "capture " + checkpoint, Status: StepSkipped, Detail: err.Error()})
		return
	}
	out.Artifacts = append(out.Artifacts, *art)
	out.Steps = append(out.Steps, StepResult{Name: "capture " + checkpoint, Status: StepDone, Detail: art.Path})
}

// clickStep tries each locator in the chain until one clicks. All misses
// within the step timeout mark the step skipped, never fatal. The clicked
// control's label is recorded as the step detail.
func (r *Runner) clickStep(ctx context.Context, out *Outcome, targetCtx context.Context, name string, chain []Locator) {
	label, err := r.resolveAndClick(ctx, targetCtx, chain)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		out.Steps = append(out.Steps, StepResult{Name: name, Status: StepSkipped, Detail: err.Error()})
		r.logger.Warn("Step skipped.", zap.String("step", name), zap.Error(err))
		return
	}
	out.Steps = append(out.Steps, StepResult{Name: name, Status: StepDone, Detail: label})
}

// resolveAndClick is the layered-degradation primitive: an explicit ordered
// list of locators tried in sequence, first success short-circuiting. The
// element's text is read before the click, while the control still exists.
func (r *Runner) resolveAndClick(ctx context.Context, targetCtx context.Context, chain []Locator) (string, error) {
	if len(chain) == 0 {
		return "", ErrElementResolution
	}

	perAttempt := r.scenCfg.StepTimeout / time.Duration(len(chain))
	if perAttempt <= 0 {
		perAttempt = time.Second
	}

	var errs []error
	for _, loc := range chain {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		attemptCtx, cancel := context.WithTimeout(targetCtx, perAttempt)
		// Best-effort label read; the click decides whether the attempt
		// succeeded.
		label, _ := r.driver.Text(attemptCtx, loc)
		err := r.driver.Click(attemptCtx, loc)
		cancel()

		if err == nil {
			label = strings.TrimSpace(label)
			r.logger.Info("Element located and clicked.",
				zap.String("locator", loc.Description),
				zap.String("label", label))
			return label, nil
		}
		r.logger.Debug("Locator failed.", zap.String("locator", loc.Description), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", loc.Description, err))
	}
	return "", fmt.Errorf("%w: %w", ErrElementResolution, errors.Join(errs...))
}
