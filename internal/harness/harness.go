// File: internal/harness/harness.go

// Package harness orchestrates one verification run: supervise the target
// process, connect a debug session, discover views, execute the scenario,
// and report. Teardown of the target process is guaranteed on every exit
// path, including cancellation and mid-run failures.
package harness

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/reflow/internal/capture"
	"github.com/xkilldash9x/reflow/internal/config"
	"github.com/xkilldash9x/reflow/internal/consolelog"
	"github.com/xkilldash9x/reflow/internal/poll"
	"github.com/xkilldash9x/reflow/internal/report"
	"github.com/xkilldash9x/reflow/internal/scenario"
	"github.com/xkilldash9x/reflow/internal/session"
	"github.com/xkilldash9x/reflow/internal/supervisor"
	"github.com/xkilldash9x/reflow/internal/views"
)

// endpointPollInterval paces the startup-readiness probe of the debugging
// endpoint after the target process is launched.
const endpointPollInterval = 500 * time.Millisecond

// Result is what a run hands back to the CLI for exit-code mapping.
type Result struct {
	Outcome *scenario.Outcome
	// Failed marks conditions that count as run failures even when the
	// scenario itself ran to completion (artifact write failure).
	Failed bool
}

// debugSession is the surface of session.Session the harness consumes,
// narrowed so a failure at any stage can be injected in tests.
type debugSession interface {
	views.TargetLister
	scenario.Binder
	Mode() session.Mode
	Close()
}

// Stage constructors. Production wiring by default; package tests swap these
// to fail individual stages and verify teardown still runs.
var (
	startProcess   = supervisor.Start
	connectSession = func(ctx context.Context, cfg config.ConnectConfig, logger *zap.Logger) (debugSession, error) {
		return session.Connect(ctx, cfg, logger)
	}
)

// Run executes one complete harness run and writes the summary to out.
func Run(ctx context.Context, cfg *config.Config, out io.Writer, logger *zap.Logger) (*Result, error) {
	runID := uuid.New().String()[:8]
	log := logger.With(zap.String("run_id", runID))

	// 1. Acquire the target process. Its release is registered immediately
	// and runs unconditionally, whatever happens below.
	var proc *supervisor.Process
	if cfg.Target.SkipLaunch {
		log.Info("Skipping target launch; attaching to an operator-managed instance.")
	} else {
		p, err := startProcess(cfg.Target, log)
		if err != nil {
			return nil, err
		}
		proc = p
		defer proc.Stop(cfg.Target.GracePeriod)

		// Wait for the debugging endpoint to come up instead of sleeping a
		// fixed startup interval.
		err = poll.Until(ctx, cfg.Target.StartupWait, endpointPollInterval, func(ctx context.Context) (bool, error) {
			if _, probeErr := session.ProbeEndpoint(ctx, cfg.Connect.Endpoint); probeErr != nil {
				return false, nil
			}
			return true, nil
		})
		if err != nil {
			// Not fatal by itself; the connector still has its own attach
			// budget and a fresh-launch fallback.
			log.Warn("Debug endpoint not answering within the startup budget.", zap.Error(err))
		}
	}

	// 2. Connect the debug session (attach, else fresh launch).
	sess, err := connectSession(ctx, cfg.Connect, log)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	// 3. Discover the Host context.
	registry := views.NewRegistry(sess, log)
	host, err := registry.DiscoverHost(ctx)
	if err != nil {
		return nil, err
	}

	hostCtx, hostCancel := sess.TargetContext(host.TargetID)
	defer hostCancel()

	// 4. Attach the console collector to the Host before interacting, so
	// startup noise from the first click is retained.
	collector := consolelog.NewCollector(cfg.Console.BufferSize, log)
	if err := collector.Attach(hostCtx); err != nil {
		log.Warn("Console collector could not attach; diagnostics will be thin.", zap.Error(err))
	}

	// 5. Run the scenario, coupled with a watcher that aborts it if the
	// target process dies underneath us.
	capturer := capture.NewCapturer(cfg.Artifacts.Dir, cfg.Artifacts.FullSurface, cfg.Artifacts.Quality, log)
	runner := scenario.NewRunner(cfg.Scenario, cfg.Discovery, registry, sess, capturer, scenario.NewCDPDriver(log), log)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var outcome *scenario.Outcome
	g, watchCtx := errgroup.WithContext(runCtx)
	if proc != nil {
		g.Go(func() error {
			select {
			case <-proc.Done():
				return fmt.Errorf("target process exited during the scenario")
			case <-watchCtx.Done():
				return nil
			}
		})
	}
	g.Go(func() error {
		defer cancelRun()
		o, runErr := runner.Run(watchCtx, hostCtx)
		outcome = o
		return runErr
	})
	runErr := g.Wait()

	// 6. Report whatever was observed, even on a failed run.
	summary := report.Summarize(runID, sess.Mode().String(), outcome, collector.Recent(cfg.Console.BufferSize))
	summary.Write(out)

	if runErr != nil {
		return &Result{Outcome: outcome, Failed: true}, runErr
	}
	return &Result{Outcome: outcome, Failed: outcome.ArtifactWriteFailed}, nil
}
