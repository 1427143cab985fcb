// File: internal/session/connector.go
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/reflow/internal/config"
)

// ErrConnection indicates that every connection strategy failed. Fatal.
var ErrConnection = errors.New("session: all connection strategies failed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// versionInfo is the discovery document served at <endpoint>/json/version.
type versionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// strategy is one way of obtaining a live session. Strategies are tried in
// order; the first success short-circuits the chain.
type strategy struct {
	name string
	dial func(ctx context.Context) (*Session, error)
}

// Connect establishes a debug session using the attach-then-fresh-launch
// chain. It fails with ErrConnection only when every strategy has failed.
func Connect(ctx context.Context, cfg config.ConnectConfig, logger *zap.Logger) (*Session, error) {
	log := logger.Named("connector")

	chain := []strategy{
		{name: "attach", dial: func(ctx context.Context) (*Session, error) {
			return attach(ctx, cfg, log)
		}},
	}
	if cfg.ExecPath != "" {
		chain = append(chain, strategy{name: "fresh-launch", dial: func(ctx context.Context) (*Session, error) {
			return launchFresh(ctx, cfg, log)
		}})
	}

	return connectWith(ctx, chain, log)
}

// connectWith runs the strategy chain. Split out so the fallback policy is
// testable without a browser.
func connectWith(ctx context.Context, chain []strategy, log *zap.Logger) (*Session, error) {
	var errs []error
	for _, st := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sess, err := st.dial(ctx)
		if err == nil {
			log.Info("Debug session established.", zap.String("strategy", st.name))
			return sess, nil
		}
		log.Warn("Connection strategy failed.", zap.String("strategy", st.name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", st.name, err))
	}
	return nil, fmt.Errorf("%w: %w", ErrConnection, errors.Join(errs...))
}

// ProbeEndpoint asks the debugging endpoint for its discovery document and
// returns the advertised browser-level WebSocket URL. It doubles as the
// startup-readiness check: the endpoint answers only once the target
// application is up.
func ProbeEndpoint(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/json/version", nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("debug endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("debug endpoint returned status %d", resp.StatusCode)
	}

	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("discovery document carries no webSocketDebuggerUrl")
	}
	return info.WebSocketDebuggerURL, nil
}

// attach connects to an already-listening endpoint. The probe and the dial
// share the configured connect timeout.
func attach(ctx context.Context, cfg config.ConnectConfig, log *zap.Logger) (*Session, error) {
	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	wsURL, err := ProbeEndpoint(probeCtx, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	log.Debug("Endpoint probe succeeded.", zap.String("ws_url", wsURL))

	// NoModifyURL keeps the advertised URL intact; Electron rejects
	// rewritten host headers on its debugger socket.
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, wsURL, chromedp.NoModifyURL)

	sess := &Session{
		endpoint:    cfg.Endpoint,
		mode:        ModeAttached,
		logger:      log,
		allocCancel: allocCancel,
	}
	if err := sess.openBrowser(allocCtx, cfg.Timeout); err != nil {
		allocCancel()
		return nil, err
	}
	return sess, nil
}

// launchFresh starts a new automation-owned instance of the target and
// attaches to it directly, bypassing the network endpoint.
func launchFresh(ctx context.Context, cfg config.ConnectConfig, log *zap.Logger) (*Session, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(cfg.ExecPath),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		// Positional arguments (the application directory for an Electron
		// shell) are not flags, so they go through the command hook.
		chromedp.ModifyCmdFunc(func(cmd *exec.Cmd) {
			cmd.Args = append(cmd.Args, cfg.ExecArgs...)
		}),
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	sess := &Session{
		endpoint:    cfg.Endpoint,
		mode:        ModeLaunchedFresh,
		logger:      log,
		allocCancel: allocCancel,
	}
	if err := sess.openBrowser(allocCtx, cfg.Timeout); err != nil {
		allocCancel()
		return nil, err
	}
	return sess, nil
}

// openBrowser creates the browser-level chromedp context and verifies the
// connection by enumerating targets once. The underlying connection is dialed
// lazily on that first call, so the handshake is where the connect timeout
// has to apply; cancelling the browser context on expiry aborts the dial.
func (s *Session) openBrowser(allocCtx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.browserCtx, s.browserCancel = chromedp.NewContext(allocCtx)

	// Targets does not create a page target; it only forces the browser
	// connection, which is exactly the handshake we want to validate.
	done := make(chan error, 1)
	go func() {
		_, err := chromedp.Targets(s.browserCtx)
		done <- err
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			s.browserCancel()
			return fmt.Errorf("browser handshake failed: %w", err)
		}
		return nil
	case <-timer.C:
		s.browserCancel()
		return fmt.Errorf("browser handshake timed out after %s", timeout)
	}
}
