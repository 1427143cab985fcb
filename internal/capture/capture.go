// File: internal/capture/capture.go

// Package capture writes full-surface screenshots of browsing contexts at
// named scenario checkpoints.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrArtifactWrite indicates a filesystem-level failure while saving a
// capture (permissions, disk full). A dead browsing context at capture time
// is not this error; it surfaces as the underlying CDP error and the caller
// records a skipped checkpoint.
var ErrArtifactWrite = errors.New("capture: failed to write artifact")

// Artifact is one saved checkpoint image. Write-once; a rerun overwrites the
// same path since runs are independent.
type Artifact struct {
	Checkpoint string
	Path       string
	CreatedAt  time.Time
}

// Shooter produces image bytes from a chromedp target context. Injectable so
// tests exercise the capturer without a browser.
type Shooter func(ctx context.Context, fullSurface bool, quality int) ([]byte, error)

// ChromedpShooter is the production Shooter.
func ChromedpShooter(ctx context.Context, fullSurface bool, quality int) ([]byte, error) {
	var buf []byte
	var action chromedp.Action
	if fullSurface {
		action = chromedp.FullScreenshot(&buf, quality)
	} else {
		action = chromedp.CaptureScreenshot(&buf)
	}
	if err := chromedp.Run(ctx, action); err != nil {
		return nil, err
	}
	return buf, nil
}

// Capturer saves checkpoint images into a single output directory.
type Capturer struct {
	dir         string
	fullSurface bool
	quality     int
	shoot       Shooter
	logger      *zap.Logger
}

// NewCapturer creates a capturer writing into dir, created on first use.
func NewCapturer(dir string, fullSurface bool, quality int, logger *zap.Logger) *Capturer {
	return &Capturer{
		dir:         dir,
		fullSurface: fullSurface,
		quality:     quality,
		shoot:       ChromedpShooter,
		logger:      logger.Named("capture"),
	}
}

// SetShooter overrides the screenshot implementation. Test hook.
func (c *Capturer) SetShooter(s Shooter) {
	if s != nil {
		c.shoot = s
	}
}

// Capture takes a full-surface screenshot of the browsing context bound to
// targetCtx and writes it as <dir>/<checkpoint>.png. Checkpoint names carry a
// numeric prefix (01_homepage, 03_split_screen) so the directory lists in
// display order.
func (c *Capturer) Capture(targetCtx context.Context, checkpoint string) (*Artifact, error) {
	buf, err := c.shoot(targetCtx, c.fullSurface, c.quality)
	if err != nil {
		return nil, fmt.Errorf("screenshot of %q failed: %w", checkpoint, err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}

	path := filepath.Join(c.dir, checkpoint+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactWrite, err)
	}

	art := &Artifact{
		Checkpoint: checkpoint,
		Path:       path,
		CreatedAt:  time.Now(),
	}
	c.logger.Info("Checkpoint captured.", zap.String("checkpoint", checkpoint), zap.String("path", path))
	return art, nil
}
