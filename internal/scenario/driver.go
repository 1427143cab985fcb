// File: internal/scenario/driver.go
package scenario

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// CDPDriver performs interactions through chromedp against whichever target
// context it is handed. It is stateless; the browsing context lives in ctx.
type CDPDriver struct {
	logger *zap.Logger
}

// NewCDPDriver creates the production driver.
func NewCDPDriver(logger *zap.Logger) *CDPDriver {
	return &CDPDriver{logger: logger.Named("driver")}
}

var _ Driver = (*CDPDriver)(nil)

// queryOptions maps a locator to chromedp query options. The default
// (DOM.performSearch) resolves CSS, XPath, and plain-text selectors; ByQuery
// pins matching to document.querySelector's first hit.
func queryOptions(loc Locator) []chromedp.QueryOption {
	if loc.ByQuery {
		return []chromedp.QueryOption{chromedp.ByQuery, chromedp.NodeVisible}
	}
	return []chromedp.QueryOption{chromedp.BySearch, chromedp.NodeVisible}
}

// Click resolves the locator and clicks the element.
func (d *CDPDriver) Click(targetCtx context.Context, loc Locator) error {
	return chromedp.Run(targetCtx, chromedp.Click(loc.Selector, queryOptions(loc)...))
}

// ClickNth clicks the index-th element matching selector.
func (d *CDPDriver) ClickNth(targetCtx context.Context, selector string, index int) error {
	var nodes []*cdp.Node
	if err := chromedp.Run(targetCtx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return err
	}
	if index < 0 || index >= len(nodes) {
		return fmt.Errorf("element index %d out of range (%d matches for %q)", index, len(nodes), selector)
	}
	return chromedp.Run(targetCtx, chromedp.MouseClickNode(nodes[index]))
}

// Text reads the text content of the located element.
func (d *CDPDriver) Text(targetCtx context.Context, loc Locator) (string, error) {
	var text string
	if err := chromedp.Run(targetCtx, chromedp.Text(loc.Selector, &text, queryOptions(loc)...)); err != nil {
		return "", err
	}
	return text, nil
}

// Count reports how many elements match selector. AtLeast(0) lets an empty
// result set return immediately; the chromedp default waits for a first
// match, which on an element that never renders means waiting forever.
func (d *CDPDriver) Count(targetCtx context.Context, selector string) (int, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(targetCtx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return 0, err
	}
	return len(nodes), nil
}
