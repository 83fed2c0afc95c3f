// Package browser binds the form engine to a real Chrome instance over CDP.
// It owns the browser process lifecycle, implements engine.Page on top of a
// single portal tab, and carries the portal-specific login and navigation
// flows that happen outside the declaration form itself.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/declaranet/declara-cli/internal/config"
)

// Browser owns one Chrome process and the single tab a run drives.
type Browser struct {
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	logger      *zap.Logger
	cfg         config.PortalConfig
}

// Launch starts Chrome and opens the portal tab. The returned Browser must be
// closed with Close when the run finishes.
func Launch(ctx context.Context, cfg config.PortalConfig, logger *zap.Logger) (*Browser, error) {
	log := logger.Named("browser")

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "es-MX"),
		chromedp.WindowSize(1440, 900),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Debug(fmt.Sprintf(format, args...))
		}))

	// Force the browser process up before anything depends on it. The portal
	// renders period deadlines in Mexico City time regardless of where the
	// run executes, so the tab is pinned to match.
	if err := chromedp.Run(tabCtx,
		emulation.SetTimezoneOverride("America/Mexico_City"),
		emulation.SetLocaleOverride().WithLocale("es-MX"),
	); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	log.Info("Browser launched.", zap.Bool("headless", cfg.Headless))
	return &Browser{
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		logger:      log,
		cfg:         cfg,
	}, nil
}

// Page returns the engine-facing control surface for the portal tab.
// Interactions are throttled to the configured rate; the portal's form has
// single focus semantics and bursts of CDP input corrupt its state.
func (b *Browser) Page() *Page {
	ips := b.cfg.InteractionsPerSecond
	if ips <= 0 {
		ips = 8
	}
	return &Page{
		tabCtx:  b.tabCtx,
		limiter: rate.NewLimiter(rate.Limit(ips), 1),
		logger:  b.logger.Named("page"),
	}
}

// Close tears down the tab and the browser process.
func (b *Browser) Close() {
	b.tabCancel()
	b.allocCancel()
	b.logger.Info("Browser closed.")
}
