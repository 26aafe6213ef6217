package browserpool

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

const defaultNavigationTimeout = 30 * time.Second

// RodConfig tunes the rod-backed pool.
type RodConfig struct {
	// NavigationTimeout bounds a single Navigate call, including the
	// post-navigation load wait. Zero means defaultNavigationTimeout.
	NavigationTimeout time.Duration

	// BinPath points at an existing Chromium binary. Empty lets the
	// launcher locate (or download) one itself.
	BinPath string
}

// RodPool is the rod-backed Pool: one process-wide browser, one fresh
// incognito context plus stealth page per NewPage call.
type RodPool struct {
	browser    *rod.Browser
	launch     *launcher.Launcher
	navTimeout time.Duration
}

// NewRodPool launches a headless browser and connects to it. The caller
// owns the returned pool and must Close it on shutdown.
func NewRodPool(cfg RodConfig) (*RodPool, error) {
	navTimeout := cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = defaultNavigationTimeout
	}

	launch := launcher.New().Headless(true).Leakless(true)
	if cfg.BinPath != "" {
		launch = launch.Bin(cfg.BinPath)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("browserpool: launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		launch.Cleanup()
		return nil, fmt.Errorf("browserpool: connect browser: %w", err)
	}

	return &RodPool{browser: browser, launch: launch, navTimeout: navTimeout}, nil
}

// NewPage opens a fresh incognito context and a stealth page in it, so
// one request's cookies and storage never leak into another's.
func (p *RodPool) NewPage(ctx context.Context) (Page, error) {
	incognito, err := p.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("browserpool: incognito context: %w", err)
	}
	page, err := stealth.Page(incognito)
	if err != nil {
		return nil, fmt.Errorf("browserpool: stealth page: %w", err)
	}
	return &rodPage{page: page, navTimeout: p.navTimeout}, nil
}

func (p *RodPool) Close() error {
	err := p.browser.Close()
	p.launch.Cleanup()
	return err
}

type rodPage struct {
	page       *rod.Page
	navTimeout time.Duration
}

func (r *rodPage) Navigate(ctx context.Context, url string) error {
	page := r.page.Context(ctx).Timeout(r.navTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("browserpool: navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("browserpool: wait load %s: %w", url, err)
	}
	return nil
}

func (r *rodPage) WaitForSelector(ctx context.Context, selector string) error {
	// Element blocks until the selector appears or the context ends.
	if _, err := r.page.Context(ctx).Timeout(r.navTimeout).Element(selector); err != nil {
		return fmt.Errorf("browserpool: wait for %q: %w", selector, err)
	}
	return nil
}

func (r *rodPage) WaitForNetworkIdle(ctx context.Context) error {
	page := r.page.Context(ctx).Timeout(r.navTimeout)
	wait := page.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	wait()
	return ctx.Err()
}

func (r *rodPage) Content(ctx context.Context) (string, error) {
	html, err := r.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browserpool: read page html: %w", err)
	}
	return html, nil
}

func (r *rodPage) CurrentURL() string {
	info, err := r.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (r *rodPage) Close() error {
	return r.page.Close()
}
