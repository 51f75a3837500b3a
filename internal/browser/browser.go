package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	domStableWindow          = 500 * time.Millisecond
)

type Config struct {
	Bin               string
	NavigationTimeout time.Duration
}

// Renderer owns one headless Chrome, launched on first use.
type Renderer struct {
	cfg      Config
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	log      *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Renderer {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}

	return &Renderer{cfg: cfg, log: log}
}

// Render navigates to pageURL, waits for the page to settle and returns its HTML.
func (r *Renderer) Render(ctx context.Context, pageURL string) (string, error) {
	b, err := r.ensureStarted(ctx)
	if err != nil {
		return "", err
	}

	page, err := b.Context(ctx).Timeout(r.cfg.NavigationTimeout).Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			r.log.WarnContext(ctx, "Failed to close page",
				"error", closeErr,
				"url", pageURL)
		}
	}()

	if err = page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}

	if err = page.WaitStable(domStableWindow); err != nil {
		r.log.DebugContext(ctx, "Page did not settle, using current DOM",
			"error", err,
			"url", pageURL)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read page HTML: %w", err)
	}

	return html, nil
}

func (r *Renderer) ensureStarted(ctx context.Context) (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		if _, err := r.browser.Version(); err == nil {
			return r.browser, nil
		}

		r.log.WarnContext(ctx, "Stale browser connection, relaunching")
		_ = r.closeLocked()
	}

	l := launcher.New().Headless(true).NoSandbox(true)
	if bin := strings.TrimSpace(r.cfg.Bin); bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err = b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	r.launcher = l
	r.browser = b

	r.log.InfoContext(ctx, "Headless browser is launched",
		"bin", r.cfg.Bin)

	return b, nil
}

// Close shuts the browser down. It is safe to call when nothing was launched.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closeLocked()
}

func (r *Renderer) closeLocked() error {
	var errs []error

	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		r.browser = nil
	}

	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher.Cleanup()
		r.launcher = nil
	}

	return errors.Join(errs...)
}
