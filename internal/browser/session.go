// Package browser drives a hosted notebook page through the Chrome DevTools
// protocol. It implements notebook.Notebook and connection.Reader.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/npratt/cellpilot/internal/config"
)

// Session owns one browser connection and the notebook page inside it.
type Session struct {
	cfg    config.BrowserConfig
	logger *slog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	ownsPage bool
}

// Open attaches to cfg.ControlURL or launches a new browser.
func Open(ctx context.Context, cfg config.BrowserConfig, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{cfg: cfg, logger: logger}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		if cfg.UserDataDir != "" {
			l = l.UserDataDir(cfg.UserDataDir)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		s.launcher = l
		controlURL = u
		logger.Info("browser launched", "headless", cfg.Headless, "bin", cfg.Bin)
	} else {
		logger.Info("attaching to browser", "control_url", controlURL)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		s.cleanupLauncher()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	s.browser = b
	return s, nil
}

// Navigate opens url in a new tab and waits for it to load. An empty url
// adopts the first tab of an attached browser, for notebooks the user
// already has open and signed in.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if url == "" {
		pages, err := s.browser.Pages()
		if err != nil {
			return fmt.Errorf("list pages: %w", err)
		}
		if len(pages) == 0 {
			return fmt.Errorf("no open page to adopt")
		}
		s.page = pages[0]
		s.ownsPage = false
		return nil
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	p := page.Context(ctx)
	if s.cfg.NavigateTimeout > 0 {
		p = p.Timeout(s.cfg.NavigateTimeout)
	}
	if err := p.Navigate(url); err != nil {
		_ = page.Close()
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		_ = page.Close()
		return fmt.Errorf("wait for %s: %w", url, err)
	}

	s.page = page
	s.ownsPage = true
	s.logger.Info("notebook loaded", "url", url)
	return nil
}

// Notebook returns the notebook view of the current page.
func (s *Session) Notebook() *Notebook {
	return NewNotebook(s.currentPage(), s.cfg.DialogWait)
}

// Toolbar returns the runtime connect control of the current page.
func (s *Session) Toolbar() *Toolbar {
	return NewToolbar(s.currentPage())
}

func (s *Session) currentPage() *rod.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Close releases the page and, when the browser was launched here, the
// browser process. An attached browser keeps running.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.page != nil && s.ownsPage && s.launcher == nil {
		err = s.page.Close()
	}
	s.page = nil

	if s.launcher != nil && s.browser != nil {
		err = s.browser.Close()
	}
	s.cleanupLauncher()
	return err
}

func (s *Session) cleanupLauncher() {
	if s.launcher == nil {
		return
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
	s.launcher = nil
}
