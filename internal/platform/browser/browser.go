package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"

	"autorunner/internal/core/script"
	"autorunner/internal/logger"
)

const (
	navigationTimeoutMs = 30000
	selectorTimeoutMs   = 10000
)

// Launcher starts one headless Chromium session per job. The launch
// flags match constrained container environments (no sandbox, no
// /dev/shm reliance).
type Launcher struct {
	log *logger.Logger
}

func NewLauncher() *Launcher { return &Launcher{log: logger.New("Browser")} }

func (l *Launcher) Launch() (script.Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright initialization failed: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("browser launch failed: %w", err)
	}

	ctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("browser context creation failed: %w", err)
	}

	page, err := ctx.NewPage()
	if err != nil {
		_ = ctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("page creation failed: %w", err)
	}

	l.log.LogDebugf("launched headless chromium session")
	return &session{pw: pw, browser: browser, ctx: ctx, page: page}, nil
}

type session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	ctx     playwright.BrowserContext
	page    playwright.Page
}

func (s *session) Navigate(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(navigationTimeoutMs),
	})
	return err
}

func (s *session) WaitFor(selector string) error {
	return s.page.Locator(selector).WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(selectorTimeoutMs),
	})
}

func (s *session) Click(selector string) error {
	return s.page.Locator(selector).Click()
}

func (s *session) Fill(selector, value string) error {
	return s.page.Locator(selector).Fill(value)
}

func (s *session) Content() (string, error) {
	return s.page.Content()
}

func (s *session) Screenshot() ([]byte, error) {
	return s.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypePng,
		Timeout: playwright.Float(navigationTimeoutMs),
	})
}

func (s *session) Close() error {
	err := s.ctx.Close()
	if berr := s.browser.Close(); err == nil {
		err = berr
	}
	if perr := s.pw.Stop(); err == nil {
		err = perr
	}
	return err
}
