// Package screenshot renders Wikipedia diff pages to PNG files with a
// headless browser. The browser launches lazily on the first capture and is
// relaunched if the DevTools connection dies, so a crashed Chrome never
// takes the monitor down with it.
package screenshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"wikigov/internal/domain"
	"wikigov/internal/support"
)

// Capturer owns one headless browser and writes one PNG per diff.
type Capturer struct {
	dir     string
	timeout time.Duration

	mu      sync.Mutex
	browser *rod.Browser
	alive   bool
}

func New(dir string, timeout time.Duration) *Capturer {
	return &Capturer{dir: dir, timeout: timeout}
}

// Capture renders the diff page for ev and returns the path of the saved
// PNG. Files land under dir/YYYY-MM-DD/ named after the article and
// revision so repeated runs never collide.
func (c *Capturer) Capture(ev domain.ChangeEvent, diffURL string) (string, error) {
	browser, err := c.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		c.markDead()
		return "", fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = rod.Try(func() { page.MustClose() }) }()

	page = page.Timeout(c.timeout)
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  1000,
		Height: 1920,
	}); err != nil {
		return "", fmt.Errorf("set viewport: %w", err)
	}

	if err := page.Navigate(diffURL); err != nil {
		c.markDead()
		return "", fmt.Errorf("navigate %s: %w", diffURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}

	// The diff table sits in the top portion of the page; clipping keeps
	// file sizes small enough to embed in a social post.
	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X:      0,
			Y:      0,
			Width:  1000,
			Height: 1200,
			Scale:  1,
		},
	})
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}

	path := c.targetPath(ev)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}

	log.Debug("Saved screenshot", "path", path, "bytes", len(data))
	return path, nil
}

func (c *Capturer) targetPath(ev domain.ChangeEvent) string {
	day := time.Now().UTC().Format("2006-01-02")
	name := fmt.Sprintf("%s_rev%d.png", support.SanitizeFilename(ev.Title), ev.RevisionID)
	return filepath.Join(c.dir, day, name)
}

func (c *Capturer) ensureBrowser() (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.alive && c.browser != nil {
		return c.browser, nil
	}

	if c.browser != nil {
		_ = rod.Try(func() { c.browser.MustClose() })
		c.browser = nil
	}

	url, err := launcher.New().
		Leakless(true).
		Headless(true).
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(url)
	for i := 0; i < 10; i++ {
		if err = b.Connect(); err == nil {
			break
		}
		time.Sleep(time.Duration(250*(i+1)) * time.Millisecond)
	}
	if err != nil {
		return nil, fmt.Errorf("browser connect: %w", err)
	}

	if err := (proto.BrowserSetDownloadBehavior{
		Behavior:         proto.BrowserSetDownloadBehaviorBehaviorDeny,
		BrowserContextID: b.BrowserContextID,
	}).Call(b); err != nil {
		log.Warn("Disable browser downloads failed", "err", err)
	}

	c.browser = b
	c.alive = true
	log.Info("Headless browser ready")
	return b, nil
}

func (c *Capturer) markDead() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()
}

// Close shuts the browser down. Safe to call when no capture ever ran.
func (c *Capturer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser != nil {
		_ = rod.Try(func() { c.browser.MustClose() })
		c.browser = nil
		c.alive = false
	}
}
