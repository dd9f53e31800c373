// Package rasterize implements the Overlay Rasterizer (C5): it turns a
// Container or App into a content-addressed, transparent-background
// PNG via a headless Chrome instance driven by chromedp — the external
// "headless browser" collaborator named in spec §6. No repo in the
// example pack launches a browser, so the action-list idiom below is
// grounded directly on chromedp's own documented usage pattern rather
// than on teacher code (see DESIGN.md).
package rasterize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/stylesheet-video/compiler/internal/compileerr"
	"github.com/stylesheet-video/compiler/internal/model"
)

// resetStylesheet is injected before the project CSS so a Container's
// rasterized pixels never pick up host-page UA defaults (margins,
// default font metrics) that would make the content key's rendered
// output non-reproducible across machines.
const resetStylesheet = `* { margin:0; padding:0; box-sizing:border-box; } html,body { background:transparent; }`

const defaultAppReadinessTimeout = 5 * time.Second

// Rasterizer owns one headless browser instance for the duration of a
// single render (spec §4.5: "exactly one browser instance ... reused
// across pages").
type Rasterizer struct {
	browserCtx context.Context
	cancel     context.CancelFunc
	log        *logrus.Entry

	containerCacheDir   string
	appCacheDir         string
	appReadinessTimeout time.Duration

	// Touched records every cache key considered this run, hit or
	// miss, for the Cache Reaper (C9) to compare against on-disk
	// entries afterward.
	Touched map[string]bool
}

// New launches the shared headless browser instance. chromeBin
// (renderconfig.Config.ChromeBin) overrides the ExecAllocator's
// default binary discovery when non-empty; cacheDir
// (renderconfig.Config.CacheDir) roots the overlay cache directories;
// appReadinessTimeout (renderconfig.Config.AppRenderTimeout) bounds how
// long RasterizeApp polls window.__stsRenderComplete before failing.
func New(cacheDir string, chromeBin string, appReadinessTimeout time.Duration, log *logrus.Entry) (*Rasterizer, error) {
	if appReadinessTimeout <= 0 {
		appReadinessTimeout = defaultAppReadinessTimeout
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("allow-file-access-from-files", true),
		chromedp.Flag("disable-gpu", true),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	// chromedp.NewContext only starts the underlying browser process lazily
	// on first use; Run a no-op to force startup now so RasterizeContainer/
	// RasterizeApp can cheaply open additional tabs against an already-live
	// browser (spec §4.5: "exactly one browser instance ... reused").
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, compileerr.ContainerRenderFailed("", err)
	}
	return &Rasterizer{
		browserCtx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		log:                 log,
		containerCacheDir:   filepath.Join(cacheDir, ".cache", "containers"),
		appCacheDir:         filepath.Join(cacheDir, "cache", "apps"),
		appReadinessTimeout: appReadinessTimeout,
		Touched:             make(map[string]bool),
	}, nil
}

// withCaller derives a chromedp-capable context from r.browserCtx (so
// the shared browser/allocator is reused) that also aborts when the
// caller-supplied ctx is cancelled — chromedp.NewContext cannot parent
// directly from an arbitrary caller ctx without losing the browser
// association, so cancellation is relayed via a watcher goroutine
// instead (spec §5: external cancellation aborts an in-flight
// rasterization via browser-close).
func (r *Rasterizer) withCaller(ctx context.Context, parent context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(parent)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return merged, func() {
		close(stop)
		cancel()
	}
}

// Close shuts down the shared browser instance.
func (r *Rasterizer) Close() {
	r.cancel()
}

// ContainerKey computes the 16-hex-digit content key for a Container
// (spec §4.5).
func ContainerKey(c *model.Container) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d", c.InnerHTML, c.CSS, c.Width, c.Height)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// AppKey computes the 16-hex-digit content key for an App (spec §4.5).
func AppKey(a *model.App, outputName string) string {
	paramsJSON, _ := json.Marshal(canonicalizeParams(a.Params))
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s\x00%s\x00%d\x00%d",
		a.Dir, paramsJSON, a.Title, a.Date, strings.Join(a.Tags, ","), outputName, a.Width, a.Height)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// canonicalizeParams produces a map with deterministically ordered
// keys so JSON marshaling (which already sorts map keys) is explicit
// about the ordering guarantee the content key depends on.
func canonicalizeParams(params map[string]string) map[string]string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(params))
	for _, k := range keys {
		out[k] = params[k]
	}
	return out
}

// RasterizeContainer renders c to a PNG, reusing the cache entry if
// present, and returns the PNG path.
func (r *Rasterizer) RasterizeContainer(ctx context.Context, c *model.Container) (string, error) {
	key := ContainerKey(c)
	r.Touched[key] = true
	pngPath := filepath.Join(r.containerCacheDir, key+".png")

	if _, err := os.Stat(pngPath); err == nil {
		r.log.WithField("container", c.ID).Debug("container cache hit")
		return pngPath, nil
	}

	if err := os.MkdirAll(r.containerCacheDir, 0o755); err != nil {
		return "", compileerr.ContainerRenderFailed(c.ID, err)
	}

	doc := fmt.Sprintf(
		`<!doctype html><html><head><style>%s</style><style>%s</style></head><body>%s</body></html>`,
		resetStylesheet, c.CSS, c.InnerHTML,
	)

	tabCtx, closeTab := chromedp.NewContext(r.browserCtx)
	defer closeTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 30*time.Second)
	defer cancelTimeout()
	tabCtx, cancelCaller := r.withCaller(ctx, tabCtx)
	defer cancelCaller()

	var png []byte
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(c.Width), int64(c.Height)),
		chromedp.Navigate("about:blank"),
		setDocumentContent(doc),
		chromedp.WaitReady("body"),
		waitNetworkIdle(),
		captureClippedPNG(c.Width, c.Height, &png),
	)
	if err != nil {
		return "", compileerr.ContainerRenderFailed(c.ID, err)
	}

	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		return "", compileerr.ContainerRenderFailed(c.ID, err)
	}
	c.PNGPath = pngPath
	return pngPath, nil
}

// RasterizeApp renders a to a PNG, polling window.__stsRenderComplete
// for readiness (spec §4.5).
func (r *Rasterizer) RasterizeApp(ctx context.Context, a *model.App, outputName string) (string, error) {
	key := AppKey(a, outputName)
	r.Touched[key] = true
	pngPath := filepath.Join(r.appCacheDir, key+".png")

	if _, err := os.Stat(pngPath); err == nil {
		r.log.WithField("app", a.ID).Debug("app cache hit")
		return pngPath, nil
	}

	if err := os.MkdirAll(r.appCacheDir, 0o755); err != nil {
		return "", compileerr.ContainerRenderFailed(a.ID, err)
	}

	indexPath := filepath.Join(a.Dir, "index.html")
	url := "file://" + indexPath + "?" + encodeQuery(a.Params)

	tabCtx, closeTab := chromedp.NewContext(r.browserCtx)
	defer closeTab()
	tabCtx, cancelCaller := r.withCaller(ctx, tabCtx)
	defer cancelCaller()

	var png []byte
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(a.Width), int64(a.Height)),
		// Injected as a new-document script, not a plain Evaluate, so the
		// flag survives the navigation that's about to replace the
		// document (spec §4.5: "injects this flag as false before
		// navigation").
		injectBeforeNavigation(`window.__stsRenderComplete = false;`),
		chromedp.Navigate(url),
		pollAppReady(r.appReadinessTimeout),
		captureClippedPNG(a.Width, a.Height, &png),
	)
	if err != nil {
		if err == errAppRenderTimeout {
			return "", compileerr.AppRenderTimeout(a.ID)
		}
		return "", compileerr.ContainerRenderFailed(a.ID, err)
	}

	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		return "", compileerr.ContainerRenderFailed(a.ID, err)
	}
	a.PNGPath = pngPath
	return pngPath, nil
}

var errAppRenderTimeout = fmt.Errorf("app did not set window.__stsRenderComplete within its configured timeout")

func pollAppReady(timeout time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		deadline := time.Now().Add(timeout)
		for {
			var ready bool
			if err := chromedp.Evaluate(`window.__stsRenderComplete === true`, &ready).Do(ctx); err != nil {
				return err
			}
			if ready {
				return nil
			}
			if time.Now().After(deadline) {
				return errAppRenderTimeout
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
	})
}

// waitNetworkIdle approximates chromedp's lack of a built-in
// network-idle primitive with a short settle delay after WaitReady,
// sufficient for Container documents that embed no external resources
// (spec §4.5 explicitly scopes Container markup to inline HTML+CSS).
func waitNetworkIdle() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			return nil
		}
	})
}

// setDocumentContent replaces the current (blank) document's content
// in place via the Page domain, avoiding data-URL percent-encoding
// entirely for arbitrary author-supplied HTML/CSS.
func setDocumentContent(html string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
	})
}

// injectBeforeNavigation registers script to run once per new document
// load, the chromedp idiom for state that must exist before a page's
// own scripts execute.
func injectBeforeNavigation(script string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
		return err
	})
}

// captureClippedPNG screenshots the (0,0,w,h) region with a
// transparent background preserved (spec §4.5).
func captureClippedPNG(w, h int, out *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		buf, err := page.CaptureScreenshot().
			WithClip(&page.Viewport{X: 0, Y: 0, Width: float64(w), Height: float64(h), Scale: 1}).
			WithCaptureBeyondViewport(true).
			WithFormat(page.CaptureScreenshotFormatPng).
			Do(ctx)
		if err != nil {
			return err
		}
		*out = buf
		return nil
	})
}

func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
