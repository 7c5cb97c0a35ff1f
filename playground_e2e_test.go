package cssplay_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/livetemplate/cssplay/internal/config"
	"github.com/livetemplate/cssplay/internal/server"
	"github.com/livetemplate/cssplay/internal/store"
)

// findChrome returns a local Chrome/Chromium binary, honouring CHROME_PATH.
func findChrome() string {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// newBrowser starts a playground and a headless browser pointed at nothing.
func newBrowser(t *testing.T) (context.Context, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	chrome := findChrome()
	if chrome == "" {
		t.Skip("Chrome not found; set CHROME_PATH to run browser tests")
	}

	cfg := config.DefaultConfig()
	cfg.Storage.Backend = "memory"
	srv, err := server.New(cfg, store.NewAdapter(store.NewMemory(), ""))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chrome),
		chromedp.NoSandbox,
		chromedp.Headless,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)
	ctx, cancelTimeout := context.WithTimeout(ctx, 30*time.Second)
	t.Cleanup(func() {
		cancelTimeout()
		cancelCtx()
		cancelAlloc()
	})

	var (
		mu         sync.Mutex
		exceptions []string
	)
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventExceptionThrown); ok {
			mu.Lock()
			exceptions = append(exceptions, e.ExceptionDetails.Text)
			mu.Unlock()
		}
	})
	t.Cleanup(func() {
		mu.Lock()
		defer mu.Unlock()
		for _, text := range exceptions {
			t.Errorf("page exception: %s", text)
		}
	})
	return ctx, ts.URL
}

// waitFor polls a JavaScript boolean expression until it is true.
func waitFor(ctx context.Context, t *testing.T, expr string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var ok bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
			t.Fatalf("evaluate %q: %v", expr, err)
		}
		if ok {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", expr)
}

// typeSource replaces the editor content the way a user edit does.
func typeSource(ctx context.Context, t *testing.T, src string) {
	t.Helper()
	quoted, _ := json.Marshal(src)
	js := `(() => {
		const e = document.querySelector('.js-code-editor');
		e.focus();
		e.value = ` + string(quoted) + `;
		e.dispatchEvent(new Event('input'));
		return true;
	})()`
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		t.Fatalf("failed to type source: %v", err)
	}
}

func outputText(ctx context.Context, t *testing.T) string {
	t.Helper()
	var out string
	if err := chromedp.Run(ctx, chromedp.Text(".js-output-editor", &out, chromedp.ByQuery)); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return out
}

func TestPlaygroundBootsDefaultSource(t *testing.T) {
	ctx, url := newBrowser(t)

	if err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(".js-code-editor", chromedp.ByQuery),
	); err != nil {
		t.Fatalf("failed to load playground: %v", err)
	}

	waitFor(ctx, t, `document.querySelector('.js-code-editor').value.length > 0`)
	waitFor(ctx, t, `document.querySelector('.js-output-editor').textContent.includes('{')`)

	var title string
	if err := chromedp.Run(ctx, chromedp.Title(&title)); err != nil {
		t.Fatalf("failed to read title: %v", err)
	}
	if title != config.DefaultConfig().Title {
		t.Errorf("title = %q, want %q", title, config.DefaultConfig().Title)
	}
}

func TestPlaygroundEditUpdatesOutput(t *testing.T) {
	ctx, url := newBrowser(t)

	if err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(".js-code-editor", chromedp.ByQuery),
	); err != nil {
		t.Fatalf("failed to load playground: %v", err)
	}
	waitFor(ctx, t, `document.querySelector('.js-code-editor').value.length > 0`)

	typeSource(ctx, t, "<style>p { margin: 0 }</style>")
	waitFor(ctx, t, `document.querySelector('.js-output-editor').textContent === "p {\n  margin: 0;\n}\n"`)

	typeSource(ctx, t, "el('p').addRule({color:'red'}")
	waitFor(ctx, t, `document.querySelector('.js-output-editor').getAttribute('data-status') === 'error'`)
	waitFor(ctx, t, `!document.querySelector('.js-message').hidden`)

	typeSource(ctx, t, "el('p').addRule({color:'red'})")
	waitFor(ctx, t, `document.querySelector('.js-message').hidden`)
	if out := outputText(ctx, t); !strings.Contains(out, "color: red") {
		t.Errorf("output = %q, want it to contain %q", out, "color: red")
	}
}

func TestPlaygroundToggles(t *testing.T) {
	ctx, url := newBrowser(t)

	if err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(".js-view-js", chromedp.ByQuery),
	); err != nil {
		t.Fatalf("failed to load playground: %v", err)
	}
	waitFor(ctx, t, `document.querySelector('.js-code-editor').value.length > 0`)

	typeSource(ctx, t, "<style>p { margin: 0 }</style>")
	waitFor(ctx, t, `document.querySelector('.js-output-editor').textContent.startsWith('p {')`)

	if err := chromedp.Run(ctx, chromedp.Click(".js-view-js", chromedp.ByQuery)); err != nil {
		t.Fatalf("failed to click View JS: %v", err)
	}
	waitFor(ctx, t, `document.querySelector('.js-view-js').textContent.startsWith('✔')`)
	waitFor(ctx, t, `document.querySelector('.js-output-editor').textContent.includes('_s0')`)

	if err := chromedp.Run(ctx, chromedp.Click(".js-view-ast", chromedp.ByQuery)); err != nil {
		t.Fatalf("failed to click View AST: %v", err)
	}
	waitFor(ctx, t, `document.querySelector('.js-view-ast').textContent.startsWith('✔')`)
	waitFor(ctx, t, `document.querySelector('.js-view-js').textContent.startsWith('✘')`)
	waitFor(ctx, t, `document.querySelector('.js-output-editor').textContent.includes('"Program"')`)

	// Toggles are persisted per client, so a reload restores them.
	if err := chromedp.Run(ctx, chromedp.Reload()); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	waitFor(ctx, t, `document.querySelector('.js-view-ast').textContent.startsWith('✔')`)
}
