package loader

import (
	"context"
	"encoding/base64"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/quarryhq/quarry/pkg/cache"
	"github.com/quarryhq/quarry/pkg/errors"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return u
}

func newTestLoader(t *testing.T, client *http.Client) (*Loader, *cache.Cache) {
	t.Helper()
	c, err := cache.New(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("cache.New() error: %v", err)
	}
	return New(c, client, log.New(io.Discard)), c
}

func countCacheFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindUnspecified: "unspecified",
		KindCode:        "code",
		KindData:        "data",
		KindBinary:      "binary",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestLoadUnknownScheme(t *testing.T) {
	l, _ := newTestLoader(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := l.Load(ctx, mustParse(t, "ftp://example.com/mod.js"), KindUnspecified)
	if code := errors.GetCode(err); code != errors.ErrCodeUnsupportedScheme {
		t.Errorf("error code = %q, want %q", code, errors.ErrCodeUnsupportedScheme)
	}
}

func TestLoadNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, "export default 42\n")
	}))
	defer srv.Close()

	l, _ := newTestLoader(t, srv.Client())
	u := mustParse(t, srv.URL+"/mod.js")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := l.Load(ctx, u, KindUnspecified)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if string(res.Data) != "export default 42\n" {
		t.Errorf("Data = %q", res.Data)
	}
	if res.Kind != KindCode {
		t.Errorf("Kind = %s, want %s", res.Kind, KindCode)
	}
	if res.Redirect != nil {
		t.Errorf("Redirect = %v, want nil", res.Redirect)
	}

	// Second load is served from the cache.
	res, err = l.Load(ctx, u, KindUnspecified)
	if err != nil {
		t.Fatalf("Load() error on cached copy: %v", err)
	}
	if string(res.Data) != "export default 42\n" {
		t.Errorf("cached Data = %q", res.Data)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestLoadNetworkRequestedKinds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, `{"a": 1}`)
	}))
	defer srv.Close()

	l, _ := newTestLoader(t, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("data", func(t *testing.T) {
		res, err := l.Load(ctx, mustParse(t, srv.URL+"/config.json"), KindData)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if res.Kind != KindData {
			t.Errorf("Kind = %s, want %s", res.Kind, KindData)
		}
	})

	t.Run("binary rejected before any request", func(t *testing.T) {
		before := hits.Load()
		_, err := l.Load(ctx, mustParse(t, srv.URL+"/blob.wasm"), KindBinary)
		if code := errors.GetCode(err); code != errors.ErrCodeUnsupportedKind {
			t.Errorf("error code = %q, want %q", code, errors.ErrCodeUnsupportedKind)
		}
		if got := hits.Load(); got != before {
			t.Errorf("server hits changed from %d to %d", before, got)
		}
	})
}

func TestLoadNetworkRedirect(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old/mod.js":
			hits.Add(1)
			http.Redirect(w, r, "/new/mod.js", http.StatusFound)
		case "/new/mod.js":
			hits.Add(1)
			io.WriteString(w, "moved\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l, _ := newTestLoader(t, srv.Client())
	u := mustParse(t, srv.URL+"/old/mod.js")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := l.Load(ctx, u, KindUnspecified)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if string(res.Data) != "moved\n" {
		t.Errorf("Data = %q", res.Data)
	}
	if res.Redirect == nil || res.Redirect.String() != srv.URL+"/new/mod.js" {
		t.Errorf("Redirect = %v, want %s", res.Redirect, srv.URL+"/new/mod.js")
	}

	// The cached copy keeps reporting where the content came from.
	fetched := hits.Load()
	res, err = l.Load(ctx, u, KindUnspecified)
	if err != nil {
		t.Fatalf("Load() error on cached copy: %v", err)
	}
	if res.Redirect == nil || res.Redirect.String() != srv.URL+"/new/mod.js" {
		t.Errorf("cached Redirect = %v, want %s", res.Redirect, srv.URL+"/new/mod.js")
	}
	if got := hits.Load(); got != fetched {
		t.Errorf("server hits = %d after cache hit, want %d", got, fetched)
	}
}

func TestLoadNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.js":
			http.NotFound(w, r)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	l, _ := newTestLoader(t, srv.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("not found", func(t *testing.T) {
		_, err := l.Load(ctx, mustParse(t, srv.URL+"/missing.js"), KindUnspecified)
		if code := errors.GetCode(err); code != errors.ErrCodeNotFound {
			t.Errorf("error code = %q, want %q", code, errors.ErrCodeNotFound)
		}
	})

	t.Run("server error", func(t *testing.T) {
		_, err := l.Load(ctx, mustParse(t, srv.URL+"/broken.js"), KindUnspecified)
		if code := errors.GetCode(err); code != errors.ErrCodeNetwork {
			t.Errorf("error code = %q, want %q", code, errors.ErrCodeNetwork)
		}
	})
}

func TestLoadNetworkCacheFailureStillServes(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, "served anyway\n")
	}))
	defer srv.Close()

	l, c := newTestLoader(t, srv.Client())
	u := mustParse(t, srv.URL+"/mod.js")

	// A regular file where the domain directory belongs makes every
	// store for this host fail.
	if err := os.WriteFile(filepath.Join(c.Root(), u.Hostname()), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		res, err := l.Load(ctx, u, KindUnspecified)
		if err != nil {
			t.Fatalf("Load() #%d error: %v", i+1, err)
		}
		if string(res.Data) != "served anyway\n" {
			t.Errorf("Data = %q", res.Data)
		}
	}

	// Nothing was cached, so both loads hit the server.
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}
}

func TestLoadDataURL(t *testing.T) {
	l, _ := newTestLoader(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("base64", func(t *testing.T) {
		src := "console.log(42);\n"
		u := mustParse(t, "data:text/javascript;base64,"+base64.StdEncoding.EncodeToString([]byte(src)))
		res, err := l.Load(ctx, u, KindUnspecified)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if string(res.Data) != src {
			t.Errorf("Data = %q, want %q", res.Data, src)
		}
		if res.Kind != KindCode {
			t.Errorf("Kind = %s, want %s", res.Kind, KindCode)
		}
	})

	t.Run("base64 without padding", func(t *testing.T) {
		src := "hello"
		u := mustParse(t, "data:;base64,"+base64.RawStdEncoding.EncodeToString([]byte(src)))
		res, err := l.Load(ctx, u, KindUnspecified)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if string(res.Data) != src {
			t.Errorf("Data = %q, want %q", res.Data, src)
		}
	})

	t.Run("percent encoded", func(t *testing.T) {
		u := mustParse(t, `data:text/javascript,console.log(%221%22)`)
		res, err := l.Load(ctx, u, KindUnspecified)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if got := string(res.Data); got != `console.log("1")` {
			t.Errorf("Data = %q", got)
		}
	})

	t.Run("plain payload", func(t *testing.T) {
		res, err := l.Load(ctx, mustParse(t, "data:,hello"), KindUnspecified)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if string(res.Data) != "hello" {
			t.Errorf("Data = %q, want %q", res.Data, "hello")
		}
	})

	t.Run("requested data kind", func(t *testing.T) {
		u := mustParse(t, "data:application/json,%7B%7D")
		res, err := l.Load(ctx, u, KindData)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if res.Kind != KindData {
			t.Errorf("Kind = %s, want %s", res.Kind, KindData)
		}
	})

	t.Run("missing comma", func(t *testing.T) {
		_, err := l.Load(ctx, mustParse(t, "data:text/javascript"), KindUnspecified)
		if code := errors.GetCode(err); code != errors.ErrCodeInvalidInput {
			t.Errorf("error code = %q, want %q", code, errors.ErrCodeInvalidInput)
		}
	})

	t.Run("bad base64", func(t *testing.T) {
		_, err := l.Load(ctx, mustParse(t, "data:;base64,!!!"), KindUnspecified)
		if code := errors.GetCode(err); code != errors.ErrCodeInvalidInput {
			t.Errorf("error code = %q, want %q", code, errors.ErrCodeInvalidInput)
		}
	})
}

func TestLoadDataURLNeverCached(t *testing.T) {
	l, c := newTestLoader(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u := mustParse(t, "data:;base64,"+base64.StdEncoding.EncodeToString([]byte("inline")))
	if _, err := l.Load(ctx, u, KindUnspecified); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := countCacheFiles(t, c.Root()); got != 0 {
		t.Errorf("cache holds %d files after inline load, want 0", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"mod.js":      "export default 1\n",
		"config.json": `{"a": 1}`,
		"DATA.JSON":   `{"b": 2}`,
		"lib.wasm":    "\x00asm",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	l, _ := newTestLoader(t, nil)
	fileURL := func(name string) *url.URL {
		return &url.URL{Scheme: "file", Path: filepath.Join(dir, name)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("script", func(t *testing.T) {
		res, err := l.Load(ctx, fileURL("mod.js"), KindUnspecified)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if res.Kind != KindCode {
			t.Errorf("Kind = %s, want %s", res.Kind, KindCode)
		}
		if string(res.Data) != files["mod.js"] {
			t.Errorf("Data = %q", res.Data)
		}
	})

	t.Run("json as data", func(t *testing.T) {
		res, err := l.Load(ctx, fileURL("config.json"), KindData)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if res.Kind != KindData {
			t.Errorf("Kind = %s, want %s", res.Kind, KindData)
		}
	})

	t.Run("json without data request", func(t *testing.T) {
		_, err := l.Load(ctx, fileURL("config.json"), KindUnspecified)
		if code := errors.GetCode(err); code != errors.ErrCodeKindMismatch {
			t.Errorf("error code = %q, want %q", code, errors.ErrCodeKindMismatch)
		}
	})

	t.Run("uppercase extension", func(t *testing.T) {
		res, err := l.Load(ctx, fileURL("DATA.JSON"), KindData)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if res.Kind != KindData {
			t.Errorf("Kind = %s, want %s", res.Kind, KindData)
		}
	})

	t.Run("wasm", func(t *testing.T) {
		res, err := l.Load(ctx, fileURL("lib.wasm"), KindUnspecified)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if res.Kind != KindBinary {
			t.Errorf("Kind = %s, want %s", res.Kind, KindBinary)
		}
	})

	t.Run("requested kind on plain extension", func(t *testing.T) {
		res, err := l.Load(ctx, fileURL("mod.js"), KindData)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if res.Kind != KindData {
			t.Errorf("Kind = %s, want %s", res.Kind, KindData)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := l.Load(ctx, fileURL("nope.js"), KindUnspecified)
		if code := errors.GetCode(err); code != errors.ErrCodeFileNotFound {
			t.Errorf("error code = %q, want %q", code, errors.ErrCodeFileNotFound)
		}
	})
}
