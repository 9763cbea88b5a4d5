// Package loader resolves resource URLs to their payloads across the
// schemes a runtime host accepts: https and http through the content
// cache, data URLs decoded inline, and file paths read directly. The
// scheme table is closed; anything else fails before any I/O happens.
package loader

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/quarryhq/quarry/pkg/cache"
	"github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/httputil"
)

// Result is one loaded resource.
type Result struct {
	// Data is the complete payload.
	Data []byte

	// Kind is the definite kind after resolution.
	Kind Kind

	// Redirect is the effective URL when the server redirected away
	// from the requested one, nil otherwise.
	Redirect *url.URL
}

type handler func(ctx context.Context, u *url.URL, requested Kind) (*Result, error)

// Loader dispatches resource loads by URL scheme.
type Loader struct {
	cache   *cache.Cache
	client  *http.Client
	logger  *log.Logger
	schemes map[string]handler
}

// New returns a Loader backed by c, which must be non-nil. A nil
// client gets the shared upstream client; a nil logger gets
// log.Default.
func New(c *cache.Cache, client *http.Client, logger *log.Logger) *Loader {
	if client == nil {
		client = httputil.NewClient()
	}
	if logger == nil {
		logger = log.Default()
	}
	l := &Loader{cache: c, client: client, logger: logger}
	l.schemes = map[string]handler{
		"https": l.loadNetwork,
		"http":  l.loadNetwork,
		"data":  l.loadData,
		"file":  l.loadFile,
	}
	return l
}

// Load fetches the resource at u and returns its payload with a
// definite kind. Unknown schemes fail without touching the network,
// the cache, or the filesystem.
func (l *Loader) Load(ctx context.Context, u *url.URL, requested Kind) (*Result, error) {
	h, ok := l.schemes[u.Scheme]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupportedScheme, "unsupported scheme %q in %s", u.Scheme, u)
	}
	return h(ctx, u, requested)
}

// loadNetwork serves from the content cache when possible and fetches
// otherwise. A fetched payload is stored best-effort: a cache failure
// is logged and the payload still served.
func (l *Loader) loadNetwork(ctx context.Context, u *url.URL, requested Kind) (*Result, error) {
	kind, err := inlineKind(u, requested)
	if err != nil {
		return nil, err
	}

	if l.cache.Contains(u) {
		data, err := l.cache.Read(u)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "reading cached copy of %s", u)
		}
		l.logger.Debug("loading from cache", "url", u)
		return &Result{Data: data, Kind: kind, Redirect: redirect(u, l.cache.FinalURL(u))}, nil
	}

	l.logger.Debug("fetching", "url", u)
	resp, err := httputil.Get(ctx, l.client, u.String())
	if err != nil {
		if stderrors.Is(err, httputil.ErrNotFound) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "fetching %s", u)
		}
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetching %s", u)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "reading %s", u)
	}

	final := resp.Request.URL
	if _, err := l.cache.Store(u, final, data); err != nil {
		l.logger.Warn("caching failed", "url", u, "error", err)
	}
	return &Result{Data: data, Kind: kind, Redirect: redirect(u, final)}, nil
}

// loadData decodes the payload carried inside the URL itself. Inline
// resources are never cached.
func (l *Loader) loadData(ctx context.Context, u *url.URL, requested Kind) (*Result, error) {
	kind, err := inlineKind(u, requested)
	if err != nil {
		return nil, err
	}
	data, err := decodeDataURL(u)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Kind: kind}, nil
}

func (l *Loader) loadFile(ctx context.Context, u *url.URL, requested Kind) (*Result, error) {
	kind, err := fileKind(u.Path, requested)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "reading %s", u)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "reading %s", u)
	}
	return &Result{Data: data, Kind: kind}, nil
}

// inlineKind maps the requested kind for network and inline sources,
// which carry no file extension to infer from.
func inlineKind(u *url.URL, requested Kind) (Kind, error) {
	switch requested {
	case KindUnspecified, KindCode:
		return KindCode, nil
	case KindData:
		return KindData, nil
	default:
		return 0, errors.New(errors.ErrCodeUnsupportedKind, "unsupported kind %s for %s", requested, u)
	}
}

// fileKind infers the kind from the file extension. A .json file
// loaded without a data request is a kind mismatch, not a guess.
func fileKind(p string, requested Kind) (Kind, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".json":
		if requested != KindData {
			return 0, errors.New(errors.ErrCodeKindMismatch, "%s holds data; requested kind %s", p, requested)
		}
		return KindData, nil
	case ".wasm":
		return KindBinary, nil
	default:
		if requested == KindUnspecified {
			return KindCode, nil
		}
		return requested, nil
	}
}

// redirect returns final when it differs from original.
func redirect(original, final *url.URL) *url.URL {
	if final == nil || final.String() == original.String() {
		return nil
	}
	return final
}

// decodeDataURL extracts the payload of a data URL, handling both the
// base64 and the percent-encoded form.
func decodeDataURL(u *url.URL) ([]byte, error) {
	meta, payload, ok := strings.Cut(u.Opaque, ",")
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "malformed data URL %s", u)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(payload)
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding data URL %s", u)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding data URL %s", u)
	}
	return []byte(text), nil
}
