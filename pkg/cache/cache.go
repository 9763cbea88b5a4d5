// Package cache implements a content-addressed on-disk store for
// fetched resources.
//
// # Layout
//
// Objects live under one directory per host:
//
//	<root>/<host>/<hex sha256 of path and query>
//	<root>/<host>/_metadata.json
//
// The filename hashes only the URL's path and query; the host picks
// the partition directory. URLs without a host fall under
// "unknown-host". Each partition's _metadata.json maps original URLs
// to the final URL a fetch was redirected to and is rewritten in full
// on every update.
//
// All writes go through a temp file in the destination directory
// followed by a rename, so readers never observe partial content.
// Index updates within one domain are serialized; a Cache is safe for
// concurrent use.
//
// Content is treated as immutable once stored: there is no TTL and no
// eviction. [Cache.Purge] removes everything on request.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// UnknownHost is the partition directory for URLs without a host.
const UnknownHost = "unknown-host"

const indexFilename = "_metadata.json"

// Entry records the URLs behind one cached object. FinalURL is set
// only when the fetch was redirected away from the original URL.
type Entry struct {
	OriginalURL string `json:"original_url"`
	FinalURL    string `json:"final_url,omitempty"`
}

// Cache is a content-addressed store rooted at a single directory.
type Cache struct {
	root string

	mu      sync.Mutex
	domains map[string]*sync.Mutex
}

// New creates a Cache rooted at dir, creating the directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{
		root:    dir,
		domains: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the cache directory.
func (c *Cache) Root() string { return c.root }

// PathFor returns the on-disk location for u's content. The location
// is a pure function of u: the host selects the partition directory
// and the filename is the hex SHA-256 of the escaped path, followed by
// "?" and the raw query when one is present. Fragments are ignored.
func (c *Cache) PathFor(u *url.URL) string {
	h := sha256.New()
	h.Write([]byte(u.EscapedPath()))
	if u.RawQuery != "" {
		h.Write([]byte("?"))
		h.Write([]byte(u.RawQuery))
	}
	return filepath.Join(c.root, hostDir(u), hex.EncodeToString(h.Sum(nil)))
}

// Store writes data for original atomically and returns the object's
// path. When final is non-nil and differs from original, the domain's
// index is updated to record the redirect; identical or nil final URLs
// leave the index untouched.
func (c *Cache) Store(original, final *url.URL, data []byte) (string, error) {
	path := c.PathFor(original)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}

	if final != nil && final.String() != original.String() {
		if err := c.recordRedirect(original, final); err != nil {
			return "", err
		}
	}
	return path, nil
}

// Read returns the cached content for u.
func (c *Cache) Read(u *url.URL) ([]byte, error) {
	return os.ReadFile(c.PathFor(u))
}

// Contains reports whether content for u is cached.
func (c *Cache) Contains(u *url.URL) bool {
	info, err := os.Stat(c.PathFor(u))
	return err == nil && !info.IsDir()
}

// FinalURL reports where original's content actually came from. It
// returns the recorded post-redirect URL when one exists and original
// otherwise. Lookup problems (missing or corrupt index, unparseable
// stored URL) also fall back to original; FinalURL never fails.
func (c *Cache) FinalURL(original *url.URL) *url.URL {
	index, err := c.readIndex(hostDir(original))
	if err != nil {
		return original
	}

	entry, ok := index[original.String()]
	if !ok || entry.FinalURL == "" {
		return original
	}

	final, err := url.Parse(entry.FinalURL)
	if err != nil {
		return original
	}
	return final
}

// Purge removes every cached object and index, returning the number of
// files removed. The root directory itself is kept.
func (c *Cache) Purge() (int, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		path := filepath.Join(c.root, entry.Name())
		n := countFiles(path)
		if err := os.RemoveAll(path); err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// recordRedirect rewrites the domain index with the given redirect
// upserted. The read-modify-write runs under the domain's lock so
// concurrent stores to one domain cannot drop each other's entries.
func (c *Cache) recordRedirect(original, final *url.URL) error {
	domain := hostDir(original)
	lock := c.domainLock(domain)
	lock.Lock()
	defer lock.Unlock()

	index, err := c.readIndex(domain)
	if err != nil {
		return err
	}
	index[original.String()] = Entry{
		OriginalURL: original.String(),
		FinalURL:    final.String(),
	}

	data, err := json.Marshal(index)
	if err != nil {
		return err
	}
	return writeAtomic(c.indexPath(domain), data)
}

func (c *Cache) domainLock(domain string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock := c.domains[domain]
	if lock == nil {
		lock = &sync.Mutex{}
		c.domains[domain] = lock
	}
	return lock
}

// readIndex loads a domain's index. A missing or unreadable file is an
// empty index; a file that exists but does not parse is an error.
func (c *Cache) readIndex(domain string) (map[string]Entry, error) {
	data, err := os.ReadFile(c.indexPath(domain))
	if err != nil {
		return map[string]Entry{}, nil
	}

	index := map[string]Entry{}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}
	return index, nil
}

func (c *Cache) indexPath(domain string) string {
	return filepath.Join(c.root, domain, indexFilename)
}

func hostDir(u *url.URL) string {
	if host := u.Hostname(); host != "" {
		return host
	}
	return UnknownHost
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func countFiles(root string) int {
	n := 0
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}
