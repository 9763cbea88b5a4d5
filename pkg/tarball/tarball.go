// Package tarball downloads and extracts gzip-compressed package
// archives.
//
// Archives are expected to wrap their contents in a single top-level
// directory (npm publishes everything under "package/"); that leading
// path segment is stripped from every entry during extraction. Entry
// names are validated against absolute paths and parent-directory
// traversal before anything touches the filesystem.
package tarball

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/httputil"
)

// Fetcher downloads and unpacks package tarballs.
type Fetcher struct {
	http *http.Client
}

// NewFetcher creates a Fetcher. A nil httpClient uses [httputil.NewClient].
func NewFetcher(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = httputil.NewClient()
	}
	return &Fetcher{http: httpClient}
}

// FetchAndExtract downloads the tarball at url and unpacks it into
// destDir. The whole body is read before extraction starts, so network
// failures never leave a partially written directory; filesystem
// failures during extraction can.
func (f *Fetcher) FetchAndExtract(ctx context.Context, url, destDir string) error {
	resp, err := httputil.Get(ctx, f.http, url)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "downloading tarball %s", url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "reading tarball %s", url)
	}
	return Extract(bytes.NewReader(data), destDir)
}

// Extract unpacks a gzip-compressed tar stream into destDir, stripping
// the single leading path segment from every entry. Directories and
// regular files are materialized; symlinks and other entry types are
// skipped.
func Extract(r io.Reader, destDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPackage, err, "opening gzip stream")
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "creating %s", destDir)
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPackage, err, "reading tar header")
		}

		target, ok, err := entryPath(destDir, hdr.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "creating %s", target)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		}
	}
	return nil
}

// entryPath maps a tar entry name to its destination on disk. ok is
// false for entries with nothing left after stripping the leading
// segment (the archive's root directory itself).
func entryPath(destDir, name string) (target string, ok bool, err error) {
	clean := path.Clean(name)
	if clean == "." || clean == "" {
		return "", false, nil
	}
	if err := errors.ValidatePath(clean); err != nil {
		return "", false, errors.Wrap(errors.ErrCodeInvalidPath, err, "unsafe entry in tarball: %s", name)
	}

	rel := stripLeadingSegment(clean)
	if rel == "" {
		return "", false, nil
	}

	target = filepath.Join(destDir, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", false, errors.New(errors.ErrCodeInvalidPath, "path escapes destination: %s", name)
	}
	return target, true, nil
}

func stripLeadingSegment(name string) string {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "creating %s", filepath.Dir(target))
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "creating %s", target)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "writing %s", target)
	}
	return nil
}
