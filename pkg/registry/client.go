package registry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/httputil"
)

// DefaultBaseURL is the public npm registry.
const DefaultBaseURL = "https://registry.npmjs.org"

// ResolvedVersion is the outcome of resolving a package name and range
// against the registry. It carries everything needed to install the
// package and continue walking its dependency graph.
type ResolvedVersion struct {
	Name         string
	Version      string
	TarballURL   string
	Dependencies map[string]string
}

// Client talks to an npm-style registry.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a registry client. A nil httpClient uses
// [httputil.NewClient]; an empty baseURL uses [DefaultBaseURL].
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = httputil.NewClient()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Resolve fetches the registry document for name and selects the
// version matching spec. An exact version-string match wins before any
// range parsing; otherwise the highest published version satisfying
// the range is chosen. Each call issues exactly one GET.
func (c *Client) Resolve(ctx context.Context, name, spec string) (*ResolvedVersion, error) {
	doc, err := c.fetchDocument(ctx, name)
	if err != nil {
		return nil, err
	}

	if entry, ok := doc.Versions[spec]; ok {
		return newResolved(name, spec, entry)
	}

	constraint, err := semver.NewConstraint(spec)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRange, err, "invalid version range %q for package %s", spec, name)
	}

	var best *semver.Version
	var bestRaw string
	for raw := range doc.Versions {
		v, err := semver.NewVersion(raw)
		if err != nil {
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestRaw = v, raw
		}
	}
	if best == nil {
		return nil, errors.New(errors.ErrCodeNoMatchingVersion, "no version of %s satisfies range %s", name, spec)
	}
	return newResolved(name, bestRaw, doc.Versions[bestRaw])
}

// Latest returns the version string published under the registry's
// "latest" tag for name.
func (c *Client) Latest(ctx context.Context, name string) (string, error) {
	resp, err := httputil.Get(ctx, c.http, c.baseURL+"/"+name+"/latest")
	if err != nil {
		if stderrors.Is(err, httputil.ErrNotFound) {
			return "", errors.Wrap(errors.ErrCodePackageNotFound, err, "package %s not found", name)
		}
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "fetching latest version of %s", name)
	}
	defer resp.Body.Close()

	var doc struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "decoding latest version of %s", name)
	}
	if doc.Version == "" {
		return "", errors.New(errors.ErrCodeNetwork, "registry document for %s has no version", name)
	}
	return doc.Version, nil
}

func (c *Client) fetchDocument(ctx context.Context, name string) (*registryDocument, error) {
	resp, err := httputil.Get(ctx, c.http, c.baseURL+"/"+name)
	if err != nil {
		if stderrors.Is(err, httputil.ErrNotFound) {
			return nil, errors.Wrap(errors.ErrCodePackageNotFound, err, "package %s not found", name)
		}
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetching registry document for %s", name)
	}
	defer resp.Body.Close()

	var doc registryDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "decoding registry document for %s", name)
	}
	return &doc, nil
}

func newResolved(name, version string, entry versionEntry) (*ResolvedVersion, error) {
	if entry.Dist.Tarball == "" {
		return nil, errors.New(errors.ErrCodeInvalidPackage, "registry entry for %s@%s has no tarball URL", name, version)
	}
	return &ResolvedVersion{
		Name:         name,
		Version:      version,
		TarballURL:   entry.Dist.Tarball,
		Dependencies: entry.Dependencies,
	}, nil
}

type registryDocument struct {
	Versions map[string]versionEntry `json:"versions"`
}

type versionEntry struct {
	Dist         dist              `json:"dist"`
	Dependencies map[string]string `json:"dependencies"`
}

type dist struct {
	Tarball string `json:"tarball"`
}
