// Package pkg provides the core libraries for Quarry package installation
// and resource loading.
//
// # Overview
//
// Quarry resolves named, versioned packages against an npm-style registry,
// installs them concurrently into a packages directory, and serves remote
// resources through a content-addressed on-disk cache. The pkg directory is
// organized into three main areas:
//
//  1. Resolution and installation (registry, tarball, installer, manifest)
//  2. Content caching and loading (cache, loader)
//  3. Shared plumbing (errors, httputil, buildinfo)
//
// # Architecture
//
// The typical data flow through an install run:
//
//	pkg.toml manifest
//	         ↓
//	    [registry] package (resolve version ranges)
//	         ↓
//	    [installer] package (dedup + bounded concurrent walk)
//	         ↓
//	    [tarball] package (download + safe extraction)
//	         ↓
//	    packages/<name>/ on disk
//
// Resource loading is a separate path:
//
//	resource URL
//	         ↓
//	    [loader] package (scheme dispatch, kind resolution)
//	         ↓
//	    [cache] package (content-addressed store + redirect index)
//
// # Quick Start
//
// Install a dependency tree:
//
//	import (
//	    "context"
//	    "github.com/quarryhq/quarry/pkg/installer"
//	    "github.com/quarryhq/quarry/pkg/registry"
//	    "github.com/quarryhq/quarry/pkg/tarball"
//	)
//
//	inst := &installer.Installer{
//	    Registry: registry.NewClient(nil, ""),
//	    Tarballs: tarball.NewFetcher(nil),
//	    Dir:      "packages",
//	}
//	report, err := inst.Install(context.Background(), map[string]string{
//	    "react": "^19.0.0",
//	})
//
// Load a resource through the cache:
//
//	c, _ := cache.New(dir)
//	l := loader.New(c, nil, nil)
//	u, _ := url.Parse("https://example.com/mod.js")
//	res, err := l.Load(context.Background(), u, loader.KindUnspecified)
//
// # Main Packages
//
// [registry] - npm-style registry client. Resolves a package name and semver
// range to a concrete version with its tarball URL and dependency map, and
// looks up the registry's "latest" tag.
//
// [tarball] - Tarball download and extraction. Strips the archive's leading
// path segment and rejects absolute or traversing entry names.
//
// [installer] - Concurrent dependency-tree installer. Walks the graph
// breadth-unordered with bounded parallelism, deduplicates on name@version
// per run, marks completed installs with a marker file, and reports a
// per-package outcome for the whole run.
//
// [manifest] - pkg.toml parsing: project identity plus name to version-range
// dependency pairs.
//
// [cache] - Content-addressed cache partitioned by host with atomic writes
// and a per-domain redirect index.
//
// [loader] - Scheme-dispatching resource loader (https, http, data, file)
// with payload kind resolution, backed by the cache for network sources.
//
// [errors] - Coded errors shared by every package; codes distinguish
// invalid input, missing packages, network failures, and loader kind
// mismatches.
//
// [httputil] - Shared HTTP client construction and status-to-error mapping
// for the registry, tarball, and loader clients.
//
// [buildinfo] - Version information injected at build time via ldflags.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/installer/...          # Specific package
//	go test -tags integration ./pkg/...  # Include live-registry tests
//
// [registry]: https://pkg.go.dev/github.com/quarryhq/quarry/pkg/registry
// [tarball]: https://pkg.go.dev/github.com/quarryhq/quarry/pkg/tarball
// [installer]: https://pkg.go.dev/github.com/quarryhq/quarry/pkg/installer
// [manifest]: https://pkg.go.dev/github.com/quarryhq/quarry/pkg/manifest
// [cache]: https://pkg.go.dev/github.com/quarryhq/quarry/pkg/cache
// [loader]: https://pkg.go.dev/github.com/quarryhq/quarry/pkg/loader
// [errors]: https://pkg.go.dev/github.com/quarryhq/quarry/pkg/errors
// [httputil]: https://pkg.go.dev/github.com/quarryhq/quarry/pkg/httputil
// [buildinfo]: https://pkg.go.dev/github.com/quarryhq/quarry/pkg/buildinfo
package pkg
