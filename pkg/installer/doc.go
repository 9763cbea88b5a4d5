// Package installer walks a dependency graph and installs every
// package it reaches into a packages directory, fetching concurrently
// and deduplicating shared dependencies within a run.
//
// # Overview
//
// An [Installer] starts from a set of root dependencies (name to
// version range), resolves each against a registry, downloads and
// extracts the matching tarball, and repeats for the dependencies the
// registry reports. Each package task runs in its own goroutine; a
// weighted semaphore bounds how many resolve-and-fetch operations are
// in flight at once.
//
// # Usage
//
//	inst := &installer.Installer{
//	    Registry: registry.NewClient(nil, ""),
//	    Tarballs: tarball.NewFetcher(nil),
//	    Dir:      "packages",
//	}
//
//	report, err := inst.Install(ctx, map[string]string{"react": "^19.0.0"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, res := range report.Failures() {
//	    fmt.Println(res.Key, res.Err)
//	}
//
// # Deduplication
//
// Two ranges that resolve to the same name and version are installed
// once: after resolution each task claims its name@version key, and a
// task that loses the claim stops without walking that package's
// dependencies again. Deduplication is per run; nothing persists
// between Install calls except the installed trees themselves.
//
// # Completion Markers
//
// A finished install is recorded by an exclusively created marker file
// inside the package directory, written only after extraction
// succeeds. A directory left behind by an interrupted run has no
// marker and is installed again on the next run.
//
// # Failure Policy
//
// A failing package is logged, reported in the [Report], and dropped;
// its dependencies are not walked, and sibling tasks are unaffected.
// Install itself only returns an error when the packages directory
// cannot be created.
package installer
