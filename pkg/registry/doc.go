// Package registry provides an HTTP client for npm-style package
// registries and semantic-version resolution against them.
//
// # Overview
//
// A registry serves one JSON document per package name listing every
// published version together with its tarball URL and dependency
// ranges. [Client.Resolve] fetches that document and picks the version
// matching a requested range.
//
// # Usage
//
//	client := registry.NewClient(nil, "")
//
//	rv, err := client.Resolve(ctx, "react", "^19.0.0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(rv.Version, rv.TarballURL)
//	fmt.Println("Dependencies:", rv.Dependencies)
//
// # Version Selection
//
// Resolution tries an exact version-string match first: if the
// requested range is itself a published version, that version wins
// without any range parsing. Otherwise the range is parsed as a
// semver constraint and the highest published version satisfying it
// is selected. Published version strings that do not parse as semver
// are skipped.
//
// # Statelessness
//
// Every Resolve call issues one GET; nothing is memoized. Callers that
// resolve the same package repeatedly are expected to deduplicate at
// their own layer.
package registry
