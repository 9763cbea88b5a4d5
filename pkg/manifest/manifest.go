// Package manifest reads pkg.toml project manifests.
//
// A manifest names the project and lists its direct dependencies as
// package-name to version-range pairs:
//
//	[package]
//	name = "my-app"
//	version = "0.1.0"
//
//	[dependencies]
//	react = "^19.0.0"
//	lodash = "4.17.21"
package manifest

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/quarryhq/quarry/pkg/errors"
)

// DefaultFilename is the manifest filename looked up in a project directory.
const DefaultFilename = "pkg.toml"

// Manifest is a parsed pkg.toml file.
type Manifest struct {
	Package      Package           `toml:"package"`
	Dependencies map[string]string `toml:"dependencies"`
}

// Package identifies the project itself.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "manifest %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "reading manifest %s", path)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parsing manifest %s", path)
	}
	return m, nil
}

// Parse decodes manifest TOML. Dependency values must be plain version
// range strings; tables and arrays are rejected by the decoder.
// Dependency names are validated as npm package names so a bad
// manifest fails before any registry traffic.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for name := range m.Dependencies {
		if err := errors.ValidateNpmPackageName(name); err != nil {
			return nil, err
		}
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	return &m, nil
}
