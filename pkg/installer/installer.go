package installer

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/registry"
)

// markerFilename marks a package directory whose extraction finished.
const markerFilename = ".quarry-ok"

// Resolver resolves a package name and version range to a concrete
// version. *registry.Client implements it.
type Resolver interface {
	Resolve(ctx context.Context, name, spec string) (*registry.ResolvedVersion, error)
}

// Fetcher downloads a tarball and extracts it into a directory.
// *tarball.Fetcher implements it.
type Fetcher interface {
	FetchAndExtract(ctx context.Context, url, destDir string) error
}

// Installer installs dependency trees under Dir. The zero value is not
// usable; Registry, Tarballs, and Dir must be set.
type Installer struct {
	Registry Resolver
	Tarballs Fetcher

	// Dir is the directory packages are installed into. Each package
	// lands in Dir/<name>.
	Dir string

	// Concurrency bounds how many package tasks resolve and fetch at
	// once. Zero or negative means DefaultConcurrency.
	Concurrency int

	// Logger receives per-package progress. Nil means log.Default.
	Logger *log.Logger

	// OnEvent, when set, observes task transitions. It may be called
	// concurrently from many goroutines.
	OnEvent func(Event)
}

// DefaultConcurrency is the fetch limit used when none is configured:
// the number of CPUs, but at least 4 so small machines still overlap
// network waits.
func DefaultConcurrency() int {
	return max(runtime.NumCPU(), 4)
}

// InstallKey identifies one resolved package within a run.
func InstallKey(name, version string) string {
	return name + "@" + version
}

// state is shared by every task in one Install run.
type state struct {
	sem *semaphore.Weighted

	mu   sync.Mutex
	seen map[string]bool
}

// claim marks key as visited and reports whether this caller was first.
func (st *state) claim(key string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.seen[key] {
		return false
	}
	st.seen[key] = true
	return true
}

// taskResult pairs a package outcome with the dependencies to walk
// next. deps is nil when the task failed or lost a duplicate claim.
type taskResult struct {
	res  PackageResult
	deps map[string]string
}

// Install resolves and installs roots and everything they depend on,
// blocking until every reachable package has been attempted. Failed
// packages are logged and recorded in the Report rather than aborting
// the run; the only error return is a packages directory that cannot
// be created. Cancelling ctx fails the remaining tasks, which show up
// in the Report like any other failure.
func (inst *Installer) Install(ctx context.Context, roots map[string]string) (*Report, error) {
	if err := os.MkdirAll(inst.Dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "creating packages directory %s", inst.Dir)
	}

	concurrency := inst.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency()
	}
	logger := inst.Logger
	if logger == nil {
		logger = log.Default()
	}

	st := &state{
		sem:  semaphore.NewWeighted(int64(concurrency)),
		seen: make(map[string]bool),
	}
	results := make(chan taskResult)

	pending := 0
	for name, spec := range roots {
		name, spec := name, spec
		pending++
		go func() { results <- inst.runTask(ctx, st, name, spec) }()
	}

	report := &Report{}
	for pending > 0 {
		tr := <-results
		pending--
		report.Results = append(report.Results, tr.res)

		switch tr.res.Outcome {
		case OutcomeInstalled:
			logger.Info("installed", "package", tr.res.Key)
		case OutcomeAlreadyInstalled:
			logger.Info("already installed", "package", tr.res.Key)
		case OutcomeDuplicate:
			logger.Debug("duplicate resolution", "package", tr.res.Key)
		case OutcomeFailed:
			logger.Error("install failed", "package", tr.res.Key, "error", tr.res.Err)
		}

		for name, spec := range tr.deps {
			name, spec := name, spec
			pending++
			go func() { results <- inst.runTask(ctx, st, name, spec) }()
		}
	}
	return report, nil
}

// runTask installs one package: resolve, claim the name@version key,
// fetch unless a completed install is already on disk, then hand the
// package's dependencies back to the collector. The concurrency permit
// is held for the whole task so resolution traffic is bounded too.
func (inst *Installer) runTask(ctx context.Context, st *state, name, spec string) taskResult {
	req := InstallKey(name, spec)

	if err := st.sem.Acquire(ctx, 1); err != nil {
		return inst.failed(req, "", name, "", errors.Wrap(errors.ErrCodeInternal, err, "installing %s", name))
	}
	defer st.sem.Release(1)

	inst.emit(Event{Kind: EventResolving, Key: req})

	rv, err := inst.Registry.Resolve(ctx, name, spec)
	if err != nil {
		return inst.failed(req, "", name, "", err)
	}

	key := InstallKey(name, rv.Version)
	if !st.claim(key) {
		inst.emit(Event{Kind: EventDuplicate, Key: req, Resolved: key})
		return taskResult{res: PackageResult{Key: key, Name: name, Version: rv.Version, Outcome: OutcomeDuplicate}}
	}

	dest, err := inst.packageDir(name)
	if err != nil {
		return inst.failed(req, key, name, rv.Version, err)
	}

	if installComplete(dest) {
		inst.emit(Event{Kind: EventSkipped, Key: req, Resolved: key})
		return taskResult{
			res:  PackageResult{Key: key, Name: name, Version: rv.Version, Outcome: OutcomeAlreadyInstalled},
			deps: rv.Dependencies,
		}
	}

	inst.emit(Event{Kind: EventInstalling, Key: req, Resolved: key})
	if err := inst.Tarballs.FetchAndExtract(ctx, rv.TarballURL, dest); err != nil {
		return inst.failed(req, key, name, rv.Version, err)
	}
	if err := writeMarker(dest); err != nil {
		return inst.failed(req, key, name, rv.Version, err)
	}

	inst.emit(Event{Kind: EventInstalled, Key: req, Resolved: key})
	return taskResult{
		res:  PackageResult{Key: key, Name: name, Version: rv.Version, Outcome: OutcomeInstalled},
		deps: rv.Dependencies,
	}
}

// failed reports one errored task. resolved is empty when the error
// came before resolution; the report then keys the result by request.
func (inst *Installer) failed(req, resolved, name, version string, err error) taskResult {
	inst.emit(Event{Kind: EventFailed, Key: req, Resolved: resolved, Err: err})
	key := resolved
	if key == "" {
		key = req
	}
	return taskResult{res: PackageResult{Key: key, Name: name, Version: version, Outcome: OutcomeFailed, Err: err}}
}

func (inst *Installer) emit(e Event) {
	if inst.OnEvent != nil {
		inst.OnEvent(e)
	}
}

// packageDir maps a package name to its install directory. Scoped
// names such as @acme/ui nest under Dir the same way they appear in
// the registry. Names that would resolve outside Dir are rejected.
func (inst *Installer) packageDir(name string) (string, error) {
	if err := errors.ValidatePackageName(name); err != nil {
		return "", err
	}
	clean := path.Clean(name)
	if clean == "." || clean == "" || path.IsAbs(clean) {
		return "", errors.New(errors.ErrCodeInvalidPackage, "unsafe package name %q", name)
	}
	root := filepath.Clean(inst.Dir)
	dest := filepath.Join(root, filepath.FromSlash(clean))
	if !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
		return "", errors.New(errors.ErrCodeInvalidPackage, "unsafe package name %q", name)
	}
	return dest, nil
}

// installComplete reports whether dest already holds a finished
// install. A directory without the marker is a partial extraction and
// is installed again.
func installComplete(dest string) bool {
	_, err := os.Stat(filepath.Join(dest, markerFilename))
	return err == nil
}

// writeMarker records a finished extraction. The marker is created
// exclusively; one that already exists means a concurrent run finished
// the same package, which counts as success.
func writeMarker(dest string) error {
	f, err := os.OpenFile(filepath.Join(dest, markerFilename), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "writing completion marker in %s", dest)
	}
	return f.Close()
}
