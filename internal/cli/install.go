package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/pkg/installer"
	"github.com/quarryhq/quarry/pkg/manifest"
	"github.com/quarryhq/quarry/pkg/registry"
	"github.com/quarryhq/quarry/pkg/tarball"
)

// installOpts holds the command-line flags for the install command.
type installOpts struct {
	manifestPath string // manifest location (default <dir>/pkg.toml)
	packagesDir  string // install destination (default <dir>/packages)
	registryURL  string // registry base URL
	concurrency  int    // parallel fetch limit (0 = auto)
	live         bool   // interactive progress view
}

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	opts := installOpts{registryURL: registry.DefaultBaseURL}

	cmd := &cobra.Command{
		Use:   "install [dir]",
		Short: "Install the dependencies declared in pkg.toml",
		Long: `Install resolves every dependency range in the manifest against the
registry, downloads the matching tarballs, and extracts them under the
packages directory, walking transitive dependencies concurrently.
Packages whose install already completed are skipped.

Examples:
  quarry install                   # manifest in the current directory
  quarry install ./api             # manifest in ./api
  quarry install --live            # interactive progress view
  quarry install -c 8              # at most 8 parallel fetches`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return c.runInstall(cmd, dir, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.manifestPath, "manifest", "m", "", "manifest file (default <dir>/pkg.toml)")
	cmd.Flags().StringVarP(&opts.packagesDir, "packages-dir", "p", "", "install directory (default <dir>/packages)")
	cmd.Flags().StringVar(&opts.registryURL, "registry", opts.registryURL, "registry base URL")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "parallel fetch limit (default CPUs, at least 4)")
	cmd.Flags().BoolVar(&opts.live, "live", false, "show an interactive progress view")

	return cmd
}

func (c *CLI) runInstall(cmd *cobra.Command, dir string, opts installOpts) error {
	manifestPath := opts.manifestPath
	if manifestPath == "" {
		manifestPath = filepath.Join(dir, manifest.DefaultFilename)
	}
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	if len(m.Dependencies) == 0 {
		printInfo("No dependencies declared in %s", manifestPath)
		return nil
	}

	packagesDir := opts.packagesDir
	if packagesDir == "" {
		packagesDir = filepath.Join(dir, "packages")
	}

	inst := &installer.Installer{
		Registry:    registry.NewClient(nil, opts.registryURL),
		Tarballs:    tarball.NewFetcher(nil),
		Dir:         packagesDir,
		Concurrency: opts.concurrency,
		Logger:      c.Logger,
	}

	var report *installer.Report
	if opts.live {
		report, err = runLiveInstall(cmd.Context(), inst, m.Dependencies)
	} else {
		c.Logger.Info("installing dependencies", "manifest", manifestPath, "count", len(m.Dependencies))
		report, err = inst.Install(cmd.Context(), m.Dependencies)
	}
	if err != nil {
		return err
	}

	printReport(report, packagesDir)
	if failed := report.Count(installer.OutcomeFailed); failed > 0 {
		return fmt.Errorf("%d of %d packages failed to install", failed, len(report.Results))
	}
	return nil
}

// printReport summarizes an install run.
func printReport(report *installer.Report, packagesDir string) {
	installed := report.Count(installer.OutcomeInstalled)
	skipped := report.Count(installer.OutcomeAlreadyInstalled)

	if report.OK() {
		if skipped > 0 {
			printSuccess("Installed %d packages (%d already present)", installed, skipped)
		} else {
			printSuccess("Installed %d packages", installed)
		}
	} else {
		printError("Installed %d packages, %d failed", installed, len(report.Failures()))
		for _, res := range report.Failures() {
			printDetail("%s: %v", res.Key, res.Err)
		}
	}
	printDetail("Directory: %s", packagesDir)
}
