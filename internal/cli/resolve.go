package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/pkg/registry"
)

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var registryURL string

	cmd := &cobra.Command{
		Use:   "resolve <package> <range>",
		Short: "Resolve a version range against the registry",
		Long: `Resolve picks the version a range installs without installing it.

Examples:
  quarry resolve react ^19.0.0
  quarry resolve left-pad 1.3.0`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, spec := args[0], args[1]
			client := registry.NewClient(nil, registryURL)

			s := newSpinner(cmd.Context(), fmt.Sprintf("Resolving %s@%s", name, spec))
			s.Start()
			rv, err := client.Resolve(cmd.Context(), name, spec)
			if err != nil {
				s.StopWithError(fmt.Sprintf("Could not resolve %s@%s", name, spec))
				return err
			}
			s.StopWithSuccess(fmt.Sprintf("%s resolves to %s", spec, rv.Version))

			printKeyValue("Version", rv.Version)
			printKeyValue("Tarball", rv.TarballURL)
			printKeyValue("Dependencies", fmt.Sprintf("%d", len(rv.Dependencies)))

			names := make([]string, 0, len(rv.Dependencies))
			for dep := range rv.Dependencies {
				names = append(names, dep)
			}
			sort.Strings(names)
			for _, dep := range names {
				printDetail("%s %s", dep, rv.Dependencies[dep])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&registryURL, "registry", registry.DefaultBaseURL, "registry base URL")
	return cmd
}

// latestCommand creates the latest command.
func (c *CLI) latestCommand() *cobra.Command {
	var registryURL string

	cmd := &cobra.Command{
		Use:   "latest <package>",
		Short: "Show the latest published version of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			client := registry.NewClient(nil, registryURL)

			s := newSpinner(cmd.Context(), fmt.Sprintf("Checking %s", name))
			s.Start()
			version, err := client.Latest(cmd.Context(), name)
			if err != nil {
				s.StopWithError(fmt.Sprintf("Could not look up %s", name))
				return err
			}
			s.StopWithSuccess(fmt.Sprintf("%s %s", name, version))
			return nil
		},
	}

	cmd.Flags().StringVar(&registryURL, "registry", registry.DefaultBaseURL, "registry base URL")
	return cmd
}
