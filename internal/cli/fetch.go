package cli

import (
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/pkg/errors"
	"github.com/quarryhq/quarry/pkg/loader"
)

// fetchCommand creates the fetch command.
func (c *CLI) fetchCommand() *cobra.Command {
	var (
		kindName string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a resource through the content cache",
		Long: `Fetch loads a resource by URL and prints its payload.

Network fetches go through the content cache, so a second fetch of the
same URL is served from disk. data: and file: URLs are read directly.

Examples:
  quarry fetch https://example.com/mod.js
  quarry fetch --kind data https://example.com/config.json
  quarry fetch -o icon.wasm file:///srv/assets/icon.wasm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindName)
			if err != nil {
				return err
			}
			u, err := url.Parse(args[0])
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid URL %q", args[0])
			}

			cc, err := newContentCache()
			if err != nil {
				return err
			}
			l := loader.New(cc, nil, c.Logger)

			res, err := l.Load(cmd.Context(), u, kind)
			if err != nil {
				return err
			}

			if output == "" {
				if res.Redirect != nil {
					c.Logger.Info("resource moved", "url", res.Redirect)
				}
				_, err = os.Stdout.Write(res.Data)
				return err
			}

			if err := os.WriteFile(output, res.Data, 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "writing %s", output)
			}
			printSuccess("Fetched %d bytes", len(res.Data))
			printDetail("Kind: %s", res.Kind)
			if res.Redirect != nil {
				printDetail("Moved to: %s", res.Redirect)
			}
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "kind", "", "expected payload kind: code, data or binary")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the payload to a file instead of stdout")
	return cmd
}

// parseKind maps the --kind flag to a loader kind. An empty value lets
// the loader decide.
func parseKind(name string) (loader.Kind, error) {
	switch name {
	case "":
		return loader.KindUnspecified, nil
	case "code":
		return loader.KindCode, nil
	case "data":
		return loader.KindData, nil
	case "binary":
		return loader.KindBinary, nil
	default:
		return loader.KindUnspecified, errors.New(errors.ErrCodeInvalidInput, "unknown kind %q", name)
	}
}
