// ABOUTME: Informational subcommands
// ABOUTME: Lists sample formats and engines, shows or saves config, prints the version
package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/nocarryr/go-sounddevice/internal/config"
	"github.com/nocarryr/go-sounddevice/internal/version"
	"github.com/nocarryr/go-sounddevice/pkg/audio"
	"github.com/nocarryr/go-sounddevice/pkg/engine"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the supported sample formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBITS\tBYTES\tSIGNED\tMULTIPLIER")
			for _, f := range audio.Formats() {
				fmt.Fprintf(w, "%s\t%d\t%d\t%t\t%.0f\n",
					f.Name(), f.BitWidth(), f.ByteWidth(), f.Signed(), f.Multiplier())
			}
			return w.Flush()
		},
	}
}

func newEnginesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List the audio engines",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range engine.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := yaml.Marshal(g.settings)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save PATH",
		Short: "Write the effective configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(g.settings, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
