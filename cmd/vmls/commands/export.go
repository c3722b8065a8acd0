package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/vmls/pkg/mcp"
	"github.com/walteh/vmls/pkg/metrics"
	"gitlab.com/tozd/go/errors"
)

var integrationGroup = &cobra.Group{
	ID:    "integration",
	Title: "Integrations",
}

var (
	Textfile string
)

func init() {
	rootCmd.AddGroup(integrationGroup)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(mcpCmd)

	exportCmd.Flags().StringVar(&Textfile, "textfile", "", "Prometheus textfile to write, e.g. /var/lib/node_exporter/textfile/vmls.prom")
	exportCmd.Flags().BoolVarP(&Running, "run", "r", false, "Only export running VMs")
	_ = exportCmd.MarkFlagRequired("textfile")
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the inventory as Prometheus metrics",
	Long:  `Build the inventory and write it in the node-exporter textfile format.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if Running {
			_, err = a.inv.ListRunning(ctx)
		} else {
			_, err = a.inv.ListAll(ctx)
		}
		if err != nil {
			return errors.Errorf("listing VMs: %w", err)
		}

		if err := metrics.WriteTextfile(Textfile, a.inv); err != nil {
			return err
		}

		zerolog.Ctx(ctx).Info().Str("path", Textfile).Int("vms", a.inv.Count()).Msg("Metrics written")
		return nil
	},
	GroupID: integrationGroup.ID,
}

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the inventory to MCP clients over stdio",
	Long: `Serve read-only Model Context Protocol tools (list_vms, find_vms) on
stdin/stdout. Logs go to a file under the user cache directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		level := LogLevel
		if Debug {
			level = "debug"
		}

		return mcp.ServeStdio(ctx, mcp.NewServer(ctx, a.inv), Version, mcp.StdioOpts{LogLevel: level})
	},
	GroupID: integrationGroup.ID,
}
