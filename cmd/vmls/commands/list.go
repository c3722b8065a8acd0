package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/vmls/pkg/render"
	"gitlab.com/tozd/go/errors"
)

var inventoryGroup = &cobra.Group{
	ID:    "inventory",
	Title: "Inventory",
}

var (
	Full    bool
	Running bool
	Drift   bool
)

func init() {
	rootCmd.AddGroup(inventoryGroup)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(findCmd)
	addListFlags(listCmd)
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&Full, "full", "f", false, "Show full information about VMs")
	cmd.Flags().BoolVarP(&Running, "run", "r", false, "List only running VMs")
	cmd.Flags().BoolVar(&Drift, "drift", false, "Show configuration changes since the previous run")
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List VMs",
	Long:    `Build one record per VM: network device, MAC and IP addresses, disks, configuration snapshot and state.`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd)
	},
	GroupID: inventoryGroup.ID,
}

func runList(cmd *cobra.Command) error {
	ctx := cmd.Context()

	format, err := outputFormat()
	if err != nil {
		return err
	}

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

	if err := render.Records(cmd.OutOrStdout(), format, a.inv.Records(), render.Options{Full: Full, Drift: Drift}); err != nil {
		return err
	}

	if failures := a.inv.Failures(); len(failures) > 0 {
		return errors.Errorf("%d of %d VMs could not be inspected", len(failures), len(failures)+a.inv.Count())
	}
	return nil
}

// findCmd represents the find command
var findCmd = &cobra.Command{
	Use:   "find <filter>",
	Short: "Find VM names",
	Long: `Print the names of VMs matching filter, without inspecting them.

A filter starting with ^ or containing * is used as an extended regular
expression. Anything else matches as a substring: "web" becomes ".*web.*".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := outputFormat()
		if err != nil {
			return err
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.inv.Find(ctx, args[0])
		if err != nil {
			return errors.Errorf("finding VMs: %w", err)
		}

		return render.Names(cmd.OutOrStdout(), format, names)
	},
	GroupID: inventoryGroup.ID,
}
