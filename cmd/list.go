package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/greyhoundforty/blueterm/internal/cloud"
	"github.com/greyhoundforty/blueterm/internal/session"
	"github.com/greyhoundforty/blueterm/internal/ui"
)

var (
	listOutput string
	listGroup  string
	listFilter string
)

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "output format: table, json or yaml")
	listCmd.Flags().StringVarP(&listGroup, "group", "g", "", "resource group name or id (default: all groups)")
	listCmd.Flags().StringVar(&listFilter, "filter", "", "only resources whose name, id or status contain this text")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources of one type in one region",
	Example: `  blueterm list
  blueterm list --type iks --region eu-de -o yaml
  blueterm list --group default --filter stopped`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch listOutput {
		case "table", "json", "yaml":
		default:
			return fmt.Errorf("unknown output format %q", listOutput)
		}

		ctx := cmd.Context()
		a, err := oneShot(ctx)
		if err != nil {
			return err
		}
		defer a.coord.Close()

		if err := a.coord.Start(ctx); err != nil {
			return err
		}
		if listGroup != "" {
			id, err := resolveGroup(a.coord.Query(), listGroup)
			if err != nil {
				return err
			}
			if err := a.coord.SwitchResourceGroup(ctx, id); err != nil {
				return err
			}
		}

		snap := a.coord.Query()
		return writeResources(cmd.OutOrStdout(), listOutput, snap, snap.Filter(listFilter))
	},
}

func resolveGroup(snap session.Snapshot, nameOrID string) (string, error) {
	for _, g := range snap.ResourceGroups {
		if g.ID == nameOrID || strings.EqualFold(g.Name, nameOrID) {
			return g.ID, nil
		}
	}
	return "", cloud.Errorf(cloud.KindInvalidRequest, "resolve resource group", "no resource group named %q", nameOrID)
}

func writeResources(w io.Writer, format string, snap session.Snapshot, resources []cloud.Resource) error {
	if resources == nil {
		resources = []cloud.Resource{}
	}
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resources)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(resources)
	}

	if len(resources) == 0 {
		fmt.Fprintf(w, "No %s found in %s.\n", snap.Family.Label(), snap.RegionLabel())
		return nil
	}
	if err := ui.WriteTable(w, snap.Family, resources); err != nil {
		return err
	}
	var counts []string
	for _, sc := range snap.Breakdown() {
		counts = append(counts, fmt.Sprintf("%d %s", sc.Count, sc.Status))
	}
	fmt.Fprintf(os.Stderr, "\n%s in %s: %d total (%s)\n",
		snap.Family.Label(), snap.RegionLabel(), len(snap.Resources), strings.Join(counts, ", "))
	return nil
}
