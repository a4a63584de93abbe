package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greyhoundforty/blueterm/internal/cloud"
	"github.com/greyhoundforty/blueterm/internal/session"
	"github.com/greyhoundforty/blueterm/internal/ui"
)

var actionYes bool

var actionCmd = &cobra.Command{
	Use:       "action <start|stop|reboot> <resource-id>",
	Short:     "Start, stop or reboot a VPC instance",
	Long:      `Runs one action against a resource in the selected region. The resource's current status is checked first; invalid transitions fail without calling IBM Cloud.`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"start", "stop", "reboot"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := cloud.ParseActionKind(args[0])
		if err != nil {
			return err
		}
		id := args[1]

		ctx := cmd.Context()
		a, err := oneShot(ctx)
		if err != nil {
			return err
		}
		defer a.coord.Close()

		if _, err := ui.Spin("Loading resources…", func() (struct{}, error) {
			return struct{}{}, a.coord.Start(ctx)
		}); err != nil {
			return err
		}

		snap := a.coord.Query()
		res, ok := snap.Find(id)
		if !ok {
			return fmt.Errorf("no %s with id %s in %s", snap.Family.Label(), id, snap.RegionLabel())
		}

		if kind != cloud.ActionLoadDetail && !actionYes {
			ok, err := ui.Confirm(fmt.Sprintf("%s %s (%s)?", kind, res.Name, res.Status))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		pa, err := a.executor.Perform(ctx, id, kind)
		if err != nil {
			return actionError(pa, err)
		}
		fmt.Println("✅", pa.Message())
		if r, ok := a.coord.Query().Find(id); ok {
			fmt.Printf("   %s is now %s\n", r.Name, r.Status)
		}
		return nil
	},
}

// actionFailure prints the action outcome and keeps the classified cause
// reachable through errors.As.
type actionFailure struct {
	pa  session.PendingAction
	err error
}

func (e *actionFailure) Error() string { return e.pa.Message() }
func (e *actionFailure) Unwrap() error { return e.err }

func actionError(pa session.PendingAction, err error) error {
	return &actionFailure{pa: pa, err: err}
}

func init() {
	actionCmd.Flags().BoolVarP(&actionYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(actionCmd)
}
