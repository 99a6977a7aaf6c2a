package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	leaderboardMonth string
	leaderboardLimit int
	institutionClear bool
)

func init() {
	leaderboardCmd.Flags().StringVar(&leaderboardMonth, "month", "", "Month YYYY-MM (default current)")
	leaderboardCmd.Flags().IntVar(&leaderboardLimit, "limit", 10, "Number of entries")
	institutionCmd.Flags().BoolVar(&institutionClear, "clear", false, "Remove the user's institution")
	rootCmd.AddCommand(leaderboardCmd, institutionCmd)
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard <institution>",
	Short: "Show an institution's monthly XP leaderboard",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeaderboard,
}

var institutionCmd = &cobra.Command{
	Use:   "institution <user> [institution]",
	Short: "Assign a user to an institution",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runInstitution,
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	lb, err := d.Engine.Leaderboard(cmd.Context(), args[0], leaderboardMonth, leaderboardLimit)
	if err != nil {
		return err
	}
	return emit(cmd, lb, func(out io.Writer) error {
		if len(lb.Entries) == 0 {
			fmt.Fprintf(out, "No XP recorded for %s in %s.\n", lb.InstitutionID, lb.Month)
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tUSER\tXP\tLEVEL")
		for _, e := range lb.Entries {
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", e.Rank, e.UserID, e.XP, e.Level)
		}
		return w.Flush()
	})
}

func runInstitution(cmd *cobra.Command, args []string) error {
	var inst string
	switch {
	case len(args) == 2:
		inst = args[1]
	case !institutionClear:
		return fmt.Errorf("institution id required (or --clear)")
	}

	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Engine.SetInstitution(cmd.Context(), args[0], inst); err != nil {
		return err
	}
	if inst == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from their institution.\n", args[0])
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s now counts toward %s.\n", args[0], inst)
	}
	return nil
}
