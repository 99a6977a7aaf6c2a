package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of entries")
	rootCmd.AddCommand(statusCmd, historyCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <user>",
	Short: "Show streak, level, achievements and recent activity",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history <user>",
	Short: "Show the XP ledger, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := d.Engine.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return emit(cmd, st, func(w io.Writer) error {
		s := st.Streak
		fmt.Fprintln(w, levelLine(st.XP))
		fmt.Fprintf(w, "Total XP:     %d\n", s.TotalXP)
		fmt.Fprintf(w, "Streak:       %s (longest %d)\n", plural(s.CurrentStreak, "day"), s.LongestStreak)
		fmt.Fprintf(w, "Completed:    %s\n", plural(s.TotalTasksCompleted, "item"))
		fmt.Fprintf(w, "Vacation:     %s\n", yesNo(s.VacationMode))
		fmt.Fprintf(w, "Achievements: %d / %d\n", st.AchievementsEarned, st.AchievementsTotal)
		for _, a := range st.Achievements {
			if a.Earned {
				fmt.Fprintf(w, "  %s %s\n", a.Icon, a.Name)
			}
		}
		fmt.Fprintln(w, "Recent activity:")
		for _, a := range st.RecentActivity {
			fmt.Fprintf(w, "  %s  %3d items  %4d XP\n", a.Day, a.TasksCompleted, a.XPEarned)
		}
		return nil
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	entries, err := d.Engine.XPHistory(cmd.Context(), args[0], historyLimit)
	if err != nil {
		return err
	}
	return emit(cmd, entries, func(out io.Writer) error {
		if len(entries) == 0 {
			fmt.Fprintln(out, "No XP earned yet.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DAY\tSOURCE\tREFERENCE\tXP")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%+d\n", e.Day, e.Source, e.Reference, e.Amount)
		}
		return w.Flush()
	})
}
