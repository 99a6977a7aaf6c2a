package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/studydash/studydash/internal/domain"
)

var completeTZ int

func init() {
	completeCmd.Flags().IntVar(&completeTZ, "tz", 0, "Browser timezone offset in minutes (UTC-5 is 300)")
	rootCmd.AddCommand(completeCmd)
}

var completeCmd = &cobra.Command{
	Use:   "complete <user> <task|flashcard|assignment> [item-id]",
	Short: "Record a completed item and award XP",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runComplete,
}

func runComplete(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	var itemID string
	if len(args) == 3 {
		itemID = args[2]
	}
	res, err := d.Engine.RecordCompletion(cmd.Context(), args[0], domain.ItemType(args[1]), itemID, completeTZ)
	if err != nil {
		return err
	}

	return emit(cmd, res, func(w io.Writer) error {
		if res.AlreadyCredited {
			fmt.Fprintln(w, "Already credited, no XP awarded.")
			return nil
		}
		fmt.Fprintf(w, "+%d XP", res.XPEarned)
		if res.BonusXP > 0 {
			fmt.Fprintf(w, " (includes %d streak bonus)", res.BonusXP)
		}
		fmt.Fprintln(w)
		if res.StreakUpdated {
			fmt.Fprintf(w, "Streak: %s\n", plural(res.NewStreak, "day"))
		}
		if res.LevelUp {
			fmt.Fprintf(w, "Level up! %d → %d\n", res.PreviousLevel, res.NewLevel)
		}
		for _, a := range res.NewAchievements {
			fmt.Fprintf(w, "Achievement unlocked: %s %s (+%d XP)\n", a.Icon, a.Name, a.XPReward)
		}
		return nil
	})
}
