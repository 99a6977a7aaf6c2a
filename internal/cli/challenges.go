package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	challengeDate string
	challengeTZ   int
)

func init() {
	for _, c := range []*cobra.Command{challengesCmd, claimCmd} {
		c.Flags().StringVar(&challengeDate, "date", "", "Local date YYYY-MM-DD (default today)")
		c.Flags().IntVar(&challengeTZ, "tz", 0, "Browser timezone offset in minutes (UTC-5 is 300)")
	}
	rootCmd.AddCommand(challengesCmd, claimCmd)
}

var challengesCmd = &cobra.Command{
	Use:   "challenges <user>",
	Short: "Show today's daily challenges and progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runChallenges,
}

var claimCmd = &cobra.Command{
	Use:   "claim <user>",
	Short: "Claim every completed daily challenge",
	Args:  cobra.ExactArgs(1),
	RunE:  runClaim,
}

func runChallenges(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	progress, err := d.Engine.GetChallenges(cmd.Context(), args[0], challengeDate, challengeTZ)
	if err != nil {
		return err
	}
	return emit(cmd, progress, func(w io.Writer) error {
		for _, p := range progress {
			fmt.Fprintln(w, challengeLine(p))
		}
		return nil
	})
}

func runClaim(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Engine.ClaimCompleted(cmd.Context(), args[0], challengeDate, challengeTZ)
	if err != nil {
		return err
	}
	return emit(cmd, res, func(w io.Writer) error {
		if len(res.ClaimedChallenges) == 0 {
			fmt.Fprintln(w, "Nothing to claim.")
			return nil
		}
		fmt.Fprintf(w, "Claimed %s: %s\n", plural(len(res.ClaimedChallenges), "challenge"), strings.Join(res.ClaimedChallenges, ", "))
		fmt.Fprintf(w, "+%d XP\n", res.XPAwarded)
		if res.SweepBonus {
			fmt.Fprintln(w, "Sweep bonus earned!")
		}
		if res.LevelUp {
			fmt.Fprintf(w, "Level up! Now level %d\n", res.NewLevel)
		}
		return nil
	})
}
