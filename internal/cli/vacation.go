package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(vacationCmd)
}

var vacationCmd = &cobra.Command{
	Use:       "vacation <user> <on|off>",
	Short:     "Freeze or resume a user's streak",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"on", "off"},
	RunE:      runVacation,
}

func runVacation(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch args[1] {
	case "on":
		enabled = true
	case "off":
	default:
		return fmt.Errorf("vacation mode must be on or off, got %q", args[1])
	}

	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	s, err := d.Engine.SetVacationMode(cmd.Context(), args[0], enabled)
	if err != nil {
		return err
	}
	return emit(cmd, s, func(w io.Writer) error {
		if s.VacationMode {
			fmt.Fprintf(w, "Vacation mode on. Streak frozen at %s.\n", plural(s.CurrentStreak, "day"))
		} else {
			fmt.Fprintf(w, "Vacation mode off. Streak: %s.\n", plural(s.CurrentStreak, "day"))
		}
		return nil
	})
}
