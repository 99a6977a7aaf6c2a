package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/studydash/studydash/internal/daemon"
)

// openDaemon builds the runtime for one-shot commands. Engine logs are
// limited to errors so they do not mix with command output.
func openDaemon(cmd *cobra.Command) (*daemon.Daemon, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Logging.Level = "error"
	return daemon.NewWithConfig(cmd.Context(), cfg)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit prints v as JSON when --json is set, otherwise calls human.
func emit(cmd *cobra.Command, v any, human func(w io.Writer) error) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), v)
	}
	return human(cmd.OutOrStdout())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
