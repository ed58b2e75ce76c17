package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mchmarny/fairaudit/pkg/data"
	urfave "github.com/urfave/cli/v3"
)

var (
	yesFlag = &urfave.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "Skip the confirmation prompt",
	}

	resetCmd = &urfave.Command{
		Name:            "reset",
		Usage:           "Delete all saved audits",
		HideHelpCommand: true,
		Flags:           []urfave.Flag{yesFlag},
		Action:          cmdReset,
	}
)

func cmdReset(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	w := cmd.Root().Writer

	if !cmd.Bool(yesFlag.Name) {
		fmt.Fprintf(w, "This will permanently delete all audits in %s\n", cfg.dbName())
		fmt.Fprint(w, "Are you sure? [y/N]: ")

		answer, err := bufio.NewReader(cmd.Root().Reader).ReadString('\n')
		if err != nil && answer == "" {
			return fmt.Errorf("reading input: %w", err)
		}

		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Fprintln(w, "Aborted.")
			return nil
		}
	}

	db, err := cfg.getDB()
	if err != nil {
		return err
	}

	n, err := data.DeleteAudits(db)
	if err != nil {
		return fmt.Errorf("resetting history: %w", err)
	}

	slog.Info("history reset", "deleted", n, "db", cfg.dbName())
	return nil
}
