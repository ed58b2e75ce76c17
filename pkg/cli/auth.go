package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"

	urfave "github.com/urfave/cli/v3"
)

var (
	tokenFlag = &urfave.StringFlag{
		Name:  "token",
		Usage: "GitHub access token (prompted when omitted)",
	}

	authCmd = &urfave.Command{
		Name:            "auth",
		Usage:           "Manage the GitHub token used to fetch datasets from private repositories",
		HideHelpCommand: true,
		Commands: []*urfave.Command{
			{
				Name:   "set",
				Usage:  "Store a GitHub access token in the OS keychain",
				Action: cmdAuthSet,
				Flags:  []urfave.Flag{tokenFlag},
			},
			{
				Name:   "clear",
				Usage:  "Remove the stored GitHub access token",
				Action: cmdAuthClear,
			},
		},
	}
)

func cmdAuthSet(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	token := cmd.String(tokenFlag.Name)
	if token == "" {
		fmt.Fprint(cmd.Root().Writer, "GitHub access token: ")
		line, err := bufio.NewReader(cmd.Root().Reader).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(line)
	}

	if err := tokenStore(cfg).Save(token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	slog.Info("token saved")
	return nil
}

func cmdAuthClear(_ context.Context, cmd *urfave.Command) error {
	if err := tokenStore(getConfig(cmd)).Clear(); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	slog.Info("token removed")
	return nil
}
