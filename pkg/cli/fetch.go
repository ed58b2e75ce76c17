package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mchmarny/fairaudit/pkg/auth"
	"github.com/mchmarny/fairaudit/pkg/net"
	urfave "github.com/urfave/cli/v3"
)

const (
	gitHubAccessTokenEnvVar = "GITHUB_ACCESS_TOKEN"
	compasGitHubFile        = "propublica/compas-analysis/compas-scores-two-years.csv"
)

var (
	urlFlag = &urfave.StringFlag{
		Name:  "url",
		Usage: "HTTP(S) URL of the CSV dataset",
	}

	gitHubFileFlag = &urfave.StringFlag{
		Name:  "github",
		Usage: "GitHub file as owner/repo/path[@ref]",
		Value: compasGitHubFile,
	}

	outFlag = &urfave.StringFlag{
		Name:     "out",
		Aliases:  []string{"o"},
		Usage:    "Destination file path",
		Required: true,
	}

	fetchCmd = &urfave.Command{
		Name:  "fetch",
		Usage: "Download a dataset from a URL or GitHub (defaults to the ProPublica COMPAS two-year file)",
		UsageText: `fairaudit fetch --out compas.csv
   fairaudit fetch --github org/private-repo/data/scores.csv@main --out scores.csv
   fairaudit fetch --url https://example.com/scores.csv --out scores.csv`,
		HideHelpCommand: true,
		Action:          cmdFetch,
		Flags: []urfave.Flag{
			urlFlag,
			gitHubFileFlag,
			outFlag,
		},
	}
)

func cmdFetch(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	out := cmd.String(outFlag.Name)

	if u := cmd.String(urlFlag.Name); u != "" {
		if err := net.Download(ctx, nil, u, out); err != nil {
			os.Remove(out)
			return fmt.Errorf("downloading %s: %w", u, err)
		}
		slog.Info("dataset downloaded", "url", u, "path", out)
		return nil
	}

	file, err := net.ParseGitHubFile(cmd.String(gitHubFileFlag.Name))
	if err != nil {
		return err
	}

	client, err := gitHubClient(ctx, cfg)
	if err != nil {
		return err
	}

	if err := net.DownloadGitHubFile(ctx, client, file, out); err != nil {
		os.Remove(out)
		return fmt.Errorf("downloading %s: %w", file, err)
	}
	slog.Info("dataset downloaded", "github", file.String(), "path", out)
	return nil
}

// gitHubClient returns an OAuth client when a token is available in the
// environment or the token store, otherwise nil for anonymous access.
func gitHubClient(ctx context.Context, cfg *appConfig) (*http.Client, error) {
	token := os.Getenv(gitHubAccessTokenEnvVar)
	if token == "" {
		var err error
		token, err = tokenStore(cfg).Get()
		if err != nil {
			if errors.Is(err, auth.ErrNoToken) {
				slog.Debug("no GitHub token, using anonymous access")
				return nil, nil
			}
			return nil, fmt.Errorf("reading GitHub token: %w", err)
		}
	}
	return net.GetOAuthClient(ctx, token), nil
}

func tokenStore(cfg *appConfig) *auth.TokenStore {
	return &auth.TokenStore{Dir: cfg.HomeDir}
}
