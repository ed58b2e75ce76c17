package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/mchmarny/fairaudit/pkg/config"
	"github.com/mchmarny/fairaudit/pkg/data"
	"github.com/mchmarny/fairaudit/pkg/dataset"
	"github.com/mchmarny/fairaudit/pkg/fairness"
	urfave "github.com/urfave/cli/v3"
)

const privilegedValue = 1

var (
	fileFlag = &urfave.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Path to the CSV dataset",
		Required: true,
	}

	protectedFlag = &urfave.StringFlag{
		Name:  "protected",
		Usage: "Protected attribute column (overrides profile)",
	}

	privilegedFlag = &urfave.StringSliceFlag{
		Name:  "privileged",
		Usage: "Protected attribute value treated as privileged, can be repeated (overrides profile)",
	}

	labelFlag = &urfave.StringFlag{
		Name:  "label",
		Usage: "True outcome column (overrides profile)",
	}

	predictionFlag = &urfave.StringFlag{
		Name:  "prediction",
		Usage: "Classifier prediction column, defaults to the label column (overrides profile)",
	}

	scoreFlag = &urfave.StringFlag{
		Name:  "score",
		Usage: "Risk score column summarized per group (overrides profile)",
	}

	favorableFlag = &urfave.IntFlag{
		Name:  "favorable",
		Usage: "Label value that is the favorable outcome, 0 or 1 (overrides profile)",
	}

	parallelFlag = &urfave.BoolFlag{
		Name:  "parallel",
		Usage: "Count the two groups concurrently",
	}

	saveFlag = &urfave.BoolFlag{
		Name:  "save",
		Usage: "Save the audit to history",
	}

	auditCmd = &urfave.Command{
		Name:    "audit",
		Aliases: []string{"a"},
		Usage:   "Compute group fairness metrics for a dataset",
		UsageText: `fairaudit audit --file compas-scores-two-years.csv
   fairaudit audit -f scores.csv --protected sex --privileged Female --label y --prediction y_hat --favorable 1 --save`,
		HideHelpCommand: true,
		Action:          cmdAudit,
		Flags: []urfave.Flag{
			fileFlag,
			protectedFlag,
			privilegedFlag,
			labelFlag,
			predictionFlag,
			scoreFlag,
			favorableFlag,
			parallelFlag,
			saveFlag,
		},
	}
)

func cmdAudit(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	profile := profileWithFlags(cmd, cfg.Profile)
	if err := profile.Validate(); err != nil {
		return err
	}

	path := cmd.String(fileFlag.Name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()

	a, err := runAudit(ctx, f, auditOptions{
		Source:   filepath.Base(path),
		Profile:  profile,
		Parallel: cmd.Bool(parallelFlag.Name),
	})
	if err != nil {
		return err
	}

	if cmd.Bool(saveFlag.Name) {
		db, err := cfg.getDB()
		if err != nil {
			return err
		}
		if err := data.SaveAudit(db, a); err != nil {
			return fmt.Errorf("saving audit: %w", err)
		}
		slog.Info("audit saved", "id", a.ID)
	}

	return encode(cmd.Root().Writer, cfg.Format, &report{a})
}

// profileWithFlags returns a copy of the profile with any set flags applied.
// Overriding the protected or label column drops the profile's score column
// unless --score is also set.
func profileWithFlags(cmd *urfave.Command, base *config.Config) *config.Config {
	p := *base
	p.Privileged = slices.Clone(base.Privileged)

	if cmd.IsSet(protectedFlag.Name) {
		p.Protected = cmd.String(protectedFlag.Name)
	}
	if cmd.IsSet(privilegedFlag.Name) {
		p.Privileged = cmd.StringSlice(privilegedFlag.Name)
	}
	if cmd.IsSet(labelFlag.Name) {
		p.Label = cmd.String(labelFlag.Name)
	}
	if cmd.IsSet(predictionFlag.Name) {
		p.Prediction = cmd.String(predictionFlag.Name)
	}
	if cmd.IsSet(scoreFlag.Name) {
		p.Score = cmd.String(scoreFlag.Name)
	}
	if cmd.IsSet(favorableFlag.Name) {
		p.Favorable = int(cmd.Int(favorableFlag.Name))
	}

	// another dataset does not carry the profile's score column
	if (cmd.IsSet(protectedFlag.Name) || cmd.IsSet(labelFlag.Name)) && !cmd.IsSet(scoreFlag.Name) {
		p.Score = ""
	}
	return &p
}

type auditOptions struct {
	Source   string
	Profile  *config.Config
	Parallel bool
}

// runAudit loads the dataset, partitions it and computes the metrics and
// group summaries.
func runAudit(ctx context.Context, r io.Reader, opts auditOptions) (*data.Audit, error) {
	if opts.Profile == nil {
		return nil, errors.New("audit profile required")
	}
	p := opts.Profile
	schema := p.Schema()

	if schema.SharedLabel() {
		slog.Warn("no prediction column, using the recorded outcome as both prediction and truth",
			"label", p.Label)
	}

	ds, err := dataset.Load(r, schema)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}

	priv, unpriv, err := fairness.Partition(ds.Records, privilegedValue)
	if err != nil {
		return nil, fmt.Errorf("partitioning records: %w", err)
	}
	slog.Debug("groups partitioned", "privileged", priv.Len(), "unprivileged", unpriv.Len())

	var res fairness.Result
	if opts.Parallel {
		res, err = fairness.ComputeParallel(ctx, priv, unpriv, p.Favorable)
	} else {
		res, err = fairness.Compute(priv, unpriv, p.Favorable)
	}
	if err != nil {
		return nil, fmt.Errorf("computing metrics: %w", err)
	}

	a := &data.Audit{
		Source:     opts.Source,
		Protected:  p.Protected,
		Privileged: p.Privileged,
		Label:      p.Label,
		Prediction: p.Prediction,
		Favorable:  p.Favorable,
		Rows:       ds.Rows,
		Records:    len(ds.Records),
		Missing:    ds.Missing,
		Invalid:    ds.Invalid,
		Metrics:    res,
	}

	for _, g := range []fairness.Group{priv, unpriv} {
		s, err := fairness.Summarize(g, p.Favorable)
		if err != nil {
			return nil, fmt.Errorf("summarizing %s group: %w", g.Name(), err)
		}
		a.Groups = append(a.Groups, s)
	}
	return a, nil
}
