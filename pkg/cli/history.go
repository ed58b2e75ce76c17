package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mchmarny/fairaudit/pkg/data"
	"github.com/mchmarny/fairaudit/pkg/fairness"
	urfave "github.com/urfave/cli/v3"
)

const historyLimitDefault = 20

var (
	historyLimitFlag = &urfave.IntFlag{
		Name:  "limit",
		Usage: "Limits number of audits returned",
		Value: historyLimitDefault,
	}

	auditIDFlag = &urfave.StringFlag{
		Name:     "id",
		Usage:    "Audit ID",
		Required: true,
	}

	historyCmd = &urfave.Command{
		Name:            "history",
		Aliases:         []string{"h"},
		Usage:           "Saved audit operations",
		HideHelpCommand: true,
		Commands: []*urfave.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List saved audits, newest first",
				Action:  cmdHistoryList,
				Flags:   []urfave.Flag{historyLimitFlag},
			},
			{
				Name:    "show",
				Aliases: []string{"s"},
				Usage:   "Show a saved audit",
				Action:  cmdHistoryShow,
				Flags:   []urfave.Flag{auditIDFlag},
			},
			{
				Name:   "state",
				Usage:  "Show history store row counts",
				Action: cmdHistoryState,
			},
		},
	}
)

type auditList []*data.Audit

func (l auditList) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tRECORDS\tSPD\tDI")
	for _, a := range l {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			a.ID,
			a.CreatedAt.Format(time.DateTime),
			a.Source,
			a.Records,
			a.Metrics.Get(fairness.StatisticalParityDifference),
			a.Metrics.Get(fairness.DisparateImpact))
	}
	return tw.Flush()
}

type dataState map[string]int64

func (s dataState) writeText(w io.Writer) error {
	var sb strings.Builder
	for _, k := range []string{"audit", "audit_metric", "audit_group", "undefined", "schema_version"} {
		fmt.Fprintf(&sb, "%s: %d\n", k, s[k])
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func cmdHistoryList(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	db, err := cfg.getDB()
	if err != nil {
		return err
	}

	list, err := data.ListAudits(db, int(cmd.Int(historyLimitFlag.Name)))
	if err != nil {
		return fmt.Errorf("listing audits: %w", err)
	}
	return encode(cmd.Root().Writer, cfg.Format, auditList(list))
}

func cmdHistoryShow(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	db, err := cfg.getDB()
	if err != nil {
		return err
	}

	a, err := data.GetAudit(db, cmd.String(auditIDFlag.Name))
	if err != nil {
		return err
	}
	return encode(cmd.Root().Writer, cfg.Format, &report{a})
}

func cmdHistoryState(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	db, err := cfg.getDB()
	if err != nil {
		return err
	}

	state, err := data.GetDataState(db)
	if err != nil {
		return fmt.Errorf("getting data state: %w", err)
	}
	return encode(cmd.Root().Writer, cfg.Format, dataState(state))
}
