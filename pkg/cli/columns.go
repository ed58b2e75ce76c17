package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mchmarny/fairaudit/pkg/dataset"
	urfave "github.com/urfave/cli/v3"
)

var (
	columnFilesFlag = &urfave.StringSliceFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Path to a CSV dataset, can be repeated",
		Required: true,
	}

	columnsCmd = &urfave.Command{
		Name:            "columns",
		Aliases:         []string{"c"},
		Usage:           "List the columns of one or more CSV datasets",
		HideHelpCommand: true,
		Action:          cmdColumns,
		Flags: []urfave.Flag{
			columnFilesFlag,
		},
	}
)

type datasetColumns struct {
	File    string   `json:"file" yaml:"file"`
	Columns []string `json:"columns" yaml:"columns"`
}

func cmdColumns(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	list := make([]*datasetColumns, 0)
	for _, path := range cmd.StringSlice(columnFilesFlag.Name) {
		cols, err := readColumns(path)
		if err != nil {
			return err
		}
		list = append(list, &datasetColumns{File: filepath.Base(path), Columns: cols})
	}

	return encode(cmd.Root().Writer, cfg.Format, list)
}

func readColumns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()

	cols, err := dataset.Columns(f)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", path, err)
	}
	return cols, nil
}
