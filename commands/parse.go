// Package commands holds the CLI subcommands registered on the PocketBase
// root command.
package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"boqimport/config"
	"boqimport/services"
)

type parseFlags struct {
	mapping   string
	headerRow int
	export    string
	compact   bool
}

// NewParseCommand returns the parse-boq command. It parses a workbook
// offline and prints the parse result as JSON.
func NewParseCommand(cfg *config.Config) *cobra.Command {
	var flags parseFlags

	cmd := &cobra.Command{
		Use:   "parse-boq <file>",
		Short: "Parse a BOQ workbook and print the canonical rows as JSON",
		Long: `Reads an xlsx, xls or csv bill of quantities, detects its header row and
prints the parsed rows together with the parse report.

Examples:
  # Parse and print the result
  boqimport parse-boq tender.xlsx

  # Resubmit a confirmed column mapping
  boqimport parse-boq tender.xlsx --header-row 3 \
    --mapping '{"srNo":0,"description":1,"quantity":2,"unit":3,"rate":4,"amount":5}'

  # Write the canonical workbook next to the JSON output
  boqimport parse-boq tender.xlsx --export parsed.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, cfg, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.mapping, "mapping", "", "column mapping as JSON, or @path to a JSON file")
	cmd.Flags().IntVar(&flags.headerRow, "header-row", 0, "1-based header row the mapping was built from")
	cmd.Flags().StringVar(&flags.export, "export", "", "write the canonical workbook to this path")
	cmd.Flags().BoolVar(&flags.compact, "compact", false, "print JSON without indentation")
	return cmd
}

func runParse(cmd *cobra.Command, cfg *config.Config, flags parseFlags, path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "parse-boq: read %s", path)
	}

	opts := cfg.Parser.Options()
	opts.Logger = zap.L()
	if flags.mapping != "" {
		mapping, err := readMapping(flags.mapping)
		if err != nil {
			return err
		}
		opts.Mapping = mapping
		opts.HeaderRow = flags.headerRow
	}

	result, err := services.ParseBOQFile(buf, filepath.Base(path), opts)
	if err != nil {
		return eris.Wrap(err, "parse-boq")
	}

	zap.L().Info("parse-boq: parsed",
		zap.String("file", path),
		zap.Int("rows_parsed", result.Report.RowsParsed),
		zap.Int("rows_skipped", result.Report.RowsSkipped),
		zap.Int("warnings", len(result.Report.Warnings)),
		zap.Bool("needs_manual_mapping", result.Report.NeedsManualMapping),
	)

	if flags.export != "" {
		data, err := services.GenerateParsedBOQExcel(result)
		if err != nil {
			return eris.Wrap(err, "parse-boq: export")
		}
		if err := os.WriteFile(flags.export, data, 0o644); err != nil {
			return eris.Wrapf(err, "parse-boq: write %s", flags.export)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !flags.compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		return eris.Wrap(err, "parse-boq: encode result")
	}
	return nil
}

// readMapping decodes a column mapping given inline or as @file.
func readMapping(raw string) (services.ColumnMapping, error) {
	data := []byte(raw)
	if name, ok := strings.CutPrefix(raw, "@"); ok {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, eris.Wrapf(err, "parse-boq: read mapping %s", name)
		}
		data = b
	}
	var mapping services.ColumnMapping
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, eris.Wrap(err, "parse-boq: decode mapping")
	}
	if len(mapping) == 0 {
		return nil, eris.New("parse-boq: mapping is empty")
	}
	return mapping, nil
}
