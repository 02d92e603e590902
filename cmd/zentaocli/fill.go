package main

import (
	"context"
	"fmt"
	"maps"

	"github.com/spf13/cobra"

	"zentaocli/internal/config"
	"zentaocli/internal/operations"
	"zentaocli/internal/spreadsheet"
	api "zentaocli/pkg/contracts/api/v1"
)

// defaultCells is the acceptance sheet layout: ledger fields plus the
// manually entered extras.
func defaultCells(cfg config.FillConfig) map[string]string {
	cells := maps.Clone(cfg.FieldCells)
	if cells == nil {
		cells = make(map[string]string)
	}
	maps.Copy(cells, cfg.ExtraCells)
	return cells
}

func newFillCmd(a *app) *cobra.Command {
	var (
		template string
		sheet    string
		values   map[string]string
		cells    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Write values into named cells of a template copy",
		Long: `Write --set values into a copy of the template named filled_{template}.
Values are matched to cells by name through --cell, or through the acceptance
layout from the configuration when --cell is not given. Cells inside merged
regions are written at the region's top-left cell.`,
		Example: `  zentaocli fill --template 验收报告.xlsx --set 项目名称=网关升级 --set 测试单号=T-102`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := api.FillRequest{
				Template: template,
				Sheet:    firstOf(sheet, a.cfg.Fill.Sheet),
				Values:   values,
				CellMap:  cells,
			}
			if len(req.CellMap) == 0 {
				req.CellMap = defaultCells(a.cfg.Fill)
			}
			if err := a.validator.Struct(req); err != nil {
				return err
			}

			out, err := a.runJob(cmd, operations.KindFill, "填写模板",
				func(ctx context.Context, rep *operations.Reporter) (*operations.Outcome, error) {
					path, err := spreadsheet.Fill(req, rep.Logger())
					if err != nil {
						return nil, err
					}
					rep.Progress(100)
					return &operations.Outcome{Message: "Saved " + path, Result: path}, nil
				})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&template, "template", "", "template workbook")
	f.StringVar(&sheet, "sheet", "", "sheet to fill (default: from config)")
	f.StringToStringVar(&values, "set", nil, "value to write, name=value")
	f.StringToStringVar(&cells, "cell", nil, "cell of a value, name=D2 (default: acceptance layout)")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func newLedgerCmd(a *app) *cobra.Command {
	var (
		ledger    string
		template  string
		query     string
		keyColumn string
		sheet     string
		extra     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Look a project up in the ledger and fill the acceptance sheet",
		Long: `Find the first ledger row whose key column contains --query and write its
project fields into a copy of the template. --extra adds the fields that are
not in the ledger, such as 测试单号 or 开始时间. Ledger and template paths
are remembered for the next run.`,
		Example: `  zentaocli ledger --ledger 项目台账.xlsx --template 验收报告.xlsx --query 网关 \
    --extra 测试单号=T-102 --extra 开始时间=2026-10-10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			remembered, err := a.store.Load(config.SettingsGroupAcceptance, nil)
			if err != nil {
				return err
			}

			req := api.LedgerRequest{
				Ledger:     firstOf(ledger, str(remembered, "ledger")),
				Template:   firstOf(template, str(remembered, "template")),
				Query:      query,
				KeyColumn:  firstOf(keyColumn, a.cfg.Fill.KeyColumn),
				Sheet:      firstOf(sheet, a.cfg.Fill.Sheet),
				FieldCells: a.cfg.Fill.FieldCells,
				ExtraCells: a.cfg.Fill.ExtraCells,
				Extra:      extra,
			}
			if err := a.validator.Struct(req); err != nil {
				return err
			}
			if err := a.files.ValidateExcelFile(req.Ledger); err != nil {
				return err
			}

			if err := a.store.Save(config.SettingsGroupAcceptance, map[string]any{
				"ledger":   req.Ledger,
				"template": req.Template,
			}); err != nil {
				a.logger.Warn("Could not remember ledger settings", "error", err.Error())
			}

			out, err := a.runJob(cmd, operations.KindFill, "台账填写 "+req.Query,
				func(ctx context.Context, rep *operations.Reporter) (*operations.Outcome, error) {
					rep.Progress(20)
					path, err := spreadsheet.FillLedger(req, rep.Logger())
					if err != nil {
						return nil, err
					}
					rep.Progress(100)
					return &operations.Outcome{Message: "Saved " + path, Result: path}, nil
				})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&ledger, "ledger", "", "ledger workbook (default: last used)")
	f.StringVar(&template, "template", "", "acceptance template (default: last used)")
	f.StringVarP(&query, "query", "q", "", "text to look for in the key column")
	f.StringVar(&keyColumn, "key-column", "", "ledger column searched for --query (default: from config)")
	f.StringVar(&sheet, "sheet", "", "sheet to fill (default: from config)")
	f.StringToStringVar(&extra, "extra", nil, "field not in the ledger, name=value")
	return cmd
}
