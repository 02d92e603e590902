package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"zentaocli/internal/config"
	"zentaocli/internal/files"
	"zentaocli/internal/operations"
	"zentaocli/internal/spreadsheet"
	api "zentaocli/pkg/contracts/api/v1"
	"zentaocli/pkg/contracts/domain"
)

func newConsolidateCmd(a *app) *cobra.Command {
	var (
		req      api.ConsolidateRequest
		product  string
		reportID string
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Copy exported workbooks into the acceptance report",
		Long: `Copy the rows of the exported workbooks into the report workbook, from row 3
of the matching sheet on. Sheets that do not exist are created. The photo, if
given, replaces the picture on the 设备外观图 sheet. The target is saved in
place.

With --product, sources that are not given are looked up in the download
directory by the names the export command gives them.`,
		Example: `  zentaocli consolidate --target 验收报告.xlsx \
    --defects raw_data/网关_未关闭的\ Bug.xlsx \
    --requirements raw_data/网关_需求.xlsx \
    --image 外观.png
  zentaocli consolidate --target 验收报告.xlsx --product 网关 --report-id 2026-001`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			remembered, err := a.store.Load(config.SettingsGroupConsolidate, nil)
			if err != nil {
				return err
			}
			req.Target = firstOf(req.Target, str(remembered, "target"))
			req.Image = firstOf(req.Image, str(remembered, "image"))
			if product != "" {
				if err := discoverSources(&req, firstOf(dir, a.cfg.Download.Dir), product, reportID); err != nil {
					return err
				}
			}

			if err := a.validator.Struct(req); err != nil {
				return err
			}
			if err := a.files.ValidateExcelFile(req.Target); err != nil {
				return err
			}
			for _, src := range []string{req.Defects, req.Requirements, req.TestCases} {
				if src == "" {
					continue
				}
				if err := a.files.ValidateExcelFile(src); err != nil {
					return err
				}
			}
			if req.Image != "" {
				if err := a.files.ValidateImageFile(req.Image); err != nil {
					return err
				}
			}

			if err := a.store.Save(config.SettingsGroupConsolidate, map[string]any{
				"target": req.Target,
				"image":  req.Image,
			}); err != nil {
				a.logger.Warn("Could not remember report settings", "error", err.Error())
			}

			out, err := a.runJob(cmd, operations.KindConsolidate, "合并报告",
				func(ctx context.Context, rep *operations.Reporter) (*operations.Outcome, error) {
					rep.Progress(10)
					res, err := spreadsheet.Consolidate(ctx, req, rep.Logger())
					if err != nil {
						return nil, err
					}
					rep.Progress(100)
					return &operations.Outcome{Message: "Report saved to " + res.Target, Result: res}, nil
				})
			if err != nil {
				return err
			}

			if res, ok := out.(*spreadsheet.ConsolidateResult); ok {
				w := cmd.OutOrStdout()
				for _, sheet := range slices.Sorted(maps.Keys(res.Rows)) {
					fmt.Fprintf(w, "%s: %d rows\n", sheet, res.Rows[sheet])
				}
				if len(res.Created) > 0 {
					fmt.Fprintf(w, "created sheets: %s\n", strings.Join(res.Created, ", "))
				}
				if len(res.Skipped) > 0 {
					fmt.Fprintf(w, "skipped: %s\n", strings.Join(res.Skipped, ", "))
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Target, "target", "t", "", "report workbook to update (default: last used)")
	f.StringVar(&req.Defects, "defects", "", "exported unclosed bug workbook")
	f.StringVar(&req.Requirements, "requirements", "", "exported requirement workbook")
	f.StringVar(&req.TestCases, "test-cases", "", "exported test case workbook")
	f.StringVar(&req.Image, "image", "", "device photo, png, jpg or gif (default: last used)")
	f.StringVar(&product, "product", "", "find missing sources among this product's exports")
	f.StringVar(&reportID, "report-id", "", "prefer exports carrying this report id")
	f.StringVarP(&dir, "dir", "d", "", "directory searched with --product (default: download directory)")
	return cmd
}

// discoverSources fills the sources req leaves empty with the product's
// exports found in dir.
func discoverSources(req *api.ConsolidateRequest, dir, product, reportID string) error {
	found, err := files.NewDiscovery(dir).FindExports(product, reportID)
	if err != nil {
		return err
	}
	for target, field := range map[domain.ExportTarget]*string{
		domain.TargetUnclosedDefects: &req.Defects,
		domain.TargetRequirements:    &req.Requirements,
		domain.TargetTestCases:       &req.TestCases,
	} {
		if f, ok := found[target]; ok && *field == "" {
			*field = f.Path
		}
	}
	return nil
}
