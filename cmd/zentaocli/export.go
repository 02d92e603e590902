package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"zentaocli/internal/config"
	"zentaocli/internal/operations"
	api "zentaocli/pkg/contracts/api/v1"
	"zentaocli/pkg/contracts/domain"
)

// credentialFlags are shared by every command that signs in.
type credentialFlags struct {
	account  string
	password string
	baseURL  string
	headless bool
}

func addCredentialFlags(cmd *cobra.Command, c *credentialFlags) {
	cmd.Flags().StringVarP(&c.account, "account", "u", "", "ZenTao account (default: last used)")
	cmd.Flags().StringVarP(&c.password, "password", "p", "", "ZenTao password (default: $"+PasswordEnv+")")
	cmd.Flags().StringVar(&c.baseURL, "base-url", "", "ZenTao base URL (default: from config)")
	cmd.Flags().BoolVar(&c.headless, "headless", true, "run the browser without a window (default: from config)")
}

// resolve fills unset values from the remembered settings and the config.
func (c *credentialFlags) resolve(cmd *cobra.Command, cfg *config.Config, remembered map[string]any) (domain.Credentials, bool) {
	headless := cfg.Browser.Headless
	if cmd.Flags().Changed("headless") {
		headless = c.headless
	}
	return domain.Credentials{
		Account:  firstOf(c.account, str(remembered, "account")),
		Password: password(c.password),
		BaseURL:  firstOf(c.baseURL, str(remembered, "base_url"), cfg.ZenTao.BaseURL),
	}, headless
}

func newExportCmd(a *app) *cobra.Command {
	var (
		creds    credentialFlags
		product  string
		reportID string
		dir      string
		targets  []string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export requirements, unclosed bugs and test cases of a product",
		Long: `Sign in, find the product by name and download its exports.

Targets run in a fixed order: requirements, unclosed_defects, test_cases.
Each download is renamed to {product}_{label}[_(report id)].xlsx inside the
download directory. Account, product and report id are remembered for the
next run.`,
		Example: `  zentaocli export -u zhangsan --product 网关 --report-id 2026-001
  zentaocli export --product 网关 --target requirements --target test_cases --tui`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			remembered, err := a.store.Load(config.SettingsGroupExport, nil)
			if err != nil {
				return err
			}
			credentials, headless := creds.resolve(cmd, a.cfg, remembered)

			req := api.ExportRequest{
				Credentials: credentials,
				ProductName: firstOf(product, str(remembered, "product")),
				ReportID:    firstOf(reportID, str(remembered, "report_id")),
				Headless:    headless,
				DownloadDir: firstOf(dir, a.cfg.Download.Dir),
			}
			for _, t := range targets {
				req.Targets = append(req.Targets, domain.ExportTarget(t))
			}
			if err := a.validator.Struct(req); err != nil {
				return err
			}
			if err := a.files.ValidateOutputDirectory(req.DownloadDir); err != nil {
				return err
			}

			if err := a.store.Save(config.SettingsGroupExport, map[string]any{
				"account":   req.Credentials.Account,
				"base_url":  req.Credentials.BaseURL,
				"product":   req.ProductName,
				"report_id": req.ReportID,
			}); err != nil {
				a.logger.Warn("Could not remember export settings", slog.String("error", err.Error()))
			}

			out, err := a.runJob(cmd, operations.KindExport, "导出 "+req.ProductName,
				func(ctx context.Context, rep *operations.Reporter) (*operations.Outcome, error) {
					res, err := a.pipeline().Run(ctx, req, rep)
					if err != nil {
						return nil, err
					}
					return &operations.Outcome{
						Message: fmt.Sprintf("Exported %d files in %s", len(res.Files), res.Elapsed.Round(time.Second)),
						Result:  res,
					}, nil
				})
			if err != nil {
				return err
			}

			if res, ok := out.(*operations.Result); ok {
				printFiles(cmd, res.Files)
			}
			return nil
		},
	}

	addCredentialFlags(cmd, &creds)
	cmd.Flags().StringVar(&product, "product", "", "product name, matched as a substring of the listing links")
	cmd.Flags().StringVar(&reportID, "report-id", "", "report id appended to the file names")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "download directory (default: from config)")
	cmd.Flags().StringSliceVar(&targets, "target", nil, "limit the export to these targets (requirements, unclosed_defects, test_cases)")
	return cmd
}

func printFiles(cmd *cobra.Command, files map[domain.ExportTarget]string) {
	keys := make([]string, 0, len(files))
	for t := range files {
		keys = append(keys, string(t))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%-17s %s\n", k, files[domain.ExportTarget(k)])
	}
}
