package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"zentaocli/internal/bugquery"
	"zentaocli/internal/config"
	"zentaocli/internal/exporter"
	"zentaocli/internal/operations"
	api "zentaocli/pkg/contracts/api/v1"
)

// bugsResult is handed from the bug query worker to the command.
type bugsResult struct {
	Path  string
	Count int
}

func newBugsCmd(a *app) *cobra.Command {
	var (
		creds           credentialFlags
		product         string
		status          string
		severity        int
		from, to        string
		includeResolved bool
		includeClosed   bool
		operator        string
		where           string
		output          string
	)

	cmd := &cobra.Command{
		Use:   "bugs",
		Short: "Query the bug list of a product and save it as xlsx or csv",
		Long: `Sign in, open the bug list of a product and keep the bugs that match the
filters. Without --from/--to the last 30 days are queried. Resolved and closed
bugs are left out unless --include-resolved, --include-closed or --status ask
for them.

--where takes a boolean expression over id, title, status, severity,
severity_label, opened_by, opened_date, opened_day and assigned_to.`,
		Example: `  zentaocli bugs --product 网关 --severity 1
  zentaocli bugs --product 网关 --from 2026-09-01 --where 'assigned_to == "lisi"' -o bugs.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			remembered, err := a.store.Load(config.SettingsGroupBugQuery, nil)
			if err != nil {
				return err
			}
			credentials, headless := creds.resolve(cmd, a.cfg, remembered)

			now := time.Now()
			defFrom, defTo := bugquery.DefaultRange(now)
			req := api.BugQueryRequest{
				Credentials:     credentials,
				ProductName:     firstOf(product, str(remembered, "product")),
				Status:          status,
				Severity:        severity,
				From:            firstOf(from, defFrom),
				To:              firstOf(to, defTo),
				IncludeResolved: includeResolved,
				IncludeClosed:   includeClosed,
				Operator:        firstOf(operator, str(remembered, "operator"), credentials.Account),
				Where:           where,
				Headless:        headless,
			}
			if err := a.validator.Struct(req); err != nil {
				return err
			}

			if output == "" {
				output = filepath.Join(a.cfg.Download.Dir, fmt.Sprintf("BUG查询结果_%s.xlsx", now.Format("20060102_150405")))
			}
			if err := a.files.ValidateOutputDirectory(filepath.Dir(output)); err != nil {
				return err
			}

			if err := a.store.Save(config.SettingsGroupBugQuery, map[string]any{
				"account":  req.Credentials.Account,
				"base_url": req.Credentials.BaseURL,
				"product":  req.ProductName,
				"operator": req.Operator,
			}); err != nil {
				a.logger.Warn("Could not remember bug query settings", "error", err.Error())
			}

			out, err := a.runJob(cmd, operations.KindBugQuery, "BUG 查询 "+req.ProductName,
				func(ctx context.Context, rep *operations.Reporter) (*operations.Outcome, error) {
					bugs, err := bugquery.Query(ctx, a.opener, a.cfg, req, rep, operations.WithTracer(a.tracer))
					if err != nil {
						return nil, err
					}
					if err := exporter.WriteBugs(output, bugs, bugquery.Info(req, len(bugs), now)); err != nil {
						return nil, err
					}
					rep.Info("Results saved", "file", output)
					return &operations.Outcome{
						Message: fmt.Sprintf("Found %d bugs", len(bugs)),
						Result:  bugsResult{Path: output, Count: len(bugs)},
					}, nil
				})
			if err != nil {
				return err
			}

			if res, ok := out.(bugsResult); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%d bugs written to %s\n", res.Count, res.Path)
			}
			return nil
		},
	}

	addCredentialFlags(cmd, &creds)
	f := cmd.Flags()
	f.StringVar(&product, "product", "", "product name")
	f.StringVar(&status, "status", "", "only bugs in this status (激活, 已解决, 已关闭)")
	f.IntVar(&severity, "severity", 0, "only bugs of this severity (1-4)")
	f.StringVar(&from, "from", "", "first opened day, YYYY-MM-DD (default: 30 days ago)")
	f.StringVar(&to, "to", "", "last opened day, YYYY-MM-DD (default: today)")
	f.BoolVar(&includeResolved, "include-resolved", false, "keep resolved bugs")
	f.BoolVar(&includeClosed, "include-closed", false, "keep closed bugs")
	f.StringVar(&operator, "operator", "", "name recorded as the operator of the query (default: the account)")
	f.StringVar(&where, "where", "", "extra boolean filter expression")
	f.StringVarP(&output, "output", "o", "", "result file, .xlsx or .csv (default: BUG查询结果_{time}.xlsx in the download directory)")
	return cmd
}
