package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"zentaocli/internal/config"
	"zentaocli/internal/operations"
	"zentaocli/internal/tui"
	api "zentaocli/pkg/contracts/api/v1"
	"zentaocli/pkg/contracts/domain"
)

func newLoginCmd(a *app) *cobra.Command {
	var creds credentialFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check an account and show its profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			remembered, err := a.store.Load(config.SettingsGroupExport, nil)
			if err != nil {
				return err
			}
			credentials, headless := creds.resolve(cmd, a.cfg, remembered)
			req := api.LoginRequest{Credentials: credentials, Headless: headless}
			if err := a.validator.Struct(req); err != nil {
				return err
			}

			out, err := a.runJob(cmd, operations.KindLogin, "登录 "+credentials.Account,
				func(ctx context.Context, rep *operations.Reporter) (*operations.Outcome, error) {
					profile, err := a.pipeline().LoginOnly(ctx, req, rep)
					if err != nil {
						return nil, err
					}
					return &operations.Outcome{Message: "Signed in as " + profile.Name(), Result: profile}, nil
				})
			if err != nil {
				return err
			}

			if profile, ok := out.(*domain.UserProfile); ok {
				printProfile(cmd, profile)
			}
			return nil
		},
	}

	addCredentialFlags(cmd, &creds)
	return cmd
}

func printProfile(cmd *cobra.Command, p *domain.UserProfile) {
	w := cmd.OutOrStdout()
	rows := [][2]string{
		{"账号", p.Account},
		{"姓名", p.DisplayName},
		{"部门", p.Department},
		{"职位", p.Position},
		{"权限", p.Role},
		{"最后登录", p.LastLogin},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(w, "%s %s\n", tui.MutedStyle.Render(r[0]+":"), r[1])
	}
}
