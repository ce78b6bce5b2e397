package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ternarybob/checkin/internal/app"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Prints the effective provider registry.",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, logger, err := loadConfig()
		if err != nil {
			return err
		}

		registry := app.NewRegistry(config, logger)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Provider", "Domain", "Bypass", "Check-in", "Legacy", "Status", "User Info"})

		for _, name := range registry.Names() {
			provider, err := registry.Resolve(name)
			if err != nil {
				return err
			}
			bypass := string(provider.BypassMethod)
			if bypass == "" {
				bypass = "-"
			}
			t.AppendRow(table.Row{
				provider.Name,
				provider.Domain,
				bypass,
				pathOrDash(provider.CheckinPath),
				pathOrDash(provider.SignInPath),
				pathOrDash(provider.CheckinStatusPath),
				provider.UserInfoPath,
			})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func pathOrDash(path *string) string {
	if path == nil {
		return "-"
	}
	return *path
}
