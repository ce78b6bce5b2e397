package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ternarybob/checkin/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints version information.",
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		for _, pair := range common.VersionInfo() {
			t.AppendRow(table.Row{pair[0], pair[1]})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
