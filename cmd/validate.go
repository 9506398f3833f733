package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"grpcheck/internal/definition"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|dir ...]",
	Short: "Parse test definitions without executing them",
	Long: `Parse the given definition files and report structural problems:
missing ENDPOINT sections, malformed JSON payloads, unknown sections or
modifiers, conflicting RESPONSE/ASSERTS expectations. Nothing is executed
and no network access happens.`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateDefinitions,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateDefinitions(cmd *cobra.Command, args []string) error {
	initLogging()

	files, err := definition.Discover(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s definition files found in %v", definition.FileExt, args)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"FILE", "RESULT", "DETAIL"})

	invalid := 0
	for _, file := range files {
		def, err := definition.Parse(file)
		if err != nil {
			invalid++
			t.AppendRow(table.Row{file, "INVALID", err.Error()})
			continue
		}
		t.AppendRow(table.Row{file, "OK", fmt.Sprintf("%s, %d request(s)", def.Endpoint, len(def.Requests))})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d file(s)", len(files)), fmt.Sprintf("%d invalid", invalid), ""})
	t.Render()

	if invalid > 0 {
		return fmt.Errorf("%d of %d definition(s) are invalid", invalid, len(files))
	}
	return nil
}
