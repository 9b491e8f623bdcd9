package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setPropertyCmd = &cobra.Command{
	Use:   "set-property <library> <symbol> <key> <value>",
	Short: "Change one property of a library symbol",
	Long: `Set-property rewrites a single property value in the symbol's library
file. A timestamped .bak copy of the file is written first.`,
	Args: cobra.ExactArgs(4),
	RunE: runSetProperty,
}

func init() {
	rootCmd.AddCommand(setPropertyCmd)
}

func runSetProperty(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	printDiagnostics(e.Scan(cmd.Context()).Symbols.Diagnostics)

	res, err := e.SetProperty(args[0], args[1], args[2], args[3])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	fmt.Printf("%s %s:%s %s = %q\n", okStyle.Render("updated"), args[0], args[1], args[2], args[3])
	fmt.Printf("backup: %s\n", mutedStyle.Render(res.BackupPath))
	return nil
}
