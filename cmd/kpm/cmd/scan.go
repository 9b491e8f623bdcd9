package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Refresh the symbol and footprint library caches",
	Long: `Scan walks the configured symbol and footprint paths, re-parses the
symbol libraries whose modification time changed and rewrites the caches.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	res := e.Scan(cmd.Context())

	if jsonOutput {
		return printJSON(map[string]any{
			"symbols":     res.Symbols.Meta,
			"footprints":  res.Footprints.Meta,
			"parsed":      res.Symbols.Parsed,
			"removed":     res.Symbols.Removed,
			"diagnostics": res.Diagnostics(),
		})
	}

	printDiagnostics(res.Diagnostics())
	fmt.Println(titleStyle.Render("Symbol libraries"))
	fmt.Printf("  Libraries: %d\n", len(e.Store().Libraries()))
	fmt.Printf("  Symbols:   %d\n", e.Store().Len())
	fmt.Printf("  Parsed:    %d file(s)\n", len(res.Symbols.Parsed))
	if len(res.Symbols.Removed) > 0 {
		fmt.Printf("  Removed:   %d file(s)\n", len(res.Symbols.Removed))
	}
	fmt.Printf("  Cache:     %s\n", mutedStyle.Render(res.Symbols.Meta.CacheHash))
	fmt.Println()
	fmt.Println(titleStyle.Render("Footprint libraries"))
	fmt.Printf("  Libraries: %d\n", e.Libraries().Len())
	return nil
}
