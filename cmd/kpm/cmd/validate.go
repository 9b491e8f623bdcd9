package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/validate"
)

var (
	validateLibs     []string
	validateLast     bool
	validateExempted bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the indexed libraries",
	Long: `Validate scans the libraries, then runs the property rules from the
rules file together with the structural, duplicate and pin/pad checks.
The report is kept in the cache directory as the last run.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringSliceVarP(&validateLibs, "lib", "l", nil, "limit validation to these symbol libraries")
	validateCmd.Flags().BoolVar(&validateLast, "last", false, "show the last report instead of running")
	validateCmd.Flags().BoolVar(&validateExempted, "exempted", false, "also list exempted failures")
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}

	var report *validate.Report
	if validateLast {
		report, err = e.LastReport()
	} else {
		printDiagnostics(e.Scan(cmd.Context()).Diagnostics())
		report, err = e.Validate(validateLibs...)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(report)
	}
	showReport(report)
	return nil
}

func showReport(r *validate.Report) {
	scope := r.Scope
	if r.TargetLib != "" {
		scope += " (" + r.TargetLib + ")"
	}
	fmt.Printf("%s %s\n", titleStyle.Render("Validation"), mutedStyle.Render(r.Timestamp+" "+r.RunID))
	fmt.Printf("  Scope:   %s\n", scope)
	fmt.Printf("  Status:  %s\n", statusStyle(r.Status).Render(r.Status))
	fmt.Printf("  Checked: %d\n", r.Stats.TotalChecked)
	fmt.Printf("  Fails:   %d\n", r.Stats.TotalFails)
	fmt.Println()

	for _, f := range r.Failures {
		printFailure(f)
	}
	if validateExempted && len(r.Exempted) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Exempted"))
		for _, f := range r.Exempted {
			fmt.Printf("  %s:%s %s\n", f.Lib, f.Name, mutedStyle.Render(f.Message))
		}
	}
	if len(r.Duplicates) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Duplicate part numbers"))
		for _, d := range r.Duplicates {
			fmt.Printf("  %s: %v\n", d.MPN, d.Parts)
		}
	}
}

func printFailure(f validate.Failure) {
	target := f.Lib
	if f.Name != "" {
		target += ":" + f.Name
	}
	fmt.Printf("  %-7s %s %s\n", severityStyle(f.Severity).Render(f.Severity), target, f.Message)
}
