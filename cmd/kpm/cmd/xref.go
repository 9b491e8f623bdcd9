package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/pkg/kicad/schematic"
)

var xrefFootprint bool

var xrefCmd = &cobra.Command{
	Use:   "xref [lib:name]",
	Short: "Show which projects use a part",
	Long: `Xref rebuilds the cross-index from the projects listed in the
configuration and prints the projects using the given part. With
--footprint the argument is a footprint reference. Without an argument
every indexed part is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runXref,
}

var xrefTreeCmd = &cobra.Command{
	Use:   "tree <root.kicad_sch>",
	Short: "Print the sheet hierarchy of a schematic",
	Args:  cobra.ExactArgs(1),
	RunE:  runXrefTree,
}

func init() {
	rootCmd.AddCommand(xrefCmd)
	xrefCmd.AddCommand(xrefTreeCmd)
	xrefCmd.Flags().BoolVarP(&xrefFootprint, "footprint", "f", false, "look up a footprint reference")
}

func runXref(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	res := e.BuildCrossIndex(cmd.Context())
	printDiagnostics(res.Diagnostics)
	ix := res.Index

	if len(args) == 0 {
		if jsonOutput {
			return printJSON(ix)
		}
		ids := make([]string, 0, len(ix.ProjectIndex))
		for id := range ix.ProjectIndex {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("%s: %s\n", id, strings.Join(ix.ProjectsUsing(id), ", "))
		}
		return nil
	}

	ref := args[0]
	if xrefFootprint {
		if jsonOutput {
			return printJSON(map[string]any{"projects": ix.ProjectsUsingFootprint(ref), "parts": ix.FootprintParts[ref]})
		}
		for _, p := range ix.ProjectsUsingFootprint(ref) {
			fmt.Printf("%s: %s\n", p, strings.Join(ix.FootprintParts[ref][p], ", "))
		}
		return nil
	}

	if jsonOutput {
		return printJSON(map[string]any{"projects": ix.ProjectsUsing(ref), "usage": ix.Usage(ref)})
	}
	projects := ix.ProjectsUsing(ref)
	if len(projects) == 0 {
		fmt.Println(mutedStyle.Render("not used by any project"))
		return nil
	}
	usage := ix.Usage(ref)
	for _, p := range projects {
		fmt.Printf("%s (%d)\n", p, usage[p])
	}
	return nil
}

func runXrefTree(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	root, err := e.Hierarchy(args[0])
	if err != nil {
		return fmt.Errorf("error reading schematic: %w", err)
	}
	if jsonOutput {
		return printJSON(root)
	}
	printSheet(root, 0)
	return nil
}

func printSheet(n *schematic.SheetNode, depth int) {
	indent := strings.Repeat("  ", depth)
	label := n.Name
	if label == "" {
		label = n.File
	}
	switch {
	case n.Recursive:
		fmt.Printf("%s%s %s\n", indent, label, warningStyle.Render("(recursive)"))
	case n.Err != "":
		fmt.Printf("%s%s %s\n", indent, label, errorStyle.Render(n.Err))
	default:
		fmt.Printf("%s%s %s\n", indent, label, mutedStyle.Render(n.UUIDPath))
	}
	for _, c := range n.Children {
		printSheet(c, depth+1)
	}
}
