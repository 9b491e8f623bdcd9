package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Locate footprint and 3D model files",
}

var resolveFootprintCmd = &cobra.Command{
	Use:   "footprint <lib:name>",
	Short: "Find a footprint file and its 3D model",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolveFootprint,
}

var resolveModelCmd = &cobra.Command{
	Use:   "model <model-ref> <footprint-file>",
	Short: "Resolve a 3D model reference as written in a footprint",
	Args:  cobra.ExactArgs(2),
	RunE:  runResolveModel,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.AddCommand(resolveFootprintCmd)
	resolveCmd.AddCommand(resolveModelCmd)
}

func runResolveFootprint(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	printDiagnostics(e.LoadLibraries())

	r := e.Resolver()
	path, err := r.FindFootprint(args[0])
	if err != nil {
		return err
	}
	mod, err := r.Footprint(args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{
			"file":       path,
			"pads":       len(mod.Pads),
			"model":      mod.Model,
			"model_path": mod.ModelPath,
		})
	}
	fmt.Printf("File:  %s\n", path)
	fmt.Printf("Pads:  %d\n", len(mod.Pads))
	if mod.Model != "" {
		model := mod.ModelPath
		if model == "" {
			model = warningStyle.Render("not found")
		}
		fmt.Printf("Model: %s\n", mod.Model)
		fmt.Printf("       %s\n", model)
	}
	return nil
}

func runResolveModel(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	path, err := e.Resolver().ResolveModel(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
