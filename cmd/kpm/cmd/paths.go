package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/config"
	"github.com/Lars-Kvan/SOFT0001-KiCad-Project-Manager-sub001/internal/paths"
)

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Path root and placeholder helpers",
}

var pathsResolveCmd = &cobra.Command{
	Use:   "resolve <path>...",
	Short: "Expand placeholders and variables into absolute paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := pathResolver()
		if err != nil {
			return err
		}
		for _, p := range r.ResolveList(args...) {
			fmt.Println(p)
		}
		return nil
	},
}

var pathsRelativizeCmd = &cobra.Command{
	Use:   "relativize <path>...",
	Short: "Rewrite paths relative to the path root",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := pathResolver()
		if err != nil {
			return err
		}
		for _, p := range args {
			fmt.Println(r.Relativize(p))
		}
		return nil
	},
}

var pathsSave bool

var pathsDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Pick the path root that resolves the most configured paths",
	Args:  cobra.NoArgs,
	RunE:  runPathsDetect,
}

func init() {
	rootCmd.AddCommand(pathsCmd)
	pathsCmd.AddCommand(pathsResolveCmd)
	pathsCmd.AddCommand(pathsRelativizeCmd)
	pathsCmd.AddCommand(pathsDetectCmd)
	pathsDetectCmd.Flags().BoolVar(&pathsSave, "save", false, "store the detected root and portable paths in the config file")
}

func pathResolver() (*paths.Resolver, error) {
	e, err := newEngine()
	if err != nil {
		return nil, err
	}
	return e.Paths(), nil
}

func runPathsDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stored := cfg.PathRoot
	root := paths.Autodetect(stored, cfg.Samples())
	fmt.Println(root)
	for _, c := range paths.Candidates(stored) {
		marker := " "
		if paths.SamePath(c, root) {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, mutedStyle.Render(c))
	}

	if !pathsSave {
		return nil
	}
	cfg.PathRoot = root
	if err := config.Save(configFile, cfg.Portable(paths.New(root))); err != nil {
		return err
	}
	fmt.Printf("%s %s\n", okStyle.Render("saved"), configFile)
	return nil
}
