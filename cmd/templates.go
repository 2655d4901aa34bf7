package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coastertools/buildscale/internal/rules"
)

var templatesListDir string

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the loaded document templates, rules and scale factors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := templatesListDir
		tbl, err := rules.Load(dir)
		if err != nil {
			return err
		}

		fmt.Printf("Templates from %s\n", dir)
		fmt.Print("Scales:")
		for _, f := range tbl.Scales {
			fmt.Printf(" %s", f)
		}
		fmt.Println()
		for _, dt := range tbl.Types {
			fmt.Printf("\n%s (%s, match %q, root <%s>, naming %s)\n",
				dt.Name, dt.Role, dt.Match, dt.Root, dt.Naming)
			for _, a := range dt.Assets {
				fmt.Printf("  asset %s\n", a)
			}
			for _, r := range dt.Rules {
				fmt.Printf("  rule %-24s %-16s %s\n", r.Name, r.Kind, r.Path)
			}
		}
		return nil
	},
}

func init() {
	templatesCmd.Flags().StringVarP(&templatesListDir, "templates", "t", "templates", "Directory holding the rule template files")
	rootCmd.AddCommand(templatesCmd)
}
