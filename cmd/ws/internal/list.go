package internal

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects in build order",
	Long:  `List prints every project in the order it would be built, marking projects whose sources changed since their last build.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	b, err := loadBuilder()
	if err != nil {
		return err
	}
	order, err := b.Graph.DependencyClosure(b.Graph.Names()...)
	if err != nil {
		return err
	}
	for _, name := range order {
		p, _ := b.Graph.Project(name)
		stale, err := b.Stale(cmd.Context(), name)
		if err != nil {
			return err
		}
		mark := " "
		if stale {
			mark = "*"
		}
		printf(cmd, "%s %s (%s)\n", mark, name, p.Build)
	}
	return nil
}
