package internal

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [projects...]",
	Short: "Build projects and their dependencies",
	Long: `Build brings the named projects and everything they depend on up to date,
or all projects if none are named.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	b, err := loadBuilder()
	if err != nil {
		return err
	}
	results, err := b.Build(cmd.Context(), args...)
	if err != nil {
		return err
	}
	built := 0
	for _, r := range results {
		if r.Built {
			built++
		}
	}
	printf(cmd, "%d built, %d up to date\n", built, len(results)-built)
	return nil
}
