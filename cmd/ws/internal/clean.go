package internal

import (
	"github.com/spf13/cobra"
)

var cleanForce bool

var cleanCmd = &cobra.Command{
	Use:   "clean [projects...]",
	Short: "Clean projects",
	Long: `Clean asks the build tool of each named project, or of all projects if none
are named, to remove its outputs. With --force the build directory is removed
instead.`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanForce, "force", "f", false, "Remove the build directory")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	b, err := loadBuilder()
	if err != nil {
		return err
	}
	return b.Clean(cmd.Context(), cleanForce, args...)
}
