package internal

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/goplus/ws/internal/manifest"
	"github.com/goplus/ws/internal/workspace"
	"github.com/spf13/cobra"
)

var initType string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a workspace",
	Long: `Init creates a workspace below the .ws directory, creating .ws in the current
directory if none exists above it. The first workspace becomes the default.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initType, "type", "t", "debug", "Build type (debug or release)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := findRoot()
	if errors.Is(err, workspace.ErrNoRoot) {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		root = filepath.Join(cwd, workspace.RootName)
	} else if err != nil {
		return err
	}

	// Refuse to create a workspace nothing could be built in.
	if _, err := manifest.Parse(root); err != nil {
		return err
	}

	ws, err := workspace.Init(root, wsName, initType)
	if err != nil {
		return err
	}
	printf(cmd, "Initialized %s workspace %s in %s\n", initType, ws.Name, ws.Dir)
	return nil
}
