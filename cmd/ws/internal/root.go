package internal

import (
	"fmt"
	"os"

	"github.com/goplus/ws/internal/build"
	"github.com/goplus/ws/internal/dryrun"
	"github.com/goplus/ws/internal/manifest"
	"github.com/goplus/ws/internal/vcs"
	"github.com/goplus/ws/internal/workspace"
	"github.com/goplus/ws/pkgs/buildsys"
	"github.com/goplus/ws/pkgs/buildsys/builtin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	dryRun  bool
	verbose bool
	wsName  string
)

var rootCmd = &cobra.Command{
	Use:   "ws",
	Short: "ws builds a workspace of interdependent projects",
	Long: `ws builds the projects listed in the workspace manifest in dependency order,
rebuilding only what changed since the last build.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		dryrun.Set(dryRun)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&dryRun, "dry-run", false, "Show what would be done without changing anything")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVarP(&wsName, "workspace", "w", workspace.DefaultName, "Workspace to operate on")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal(err)
	}
}

// findRoot locates the .ws directory above the working directory.
func findRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return workspace.FindRoot(cwd)
}

// loadBuilder opens the selected workspace and its manifest.
func loadBuilder() (*build.Builder, error) {
	root, err := findRoot()
	if err != nil {
		return nil, err
	}
	ws, err := workspace.Open(root, wsName)
	if err != nil {
		return nil, err
	}
	cfg, err := ws.LoadConfig()
	if err != nil {
		return nil, err
	}
	g, err := manifest.Parse(root)
	if err != nil {
		return nil, err
	}
	backends := builtin.NewRegistry(backendOptions(cfg))
	log.Debugf("workspace %s (%s), %d projects", ws.Name, cfg.Type, g.Len())
	return build.NewBuilder(ws, g, backends, vcs.NewGitVCS()), nil
}

// backendOptions maps the workspace config onto backend settings.
func backendOptions(cfg *workspace.Config) buildsys.Options {
	return buildsys.Options{
		BuildType:      cfg.Type,
		Jobs:           cfg.Jobs,
		Python:         cfg.Python,
		CMakeGenerator: cfg.CMakeGenerator,
		CMakeDefines:   cfg.CMakeDefines,
		MesonOptions:   cfg.MesonOptions,
		ConfigureArgs:  cfg.ConfigureArgs,
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
