package internal

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/goplus/ws/internal/dryrun"
	"github.com/goplus/ws/pkgs/buildsys"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env project [-- command [args...]]",
	Short: "Print or run a command in the environment of a project",
	Long: `Env prints the environment the project builds with. Given a command, it runs
the command in that environment instead, from the current directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnv,
}

func init() {
	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, args []string) error {
	b, err := loadBuilder()
	if err != nil {
		return err
	}
	env, err := b.Env(args[0])
	if err != nil {
		return err
	}
	if len(args) == 1 {
		for _, kv := range buildsys.Environ(env) {
			printf(cmd, "%s\n", kv)
		}
		return nil
	}

	log.Debugf("running %s", strings.Join(args[1:], " "))
	if dryrun.Enabled() {
		return nil
	}
	c := exec.CommandContext(cmd.Context(), args[1], args[2:]...)
	c.Env = buildsys.Environ(env)
	c.Stdin = os.Stdin
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}
	return nil
}
