// Command lessonbot runs the Telegram audio lesson library.
//
//	lessonbot run --config config.yaml
//	lessonbot migrate
//	lessonbot admin grant 123456
//	lessonbot version
//
// The config path falls back to CONFIG_PATH, then ./config.yaml.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/lessonbot/core/buildinfo"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lessonbot:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "lessonbot",
		Short:        "Telegram bot serving audio lessons grouped into books",
		Version:      buildinfo.String(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(
		buildRunCmd(&configPath),
		buildMigrateCmd(&configPath),
		buildAdminCmd(&configPath),
		buildVersionCmd(),
	)
	return root
}
