package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"chatwidget-cli/cmd/config"
	"chatwidget-cli/cmd/utils"

	"github.com/spf13/cobra"
)

var initForce bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a chatwidget.yaml with default settings",
	Long:  `Write a chatwidget.yaml with the default settings into the current directory (or a target path).`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := utils.GetEffectiveCWD()
		if len(args) > 0 {
			dir = args[0]
		}
		path, err := writeDefaultConfig(dir, initForce)
		if err != nil {
			return err
		}
		OutputSuccess("Wrote %s", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

// writeDefaultConfig creates dir/chatwidget.yaml. Any existing chatwidget
// config in dir blocks the write unless force is set.
func writeDefaultConfig(dir string, force bool) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if existing, err := config.FindConfigFile(dir); err == nil && !force {
		return "", fmt.Errorf("config already exists (found %s); use --force to overwrite", existing)
	}
	path := filepath.Join(dir, config.SupportedConfigFiles[0])
	if err := config.SaveConfig(config.Default(), path); err != nil {
		return "", err
	}
	return path, nil
}
