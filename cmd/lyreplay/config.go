package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karolbroda.com/lyreplay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "configuration file utilities",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "write the example config file",
	Long:  `write the commented example config to --config or the default location.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := targetConfigPath()
		if err != nil {
			return err
		}
		if err := config.CreateConfigFile(path); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print the effective configuration",
	Long:  `print the configuration after merging defaults, the config file, environment and flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return cfg.Encode(os.Stdout)
	},
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "print the commented example config",
	Run: func(cmd *cobra.Command, args []string) {
		os.Stdout.Write(config.ExampleConfig())
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := targetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configExampleCmd)
}

func targetConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}
