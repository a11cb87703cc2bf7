package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/invex/internal/config"
	"github.com/jackzampolin/invex/internal/output"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the workspace and write a default config",
	Long: `Create the workspace directories, write a commented default config.yaml
and install the sample invoice schemas. Existing schemas are never
overwritten; an existing config is only replaced with --force.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if err := e.home.EnsureExists(); err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			path = e.home.ConfigPath()
		}
		if err := config.WriteDefault(path, configInitForce); err != nil {
			return err
		}
		installed, err := e.home.SeedBuiltins()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Wrote %s\n", path)
		for _, p := range installed {
			fmt.Fprintf(out, "Installed %s\n", p)
		}
		fmt.Fprintf(out, "Put documents in %s and run `invex convert`.\n", e.home.DocsDir())
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		entry, err := store.Get(args[0])
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%s is not set", args[0])
		}
		if structured() {
			return output.Write(cmd.OutOrStdout(), format, entry)
		}
		fmt.Fprintln(cmd.OutOrStdout(), output.FormatValue(entry.Value))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting in the config file",
	Long: `Change one setting in the config file. Values are read as YAML, so
numbers and booleans keep their type.

Examples:
  invex config set runs.count 10
  invex config set defaults.model gpt4o-mini
  invex config set models.o3.deployment o3-2025-04-16`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Set(args[0], config.ParseValue(args[1])); err != nil {
			return err
		}
		return checkConfig(cmd)
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset <key>",
	Short: "Reset one setting to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := config.ResetToDefault(store, args[0]); err != nil {
			return err
		}
		return checkConfig(cmd)
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings with their defaults applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		all, err := store.GetAll()
		if err != nil {
			return err
		}
		entries := config.SortedEntries(all)
		if structured() {
			return output.Write(cmd.OutOrStdout(), format, entries)
		}
		records := make([][]string, len(entries))
		for i, e := range entries {
			records[i] = []string{e.Key, output.FormatValue(e.Value), e.Description}
		}
		output.WriteRecords(cmd.OutOrStdout(), []string{"Key", "Value", "Description"}, records)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
}

func openStore() (*config.FileStore, error) {
	e, err := loadEnv()
	if err != nil {
		return nil, err
	}
	return config.NewFileStore(e.configPath())
}

// checkConfig reloads the edited file and reports problems without undoing
// the change.
func checkConfig(cmd *cobra.Command) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	if err := e.cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: config is now invalid:\n%v\n", err)
	}
	return nil
}
