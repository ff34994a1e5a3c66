package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/internal/logger"
	"github.com/pkgforge/soar/pkg/config"
	"github.com/pkgforge/soar/pkg/errors"
)

// NewConfigCmd creates the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  "View and modify soar configuration settings",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigGetCmd(),
		newConfigInitCmd(),
		newConfigPathCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asYAML {
				return runConfigShowYAML(cmd)
			}
			return runConfigShow(cmd, args)
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the effective configuration as YAML")

	return cmd
}

func runConfigShowYAML(cmd *cobra.Command) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := cfg.ToYAML()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// Number of arguments expected by the set command.
const setCommandArgs = 2

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration key to a specific value. Keys: " + fmt.Sprint(sortedKeys()),
		Args:  cobra.ExactArgs(setCommandArgs),
		RunE: func(_ *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			value, err := cfg.GetValue(args[0])
			if err != nil {
				return fmt.Errorf("failed to get configuration value: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  "Create a default configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration file")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), configPath())
		},
	}
}

func sortedKeys() []string {
	keys := config.Keys()
	sort.Strings(keys)
	return keys
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	tabWriter := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tabWriter, "SETTING\tVALUE")
	_, _ = fmt.Fprintln(tabWriter, "-------\t-----")
	settings := cfg.ToMap()
	for _, key := range sortedKeys() {
		_, _ = fmt.Fprintf(tabWriter, "%s\t%s\n", key, settings[key])
	}
	_ = tabWriter.Flush()

	_, _ = fmt.Fprintf(out, "\nProfiles (%d):\n", len(cfg.Profiles))
	for name, p := range cfg.Profiles {
		_, _ = fmt.Fprintf(out, "  %s: %s\n", name, p.Root())
	}

	_, _ = fmt.Fprintf(out, "\nRepositories (%d):\n", len(cfg.Repositories))
	for _, repo := range cfg.Repositories {
		status := "enabled"
		if !repo.IsEnabled() {
			status = "disabled"
		}
		_, _ = fmt.Fprintf(out, "  %s: %s (%s)\n", repo.Name, repo.URL, status)
	}
	return nil
}

func runConfigSet(key, value string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.SetValue(key, value); err != nil {
		return fmt.Errorf("failed to set configuration value: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrapf(errors.ErrConfigValidation, "%s", err.Error())
	}
	if err := cfg.SaveConfig(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	logger.Success("Configuration updated", logger.Fields{"key": key, "value": value})
	return nil
}

func runConfigInit(force bool) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().SaveConfig(path); err != nil {
		return fmt.Errorf("failed to save default configuration: %w", err)
	}
	logger.Success("Configuration file created", logger.Fields{"path": path})
	return nil
}

func configPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}
	return config.GetDefaultConfigPath()
}
