package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgforge/soar/pkg/hooks"
)

// NewHookCmd creates the hook command.
func NewHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Work with package hook scripts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "template TYPE",
		Short:     "Print a starter Tengo script for a hook type",
		Args:      cobra.ExactArgs(1),
		ValidArgs: hookTypeNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := hooks.HookType(args[0])
			for _, known := range hooks.Types {
				if known == t {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), hooks.HookTemplate(t))
					return nil
				}
			}
			return fmt.Errorf("unknown hook type %q (valid: %v)", args[0], hookTypeNames())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show PACKAGE",
		Short: "Show which hooks are configured for a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			manager, err := hooks.LoadFromConfig(cfg.Hooks)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, t := range hooks.Types {
				state := "-"
				if manager.HasHook(args[0], t) {
					state = "configured"
				}
				_, _ = fmt.Fprintf(out, "%s: %s\n", t, state)
			}
			return nil
		},
	})

	return cmd
}

func hookTypeNames() []string {
	names := make([]string, 0, len(hooks.Types))
	for _, t := range hooks.Types {
		names = append(names, string(t))
	}
	return names
}
