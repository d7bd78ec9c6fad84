package main

import (
	"fmt"

	"github.com/danmuck/spikectl/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or check spikectl config files.",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		kind  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a config template.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s config to %s\n", kind, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "deployment", "template kind: deployment or service")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Parse and validate a config file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "deployment":
				cfg, err := config.LoadDeployment(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok: deployment %s/%s owner=%s controller=%s\n",
					cfg.TokenA.Symbol, cfg.TokenB.Symbol, cfg.Owner, cfg.Controller)
			case "service":
				cfg, err := loadServiceConfig(args[0])
				if err != nil {
					return err
				}
				applyEnv(&cfg)
				if err := validateServiceConfig(cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok: service %s on %s\n", cfg.Name, cfg.Addr)
			default:
				return fmt.Errorf("unknown config kind: %s", kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "deployment", "config kind: deployment or service")
	return cmd
}
