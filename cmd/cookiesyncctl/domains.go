package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
)

func newDomainsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domains",
		Short: "Manage cached per-domain configurations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached domain configurations",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				configs := c.stack.Registry.DomainConfigs.Get()
				c.out.line("storage key %s", emphasis(c.stack.Registry.Keys.LastKnownKey()))
				if len(configs) == 0 {
					c.out.line("%s", dim("no cached domain configurations"))
					return nil
				}
				for _, domain := range configs.Domains() {
					c.out.line("  %s %s", emphasis(domain), string(configs[domain]))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <domain> <json>",
			Short: "Store the configuration blob of one domain",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				domain, blob := args[0], []byte(args[1])
				if !json.Valid(blob) {
					return fmt.Errorf("configuration for %s is not valid JSON", domain)
				}
				patch := model.DomainConfigPatch{domain: json.RawMessage(blob)}
				if err := c.stack.Registry.DomainConfigs.Update(cmd.Context(), patch); err != nil {
					return err
				}
				c.out.success("Saved configuration for %s", emphasis(domain))
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <domain>",
			Short: "Remove the configuration of one domain",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				domain := args[0]
				if _, ok := c.stack.Registry.DomainConfigs.Get()[domain]; !ok {
					return fmt.Errorf("no configuration cached for %s", domain)
				}
				if err := c.stack.Registry.DomainConfigs.Update(cmd.Context(), model.DomainConfigPatch{domain: nil}); err != nil {
					return err
				}
				c.out.success("Removed configuration for %s", emphasis(domain))
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Discard every cached domain configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := c.stack.Registry.DomainConfigs.Reset(cmd.Context()); err != nil {
					return err
				}
				c.out.success("Domain configurations cleared")
				return nil
			},
		},
	)
	return cmd
}
