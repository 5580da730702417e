package main

import (
	"github.com/spf13/cobra"
)

func newKeyCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Inspect or change the storage key",
		Long: `The storage key selects the partition of the remote store cookies are
synced to. Changing it discards every cached domain configuration.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the active storage key",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				c.out.line("%s", c.stack.Registry.Keys.LastKnownKey())
				return nil
			},
		},
		&cobra.Command{
			Use:   "commit <key>",
			Short: "Commit a new storage key; an empty key selects the default",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				keys := c.stack.Registry.Keys
				from := keys.LastKnownKey()

				changed, err := keys.CommitKeyIfChanged(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				to := keys.LastKnownKey()
				if !changed {
					c.out.success("Storage key unchanged (%s)", emphasis(to))
					return nil
				}
				c.out.success("Storage key changed from %s to %s", emphasis(from), emphasis(to))
				c.out.hint("Cached domain configurations were cleared")
				return nil
			},
		},
	)
	return cmd
}
