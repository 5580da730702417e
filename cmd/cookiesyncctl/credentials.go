package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
)

var errNothingToSet = errors.New("nothing to set: pass at least one flag")

func newCredentialsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the Cloudflare credentials used for syncing",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the stored credentials with the token masked",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if err := c.stack.Registry.CredentialsErr(); err != nil {
					return err
				}
				showCredential(c, c.stack.Registry.Credentials.Get())
				return nil
			},
		},
		newCredentialsSetCmd(c),
		&cobra.Command{
			Use:   "reset",
			Short: "Clear the stored credentials",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := c.stack.Registry.Credentials.Reset(cmd.Context()); err != nil {
					return err
				}
				c.out.success("Credentials cleared")
				return nil
			},
		},
	)
	return cmd
}

func newCredentialsSetCmd(c *cli) *cobra.Command {
	var token, accountID, namespaceID string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update one or more credential fields in a single commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var patch model.CredentialPatch
			if cmd.Flags().Changed("token") {
				patch.Token = &token
			}
			if cmd.Flags().Changed("account-id") {
				patch.AccountID = &accountID
			}
			if cmd.Flags().Changed("namespace-id") {
				patch.NamespaceID = &namespaceID
			}
			if patch == (model.CredentialPatch{}) {
				return errNothingToSet
			}

			if err := c.stack.Registry.Credentials.Update(cmd.Context(), patch); err != nil {
				return err
			}
			c.out.success("Credentials saved")
			showCredential(c, c.stack.Registry.Credentials.Get())
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Cloudflare API token")
	cmd.Flags().StringVar(&accountID, "account-id", "", "Cloudflare account id")
	cmd.Flags().StringVar(&namespaceID, "namespace-id", "", "Workers KV namespace id")
	return cmd
}

func showCredential(c *cli, cred model.Credential) {
	token := dim("(not set)")
	if cred.Token != "" {
		token = "********"
	}
	c.out.field("token", token)
	c.out.field("account id", orUnset(cred.AccountID))
	c.out.field("namespace id", orUnset(cred.NamespaceID))
	if url := cred.NamespaceDashboardURL(); url != "" {
		c.out.hint("Namespace: %s", url)
	}
	if !c.stack.Sealed {
		c.out.hint("Set %s to store a token", emphasis("COOKIESYNC_SECRET_KEY"))
	}
}

func orUnset(v string) string {
	if v == "" {
		return dim("(not set)")
	}
	return v
}
