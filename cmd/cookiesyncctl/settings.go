package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/cookiesync/internal/domain/model"
)

func newSettingsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage sync settings",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the sync settings",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				s := c.stack.Registry.Settings.Get()
				c.out.field("storage key", emphasis(s.EffectiveStorageKey()))
				c.out.field("protobuf encoding", s.ProtobufEncoding)
				return nil
			},
		},
		&cobra.Command{
			Use:       "encoding <on|off>",
			Short:     "Enable or disable protobuf encoding of synced cookies",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"on", "off"},
			RunE: func(cmd *cobra.Command, args []string) error {
				enabled, err := parseSwitch(args[0])
				if err != nil {
					return err
				}
				if err := c.stack.Registry.Settings.Update(cmd.Context(), model.SettingsPatch{ProtobufEncoding: &enabled}); err != nil {
					return err
				}
				c.out.success("Protobuf encoding %s", map[bool]string{true: "enabled", false: "disabled"}[enabled])
				return nil
			},
		},
	)
	return cmd
}

func parseSwitch(v string) (bool, error) {
	switch v {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", v)
	}
	return b, nil
}
