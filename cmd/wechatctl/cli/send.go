package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func NewSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <openid> <text>",
		Short: "Send a text message to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), args[0], args[1])
		},
	}

	return cmd
}

func runSend(ctx context.Context, openID, text string) error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}

	client, err := newClient(config)
	if err != nil {
		return err
	}

	if err := client.SendText(ctx, openID, text); err != nil {
		return err
	}

	fmt.Printf("Message sent to %s\n", openID)

	return nil
}
