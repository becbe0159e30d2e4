package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid API access token",
		Long:  `Fetch an access token from the platform, or print the cached one if it is still valid.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd.Context())
		},
	}

	return cmd
}

func runToken(ctx context.Context) error {
	config, err := LoadConfig()
	if err != nil {
		return err
	}

	client, err := newClient(config)
	if err != nil {
		return err
	}

	token, err := client.AccessToken(ctx)
	if err != nil {
		return err
	}

	fmt.Println(token)

	return nil
}
