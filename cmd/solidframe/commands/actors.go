package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var actorsCmd = &cobra.Command{
	Use:   "actors",
	Short: "List every actor hosted across every reactor",
	RunE:  runActors,
}

func runActors(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := dialAdmin(grpcAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.ListActors(ctx)
	if err != nil {
		return err
	}

	return printStruct(resp)
}
