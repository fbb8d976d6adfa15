package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show reactor load and buffer pool stats",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := dialAdmin(grpcAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	reactors, err := client.ReactorStats(ctx)
	if err != nil {
		return err
	}
	if err := printStruct(reactors); err != nil {
		return err
	}

	pools, err := client.BufferPoolStats(ctx)
	if err != nil {
		return err
	}
	return printStruct(pools)
}
