package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	postReactorIndex int
	postActorIndex   uint32
	postActorGen     uint32
	postEventMask    uint32
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Post an event mask to a specific actor",
	RunE:  runPost,
}

func init() {
	postCmd.Flags().IntVar(
		&postReactorIndex, "reactor", 0,
		"Index of the reactor hosting the actor",
	)
	postCmd.Flags().Uint32Var(
		&postActorIndex, "actor-index", 0,
		"Index half of the target actor ID",
	)
	postCmd.Flags().Uint32Var(
		&postActorGen, "actor-generation", 0,
		"Generation half of the target actor ID",
	)
	postCmd.Flags().Uint32Var(
		&postEventMask, "event-mask", 0,
		"Bitmask of events to post",
	)
}

func runPost(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := dialAdmin(grpcAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.PostEvent(
		ctx, postReactorIndex, postActorIndex, postActorGen, postEventMask,
	)
	if err != nil {
		return err
	}

	return printStruct(resp)
}
