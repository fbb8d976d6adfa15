package commands

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// dialTimeout bounds how long the CLI waits to connect to solidframed.
const dialTimeout = 2 * time.Second

// adminClient is a thin client for the hand-built admin gRPC service
// exposed by internal/api/grpc. It dials once per invocation and calls
// methods by their full RPC path, since no protoc-generated client
// stub exists for this service (see DESIGN.md).
type adminClient struct {
	conn *grpc.ClientConn
}

func dialAdmin(addr string) (*adminClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	return &adminClient{conn: conn}, nil
}

func (c *adminClient) Close() error {
	return c.conn.Close()
}

func (c *adminClient) call(ctx context.Context, method string,
	req *structpb.Struct) (*structpb.Struct, error) {

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	out := new(structpb.Struct)
	err := c.conn.Invoke(ctx, "/solidframe.admin.v1.Admin/"+method, req, out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

func (c *adminClient) ListActors(ctx context.Context) (*structpb.Struct, error) {
	return c.call(ctx, "ListActors", &structpb.Struct{})
}

func (c *adminClient) ReactorStats(ctx context.Context) (*structpb.Struct, error) {
	return c.call(ctx, "ReactorStats", &structpb.Struct{})
}

func (c *adminClient) BufferPoolStats(ctx context.Context) (*structpb.Struct, error) {
	return c.call(ctx, "BufferPoolStats", &structpb.Struct{})
}

func (c *adminClient) PostEvent(ctx context.Context, reactorIdx int,
	actorIdx, actorGen, eventMask uint32) (*structpb.Struct, error) {

	req, err := structpb.NewStruct(map[string]interface{}{
		"reactor_index":    float64(reactorIdx),
		"actor_index":      float64(actorIdx),
		"actor_generation": float64(actorGen),
		"event_mask":       float64(eventMask),
	})
	if err != nil {
		return nil, err
	}

	return c.call(ctx, "PostEvent", req)
}
