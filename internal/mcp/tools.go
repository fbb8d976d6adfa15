package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/solidframe/solidframe/internal/reactor"
	"github.com/solidframe/solidframe/internal/store"
)

// ListActorsArgs are the arguments for the list_actors tool. It takes
// none, but the struct exists so mcp.AddTool can derive a schema.
type ListActorsArgs struct{}

// ActorInfo describes one actor hosted on a reactor.
type ActorInfo struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Events uint32 `json:"events"`
}

// ReactorActors groups the actors hosted on one reactor.
type ReactorActors struct {
	Index  int         `json:"index"`
	Load   int         `json:"load"`
	Actors []ActorInfo `json:"actors"`
}

// ListActorsResult is the result of the list_actors tool.
type ListActorsResult struct {
	Reactors []ReactorActors `json:"reactors"`
}

func (s *Server) handleListActors(ctx context.Context,
	req *mcp.CallToolRequest, args ListActorsArgs) (*mcp.CallToolResult, ListActorsResult, error) {

	result := ListActorsResult{
		Reactors: make([]ReactorActors, 0, s.sched.NumReactors()),
	}

	for i := 0; i < s.sched.NumReactors(); i++ {
		r := s.sched.Reactor(i)

		actors := make([]ActorInfo, 0)
		for _, a := range r.ListActors() {
			actors = append(actors, ActorInfo{
				ID:     a.ID.String(),
				State:  a.State.String(),
				Events: uint32(a.Events),
			})
		}

		result.Reactors = append(result.Reactors, ReactorActors{
			Index:  i,
			Load:   r.Load(),
			Actors: actors,
		})
	}

	return nil, result, nil
}

// ReactorStatsArgs are the arguments for the reactor_stats tool.
type ReactorStatsArgs struct{}

// ReactorLoad reports one reactor's current load.
type ReactorLoad struct {
	Index int `json:"index"`
	Load  int `json:"load"`
}

// ReactorStatsResult is the result of the reactor_stats tool.
type ReactorStatsResult struct {
	Reactors []ReactorLoad `json:"reactors"`
}

func (s *Server) handleReactorStats(ctx context.Context,
	req *mcp.CallToolRequest, args ReactorStatsArgs) (*mcp.CallToolResult, ReactorStatsResult, error) {

	result := ReactorStatsResult{
		Reactors: make([]ReactorLoad, 0, s.sched.NumReactors()),
	}

	for i := 0; i < s.sched.NumReactors(); i++ {
		result.Reactors = append(result.Reactors, ReactorLoad{
			Index: i,
			Load:  s.sched.Reactor(i).Load(),
		})
	}

	return nil, result, nil
}

// BufferPoolStatsArgs are the arguments for the buffer_pool_stats tool.
type BufferPoolStatsArgs struct{}

// ClassStat reports accounting for one buffer size class.
type ClassStat struct {
	ClassIndex  int `json:"class_index"`
	Capacity    int `json:"capacity"`
	Outstanding int `json:"outstanding"`
	Cached      int `json:"cached"`
	Allocated   int `json:"allocated"`
	Freed       int `json:"freed"`
}

// ReactorPoolStats groups the size-class stats for one reactor's pool.
type ReactorPoolStats struct {
	Index   int         `json:"index"`
	Classes []ClassStat `json:"classes"`
}

// BufferPoolStatsResult is the result of the buffer_pool_stats tool.
type BufferPoolStatsResult struct {
	Reactors []ReactorPoolStats `json:"reactors"`
}

func (s *Server) handleBufferPoolStats(ctx context.Context,
	req *mcp.CallToolRequest, args BufferPoolStatsArgs) (*mcp.CallToolResult, BufferPoolStatsResult, error) {

	result := BufferPoolStatsResult{
		Reactors: make([]ReactorPoolStats, 0, s.sched.NumReactors()),
	}

	for i := 0; i < s.sched.NumReactors(); i++ {
		r := s.sched.Reactor(i)

		classes := make([]ClassStat, 0)
		for _, cs := range r.Pool().Stats() {
			classes = append(classes, ClassStat{
				ClassIndex:  cs.ClassIndex,
				Capacity:    cs.Capacity,
				Outstanding: cs.Outstanding,
				Cached:      cs.Cached,
				Allocated:   cs.Allocated,
				Freed:       cs.Freed,
			})
		}

		result.Reactors = append(result.Reactors, ReactorPoolStats{
			Index:   i,
			Classes: classes,
		})
	}

	return nil, result, nil
}

// PostEventArgs are the arguments for the post_event tool.
type PostEventArgs struct {
	ReactorIndex    int    `json:"reactor_index" jsonschema:"Index of the reactor hosting the actor"`
	ActorIndex      uint32 `json:"actor_index" jsonschema:"Index half of the target ActorID"`
	ActorGeneration uint32 `json:"actor_generation" jsonschema:"Generation half of the target ActorID"`
	EventMask       uint32 `json:"event_mask" jsonschema:"Bitmask of events to post"`
}

// PostEventResult is the result of the post_event tool.
type PostEventResult struct {
	Posted bool `json:"posted"`
}

func (s *Server) handlePostEvent(ctx context.Context,
	req *mcp.CallToolRequest, args PostEventArgs) (*mcp.CallToolResult, PostEventResult, error) {

	if args.ReactorIndex < 0 || args.ReactorIndex >= s.sched.NumReactors() {
		return nil, PostEventResult{}, fmt.Errorf(
			"reactor_index %d out of range [0, %d)",
			args.ReactorIndex, s.sched.NumReactors(),
		)
	}

	id := reactor.ActorID{
		Index:      args.ActorIndex,
		Generation: args.ActorGeneration,
	}
	mask := reactor.EventMask(args.EventMask)

	s.sched.Reactor(args.ReactorIndex).PostEvent(id, mask)

	if s.auditStore != nil {
		_, err := s.auditStore.Queries().InsertAuditRecord(ctx, store.AuditRecord{
			ActorIndex:      id.Index,
			ActorGeneration: id.Generation,
			ReactorID:       args.ReactorIndex,
			Event:           fmt.Sprintf("post_event:%d", mask),
			RecordedAt:      time.Now(),
		})
		if err != nil {
			return nil, PostEventResult{}, fmt.Errorf("audit record: %w", err)
		}
	}

	return nil, PostEventResult{Posted: true}, nil
}
