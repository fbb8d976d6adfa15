package adminrpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solidframe/solidframe/internal/reactor"
	"github.com/solidframe/solidframe/internal/store"
)

// AdminServer is the admin RPC surface. Request and response payloads are
// google.golang.org/protobuf/types/known/structpb.Struct, an
// already-compiled proto message, since no protoc toolchain is available
// in this environment to generate real .pb.go stubs from a .proto
// definition (see DESIGN.md).
type AdminServer interface {
	ListActors(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReactorStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BufferPoolStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PostEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ListActors reports every actor hosted across every reactor in the
// scheduler, grouped by reactor index.
func (s *Server) ListActors(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	reactors := make([]interface{}, 0, s.sched.NumReactors())

	for i := 0; i < s.sched.NumReactors(); i++ {
		r := s.sched.Reactor(i)
		actors := make([]interface{}, 0)
		for _, a := range r.ListActors() {
			actors = append(actors, map[string]interface{}{
				"id":     a.ID.String(),
				"state":  a.State.String(),
				"events": float64(a.Events),
			})
		}
		reactors = append(reactors, map[string]interface{}{
			"index":  float64(i),
			"load":   float64(r.Load()),
			"actors": actors,
		})
	}

	return structpb.NewStruct(map[string]interface{}{"reactors": reactors})
}

// ReactorStats reports per-reactor load.
func (s *Server) ReactorStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	reactors := make([]interface{}, 0, s.sched.NumReactors())
	for i := 0; i < s.sched.NumReactors(); i++ {
		reactors = append(reactors, map[string]interface{}{
			"index": float64(i),
			"load":  float64(s.sched.Reactor(i).Load()),
		})
	}

	return structpb.NewStruct(map[string]interface{}{"reactors": reactors})
}

// BufferPoolStats reports per-size-class buffer pool accounting for
// every reactor's pool.
func (s *Server) BufferPoolStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	reactors := make([]interface{}, 0, s.sched.NumReactors())

	for i := 0; i < s.sched.NumReactors(); i++ {
		r := s.sched.Reactor(i)
		classes := make([]interface{}, 0)
		for _, cs := range r.Pool().Stats() {
			classes = append(classes, map[string]interface{}{
				"class_index": float64(cs.ClassIndex),
				"capacity":    float64(cs.Capacity),
				"outstanding": float64(cs.Outstanding),
				"cached":      float64(cs.Cached),
				"allocated":   float64(cs.Allocated),
				"freed":       float64(cs.Freed),
			})
		}
		reactors = append(reactors, map[string]interface{}{
			"index":   float64(i),
			"classes": classes,
		})
	}

	return structpb.NewStruct(map[string]interface{}{"reactors": reactors})
}

// PostEvent posts an event mask to a specific actor, identified by
// reactor index, actor index, and actor generation. Request fields:
// reactor_index, actor_index, actor_generation, event_mask (all numbers).
func (s *Server) PostEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	reactorIdx := int(fields["reactor_index"].GetNumberValue())
	if reactorIdx < 0 || reactorIdx >= s.sched.NumReactors() {
		return nil, status.Errorf(codes.InvalidArgument,
			"reactor_index %d out of range [0, %d)", reactorIdx, s.sched.NumReactors())
	}

	id := reactor.ActorID{
		Index:      uint32(fields["actor_index"].GetNumberValue()),
		Generation: uint32(fields["actor_generation"].GetNumberValue()),
	}
	mask := reactor.EventMask(uint32(fields["event_mask"].GetNumberValue()))

	s.sched.Reactor(reactorIdx).PostEvent(id, mask)

	if s.auditStore != nil {
		_, err := s.auditStore.Queries().InsertAuditRecord(ctx, store.AuditRecord{
			ActorIndex:      id.Index,
			ActorGeneration: id.Generation,
			ReactorID:       reactorIdx,
			Event:           fmt.Sprintf("post_event:%d", mask),
			RecordedAt:      time.Now(),
		})
		if err != nil {
			return nil, status.Errorf(codes.Internal, "audit record: %v", err)
		}
	}

	return structpb.NewStruct(map[string]interface{}{"posted": true})
}

// registerAdminServer registers srv's methods against gs using a
// hand-built grpc.ServiceDesc, since no protoc-generated RegisterXServer
// function exists for this admin surface.
func registerAdminServer(gs *grpc.Server, srv AdminServer) {
	gs.RegisterService(&adminServiceDesc, srv)
}

func adminUnaryHandler(
	methodName string,
	call func(AdminServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) func(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

	return func(srv interface{}, ctx context.Context, dec func(interface{}) error,
		interceptor grpc.UnaryServerInterceptor) (interface{}, error) {

		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/solidframe.admin.v1.Admin/" + methodName,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AdminServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: "solidframe.admin.v1.Admin",
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListActors",
			Handler: adminUnaryHandler("ListActors", func(s AdminServer, ctx context.Context,
				req *structpb.Struct) (*structpb.Struct, error) {
				return s.ListActors(ctx, req)
			}),
		},
		{
			MethodName: "ReactorStats",
			Handler: adminUnaryHandler("ReactorStats", func(s AdminServer, ctx context.Context,
				req *structpb.Struct) (*structpb.Struct, error) {
				return s.ReactorStats(ctx, req)
			}),
		},
		{
			MethodName: "BufferPoolStats",
			Handler: adminUnaryHandler("BufferPoolStats", func(s AdminServer, ctx context.Context,
				req *structpb.Struct) (*structpb.Struct, error) {
				return s.BufferPoolStats(ctx, req)
			}),
		},
		{
			MethodName: "PostEvent",
			Handler: adminUnaryHandler("PostEvent", func(s AdminServer, ctx context.Context,
				req *structpb.Struct) (*structpb.Struct, error) {
				return s.PostEvent(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/api/grpc/service.go",
}
