package server

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/compute"
	"github.com/frobware/go-flowreprog/eventloop"
	"github.com/frobware/go-flowreprog/flowtable"
	"github.com/frobware/go-flowreprog/reprogrammer"
	"github.com/frobware/go-flowreprog/server/rpc"
)

// Dispatcher runs fn on the goroutine that owns the flow table and
// the reprogrammer, and waits for it. Both *eventloop.Loop and
// *eventloop.Manual implement it.
type Dispatcher interface {
	Do(ctx context.Context, fn func()) error
}

// Server implements the Reprogrammer gRPC service. Every call is
// marshalled onto the dispatcher; handlers never touch the flow table
// or the reprogrammer directly.
type Server struct {
	loop   Dispatcher
	flows  *flowtable.Table
	reprog *reprogrammer.Reprogrammer
	logger *slog.Logger
}

var _ rpc.ReprogrammerServer = (*Server)(nil)

// New creates a server for flows and reprog, which must both be driven
// by loop.
func New(loop Dispatcher, flows *flowtable.Table, reprog *reprogrammer.Reprogrammer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		loop:   loop,
		flows:  flows,
		reprog: reprog,
		logger: logger.With("component", "server"),
	}
}

// do runs fn on the loop. fn receives a context that survives the
// caller giving up, since work that has started must finish.
func (s *Server) do(ctx context.Context, fn func(ctx context.Context)) error {
	detached := context.WithoutCancel(ctx)
	if err := s.loop.Do(ctx, func() { fn(detached) }); err != nil {
		return toStatus(err)
	}
	return nil
}

// UpdateFlow implements rpc.ReprogrammerServer.
func (s *Server) UpdateFlow(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.UpdateRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	name := req.Entry.Name
	var (
		updateErr error
		result    = rpc.UpdateResult{Name: name}
	)
	err := s.do(ctx, func(ctx context.Context) {
		if updateErr = s.reprog.UpdateFlow(ctx, req.Entry); updateErr != nil {
			return
		}
		if tracked, ok := s.reprog.Lookup(name); ok {
			result.Pending = &tracked
		}
	})
	if err != nil {
		return nil, err
	}
	if updateErr != nil {
		return nil, toStatus(updateErr)
	}
	return encode(result)
}

// GetFlow implements rpc.ReprogrammerServer.
func (s *Server) GetFlow(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	name := in.GetValue()
	var (
		info  rpc.FlowInfo
		found bool
	)
	err := s.do(ctx, func(context.Context) {
		info, found = s.flowInfo(name)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, toStatus(flowreprog.ErrFlowNotFound{Name: name})
	}
	return encode(info)
}

// ListFlows implements rpc.ReprogrammerServer.
func (s *Server) ListFlows(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	var infos []rpc.FlowInfo
	err := s.do(ctx, func(context.Context) {
		for _, e := range s.flows.Entries() {
			if info, ok := s.flowInfo(e.Name); ok {
				infos = append(infos, info)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return encodeList(infos)
}

// ListPending implements rpc.ReprogrammerServer.
func (s *Server) ListPending(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	var pending []compute.Request
	if err := s.do(ctx, func(context.Context) { pending = s.reprog.Pending() }); err != nil {
		return nil, err
	}
	return encodeList(pending)
}

// Classify implements rpc.ReprogrammerServer.
func (s *Server) Classify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.ClassifyRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	pkt, err := flowtable.DecodeFrame(req.InputIntf, req.Frame)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var result rpc.ClassifyResult
	err = s.do(ctx, func(context.Context) {
		if e, ok := s.flows.Classify(pkt); ok {
			result.Matched = true
			result.Entry = &e
		}
	})
	if err != nil {
		return nil, err
	}
	return encode(result)
}

// flowInfo must run on the loop.
func (s *Server) flowInfo(name string) (rpc.FlowInfo, bool) {
	e, ok := s.flows.Entry(name)
	if !ok {
		return rpc.FlowInfo{}, false
	}
	info := rpc.FlowInfo{Entry: e}
	info.Status, _ = s.flows.Status(name)
	info.Counters, _ = s.flows.Counters(name)
	if reason, ok := s.flows.RejectedReason(name); ok {
		info.RejectedReason = &reason
	}
	if req, ok := s.reprog.Lookup(name); ok {
		info.Phase = req.Phase
	}
	return info, true
}

func encode(v any) (*structpb.Struct, error) {
	out, err := rpc.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func encodeList[T any](items []T) (*structpb.ListValue, error) {
	out, err := rpc.EncodeList(items)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	var (
		notFound flowreprog.ErrFlowNotFound
		invalid  *flowreprog.InvalidEntryError
	)
	switch {
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, flowreprog.ErrPriorityOverflow):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, flowreprog.ErrEmptyName),
		errors.Is(err, flowreprog.ErrReservedSuffix),
		errors.Is(err, flowreprog.ErrZeroPriority),
		errors.As(err, &invalid):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, eventloop.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
