// Package client provides a unified interface for flow reprogramming.
//
// Use Dial to connect to a running flowreprog daemon:
//
//	c, err := client.Dial(client.DefaultSocketPath())
//	c, err := client.Dial("localhost:50071")
//
// Use Open to work on a runtime directory in-process:
//
//	c, err := client.Open(ctx)
//	c, err := client.Open(ctx, client.WithRuntimeDir("/tmp/flowreprog"))
//
// Both return a Client that can be used identically.
package client

import (
	"context"
	"io"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/compute"
	"github.com/frobware/go-flowreprog/server/rpc"
)

// Result types shared with the wire protocol.
type (
	UpdateResult   = rpc.UpdateResult
	FlowInfo       = rpc.FlowInfo
	ClassifyResult = rpc.ClassifyResult
)

// Client is a transport-agnostic interface to the reprogrammer.
// Commands use it without knowing whether they run locally or
// remotely.
type Client interface {
	io.Closer

	// UpdateFlow installs or reprograms a flow entry.
	UpdateFlow(ctx context.Context, entry flowreprog.Entry) (UpdateResult, error)
	// GetFlow returns a configured entry. The error is
	// flowreprog.ErrFlowNotFound if there is none.
	GetFlow(ctx context.Context, name string) (FlowInfo, error)
	// ListFlows returns every configured entry ordered by name.
	ListFlows(ctx context.Context) ([]FlowInfo, error)
	// ListPending returns the requests being reprogrammed.
	ListPending(ctx context.Context) ([]compute.Request, error)
	// Classify reports which programmed entry forwards frame when it
	// arrives on intf.
	Classify(ctx context.Context, intf string, frame []byte) (ClassifyResult, error)
}
