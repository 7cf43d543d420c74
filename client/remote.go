package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/compute"
	"github.com/frobware/go-flowreprog/server/rpc"
)

// remoteClient translates Client calls into Reprogrammer RPCs.
type remoteClient struct {
	client rpc.ReprogrammerClient
	conn   *grpc.ClientConn
	logger *slog.Logger
}

func newRemote(address string, logger *slog.Logger) (*remoteClient, error) {
	target := parseAddress(address)

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}
	return &remoteClient{
		client: rpc.NewReprogrammerClient(conn),
		conn:   conn,
		logger: logger,
	}, nil
}

// parseAddress normalises an address for gRPC.
func parseAddress(address string) string {
	if strings.HasPrefix(address, "unix://") {
		return address
	}
	if strings.HasPrefix(address, "/") {
		return "unix://" + address
	}
	return address
}

// Close releases the gRPC connection.
func (c *remoteClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *remoteClient) UpdateFlow(ctx context.Context, entry flowreprog.Entry) (UpdateResult, error) {
	in, err := rpc.Encode(rpc.UpdateRequest{Entry: entry})
	if err != nil {
		return UpdateResult{}, err
	}
	out, err := c.client.UpdateFlow(ctx, in)
	if err != nil {
		return UpdateResult{}, fromStatus(err, entry.Name)
	}
	var res UpdateResult
	if err := rpc.Decode(out, &res); err != nil {
		return UpdateResult{}, err
	}
	c.logger.DebugContext(ctx, "flow updated", "name", entry.Name, "tracked", res.Pending != nil)
	return res, nil
}

func (c *remoteClient) GetFlow(ctx context.Context, name string) (FlowInfo, error) {
	out, err := c.client.GetFlow(ctx, wrapperspb.String(name))
	if err != nil {
		return FlowInfo{}, fromStatus(err, name)
	}
	var info FlowInfo
	if err := rpc.Decode(out, &info); err != nil {
		return FlowInfo{}, err
	}
	return info, nil
}

func (c *remoteClient) ListFlows(ctx context.Context) ([]FlowInfo, error) {
	out, err := c.client.ListFlows(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fromStatus(err, "")
	}
	return rpc.DecodeList[FlowInfo](out)
}

func (c *remoteClient) ListPending(ctx context.Context) ([]compute.Request, error) {
	out, err := c.client.ListPending(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fromStatus(err, "")
	}
	return rpc.DecodeList[compute.Request](out)
}

func (c *remoteClient) Classify(ctx context.Context, intf string, frame []byte) (ClassifyResult, error) {
	in, err := rpc.Encode(rpc.ClassifyRequest{InputIntf: intf, Frame: frame})
	if err != nil {
		return ClassifyResult{}, err
	}
	out, err := c.client.Classify(ctx, in)
	if err != nil {
		return ClassifyResult{}, fromStatus(err, "")
	}
	var res ClassifyResult
	if err := rpc.Decode(out, &res); err != nil {
		return ClassifyResult{}, err
	}
	return res, nil
}
