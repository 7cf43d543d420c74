package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/config"
	"github.com/frobware/go-flowreprog/eventloop"
	"github.com/frobware/go-flowreprog/interpreter/store/memory"
	"github.com/frobware/go-flowreprog/logging"
	"github.com/frobware/go-flowreprog/server"
	"github.com/frobware/go-flowreprog/server/rpc"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	t      *testing.T
	sched  *eventloop.Manual
	env    *server.Env
	client rpc.ReprogrammerClient
}

// newFixture serves a Manual-driven environment over bufconn. Each
// call drains the scheduler, so every RPC observes a quiescent table.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := logging.Discard()

	sched := eventloop.NewManual(epoch)
	env, err := server.NewEnv(ctx, sched, memory.New(), config.DefaultConfig(), logger)
	require.NoError(t, err)

	srv := server.New(sched, env.Flows, env.Reprogrammer, logger)
	gs := srv.GRPCServer()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &fixture{t: t, sched: sched, env: env, client: rpc.NewReprogrammerClient(conn)}
}

func (f *fixture) update(e flowreprog.Entry) (rpc.UpdateResult, error) {
	f.t.Helper()
	in, err := rpc.Encode(rpc.UpdateRequest{Entry: e})
	require.NoError(f.t, err)
	out, err := f.client.UpdateFlow(context.Background(), in)
	if err != nil {
		return rpc.UpdateResult{}, err
	}
	var res rpc.UpdateResult
	require.NoError(f.t, rpc.Decode(out, &res))
	return res, nil
}

func flow(name string, prio flowreprog.Priority, in, out string) flowreprog.Entry {
	return flowreprog.Entry{
		Name:     name,
		Priority: prio,
		Match:    flowreprog.Match{InputIntfs: []string{in}},
		Action:   flowreprog.Action{OutputIntfs: []string{out}},
	}
}
