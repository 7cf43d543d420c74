package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/client"
	"github.com/frobware/go-flowreprog/config"
	"github.com/frobware/go-flowreprog/logging"
	"github.com/frobware/go-flowreprog/server"
)

// TestEnv is a running daemon and a client connected to it over its
// unix socket. Each test gets its own runtime directory, database,
// socket and metrics registry, so tests can run in parallel.
type TestEnv struct {
	T        *testing.T
	Dirs     config.RuntimeDirs
	Client   client.Client
	Registry *prometheus.Registry
}

// NewTestEnv starts a daemon with the embedded configuration and the
// TCP and metrics listeners disabled. Set FLOWREPROG_LOG to see its
// logs. The daemon is stopped via t.Cleanup().
func NewTestEnv(t *testing.T, mutate ...func(*config.Config)) *TestEnv {
	t.Helper()

	baseDir := filepath.Join(os.TempDir(), fmt.Sprintf("flowreprog-e2e-%d-%s", os.Getpid(), sanitizeTestName(t.Name())))
	dirs, err := config.NewRuntimeDirs(baseDir)
	require.NoError(t, err)
	t.Cleanup(func() {
		os.RemoveAll(dirs.Base())
		os.RemoveAll(dirs.Sock())
	})

	logger, closer, err := logging.New(logging.Options{
		EnvSpec:    os.Getenv(logging.EnvVar),
		ConfigSpec: "error",
	})
	require.NoError(t, err)
	t.Cleanup(func() { closer.Close() })

	cfg := config.DefaultConfig()
	cfg.Server.TCPAddress = ""
	cfg.Server.MetricsAddress = ""
	for _, fn := range mutate {
		fn(&cfg)
	}

	reg := prometheus.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx, server.RunConfig{Dirs: dirs, Config: cfg, Logger: logger, Registry: reg})
	}()

	c, err := client.Dial(dirs.SocketPath())
	require.NoError(t, err)

	env := &TestEnv{T: t, Dirs: dirs, Client: c, Registry: reg}
	t.Cleanup(func() {
		c.Close()
		cancel()
		require.NoError(t, <-done)
	})

	require.Eventually(t, func() bool {
		_, err := c.ListFlows(context.Background())
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "daemon did not come up")
	return env
}

// Update submits entry and fails the test on error.
func (e *TestEnv) Update(entry flowreprog.Entry) client.UpdateResult {
	e.T.Helper()
	res, err := e.Client.UpdateFlow(context.Background(), entry)
	require.NoError(e.T, err)
	return res
}

// WaitSettled waits until no reprogramming is in flight.
func (e *TestEnv) WaitSettled() {
	e.T.Helper()
	require.Eventually(e.T, func() bool {
		pending, err := e.Client.ListPending(context.Background())
		return err == nil && len(pending) == 0
	}, 5*time.Second, 5*time.Millisecond, "reprogramming did not settle")
}

// WaitStatus waits until name reports status.
func (e *TestEnv) WaitStatus(name string, status flowreprog.Status) client.FlowInfo {
	e.T.Helper()
	var info client.FlowInfo
	require.Eventually(e.T, func() bool {
		var err error
		info, err = e.Client.GetFlow(context.Background(), name)
		return err == nil && info.Status == status
	}, 5*time.Second, 5*time.Millisecond, "flow %s never reached %s", name, status)
	return info
}

// AssertNoTempEntries checks that no temporary entry is configured.
func (e *TestEnv) AssertNoTempEntries() {
	e.T.Helper()
	flows, err := e.Client.ListFlows(context.Background())
	require.NoError(e.T, err)
	for _, f := range flows {
		_, temp := flowreprog.RealName(f.Entry.Name)
		require.False(e.T, temp, "temporary entry %s left behind", f.Entry.Name)
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitizeTestName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

func flow(name string, prio flowreprog.Priority, in string, out ...string) flowreprog.Entry {
	return flowreprog.Entry{
		Name:     name,
		Priority: prio,
		Match:    flowreprog.Match{InputIntfs: []string{in}},
		Action:   flowreprog.Action{OutputIntfs: out},
	}
}
