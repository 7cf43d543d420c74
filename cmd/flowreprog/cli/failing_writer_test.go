package cli_test

import (
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frobware/go-flowreprog/cmd/flowreprog/cli"
)

// failingWriter succeeds for the first budget bytes, then fails with
// failErr. When shortWrites is set every write reports one byte and a
// nil error.
type failingWriter struct {
	budget      int
	failErr     error
	shortWrites bool
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.shortWrites && len(p) > 0 {
		return 1, nil
	}
	if w.budget <= 0 {
		return 0, w.failErr
	}
	if len(p) <= w.budget {
		w.budget -= len(p)
		return len(p), nil
	}
	n := w.budget
	w.budget = 0
	return n, w.failErr
}

var _ io.Writer = (*failingWriter)(nil)

func TestCLIWriteOut_PropagatesENOSPC(t *testing.T) {
	c := &cli.CLI{Out: &failingWriter{failErr: syscall.ENOSPC}}
	require.ErrorIs(t, c.WriteOut([]byte("x")), syscall.ENOSPC)
}

func TestCLIWriteOut_TreatsShortWriteAsError(t *testing.T) {
	c := &cli.CLI{Out: &failingWriter{budget: 10, shortWrites: true}}
	require.ErrorIs(t, c.WriteOut([]byte("hello")), io.ErrShortWrite)
}

func TestCLIWriteOut_PartialThenFailReturnsENOSPC(t *testing.T) {
	c := &cli.CLI{Out: &failingWriter{budget: 3, failErr: syscall.ENOSPC}}
	require.ErrorIs(t, c.WriteOut([]byte("hello")), syscall.ENOSPC)
}

func TestCLIPrintOut_PropagatesError(t *testing.T) {
	c := &cli.CLI{Out: &failingWriter{failErr: syscall.EPIPE}}
	require.ErrorIs(t, c.PrintOut("test output"), syscall.EPIPE)
}

func TestCLIPrintOutf_PropagatesError(t *testing.T) {
	c := &cli.CLI{Out: &failingWriter{failErr: syscall.EPIPE}}
	require.ErrorIs(t, c.PrintOutf("test %s", "output"), syscall.EPIPE)
}
