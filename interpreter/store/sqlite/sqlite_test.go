package sqlite_test

import (
	"context"
	"net/netip"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/interpreter"
	"github.com/frobware/go-flowreprog/interpreter/store"
	"github.com/frobware/go-flowreprog/interpreter/store/sqlite"
	"github.com/frobware/go-flowreprog/logging"
)

func testStore(t *testing.T) interpreter.Store {
	t.Helper()
	s, err := sqlite.NewInMemory(context.Background(), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEntry(name string, prio flowreprog.Priority) flowreprog.Entry {
	mac, _ := flowreprog.ParseEthAddr("02:00:00:00:00:aa")
	return flowreprog.Entry{
		Name:     name,
		Priority: prio,
		Match: flowreprog.Match{
			InputIntfs: []string{"Ethernet1"},
			EthDst:     mac,
			VlanID:     100,
			IPSrc:      netip.MustParsePrefix("192.0.2.0/24"),
		},
		Action: flowreprog.Action{
			OutputIntfs: []string{"Ethernet2", "Ethernet3"},
			IPDst:       netip.MustParseAddr("198.51.100.1"),
		},
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	want := sampleEntry("F", flowreprog.MaxPriority)

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Get(ctx, "F")
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "got %s", got)
}

func TestSaveReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleEntry("F", 1)))
	require.NoError(t, s.Save(ctx, sampleEntry("F", 2)))

	got, err := s.Get(ctx, "F")
	require.NoError(t, err)
	assert.Equal(t, flowreprog.Priority(2), got.Priority)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetMissing(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteAndList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for _, n := range []string{"c", "a", "b-tmp-entry"} {
		require.NoError(t, s.Save(ctx, sampleEntry(n, 5)))
	}
	require.NoError(t, s.Delete(ctx, "c"))
	require.NoError(t, s.Delete(ctx, "c"), "deleting a missing entry is not an error")

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "b-tmp-entry", all[1].Name)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "flows.db")

	s, err := sqlite.New(ctx, path, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleEntry("F", 10)))
	require.NoError(t, s.Close())

	s, err = sqlite.New(ctx, path, logging.Discard())
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "F")
	require.NoError(t, err)
	assert.True(t, sampleEntry("F", 10).Equal(got))
}
