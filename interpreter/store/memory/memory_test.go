package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/interpreter/store"
	"github.com/frobware/go-flowreprog/interpreter/store/memory"
)

func TestStore(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	_, err := s.Get(ctx, "F")
	assert.ErrorIs(t, err, store.ErrNotFound)

	e := flowreprog.Entry{Name: "F", Priority: 3, Action: flowreprog.Action{OutputIntfs: []string{"e1"}}}
	require.NoError(t, s.Save(ctx, e))
	require.NoError(t, s.Save(ctx, flowreprog.Entry{Name: "A", Priority: 1}))

	got, err := s.Get(ctx, "F")
	require.NoError(t, err)
	assert.True(t, e.Equal(got))

	got.Action.OutputIntfs[0] = "mutated"
	again, _ := s.Get(ctx, "F")
	assert.Equal(t, "e1", again.Action.OutputIntfs[0], "stored entries are copied")

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Name)

	require.NoError(t, s.Delete(ctx, "F"))
	require.NoError(t, s.Delete(ctx, "F"))
	all, _ = s.List(ctx)
	assert.Len(t, all, 1)
	assert.NoError(t, s.Close())
}
