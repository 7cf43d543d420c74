package interpreter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/action"
	"github.com/frobware/go-flowreprog/eventloop"
	"github.com/frobware/go-flowreprog/interpreter"
)

type recordingWriter struct {
	ops []string
}

func (w *recordingWriter) EntrySet(_ context.Context, e flowreprog.Entry) error {
	w.ops = append(w.ops, "set:"+e.Name)
	return nil
}

func (w *recordingWriter) EntryDel(_ context.Context, name string) error {
	w.ops = append(w.ops, "del:"+name)
	return nil
}

func TestExecuteAll(t *testing.T) {
	w := &recordingWriter{}
	e := interpreter.NewExecutor(w, nil, nil, nil)

	err := e.ExecuteAll(context.Background(), []action.Action{
		action.SetEntry{Entry: flowreprog.Entry{Name: "F-tmp-entry", Priority: 11}},
		action.DeleteEntry{Name: "F-tmp-entry"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"set:F-tmp-entry", "del:F-tmp-entry"}, w.ops)

	err = e.Execute(context.Background(), action.ArmTimer{Name: "F", Step: 1, After: time.Second})
	assert.ErrorContains(t, err, "no scheduler")
}

func TestArmTimer_HandleStopsCallback(t *testing.T) {
	sched := eventloop.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	var (
		fired []action.ArmTimer
		armed = map[string]interpreter.Timer{}
	)
	e := interpreter.NewExecutor(&recordingWriter{}, sched,
		func(_ context.Context, t action.ArmTimer) { fired = append(fired, t) },
		func(t action.ArmTimer, timer interpreter.Timer) { armed[t.OpID] = timer })

	ctx := context.Background()
	require.NoError(t, e.Execute(ctx, action.ArmTimer{Name: "F", OpID: "op-1", Step: 1, After: time.Second}))
	require.NoError(t, e.Execute(ctx, action.ArmTimer{Name: "F", OpID: "op-2", Step: 1, After: 2 * time.Second}))
	require.Len(t, armed, 2)

	assert.True(t, armed["op-1"].Stop())
	sched.Advance(2 * time.Second)
	require.Len(t, fired, 1)
	assert.Equal(t, "op-2", fired[0].OpID)
	assert.False(t, armed["op-2"].Stop(), "already fired")
}
