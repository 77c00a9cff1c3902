package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlayd/internal/model"
)

func dialog(id string, index int) *model.DialogSession {
	return &model.DialogSession{
		Identifier: id,
		Component:  "dialog",
		Parameters: map[string]any{},
		Index:      index,
	}
}

func ids(ds []*model.DialogSession) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Identifier
	}
	return out
}

func TestNewRegistry_Empty(t *testing.T) {
	r := New[*model.DialogSession]("test")

	assert.True(t, r.IsEmpty())
	assert.Empty(t, r.Snapshot())
	assert.Equal(t, "hidden", r.VisibilityClass())
	assert.Equal(t, "test", r.Kind())
}

func TestRegistry_OrderingScenario(t *testing.T) {
	r := New[*model.DialogSession]("test")
	a := dialog("a", 1)
	b := dialog("b", 0)

	r.Add(a)
	r.Add(b)
	assert.Equal(t, []string{"b", "a"}, ids(r.Snapshot()))

	assert.True(t, r.Remove(a))
	assert.Equal(t, []string{"b"}, ids(r.Snapshot()))
	assert.Equal(t, "show", r.VisibilityClass())
}

func TestRegistry_StableForEqualIndex(t *testing.T) {
	r := New[*model.DialogSession]("test")
	for _, id := range []string{"first", "second", "third"} {
		r.Add(dialog(id, 5))
	}
	r.Add(dialog("early", 1))

	assert.Equal(t, []string{"early", "first", "second", "third"}, ids(r.Snapshot()))
}

func TestRegistry_VisibilityTracksOccupancy(t *testing.T) {
	r := New[*model.DialogSession]("test",
		WithBackgroundParameters(map[string]any{"class": "backdrop", "id": "bg"}),
	)
	assert.Equal(t, "hidden backdrop", r.VisibilityClass())

	a := dialog("a", 0)
	b := dialog("b", 1)

	steps := []struct {
		op func()
	}{
		{func() { r.Add(a) }},
		{func() { r.Add(b) }},
		{func() { r.Remove(a) }},
		{func() { r.Remove(a) }},
		{func() { r.Remove(b) }},
		{func() { r.Add(a) }},
		{func() { r.Clear() }},
	}

	for i, step := range steps {
		step.op()
		empty := r.IsEmpty()
		assert.Equal(t, empty, len(r.Snapshot()) == 0, "step %d", i)

		params := r.BackgroundParameters()
		if empty {
			assert.Equal(t, "hidden backdrop", params["class"], "step %d", i)
		} else {
			assert.Equal(t, "show backdrop", params["class"], "step %d", i)
		}
		assert.Equal(t, "bg", params["id"])
	}
}

func TestRegistry_ClassNameOverrides(t *testing.T) {
	r := New[*model.DialogSession]("test", WithClassNames("is-open", "is-closed"))
	assert.Equal(t, "is-closed", r.VisibilityClass())

	r.Add(dialog("a", 0))
	assert.Equal(t, "is-open", r.VisibilityClass())

	blank := New[*model.DialogSession]("test", WithClassNames("  ", ""))
	assert.Equal(t, "hidden", blank.VisibilityClass())
}

func TestRegistry_SetClassNames(t *testing.T) {
	r := New[*model.DialogSession]("test")
	r.Add(dialog("a", 0))

	var calls atomic.Int32
	r.Subscribe(func() { calls.Add(1) })

	r.SetClassNames("visible", "gone")
	assert.Equal(t, "visible", r.VisibilityClass())
	assert.Equal(t, int32(1), calls.Load())

	r.Clear()
	assert.Equal(t, "gone", r.VisibilityClass())
}

func TestRegistry_BackgroundParametersAreCopies(t *testing.T) {
	input := map[string]any{"class": "backdrop"}
	r := New[*model.DialogSession]("test", WithBackgroundParameters(input))

	assert.Equal(t, "backdrop", input["class"], "caller map must not be modified")

	params := r.BackgroundParameters()
	params["class"] = "tampered"
	assert.Equal(t, "hidden backdrop", r.VisibilityClass())
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := New[*model.DialogSession]("test")
	a := dialog("a", 0)
	b := dialog("b", 1)
	r.Add(a)
	r.Add(b)

	var calls atomic.Int32
	r.Subscribe(func() { calls.Add(1) })

	assert.True(t, r.Remove(a))
	once := ids(r.Snapshot())
	class := r.VisibilityClass()

	assert.False(t, r.Remove(a))
	assert.Equal(t, once, ids(r.Snapshot()))
	assert.Equal(t, class, r.VisibilityClass())

	// Only the effective removal notifies.
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistry_RoundTrip(t *testing.T) {
	r := New[*model.DialogSession]("test")
	r.Add(dialog("keep", 3))

	before := ids(r.Snapshot())
	beforeClass := r.VisibilityClass()

	x := dialog("x", 1)
	r.Add(x)
	r.Remove(x)

	assert.Equal(t, before, ids(r.Snapshot()))
	assert.Equal(t, beforeClass, r.VisibilityClass())
}

func TestRegistry_RemoveMatchesByIdentity(t *testing.T) {
	r := New[*model.DialogSession]("test")
	a := dialog("same", 0)
	lookalike := dialog("same", 0)
	r.Add(a)

	assert.False(t, r.Remove(lookalike))
	assert.True(t, r.Contains(a))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DuplicateIdentifiersAreKept(t *testing.T) {
	r := New[*model.DialogSession]("test")
	r.Add(dialog("dup", 0))
	r.Add(dialog("dup", 0))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_AddTwiceIsNoop(t *testing.T) {
	r := New[*model.DialogSession]("test")
	a := dialog("a", 0)

	var calls atomic.Int32
	r.Subscribe(func() { calls.Add(1) })

	r.Add(a)
	r.Add(a)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, int32(1), calls.Load(), "second add does not notify")

	assert.True(t, r.Remove(a))
	assert.True(t, r.IsEmpty())
	assert.Equal(t, "hidden", r.VisibilityClass())
}

func TestRegistry_ObserverSeesCommittedState(t *testing.T) {
	r := New[*model.DialogSession]("test")

	var seen [][]string
	var classes []string
	r.Subscribe(func() {
		seen = append(seen, ids(r.Snapshot()))
		classes = append(classes, r.VisibilityClass())
	})

	a := dialog("a", 0)
	r.Add(a)
	r.Remove(a)

	require.Len(t, seen, 2)
	assert.Equal(t, []string{"a"}, seen[0])
	assert.Empty(t, seen[1])
	assert.Equal(t, []string{"show", "hidden"}, classes)
}

func TestRegistry_ObserverPanicDoesNotPropagate(t *testing.T) {
	r := New[*model.DialogSession]("test")

	var after atomic.Int32
	r.Subscribe(func() { panic("renderer exploded") })
	r.Subscribe(func() { after.Add(1) })

	a := dialog("a", 0)
	assert.NotPanics(t, func() { r.Add(a) })
	assert.True(t, r.Contains(a))
	assert.Equal(t, "show", r.VisibilityClass())
	assert.Equal(t, int32(1), after.Load())
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := New[*model.DialogSession]("test")

	var calls atomic.Int32
	sub := r.Subscribe(func() { calls.Add(1) })
	r.Add(dialog("a", 0))
	r.Unsubscribe(sub)
	r.Add(dialog("b", 0))
	r.Unsubscribe(sub) // unknown now, ignored

	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistry_ObserverMayMutate(t *testing.T) {
	r := New[*model.DialogSession]("test")
	a := dialog("a", 0)

	// Observers run without the lock held, so re-entering is allowed.
	r.Subscribe(func() {
		if r.Contains(a) {
			r.Remove(a)
		}
	})

	r.Add(a)
	assert.True(t, r.IsEmpty())
	assert.Equal(t, "hidden", r.VisibilityClass())
}

func TestRegistry_ConcurrentAdds(t *testing.T) {
	r := New[*model.DialogSession]("test")
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Add(dialog(fmt.Sprintf("d-%d", i), i%7))
		}(i)
	}
	wg.Wait()

	snap := r.Snapshot()
	require.Len(t, snap, n)

	unique := make(map[string]bool, n)
	for i, d := range snap {
		unique[d.Identifier] = true
		if i > 0 {
			assert.LessOrEqual(t, snap[i-1].Index, d.Index)
		}
	}
	assert.Len(t, unique, n)
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	r := New[*model.DialogSession]("test")

	var notifications atomic.Int64
	r.Subscribe(func() { notifications.Add(1) })

	const workers = 16
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				d := dialog(fmt.Sprintf("%d-%d", w, i), i)
				r.Add(d)
				_ = r.Snapshot()
				r.Remove(d)
				r.Remove(d)
			}
		}(w)
	}
	wg.Wait()

	assert.True(t, r.IsEmpty())
	assert.Equal(t, "hidden", r.VisibilityClass())
	assert.Equal(t, int64(workers*perWorker*2), notifications.Load())
}

func TestRegistry_Clear(t *testing.T) {
	r := New[*model.DialogSession]("test")

	var calls atomic.Int32
	r.Subscribe(func() { calls.Add(1) })

	assert.Equal(t, 0, r.Clear())
	assert.Equal(t, int32(0), calls.Load())

	r.Add(dialog("a", 0))
	r.Add(dialog("b", 0))
	assert.Equal(t, 2, r.Clear())
	assert.True(t, r.IsEmpty())
	assert.Equal(t, int32(3), calls.Load())
}

func TestProject(t *testing.T) {
	tests := []struct {
		name       string
		nonEmpty   bool
		background string
		expected   string
	}{
		{"empty no background", false, "", "hidden"},
		{"shown no background", true, "", "show"},
		{"empty with background", false, "overlay dim", "hidden overlay dim"},
		{"shown with padded background", true, "  overlay ", "show overlay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Project(tt.nonEmpty, "show", "hidden", tt.background))
		})
	}
}
