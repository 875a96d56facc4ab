package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ Label string }

func TestRegisterAndGet(t *testing.T) {
	r := NewBaseRegistry[widget]()

	require.NoError(t, r.Register("a", widget{Label: "first"}))

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", got.Label)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	r := NewBaseRegistry[widget]()
	assert.Error(t, r.Register("", widget{}))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewBaseRegistry[widget]()
	require.NoError(t, r.Register("a", widget{Label: "first"}))
	require.Error(t, r.Register("a", widget{Label: "second"}))

	// The original registration survives the rejected duplicate.
	got, _ := r.Get("a")
	assert.Equal(t, "first", got.Label)
}

func TestListAndCount(t *testing.T) {
	r := NewBaseRegistry[widget]()
	assert.Empty(t, r.List())
	assert.Zero(t, r.Count())

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Register(fmt.Sprintf("w%d", i), widget{Label: fmt.Sprintf("widget %d", i)}))
	}

	assert.Equal(t, 3, r.Count())
	labels := map[string]bool{}
	for _, w := range r.List() {
		labels[w.Label] = true
	}
	assert.Len(t, labels, 3)
}

func TestRemove(t *testing.T) {
	r := NewBaseRegistry[widget]()
	require.NoError(t, r.Register("a", widget{}))

	require.NoError(t, r.Remove("a"))
	_, ok := r.Get("a")
	assert.False(t, ok)

	assert.Error(t, r.Remove("a"), "second remove reports not found")
}

func TestClear(t *testing.T) {
	r := NewBaseRegistry[widget]()
	require.NoError(t, r.Register("a", widget{}))
	require.NoError(t, r.Register("b", widget{}))

	r.Clear()
	assert.Zero(t, r.Count())
	assert.Empty(t, r.List())

	// A cleared registry accepts the old names again.
	assert.NoError(t, r.Register("a", widget{}))
}

func TestConcurrentAccess(t *testing.T) {
	r := NewBaseRegistry[widget]()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = r.Register(fmt.Sprintf("w%d", i), widget{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			r.Get(fmt.Sprintf("w%d", i))
			r.Count()
			r.List()
		}
	}()
	wg.Wait()

	assert.Equal(t, 100, r.Count())
}
