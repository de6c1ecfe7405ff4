package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestManagerCreateGet(t *testing.T) {
	m := NewManager(time.Minute, 0, nil)
	s := m.Create(newSvc(newStore(t)))

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	_, ok = m.Get("")
	assert.False(t, ok)
	_, ok = m.Get("unknown")
	assert.False(t, ok)
}

func TestManagerIdleExpiryTearsDown(t *testing.T) {
	c := &clock{t: now}
	m := NewManager(10*time.Minute, 0, nil)
	m.SetClock(c.now)

	s := m.Create(newSvc(newStore(t)))

	c.advance(8 * time.Minute)
	_, ok := m.Get(s.ID) // extends the idle deadline
	require.True(t, ok)

	c.advance(8 * time.Minute)
	_, ok = m.Get(s.ID)
	require.True(t, ok)

	c.advance(11 * time.Minute)
	assert.Equal(t, 1, m.Cleaner().CleanExpired())
	assert.True(t, s.Closed())
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
}

func TestManagerCapacityTearsDownOldest(t *testing.T) {
	m := NewManager(time.Hour, 2, nil)
	first := m.Create(newSvc(newStore(t)))
	m.Create(newSvc(newStore(t)))
	m.Create(newSvc(newStore(t)))

	assert.True(t, first.Closed())
	assert.Equal(t, 2, m.Len())
}

func TestManagerDelete(t *testing.T) {
	m := NewManager(time.Hour, 0, nil)
	s := m.Create(newSvc(newStore(t)))

	m.Delete(s.ID)
	assert.True(t, s.Closed())
	_, ok := m.Get(s.ID)
	assert.False(t, ok)
}
