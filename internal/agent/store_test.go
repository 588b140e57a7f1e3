package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	s := NewStore()
	s.now = clock.Now
	return s, clock
}

func TestStore_ResetAndAdd(t *testing.T) {
	s, _ := newTestStore()

	assert.False(t, s.Exists(1))
	s.Reset(1, "be nice")
	s.AddMessage(1, RoleUser, "hello")

	assert.True(t, s.Exists(1))
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "hello"},
	}, s.History(1))
	assert.Len(t, s.History(1), 2)
}

func TestStore_ChatsAreIsolated(t *testing.T) {
	s, _ := newTestStore()

	s.AddMessage(1, RoleUser, "from one")
	s.AddMessage(2, RoleUser, "from two")

	assert.Equal(t, []Message{{Role: RoleUser, Content: "from one"}}, s.History(1))
	assert.Equal(t, []Message{{Role: RoleUser, Content: "from two"}}, s.History(2))
}

func TestStore_HistoryIsACopy(t *testing.T) {
	s, _ := newTestStore()
	s.AddMessage(1, RoleUser, "hello")

	h := s.History(1)
	h[0].Content = "changed"

	assert.Equal(t, "hello", s.History(1)[0].Content)
}

func TestStore_PopLast(t *testing.T) {
	s, _ := newTestStore()
	s.Reset(1, "sys")
	s.AddMessage(1, RoleUser, "q")

	assert.False(t, s.PopLast(1, RoleAssistant))
	assert.True(t, s.PopLast(1, RoleUser))
	assert.Len(t, s.History(1), 1)
	assert.False(t, s.PopLast(42, RoleUser))
}

func TestStore_ExpiredAndPrune(t *testing.T) {
	s, clock := newTestStore()

	s.AddMessage(1, RoleUser, "old")
	clock.Advance(30 * time.Minute)
	s.AddMessage(2, RoleUser, "new")
	clock.Advance(45 * time.Minute)

	assert.True(t, s.Expired(1, time.Hour))
	assert.False(t, s.Expired(2, time.Hour))
	assert.False(t, s.Expired(1, 0))
	assert.False(t, s.Expired(3, time.Hour))

	assert.Equal(t, 1, s.Prune(time.Hour))
	assert.False(t, s.Exists(1))
	assert.True(t, s.Exists(2))
	assert.Equal(t, 0, s.Prune(0))
}

func TestStore_ConcurrentAppends(t *testing.T) {
	s, _ := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			s.AddMessage(chatID%5, RoleUser, "hi")
		}(int64(i))
	}
	wg.Wait()

	total := 0
	for id := int64(0); id < 5; id++ {
		total += len(s.History(id))
	}
	assert.Equal(t, 50, total)
}
