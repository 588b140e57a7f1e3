package bot

import (
	"sync"
	"time"
)

// PromptCache remembers the last prompt of every chat for /resend.
type PromptCache struct {
	prompts map[int64]string // chat ID to prompt
	mu      sync.RWMutex
}

// NewPromptCache creates an empty cache
func NewPromptCache() *PromptCache {
	return &PromptCache{
		prompts: make(map[int64]string),
	}
}

// Set records the latest prompt of a chat
func (c *PromptCache) Set(chatID int64, prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prompts[chatID] = prompt
}

// Get returns the latest prompt of a chat
func (c *PromptCache) Get(chatID int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	prompt, ok := c.prompts[chatID]
	return prompt, ok
}

type pendingQuestion struct {
	text  string
	added time.Time
}

// InlineQueries holds the questions offered as inline results until the
// user presses the answer button. Entries older than ttl are dropped.
type InlineQueries struct {
	queries map[string]pendingQuestion // result ID to question
	ttl     time.Duration
	mu      sync.Mutex
	now     func() time.Time
}

func NewInlineQueries(ttl time.Duration) *InlineQueries {
	return &InlineQueries{
		queries: make(map[string]pendingQuestion),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add stores a question and sweeps out the stale ones
func (q *InlineQueries) Add(id, text string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for k, v := range q.queries {
		if now.Sub(v.added) > q.ttl {
			delete(q.queries, k)
		}
	}
	q.queries[id] = pendingQuestion{text: text, added: now}
}

// Take returns a question and forgets it
func (q *InlineQueries) Take(id string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	v, ok := q.queries[id]
	if !ok {
		return "", false
	}
	delete(q.queries, id)
	if q.now().Sub(v.added) > q.ttl {
		return "", false
	}
	return v.text, true
}
