package agent

import (
	"sync"
	"time"
)

// Conversation represents the history of a single chat
type Conversation struct {
	Messages    []Message
	LastUpdated time.Time
	mu          sync.Mutex
}

// Store manages conversation histories for multiple chats.
// Histories live in memory only and are lost on restart.
type Store struct {
	conversations map[int64]*Conversation
	mu            sync.RWMutex
	now           func() time.Time
}

// NewStore creates a new conversation store
func NewStore() *Store {
	return &Store{
		conversations: make(map[int64]*Conversation),
		now:           time.Now,
	}
}

func (s *Store) get(chatID int64) *Conversation {
	s.mu.RLock()
	conv, exists := s.conversations[chatID]
	s.mu.RUnlock()
	if exists {
		return conv
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another handler may have created it in between.
	if conv, exists = s.conversations[chatID]; exists {
		return conv
	}
	conv = &Conversation{LastUpdated: s.now()}
	s.conversations[chatID] = conv
	return conv
}

// Exists reports whether the chat has a conversation.
func (s *Store) Exists(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.conversations[chatID]
	return exists
}

// Reset replaces the chat history with a single system prompt
func (s *Store) Reset(chatID int64, systemPrompt string) {
	conv := s.get(chatID)

	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.Messages = []Message{{Role: RoleSystem, Content: systemPrompt}}
	conv.LastUpdated = s.now()
}

// AddMessage adds a message to the conversation history
func (s *Store) AddMessage(chatID int64, role Role, content string) {
	conv := s.get(chatID)

	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.Messages = append(conv.Messages, Message{
		Role:    role,
		Content: content,
	})
	conv.LastUpdated = s.now()
}

// Replace swaps the whole history of a chat
func (s *Store) Replace(chatID int64, messages []Message) {
	conv := s.get(chatID)

	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.Messages = append([]Message(nil), messages...)
	conv.LastUpdated = s.now()
}

// PopLast removes the most recent message if it has the given role.
func (s *Store) PopLast(chatID int64, role Role) bool {
	s.mu.RLock()
	conv, exists := s.conversations[chatID]
	s.mu.RUnlock()
	if !exists {
		return false
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	n := len(conv.Messages)
	if n == 0 || conv.Messages[n-1].Role != role {
		return false
	}
	conv.Messages = conv.Messages[:n-1]
	return true
}

// History returns a copy of the conversation history
func (s *Store) History(chatID int64) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[chatID]
	if !exists {
		return []Message{}
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	return append([]Message(nil), conv.Messages...)
}

// Expired reports whether the chat has been idle for longer than maxAge.
func (s *Store) Expired(chatID int64, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[chatID]
	if !exists {
		return false
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	return conv.LastUpdated.Before(s.now().Add(-maxAge))
}

// Prune drops every conversation idle for longer than maxAge and
// returns how many were removed.
func (s *Store) Prune(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for id, conv := range s.conversations {
		conv.mu.Lock()
		stale := conv.LastUpdated.Before(cutoff)
		conv.mu.Unlock()

		if stale {
			delete(s.conversations, id)
			removed++
		}
	}
	return removed
}
