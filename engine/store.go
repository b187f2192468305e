// Package engine owns the conversation orchestration core: the chat store
// and the turn state machine that drives user input through streaming and
// tool round-trips to a finalized assistant message.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"loom/config"
	"loom/model"
)

// Persister is the storage boundary the store commits through. Chats are
// JSON-serializable records keyed by id; the store is agnostic to where the
// bytes land.
type Persister interface {
	SaveChat(chat *model.Chat) error
	DeleteChat(id string) error
	LoadChats() ([]*model.Chat, error)
}

// Store owns the mutable chat list. All mutation goes through UpdateChat,
// which applies an updater to the current in-memory chat under the lock so
// no intermediate state is observable and every update sees prior updates
// from the same turn.
type Store struct {
	mu      sync.Mutex
	chats   map[string]*model.Chat
	persist Persister
}

// NewStore creates a store, loading any persisted chats. persist may be nil
// for a purely in-memory store (tests).
func NewStore(persist Persister) (*Store, error) {
	s := &Store{
		chats:   make(map[string]*model.Chat),
		persist: persist,
	}

	if persist != nil {
		loaded, err := persist.LoadChats()
		if err != nil {
			return nil, fmt.Errorf("failed to load chats: %w", err)
		}
		for _, c := range loaded {
			s.chats[c.ID] = c
		}
	}

	return s, nil
}

// CreateChat creates and registers an empty chat bound to modelID.
func (s *Store) CreateChat(modelID string) model.Chat {
	chat := model.NewChat(modelID)

	s.mu.Lock()
	s.chats[chat.ID] = chat
	s.mu.Unlock()

	s.save(chat)
	return chat.Clone()
}

// Chat returns a snapshot of the chat with the given id.
func (s *Store) Chat(id string) (model.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[id]
	if !ok {
		return model.Chat{}, false
	}
	return chat.Clone(), true
}

// Chats returns snapshots of all chats, newest update first.
func (s *Store) Chats() []model.Chat {
	s.mu.Lock()
	out := make([]model.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, c.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Updated.After(out[j].Updated)
	})
	return out
}

// UpdateChat applies fn to the current chat state and bumps Updated. fn runs
// under the store lock: it must not call back into the store.
func (s *Store) UpdateChat(id string, fn func(chat *model.Chat)) error {
	s.mu.Lock()
	chat, ok := s.chats[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("chat %s not found", id)
	}
	fn(chat)
	chat.Updated = time.Now()
	s.mu.Unlock()

	s.save(chat)
	return nil
}

// DeleteChat removes a chat from memory and persistence.
func (s *Store) DeleteChat(id string) error {
	s.mu.Lock()
	_, ok := s.chats[id]
	delete(s.chats, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("chat %s not found", id)
	}
	if s.persist != nil {
		if err := s.persist.DeleteChat(id); err != nil {
			return fmt.Errorf("failed to delete chat: %w", err)
		}
	}
	return nil
}

func (s *Store) save(chat *model.Chat) {
	if s.persist == nil {
		return
	}

	s.mu.Lock()
	snapshot := chat.Clone()
	s.mu.Unlock()

	if err := s.persist.SaveChat(&snapshot); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[Store] failed to persist chat %s: %v", chat.ID, err)
	}
}
