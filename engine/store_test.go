package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"loom/model"
)

type memPersister struct {
	mu    sync.Mutex
	saved map[string]int
}

func (p *memPersister) SaveChat(chat *model.Chat) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saved == nil {
		p.saved = make(map[string]int)
	}
	p.saved[chat.ID]++
	return nil
}

func (p *memPersister) DeleteChat(id string) error { return nil }

func (p *memPersister) LoadChats() ([]*model.Chat, error) { return nil, nil }

func TestUpdateChatBumpsUpdated(t *testing.T) {
	store, err := NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	chat := store.CreateChat("m")
	before := chat.Updated

	time.Sleep(time.Millisecond)
	if err := store.UpdateChat(chat.ID, func(c *model.Chat) {
		c.Title = "renamed"
	}); err != nil {
		t.Fatalf("UpdateChat: %v", err)
	}

	got, _ := store.Chat(chat.ID)
	if got.Title != "renamed" {
		t.Fatalf("title = %q", got.Title)
	}
	if !got.Updated.After(before) {
		t.Fatal("Updated was not bumped")
	}
}

func TestUpdateChatUnknownID(t *testing.T) {
	store, _ := NewStore(nil)
	if err := store.UpdateChat("nope", func(c *model.Chat) {}); err == nil {
		t.Fatal("expected error for unknown chat")
	}
}

func TestUpdateChatSeesPriorUpdates(t *testing.T) {
	store, _ := NewStore(nil)
	chat := store.CreateChat("m")

	for i := 0; i < 3; i++ {
		text := fmt.Sprintf("msg %d", i)
		if err := store.UpdateChat(chat.ID, func(c *model.Chat) {
			c.Messages = append(c.Messages, model.NewUserText(text))
		}); err != nil {
			t.Fatalf("UpdateChat: %v", err)
		}
	}

	got, _ := store.Chat(chat.ID)
	if len(got.Messages) != 3 {
		t.Fatalf("got %d messages, want 3: each update must see the previous ones", len(got.Messages))
	}
}

func TestUpdateChatPersists(t *testing.T) {
	p := &memPersister{}
	store, err := NewStore(p)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	chat := store.CreateChat("m")
	store.UpdateChat(chat.ID, func(c *model.Chat) { c.Title = "t" })

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saved[chat.ID] != 2 {
		t.Fatalf("persisted %d times, want 2 (create + update)", p.saved[chat.ID])
	}
}

func TestConcurrentUpdatesDoNotLoseMessages(t *testing.T) {
	store, _ := NewStore(nil)
	chat := store.CreateChat("m")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.UpdateChat(chat.ID, func(c *model.Chat) {
				c.Messages = append(c.Messages, model.NewUserText(fmt.Sprintf("m%d", n)))
			})
		}(i)
	}
	wg.Wait()

	got, _ := store.Chat(chat.ID)
	if len(got.Messages) != 20 {
		t.Fatalf("got %d messages, want 20", len(got.Messages))
	}
}

func TestDeleteChat(t *testing.T) {
	store, _ := NewStore(nil)
	chat := store.CreateChat("m")

	if err := store.DeleteChat(chat.ID); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if _, ok := store.Chat(chat.ID); ok {
		t.Fatal("chat still readable after delete")
	}
	if err := store.DeleteChat(chat.ID); err == nil {
		t.Fatal("second delete should fail")
	}
}

func TestChatsSortedNewestFirst(t *testing.T) {
	store, _ := NewStore(nil)
	a := store.CreateChat("m")
	b := store.CreateChat("m")

	time.Sleep(time.Millisecond)
	store.UpdateChat(a.ID, func(c *model.Chat) { c.Title = "touched" })

	chats := store.Chats()
	if len(chats) != 2 {
		t.Fatalf("got %d chats", len(chats))
	}
	if chats[0].ID != a.ID {
		t.Fatalf("most recently updated chat is %s, want %s", chats[0].ID, a.ID)
	}
	_ = b
}
