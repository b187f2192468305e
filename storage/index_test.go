package storage

import (
	"testing"

	"loom/model"
)

func TestRankChatsByTitle(t *testing.T) {
	chats := []model.Chat{
		{ID: "1", Title: "Grocery list"},
		{ID: "2", Title: "Go generics deep dive"},
		{ID: "3", Title: "Weekend plans"},
	}

	ranked := RankChatsByTitle("go", chats)
	if len(ranked) == 0 {
		t.Fatal("no matches for query")
	}
	// A word-start consecutive match outranks scattered letters.
	if ranked[0].ID != "2" {
		t.Fatalf("best match = %s (%q), want chat 2", ranked[0].ID, ranked[0].Title)
	}

	if ranked := RankChatsByTitle("weekend", chats); len(ranked) != 1 || ranked[0].ID != "3" {
		t.Fatalf("ranked = %+v, want only chat 3", ranked)
	}

	if ranked := RankChatsByTitle("zzzz", chats); len(ranked) != 0 {
		t.Fatalf("ranked = %+v, want no matches", ranked)
	}
}

func TestRankChatsByTitleEmptyQuery(t *testing.T) {
	chats := []model.Chat{
		{ID: "1", Title: "First"},
		{ID: "2", Title: "Second"},
	}

	got := RankChatsByTitle("", chats)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("empty query reordered chats: %+v", got)
	}
}
