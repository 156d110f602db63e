package history

import (
	"context"
	"testing"
)

func saveTexts(t *testing.T, s Store, texts ...string) {
	t.Helper()
	for _, text := range texts {
		if err := s.SaveTurn(context.Background(), Turn{UserText: text}); err != nil {
			t.Fatalf("SaveTurn(%q) error = %v", text, err)
		}
	}
}

func userTexts(turns []Turn) []string {
	out := make([]string, 0, len(turns))
	for _, turn := range turns {
		out = append(out, turn.UserText)
	}
	return out
}

func TestRingStoreReturnsChronologicalOrder(t *testing.T) {
	s := NewRingStore(8)
	saveTexts(t, s, "one", "two", "three")

	turns, err := s.RecentTurns(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	got := userTexts(turns)
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("RecentTurns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("RecentTurns() = %v, want %v", got, want)
		}
	}
}

func TestRingStoreAssignsIDAndTimestamp(t *testing.T) {
	s := NewRingStore(2)
	saveTexts(t, s, "hi")

	turns, err := s.RecentTurns(context.Background(), 1)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("len(turns) = %d, want 1", len(turns))
	}
	if turns[0].ID == "" {
		t.Fatalf("ID was not assigned")
	}
	if turns[0].CreatedAt.IsZero() {
		t.Fatalf("CreatedAt was not assigned")
	}
}

func TestRingStoreDropsOldestWhenFull(t *testing.T) {
	s := NewRingStore(3)
	saveTexts(t, s, "a", "b", "c", "d", "e")

	turns, err := s.RecentTurns(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	got := userTexts(turns)
	want := []string{"c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("RecentTurns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("RecentTurns() = %v, want %v", got, want)
		}
	}
}

func TestRingStoreLimitReturnsLatest(t *testing.T) {
	s := NewRingStore(5)
	saveTexts(t, s, "a", "b", "c", "d")

	turns, err := s.RecentTurns(context.Background(), 2)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	got := userTexts(turns)
	if len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Fatalf("RecentTurns(2) = %v, want [c d]", got)
	}
}

func TestRingStoreEmptyReturnsNothing(t *testing.T) {
	s := NewRingStore(4)
	turns, err := s.RecentTurns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("len(turns) = %d, want 0", len(turns))
	}
}

func TestNewStoreDefaultsToRing(t *testing.T) {
	s, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*RingStore); !ok {
		t.Fatalf("NewStore(\"\") = %T, want *RingStore", s)
	}
}
