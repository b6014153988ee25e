package session

import (
	"context"
	"testing"

	"codeberg.org/arekan/animeshot/internal/search"
)

func TestMemoryStoreLazyCreation(t *testing.T) {
	store := NewMemoryStore()

	sess, err := store.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sess.Mode != ModeIdle {
		t.Errorf("new session mode = %v, want idle", sess.Mode)
	}
	if sess.LastResult != nil || sess.LastMessageID != 0 {
		t.Error("new session is not empty")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, _ := store.Get(ctx, 1)
	sess.Mode = ModeAwaitingAnimeQuery
	sess.LastMessageID = 77
	if err := store.Put(ctx, 1, sess); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, _ := store.Get(ctx, 1)
	if got.Mode != ModeAwaitingAnimeQuery || got.LastMessageID != 77 {
		t.Errorf("round trip lost state: %+v", got)
	}

	// Another user is unaffected.
	other, _ := store.Get(ctx, 2)
	if other.Mode != ModeIdle {
		t.Error("sessions leak across users")
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, _ := store.Get(ctx, 1)
	sess.LastMessageID = 5
	store.Put(ctx, 1, sess)

	// Mutating a fetched session must not affect the stored one until
	// Put is called.
	fetched, _ := store.Get(ctx, 1)
	fetched.LastMessageID = 99

	again, _ := store.Get(ctx, 1)
	if again.LastMessageID != 5 {
		t.Errorf("stored session mutated through a fetched copy")
	}
}

func TestSetResultInvalidatesMessage(t *testing.T) {
	sess := &Session{LastMessageID: 123}
	sess.SetResult(&search.Result{ResultsURL: "https://provider.example/r"})

	if sess.LastMessageID != 0 {
		t.Error("SetResult did not invalidate LastMessageID")
	}
	if sess.LastResult == nil {
		t.Error("SetResult dropped the result")
	}
}
