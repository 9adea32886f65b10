package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

type result struct {
	Text     string
	Provider string
}

func TestCache_PutGet(t *testing.T) {
	c := New[result]()

	c.Put("k", result{Text: "hello", Provider: "p1"}, time.Minute)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Text != "hello" || got.Provider != "p1" {
		t.Errorf("Get() = %+v", got)
	}

	if _, ok := c.Get("other"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestCache_ZeroTTLIsNeverStored(t *testing.T) {
	c := New[result]()

	c.Put("k", result{Text: "x"}, 0)

	if _, ok := c.Get("k"); ok {
		t.Error("entry with zero ttl must not be retrievable")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestCache_ExpiredEntryIsRemovedOnLookup(t *testing.T) {
	c := New[result]()

	c.Put("k", result{Text: "x"}, 20*time.Millisecond)
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry must be a miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed on lookup, Len() = %d", c.Len())
	}
}

func TestCache_Clear(t *testing.T) {
	c := New[result]()
	c.Put("a", result{Text: "1"}, time.Minute)
	c.Put("b", result{Text: "2"}, time.Minute)

	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Error("cleared entry must be a miss")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	c := New[result]()
	c.Put("a", result{Text: "1"}, time.Minute)
	c.Put("b", result{Text: "2"}, time.Minute)

	c.Delete("a")
	c.Delete("missing")

	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry must be a miss")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_DeleteExpired(t *testing.T) {
	c := New[result]()
	c.Put("short", result{}, 10*time.Millisecond)
	c.Put("long", result{}, time.Minute)

	time.Sleep(30 * time.Millisecond)

	if removed := c.DeleteExpired(); removed != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", removed)
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("unexpired entry must survive")
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := Key("prompt", []byte{byte(i % 5)})
			c.Put(key, i, time.Minute)
			c.Get(key)
			c.Len()
			if i%10 == 0 {
				c.Clear()
			}
		}(i)
	}
	wg.Wait()
}

func TestKey(t *testing.T) {
	fp := []byte(`{"mode":"synchronous"}`)

	if Key("hi", fp) != Key("hi", fp) {
		t.Error("Key must be deterministic")
	}
	if Key("hi", fp) == Key("hello", fp) {
		t.Error("Key must depend on the prompt")
	}
	if Key("hi", fp) == Key("hi", []byte(`{"mode":"concurrent"}`)) {
		t.Error("Key must depend on the configuration")
	}
	// The separator keeps prompt and fingerprint boundaries apart.
	if Key("ab", []byte("c")) == Key("a", []byte("bc")) {
		t.Error("Key must not be ambiguous across the prompt boundary")
	}
}

func TestSweeper_RemovesExpiredEntries(t *testing.T) {
	c := New[result]()
	c.Put("k", result{}, 10*time.Millisecond)

	s := NewSweeper(c, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx, "@every 1s"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if !s.IsRunning() {
		t.Fatal("sweeper should be running")
	}
	if s.NextRun() == nil {
		t.Error("NextRun() should be scheduled")
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.Len() == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("sweeper did not remove the expired entry, Len() = %d", c.Len())
}

func TestSweeper_Schedules(t *testing.T) {
	c := New[result]()

	t.Run("empty schedule is a no-op", func(t *testing.T) {
		s := NewSweeper(c, nil)
		if err := s.Start(context.Background(), ""); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if s.IsRunning() {
			t.Error("sweeper should not run without a schedule")
		}
	})

	t.Run("invalid schedule", func(t *testing.T) {
		s := NewSweeper(c, nil)
		if err := s.Start(context.Background(), "every minute"); err == nil {
			t.Fatal("expected error for invalid schedule")
		}
	})

	t.Run("double start", func(t *testing.T) {
		s := NewSweeper(c, nil)
		if err := s.Start(context.Background(), "@every 1m"); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer s.Stop()
		if err := s.Start(context.Background(), "@every 1m"); err == nil {
			t.Error("expected error on second Start")
		}
	})

	t.Run("context cancellation stops", func(t *testing.T) {
		s := NewSweeper(c, nil)
		ctx, cancel := context.WithCancel(context.Background())
		if err := s.Start(ctx, "@every 1m"); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		cancel()

		deadline := time.Now().Add(time.Second)
		for s.IsRunning() && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if s.IsRunning() {
			t.Error("sweeper still running after context cancellation")
		}
	})
}
