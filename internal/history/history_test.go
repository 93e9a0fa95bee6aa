package history

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ziadkadry99/claimwise/internal/config"
	"github.com/ziadkadry99/claimwise/internal/db"
)

func setupSQLite(t *testing.T, maxMessages int) *SQLiteStore {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewSQLiteStore(database, maxMessages)
}

// exerciseStore runs the behaviour every Store implementation shares.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	if err := s.Append(ctx, "", UserMessage("hi")); err != ErrNoUser {
		t.Errorf("Append without user = %v, want ErrNoUser", err)
	}

	if err := s.Append(ctx, "alice",
		UserMessage("Is cataract surgery covered?"),
		AssistantMessage("Yes, after 24 months.", map[string]any{"type": "general_query"}),
	); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, "bob", UserMessage("knee surgery claim")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	msgs, err := s.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Errorf("unexpected order: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[0].ID == "" || msgs[0].CreatedAt.IsZero() {
		t.Errorf("expected generated id and timestamp, got %+v", msgs[0])
	}
	if msgs[1].Metadata["type"] != "general_query" {
		t.Errorf("metadata lost: %v", msgs[1].Metadata)
	}

	users, err := s.Users(ctx)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if diff := cmp.Diff([]string{"alice", "bob"}, users); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}

	cleared, err := s.Clear(ctx, "alice")
	if err != nil || !cleared {
		t.Fatalf("Clear = %v, %v; want true", cleared, err)
	}
	cleared, err = s.Clear(ctx, "alice")
	if err != nil || cleared {
		t.Errorf("second Clear = %v, %v; want false", cleared, err)
	}
	msgs, err = s.List(ctx, "alice")
	if err != nil || len(msgs) != 0 {
		t.Errorf("List after Clear = %d messages, %v", len(msgs), err)
	}
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, setupSQLite(t, 0))
}

func TestSQLiteStore_Window(t *testing.T) {
	s := setupSQLite(t, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, "carol", UserMessage(fmt.Sprintf("message %d", i))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	msgs, err := s.List(ctx, "carol")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, m := range msgs {
		got = append(got, m.Content)
	}
	if diff := cmp.Diff([]string{"message 2", "message 3", "message 4"}, got); diff != "" {
		t.Errorf("window mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteStore_KeepsTimestamp(t *testing.T) {
	s := setupSQLite(t, 0)
	ctx := context.Background()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := s.Append(ctx, "dave", Message{Role: RoleUser, Content: "x", CreatedAt: ts}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	msgs, err := s.List(ctx, "dave")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !msgs[0].CreatedAt.Equal(ts) {
		t.Errorf("CreatedAt = %v, want %v", msgs[0].CreatedAt, ts)
	}
}

func TestNew(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer database.Close()

	s, err := New(context.Background(), config.HistoryConfig{Backend: config.HistorySQLite}, database)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("expected *SQLiteStore, got %T", s)
	}

	if _, err := New(context.Background(), config.HistoryConfig{Backend: config.HistorySQLite}, nil); err == nil {
		t.Error("expected error without a database")
	}
	if _, err := New(context.Background(), config.HistoryConfig{Backend: "postgres"}, database); err == nil {
		t.Error("expected error for unknown backend")
	}
}

// TestRedisStore runs against a real server when CLAIMWISE_TEST_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CLAIMWISE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CLAIMWISE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(ctx, RedisOptions{
		Addr:   addr,
		Prefix: fmt.Sprintf("claimwise-test-%d", time.Now().UnixNano()),
		TTL:    time.Minute,
	})
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() {
		s.Clear(ctx, "bob")
		s.Close()
	})
	exerciseStore(t, s)
}

func TestRedisKeys(t *testing.T) {
	s := &RedisStore{prefix: "cw"}
	if got := s.historyKey("alice"); got != "cw:history:alice" {
		t.Errorf("historyKey = %q", got)
	}
	if got := s.usersKey(); got != "cw:users" {
		t.Errorf("usersKey = %q", got)
	}
}
