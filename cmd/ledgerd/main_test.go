package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmerrifield20/postledger/internal/postledger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestContainsWildcard(t *testing.T) {
	if !containsWildcard([]string{"http://a", " * "}) {
		t.Error("expected wildcard to be detected")
	}
	if containsWildcard([]string{"http://localhost:3000"}) {
		t.Error("unexpected wildcard")
	}
}

func TestOpenStore_memoryArchiveRoundTrip(t *testing.T) {
	viper.Reset()
	setDefaults()
	viper.Set("storage.backend", "memory")
	viper.Set("storage.archive_path", filepath.Join(t.TempDir(), "posts.jsonl.zst"))
	ctx := context.Background()

	s, err := openStore(ctx, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	call := postledger.Call{Caller: "0xabc", Timestamp: 100}
	s.ledger.CreatePost(ctx, call, "Post Alpha", "hash") //nolint:errcheck
	s.ledger.CreatePost(ctx, call, "Post Beta", "hash")  //nolint:errcheck
	root, _ := s.ledger.Root(ctx)
	if err := s.snapshot(ctx); err != nil {
		t.Fatal(err)
	}
	s.close()

	s2, err := openStore(ctx, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer s2.close()
	if n, _ := s2.ledger.GetPostCount(ctx); n != 2 {
		t.Errorf("expected 2 restored posts, got %d", n)
	}
	if root2, _ := s2.ledger.Root(ctx); root2 != root {
		t.Errorf("restored root %q != %q", root2, root)
	}
}

func TestOpenStore_sqlite(t *testing.T) {
	viper.Reset()
	setDefaults()
	viper.Set("storage.backend", "sqlite")
	viper.Set("storage.sqlite_path", filepath.Join(t.TempDir(), "posts.db"))

	s, err := openStore(context.Background(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()
	if s.backend != "sqlite" {
		t.Errorf("unexpected backend %q", s.backend)
	}
	if err := s.snapshot(context.Background()); err != nil {
		t.Errorf("snapshot of a durable backend should be a no-op, got %v", err)
	}
}

func TestOpenStore_unknownBackend(t *testing.T) {
	viper.Reset()
	setDefaults()
	viper.Set("storage.backend", "cassandra")

	if _, err := openStore(context.Background(), zap.NewNop()); err == nil {
		t.Error("expected error for unknown backend")
	}
}
