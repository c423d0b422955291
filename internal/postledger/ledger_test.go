package postledger_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/postledger/internal/postledger"
	"go.uber.org/zap"
)

var ctx = context.Background()

const (
	owner postledger.Address = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	addr1 postledger.Address = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
)

type ledgerFactory func(t *testing.T) postledger.Ledger

func backends() map[string]ledgerFactory {
	m := map[string]ledgerFactory{
		"memory": func(t *testing.T) postledger.Ledger {
			return postledger.NewMemoryLedger()
		},
		"sqlite": func(t *testing.T) postledger.Ledger {
			l, err := postledger.OpenSQLiteLedger(filepath.Join(t.TempDir(), "posts.db"), zap.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { l.Close() })
			return l
		},
	}
	if dsn := os.Getenv("POSTLEDGER_TEST_DATABASE_URL"); dsn != "" {
		m["postgres"] = func(t *testing.T) postledger.Ledger {
			return openTestPostgres(t, dsn)
		}
	}
	return m
}

// openTestPostgres applies the posts migration to dsn and empties the table.
func openTestPostgres(t *testing.T, dsn string) postledger.Ledger {
	t.Helper()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/001_posts.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE posts"); err != nil {
		t.Fatalf("truncate posts: %v", err)
	}
	return postledger.NewPostgresLedger(pool, zap.NewNop())
}

// forEachBackend runs fn once per Ledger implementation. PostgreSQL is
// included when POSTLEDGER_TEST_DATABASE_URL is set.
func forEachBackend(t *testing.T, fn func(t *testing.T, l postledger.Ledger)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func mustCreate(t *testing.T, l postledger.Ledger, caller postledger.Address, ts int64, title, ref string) uint64 {
	t.Helper()
	id, err := l.CreatePost(ctx, postledger.Call{Caller: caller, Timestamp: ts}, title, ref)
	if err != nil {
		t.Fatalf("CreatePost(%q): %v", title, err)
	}
	return id
}

func TestFreshLedger_isEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l postledger.Ledger) {
		n, err := l.GetPostCount(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("expected 0 posts, got %d", n)
		}

		posts, err := l.GetAllPosts(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if posts == nil || len(posts) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", posts)
		}

		root, err := l.Root(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if root != postledger.GenesisHash {
			t.Errorf("Root() on empty ledger: got %q, want GenesisHash", root)
		}
	})
}

func TestCreatePost_firstPost(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l postledger.Ledger) {
		id := mustCreate(t, l, owner, 1_700_000_000, "My First Post", "ipfs_hash_1")
		if id != 0 {
			t.Errorf("first id: got %d, want 0", id)
		}

		n, _ := l.GetPostCount(ctx)
		if n != 1 {
			t.Errorf("count: got %d, want 1", n)
		}

		posts, err := l.GetAllPosts(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(posts) != 1 {
			t.Fatalf("expected 1 post, got %d", len(posts))
		}
		p := posts[0]
		if p.ID != 0 || p.Title != "My First Post" || p.ContentRef != "ipfs_hash_1" || p.Author != owner {
			t.Errorf("unexpected post: %+v", p)
		}
		if p.CreatedAt != 1_700_000_000 {
			t.Errorf("created_at: got %d", p.CreatedAt)
		}
		if p.PrevHash != postledger.GenesisHash {
			t.Errorf("post 0 should chain from GenesisHash, got %q", p.PrevHash)
		}
	})
}

func TestCreatePost_incrementsIDAcrossCallers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l postledger.Ledger) {
		if id := mustCreate(t, l, owner, 100, "Post 1", "hash1"); id != 0 {
			t.Errorf("first id: got %d, want 0", id)
		}
		if id := mustCreate(t, l, addr1, 101, "Post 2 by addr1", "hash2"); id != 1 {
			t.Errorf("second id: got %d, want 1", id)
		}

		n, _ := l.GetPostCount(ctx)
		if n != 2 {
			t.Errorf("count: got %d, want 2", n)
		}
		posts, _ := l.GetAllPosts(ctx)
		if len(posts) != 2 {
			t.Fatalf("expected 2 posts, got %d", len(posts))
		}
		if posts[1].Title != "Post 2 by addr1" {
			t.Errorf("posts[1].Title = %q", posts[1].Title)
		}
		if posts[1].Author != addr1 {
			t.Errorf("posts[1].Author = %q, want %q", posts[1].Author, addr1)
		}
	})
}

func TestGetAllPosts_afterThirdPost(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l postledger.Ledger) {
		mustCreate(t, l, owner, 10, "Post Alpha", "hash_alpha")
		mustCreate(t, l, addr1, 11, "Post Beta by addr1", "hash_beta")

		posts, _ := l.GetAllPosts(ctx)
		if posts[0].Title != "Post Alpha" || posts[0].Author != owner {
			t.Errorf("posts[0] = %+v", posts[0])
		}
		if posts[1].Title != "Post Beta by addr1" || posts[1].Author != addr1 {
			t.Errorf("posts[1] = %+v", posts[1])
		}

		if n, _ := l.GetPostCount(ctx); n != 2 {
			t.Fatalf("count before: got %d, want 2", n)
		}
		mustCreate(t, l, owner, 12, "Post Gamma", "hash_gamma")
		if n, _ := l.GetPostCount(ctx); n != 3 {
			t.Fatalf("count after: got %d, want 3", n)
		}
		posts, _ = l.GetAllPosts(ctx)
		if posts[2].Title != "Post Gamma" {
			t.Errorf("posts[2].Title = %q", posts[2].Title)
		}
	})
}

func TestGetPost_roundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l postledger.Ledger) {
		for i := 0; i < 5; i++ {
			mustCreate(t, l, owner, int64(1000+i), "t", "r")
		}
		id := mustCreate(t, l, addr1, 2000, "", "")

		p, err := l.GetPost(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if p.ID != id || p.Title != "" || p.ContentRef != "" || p.Author != addr1 || p.CreatedAt != 2000 {
			t.Errorf("unexpected post: %+v", p)
		}

		posts, _ := l.GetAllPosts(ctx)
		for i, p := range posts {
			if p.ID != uint64(i) {
				t.Errorf("posts[%d].ID = %d", i, p.ID)
			}
		}
	})
}

func TestGetPost_notFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l postledger.Ledger) {
		if _, err := l.GetPost(ctx, 0); !errors.Is(err, postledger.ErrNotFound) {
			t.Errorf("empty ledger: expected ErrNotFound, got %v", err)
		}

		mustCreate(t, l, owner, 1, "only", "ref")
		for _, id := range []uint64{1, 2, 999, ^uint64(0)} {
			if _, err := l.GetPost(ctx, id); !errors.Is(err, postledger.ErrNotFound) {
				t.Errorf("GetPost(%d): expected ErrNotFound, got %v", id, err)
			}
		}
	})
}

func TestGetAllPosts_returnsSnapshot(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l postledger.Ledger) {
		mustCreate(t, l, owner, 1, "original", "ref")

		posts, _ := l.GetAllPosts(ctx)
		posts[0].Title = "mutated"
		_ = append(posts, postledger.Post{ID: 1})

		p, err := l.GetPost(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if p.Title != "original" {
			t.Errorf("ledger storage aliased by caller: title %q", p.Title)
		}
		p.Title = "mutated again"
		again, _ := l.GetPost(ctx, 0)
		if again.Title != "original" {
			t.Errorf("GetPost result aliases storage: title %q", again.Title)
		}
		if n, _ := l.GetPostCount(ctx); n != 1 {
			t.Errorf("count changed by caller: %d", n)
		}
	})
}

func TestCreatePost_emitsOneEventPerPost(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l postledger.Ledger) {
		var got []postledger.PostCreated
		cancel := l.Subscribe(postledger.ListenerFunc(func(ev postledger.PostCreated) {
			got = append(got, ev)
		}))
		defer cancel()

		mustCreate(t, l, owner, 500, "Another Post", "ipfs_hash_2")
		mustCreate(t, l, addr1, 501, "Second", "ipfs_hash_3")

		if len(got) != 2 {
			t.Fatalf("expected 2 events, got %d", len(got))
		}
		want := postledger.PostCreated{ID: 0, Title: "Another Post", ContentRef: "ipfs_hash_2", Author: owner, CreatedAt: 500}
		if got[0] != want {
			t.Errorf("event 0: got %+v, want %+v", got[0], want)
		}
		for _, ev := range got {
			p, err := l.GetPost(ctx, ev.ID)
			if err != nil {
				t.Fatal(err)
			}
			if p.Event() != ev {
				t.Errorf("event %+v does not match stored post %+v", ev, p)
			}
		}
	})
}

func TestSubscribe_cancelStopsDelivery(t *testing.T) {
	l := postledger.NewMemoryLedger()
	calls := 0
	cancel := l.Subscribe(postledger.ListenerFunc(func(postledger.PostCreated) { calls++ }))

	mustCreate(t, l, owner, 1, "a", "a")
	cancel()
	cancel() // idempotent
	mustCreate(t, l, owner, 2, "b", "b")

	if calls != 1 {
		t.Errorf("expected 1 delivery, got %d", calls)
	}
}

func TestListener_canReadLedger(t *testing.T) {
	l := postledger.NewMemoryLedger()
	var seen uint64
	l.Subscribe(postledger.ListenerFunc(func(ev postledger.PostCreated) {
		n, _ := l.GetPostCount(ctx)
		seen = n
	}))

	mustCreate(t, l, owner, 1, "a", "a")
	if seen != 1 {
		t.Errorf("listener should observe the appended post, saw count %d", seen)
	}
}

func TestListener_readsDuringConcurrentCreates(t *testing.T) {
	l := postledger.NewMemoryLedger()
	l.Subscribe(postledger.ListenerFunc(func(ev postledger.PostCreated) {
		if _, err := l.GetPost(ctx, ev.ID); err != nil {
			t.Errorf("GetPost(%d) from listener: %v", ev.ID, err)
		}
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					_, _ = l.CreatePost(ctx, postledger.Call{Caller: addr1, Timestamp: 2}, "t", "r")
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent creates with a reading listener did not finish")
	}
}

func TestCreatePost_concurrentIDsAreDenseAndEventsOrdered(t *testing.T) {
	l := postledger.NewMemoryLedger()

	var mu sync.Mutex
	var order []uint64
	l.Subscribe(postledger.ListenerFunc(func(ev postledger.PostCreated) {
		mu.Lock()
		order = append(order, ev.ID)
		mu.Unlock()
	}))

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := l.CreatePost(ctx, postledger.Call{Caller: owner, Timestamp: 1}, "t", "r"); err != nil {
					t.Error(err)
				}
				if _, err := l.GetAllPosts(ctx); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	n, _ := l.GetPostCount(ctx)
	if n != workers*perWorker {
		t.Fatalf("count: got %d, want %d", n, workers*perWorker)
	}
	for i, id := range order {
		if id != uint64(i) {
			t.Fatalf("event %d carried id %d; events out of order", i, id)
		}
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() after concurrent appends: %v", err)
	}
}

func TestVerify_validChain(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l postledger.Ledger) {
		if err := l.Verify(ctx); err != nil {
			t.Errorf("Verify() on empty ledger: %v", err)
		}
		mustCreate(t, l, owner, 1, "a|b", "c")
		mustCreate(t, l, addr1, 2, "a", "b|c")
		if err := l.Verify(ctx); err != nil {
			t.Errorf("Verify() failed on valid chain: %v", err)
		}

		last, _ := l.GetPost(ctx, 1)
		first, _ := l.GetPost(ctx, 0)
		if last.PrevHash != first.Hash {
			t.Errorf("chain broken: post 1 PrevHash=%q, want %q", last.PrevHash, first.Hash)
		}
		root, _ := l.Root(ctx)
		if root != last.Hash {
			t.Errorf("Root(): got %q, want %q", root, last.Hash)
		}
	})
}

func TestSQLiteLedger_detectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.db")
	l, err := postledger.OpenSQLiteLedger(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	mustCreate(t, l, owner, 1, "honest", "ref")
	mustCreate(t, l, owner, 2, "also honest", "ref")

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Close()
	if _, err := raw.Exec("UPDATE posts SET title = 'forged' WHERE id = 0"); err != nil {
		t.Fatal(err)
	}

	if err := l.Verify(ctx); err == nil {
		t.Error("Verify() should fail after a row was edited")
	}
}

func TestSQLiteLedger_reopenContinuesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.db")
	l, err := postledger.OpenSQLiteLedger(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	mustCreate(t, l, owner, 1, "before restart", "ref")
	l.Close()

	l, err = postledger.OpenSQLiteLedger(path, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if id := mustCreate(t, l, addr1, 2, "after restart", "ref"); id != 1 {
		t.Errorf("id after reopen: got %d, want 1", id)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() across restart: %v", err)
	}
}
