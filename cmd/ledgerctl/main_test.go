package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/postledger/internal/archive"
	"github.com/jmerrifield20/postledger/internal/handler"
	"github.com/jmerrifield20/postledger/internal/identity"
	"github.com/jmerrifield20/postledger/internal/postledger"
	"github.com/jmerrifield20/postledger/pkg/client"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var samplePosts = []client.Post{
	{ID: 0, Title: "Post Alpha", ContentRef: "QmAlpha", Author: "0xabc", CreatedAt: 1_700_000_000, Hash: "h0"},
	{ID: 1, Title: "Post Beta", ContentRef: "QmBeta", Author: "0xdef", CreatedAt: 1_700_000_060, Hash: "h1"},
}

func TestPrintPosts_text(t *testing.T) {
	var buf bytes.Buffer
	if err := printPosts(&buf, "text", samplePosts, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "ID") || !strings.Contains(out, "Post Beta") || !strings.Contains(out, "2023-11-14T22:13:20Z") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

func TestPrintPosts_singleText(t *testing.T) {
	var buf bytes.Buffer
	if err := printPosts(&buf, "text", samplePosts[:1], true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Content Ref: QmAlpha") {
		t.Errorf("unexpected detail view:\n%s", buf.String())
	}
}

func TestPrintPosts_json(t *testing.T) {
	var buf bytes.Buffer
	if err := printPosts(&buf, "json", samplePosts, false); err != nil {
		t.Fatal(err)
	}
	var got []client.Post
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1] != samplePosts[1] {
		t.Errorf("unexpected json output: %s", buf.String())
	}
}

func TestPrintPosts_yaml(t *testing.T) {
	var buf bytes.Buffer
	if err := printPosts(&buf, "yaml", samplePosts[:1], true); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["title"] != "Post Alpha" || got["content_ref"] != "QmAlpha" {
		t.Errorf("unexpected yaml output:\n%s", buf.String())
	}
}

func TestPrintPosts_unknownFormat(t *testing.T) {
	if err := printPosts(&bytes.Buffer{}, "xml", samplePosts, false); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestToLedgerPosts(t *testing.T) {
	got := toLedgerPosts(samplePosts)
	if len(got) != 2 || got[1].Author != postledger.Address("0xdef") || got[1].Hash != "h1" {
		t.Errorf("unexpected conversion: %+v", got)
	}
}

func TestCLI_endToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens, err := identity.NewCallerTokenIssuer([]byte("cli-secret"), "http://ledgerd.test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	ledger := postledger.NewMemoryLedger()
	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewPostHandler(ledger, zap.NewNop()).Register(v1, identity.RequireCaller(tokens))
	handler.NewLedgerHandler(ledger, zap.NewNop()).Register(v1)
	srv := httptest.NewServer(r)
	defer srv.Close()

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(args)
		if err := rootCmd.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("ledgerctl %v: %v", args, err)
		}
		return out.String()
	}

	out := run("token", "--subject", "0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		"--secret", "cli-secret", "--issuer", "http://ledgerd.test")
	if !strings.Contains(out, "Address: 0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266") {
		t.Fatalf("unexpected token output: %s", out)
	}
	tok := strings.TrimSpace(out[strings.Index(out, "Token:")+len("Token:"):])

	out = run("create", "--ledger", srv.URL, "--token", tok, "--title", "Post Alpha", "--content-ref", "QmAlpha")
	if strings.TrimSpace(out) != "created post 0" {
		t.Errorf("unexpected create output: %q", out)
	}

	out = run("count", "--ledger", srv.URL)
	if strings.TrimSpace(out) != "1" {
		t.Errorf("unexpected count output: %q", out)
	}

	out = run("verify", "--ledger", srv.URL)
	if !strings.Contains(out, "Chain: valid") {
		t.Errorf("unexpected verify output: %q", out)
	}

	path := filepath.Join(t.TempDir(), "posts.jsonl.zst")
	run("export", "--ledger", srv.URL, "--out", path)
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	posts, err := archive.Read(f)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := ledger.GetPost(context.Background(), 0)
	if len(posts) != 1 || posts[0] != *want {
		t.Errorf("exported archive does not match ledger: %+v", posts)
	}
}
