package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jmerrifield20/postledger/internal/archive"
	"github.com/jmerrifield20/postledger/internal/identity"
	"github.com/jmerrifield20/postledger/internal/postledger"
	"github.com/jmerrifield20/postledger/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenSubject string
	tokenSecret  string
	tokenIssuer  string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a caller token (operator only)",
	Long: `Token signs a caller token with the ledgerd auth.jwt_secret.

The subject becomes the post author: a 0x-prefixed 20-byte hex address is
used as-is, anything else is hashed into one.

  ledgerctl token --subject alice@example.com --secret "$AUTH_JWT_SECRET"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := tokenSecret
		if secret == "" {
			secret = viper.GetString("jwt_secret")
		}
		issuer, err := identity.NewCallerTokenIssuer([]byte(secret), tokenIssuer, tokenTTL)
		if err != nil {
			return err
		}
		tok, err := issuer.Issue(tokenSubject)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Address: %s\n", identity.AddressFromSubject(tokenSubject))
		fmt.Fprintf(out, "Token:   %s\n", tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Caller subject (address or any stable identifier)")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "HMAC secret shared with ledgerd (env POSTLEDGER_JWT_SECRET)")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "http://localhost:8080", "Token issuer; must match ledgerd auth.issuer")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
}

// ── export ───────────────────────────────────────────────────────────────────

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download every post into a zstd-compressed archive",
	Long: `Export writes the ledger as zstd-compressed JSON lines. A memory-backed
ledgerd can be started from the file with storage.archive_path.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		posts, err := c.ListPosts(cmd.Context())
		if err != nil {
			return err
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		if err := archive.Write(f, toLedgerPosts(posts)); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d posts to %s\n", len(posts), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "posts.jsonl.zst", "Archive file to write")
}

func toLedgerPosts(posts []client.Post) []postledger.Post {
	out := make([]postledger.Post, len(posts))
	for i, p := range posts {
		out[i] = postledger.Post{
			ID:         p.ID,
			Title:      p.Title,
			ContentRef: p.ContentRef,
			Author:     postledger.Address(p.Author),
			CreatedAt:  p.CreatedAt,
			PrevHash:   p.PrevHash,
			Hash:       p.Hash,
		}
	}
	return out
}

// ── watch ────────────────────────────────────────────────────────────────────

var watchJSON bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream newly created posts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		enc := json.NewEncoder(out)
		return c.Watch(ctx, func(ev client.PostCreated) error {
			if watchJSON {
				return enc.Encode(ev)
			}
			_, err := fmt.Fprintf(out, "#%d %s by %s at %s (%s)\n",
				ev.ID, ev.Title, ev.Author, formatUnix(ev.CreatedAt), ev.ContentRef)
			return err
		})
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print one JSON object per post")
}
