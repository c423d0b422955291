package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/postledger/pkg/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ── create ───────────────────────────────────────────────────────────────────

var (
	createTitle      string
	createContentRef string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Append a post to the ledger",
	Long: `Create appends a post authored by the caller named in --token.

  ledgerctl create --title "Post Alpha" --content-ref QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if callerToken == "" {
			return fmt.Errorf("a caller token is required (--token or POSTLEDGER_TOKEN)")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		id, err := c.CreatePost(cmd.Context(), createTitle, createContentRef)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created post %d\n", id)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createTitle, "title", "", "Post title")
	createCmd.Flags().StringVar(&createContentRef, "content-ref", "", "Content reference (e.g. an IPFS hash)")
}

// ── get / list ───────────────────────────────────────────────────────────────

var outputFormat string

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a single post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid post id %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		p, err := c.GetPost(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printPosts(cmd.OutOrStdout(), outputFormat, []client.Post{*p}, true)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every post in id order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		posts, err := c.ListPosts(cmd.Context())
		if err != nil {
			return err
		}
		return printPosts(cmd.OutOrStdout(), outputFormat, posts, false)
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, listCmd} {
		c.Flags().StringVar(&outputFormat, "format", "text", "Output format: text, json or yaml")
	}
}

// printPosts renders posts. single unwraps a one-element result.
func printPosts(w io.Writer, format string, posts []client.Post, single bool) error {
	var v any = posts
	if single && len(posts) == 1 {
		v = posts[0]
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}

	if single && len(posts) == 1 {
		p := posts[0]
		fmt.Fprintf(w, "ID:          %d\n", p.ID)
		fmt.Fprintf(w, "Title:       %s\n", p.Title)
		fmt.Fprintf(w, "Content Ref: %s\n", p.ContentRef)
		fmt.Fprintf(w, "Author:      %s\n", p.Author)
		fmt.Fprintf(w, "Created:     %s\n", formatUnix(p.CreatedAt))
		fmt.Fprintf(w, "Hash:        %s\n", p.Hash)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tCREATED\tTITLE\tCONTENT REF")
	for _, p := range posts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Author, formatUnix(p.CreatedAt), p.Title, p.ContentRef)
	}
	return tw.Flush()
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

// ── count / verify ───────────────────────────────────────────────────────────

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of posts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		n, err := c.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the ledger's hash chain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		o, err := c.Overview(cmd.Context())
		if err != nil {
			return err
		}
		ok, reason, err := c.Verify(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Posts: %d\n", o.Posts)
		fmt.Fprintf(out, "Root:  %s\n", o.Root)
		if !ok {
			fmt.Fprintf(out, "Chain: INVALID (%s)\n", reason)
			return fmt.Errorf("ledger chain is invalid")
		}
		fmt.Fprintln(out, "Chain: valid")
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ledgerctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ledgerctl %s\n", version)
	},
}
