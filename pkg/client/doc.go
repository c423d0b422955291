// Package client is the postledger Go SDK.
//
// It wraps the ledgerd HTTP API: reading posts is public, creating one needs
// a caller token issued by the ledger operator.
//
// # Reading posts
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	posts, err := c.ListPosts(ctx)
//	post, err := c.GetPost(ctx, 0)
//	if errors.Is(err, client.ErrNotFound) {
//	    // no such post yet
//	}
//
// Posts never change once written, so GetPost results may be cached for the
// lifetime of the client:
//
//	c, _ := client.New(baseURL, client.WithPostCache())
//
// # Creating a post
//
//	c, _ := client.New(baseURL, client.WithBearerToken(token))
//	id, err := c.CreatePost(ctx, "Post Alpha", "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG")
//
// # Integrity
//
// Overview returns the post count and chain root; Verify asks the server to
// walk the hash chain:
//
//	ok, reason, err := c.Verify(ctx)
//
// # Streaming new posts
//
// Watch blocks and calls fn for every post created after the connection is
// established:
//
//	err := c.Watch(ctx, func(ev client.PostCreated) error {
//	    fmt.Println(ev.ID, ev.Title)
//	    return nil
//	})
package client
