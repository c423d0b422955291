package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Watch connects to the event stream and calls fn for each PostCreated until
// ctx is cancelled, fn returns an error or the server closes the stream.
// A normal close by either side returns nil.
func (c *Client) Watch(ctx context.Context, fn func(PostCreated) error) error {
	wsURL := "ws" + strings.TrimPrefix(c.base, "http") + "/api/v1/events"

	header := http.Header{}
	if c.bearerToken != "" {
		header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: HTTP %d: %w", wsURL, resp.StatusCode, err)
		}
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	defer stop()

	for {
		var env struct {
			Type string      `json:"type"`
			Data PostCreated `json:"data"`
		}
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if env.Type != "post.created" {
			continue
		}
		if err := fn(env.Data); err != nil {
			if errors.Is(err, ErrStopWatching) {
				return nil
			}
			return err
		}
	}
}

// ErrStopWatching may be returned by a Watch callback to end the stream
// without an error.
var ErrStopWatching = errors.New("stop watching")
