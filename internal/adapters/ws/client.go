package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"nhooyr.io/websocket"

	"github.com/okian/vigil/internal/adapters/wire"
	"github.com/okian/vigil/internal/domain/call"
)

// Client is one websocket connection to the session transport. It
// implements call.Signaler so a Go endpoint can signal through it.
type Client struct {
	conn *websocket.Conn
}

var _ call.Signaler = (*Client)(nil)

// Dial connects to endpoint (for example ws://host:9080/ws) with token.
func Dial(ctx context.Context, endpoint, token string) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.Dial(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(DefaultReadLimit)
	return &Client{conn: conn}, nil
}

// Write sends one frame of kind k.
func (c *Client) Write(ctx context.Context, k wire.Kind, payload any) error {
	frame, err := wire.Encode(k, payload)
	if err != nil {
		return err
	}
	if err := c.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("write %s: %w", k, err)
	}
	return nil
}

// Send implements call.Signaler.
func (c *Client) Send(ctx context.Context, msg call.Message) error {
	k, sig := wire.FromCall(msg)
	return c.Write(ctx, k, sig)
}

// Next blocks for the next server frame. A normal close returns
// ErrClosed.
func (c *Client) Next(ctx context.Context) (wire.Message, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			return wire.Message{}, ErrClosed
		}
		return wire.Message{}, fmt.Errorf("read: %w", err)
	}
	return wire.Decode(data)
}

// Run delivers server frames to fn until the connection or ctx ends.
// Frames that fail to decode are skipped.
func (c *Client) Run(ctx context.Context, fn func(wire.Message)) error {
	for {
		msg, err := c.Next(ctx)
		switch {
		case errors.Is(err, ErrClosed):
			return nil
		case errors.Is(err, wire.ErrUnknownKind), errors.Is(err, wire.ErrInvalidPayload):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fn(msg)
	}
}

// Close closes the connection normally.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
