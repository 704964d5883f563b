package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/totegamma/culturebridge/nostr"
)

// PublishResult is the relay's answer to an EVENT message.
type PublishResult struct {
	Accepted bool
	Message  string
}

func (c *Client) connect(ctx context.Context, relayURL string) (*websocket.Conn, func(), error) {
	conn, _, err := c.dialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %v", relayURL, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	closer := func() {
		close(done)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	return conn, closer, nil
}

func readFrame(conn *websocket.Conn) (string, []json.RawMessage, error) {
	var frame []json.RawMessage
	if err := conn.ReadJSON(&frame); err != nil {
		return "", nil, err
	}
	if len(frame) == 0 {
		return "", nil, fmt.Errorf("empty frame")
	}
	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil {
		return "", nil, fmt.Errorf("invalid frame label: %v", err)
	}
	return label, frame[1:], nil
}

// Publish sends a signed event and waits for the relay's OK.
func (c *Client) Publish(ctx context.Context, relayURL string, ev nostr.Event) (PublishResult, error) {
	conn, closer, err := c.connect(ctx, relayURL)
	if err != nil {
		return PublishResult{}, err
	}
	defer closer()

	if err := conn.WriteJSON([]any{"EVENT", ev}); err != nil {
		return PublishResult{}, fmt.Errorf("failed to send event: %v", err)
	}

	for {
		label, args, err := readFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				return PublishResult{}, ctx.Err()
			}
			return PublishResult{}, fmt.Errorf("failed to read from %s: %v", relayURL, err)
		}
		if label != "OK" || len(args) < 2 {
			continue
		}

		var id string
		if err := json.Unmarshal(args[0], &id); err != nil || id != ev.ID {
			continue
		}
		var result PublishResult
		if err := json.Unmarshal(args[1], &result.Accepted); err != nil {
			return PublishResult{}, fmt.Errorf("invalid OK frame: %v", err)
		}
		if len(args) >= 3 {
			json.Unmarshal(args[2], &result.Message)
		}
		return result, nil
	}
}

// Query sends a REQ and collects the stored events up to EOSE.
// Events with an invalid signature are dropped.
func (c *Client) Query(ctx context.Context, relayURL string, filter nostr.Filter) ([]nostr.Event, error) {
	conn, closer, err := c.connect(ctx, relayURL)
	if err != nil {
		return nil, err
	}
	defer closer()

	subID := uuid.NewString()[:8]
	if err := conn.WriteJSON([]any{"REQ", subID, filter}); err != nil {
		return nil, fmt.Errorf("failed to send request: %v", err)
	}

	var events []nostr.Event
	for {
		label, args, err := readFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				return events, ctx.Err()
			}
			return events, fmt.Errorf("failed to read from %s: %v", relayURL, err)
		}

		switch label {
		case "EVENT":
			if len(args) < 2 {
				continue
			}
			var ev nostr.Event
			if err := json.Unmarshal(args[1], &ev); err != nil {
				continue
			}
			if ev.CheckSignature() != nil || !filter.Matches(&ev) {
				continue
			}
			events = append(events, ev)
		case "EOSE":
			conn.WriteJSON([]any{"CLOSE", subID})
			return events, nil
		case "CLOSED":
			var reason string
			if len(args) >= 2 {
				json.Unmarshal(args[1], &reason)
			}
			return events, fmt.Errorf("subscription closed by relay: %s", reason)
		}
	}
}
