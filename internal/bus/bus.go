// Package bus mirrors listen events onto a websocket hub and reads control
// messages addressed to lark back from it.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lark/internal/listen"
)

const (
	Name      = "lark"
	Broadcast = "*"

	writeWait = 5 * time.Second
)

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func FromEvent(ev listen.Event) Message {
	return Message{
		From:    Name,
		To:      Broadcast,
		Kind:    string(ev.Kind),
		Content: ev.Text,
	}
}

type Bus struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func Dial(ctx context.Context, wsURL string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("bus url must be ws(s): %q", wsURL)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Bus{conn: conn}, nil
}

func (b *Bus) Write(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bus) Read() (Message, error) {
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}

	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (b *Bus) Publish(_ context.Context, ev listen.Event) error {
	return b.Write(FromEvent(ev))
}

// Serve reads messages until the connection drops or ctx ends and passes
// the ones addressed to lark to handle. Undecodable frames are skipped.
func (b *Bus) Serve(ctx context.Context, handle func(Message)) error {
	stop := context.AfterFunc(ctx, func() { b.conn.Close() })
	defer stop()

	for {
		m, err := b.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				log.Warn("Skipping malformed bus message", "err", err)
				continue
			}
			return fmt.Errorf("read bus: %w", err)
		}

		if m.To != Name && m.To != Broadcast {
			continue
		}
		if m.From == Name {
			continue
		}
		handle(m)
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_ = b.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return b.conn.Close()
}
