package smartfeed

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamURI         = "wss://smartapisocket.angelone.in/smart-stream"
	heartbeatInterval = 10 * time.Second

	subscribeAction = 1
	modeLTP         = 1
	exchangeNSECM   = 1
)

// QuoteHandler receives each last-traded-price update from the stream.
type QuoteHandler func(symbol string, price float64, ts time.Time)

// Stream maintains the websocket quote feed for the configured universe and
// forwards LTP updates to a handler (typically the Redis quote cache).
// Reconnects with backoff and resubscribes on its own.
type Stream struct {
	client  *Client
	handler QuoteHandler

	tokens   []string
	bySymbol map[string]string // token -> symbol

	maxRetries int
	retryDelay time.Duration

	// OnReconnect, if set, is called before each reconnection attempt.
	OnReconnect func()
	// OnConnected, if set, is called after each successful (re)connect.
	OnConnected func()
}

// NewStream builds a stream over the client's instrument universe.
func NewStream(client *Client, handler QuoteHandler) *Stream {
	s := &Stream{
		client:     client,
		handler:    handler,
		bySymbol:   make(map[string]string),
		maxRetries: 5,
		retryDelay: 2 * time.Second,
	}
	for _, ins := range client.Instruments() {
		s.tokens = append(s.tokens, ins.Token)
		s.bySymbol[ins.Token] = ins.Symbol
	}
	return s
}

// Run connects and pumps quotes until ctx is cancelled or the retry budget
// is exhausted. Blocking; run it in its own goroutine.
func (s *Stream) Run(ctx context.Context) error {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := s.connect(ctx)
		if err != nil {
			attempts++
			if attempts > s.maxRetries {
				return fmt.Errorf("smartfeed: stream gave up after %d attempts: %w", attempts-1, err)
			}
			if s.OnReconnect != nil {
				s.OnReconnect()
			}
			log.Printf("[smartfeed] stream connect failed (attempt %d/%d): %v", attempts, s.maxRetries, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay * time.Duration(attempts)):
			}
			continue
		}
		attempts = 0
		if s.OnConnected != nil {
			s.OnConnected()
		}

		err = s.pump(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[smartfeed] stream dropped: %v", err)
		if s.OnReconnect != nil {
			s.OnReconnect()
		}
	}
}

func (s *Stream) connect(ctx context.Context) (*websocket.Conn, error) {
	access := s.client.AccessToken()
	feed := s.client.FeedToken()
	if access == "" || feed == "" {
		return nil, ErrNotLoggedIn
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+access)
	header.Set("x-api-key", s.client.cfg.APIKey)
	header.Set("x-client-code", s.client.cfg.ClientCode)
	header.Set("x-feed-token", feed)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURI, header)
	if err != nil {
		return nil, err
	}

	if err := s.subscribe(conn); err != nil {
		conn.Close()
		return nil, err
	}
	log.Printf("[smartfeed] stream connected, %d tokens subscribed", len(s.tokens))
	return conn, nil
}

func (s *Stream) subscribe(conn *websocket.Conn) error {
	req := map[string]interface{}{
		"correlationID": "scanner",
		"action":        subscribeAction,
		"params": map[string]interface{}{
			"mode": modeLTP,
			"tokenList": []map[string]interface{}{
				{"exchangeType": exchangeNSECM, "tokens": s.tokens},
			},
		},
	}
	body, _ := json.Marshal(req)
	return conn.WriteMessage(websocket.TextMessage, body)
}

// pump reads messages until the connection fails, sending heartbeats on a
// side ticker.
func (s *Stream) pump(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					return
				}
			}
		}
	}()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		switch msgType {
		case websocket.BinaryMessage:
			s.handleBinary(msg)
		case websocket.TextMessage:
			if string(msg) == "pong" {
				continue
			}
			// Control/error payloads arrive as JSON text.
			log.Printf("[smartfeed] stream control: %s", truncate(msg, 200))
		}
	}
}

// handleBinary decodes an LTP packet: mode byte, exchange byte, 25-byte
// null-padded token at 2:27, and the last traded price in paise as a little
// endian int64 at 43:51.
func (s *Stream) handleBinary(b []byte) {
	if len(b) < 51 {
		return
	}
	if b[0] != modeLTP {
		return
	}
	token := string(bytes.TrimRight(b[2:27], "\x00"))
	symbol, ok := s.bySymbol[token]
	if !ok {
		return
	}
	exTs := int64(binary.LittleEndian.Uint64(b[35:43]))
	paise := int64(binary.LittleEndian.Uint64(b[43:51]))
	if s.handler != nil {
		s.handler(symbol, float64(paise)/100.0, time.UnixMilli(exTs))
	}
}
