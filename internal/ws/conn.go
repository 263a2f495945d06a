package ws

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
	"github.com/mauv0809/ideal-pong/internal/game"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Conn is one client connection. Writes go through a buffered channel
// drained by WriteLoop; a full buffer drops the frame.
type Conn struct {
	ws      *websocket.Conn
	sendCh  chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *IPRateLimiter

	Player game.Player
	IP     string

	mu            sync.Mutex
	subscriptions map[string]struct{}
}

func NewConn(ws *websocket.Conn, player game.Player, ip string, limiter *IPRateLimiter) *Conn {
	return &Conn{
		ws:            ws,
		sendCh:        make(chan []byte, sendBuffer),
		done:          make(chan struct{}),
		limiter:       limiter,
		Player:        player,
		IP:            ip,
		subscriptions: make(map[string]struct{}),
	}
}

// Send encodes and queues msg.
func (c *Conn) Send(msg Message) {
	data, err := Encode(msg)
	if err != nil {
		log.Error("Failed to encode message", "player", c.Player.ID, "error", err)
		return
	}
	c.sendRaw(data)
}

func (c *Conn) sendRaw(data []byte) {
	select {
	case c.sendCh <- data:
	case <-c.done:
	default:
		log.Warn("Send buffer full, dropping message", "player", c.Player.ID)
	}
}

// ReadLoop decodes incoming frames until the connection fails or ctx ends.
// Frames over the IP's message rate are dropped.
func (c *Conn) ReadLoop(ctx context.Context) <-chan Message {
	ch := make(chan Message, sendBuffer)
	go func() {
		defer close(ch)
		for {
			_, data, err := c.ws.Read(ctx)
			if err != nil {
				log.Debug("Read stopped", "player", c.Player.ID, "error", err)
				c.Close()
				return
			}
			if c.limiter != nil && !c.limiter.MessageAllowed(c.IP) {
				continue
			}
			msg, err := Decode(data)
			if err != nil {
				log.Debug("Dropping malformed message", "player", c.Player.ID, "error", err)
				continue
			}
			select {
			case ch <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (c *Conn) WriteLoop(ctx context.Context) {
	for {
		select {
		case data := <-c.sendCh:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debug("Write failed", "player", c.Player.ID, "error", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close(websocket.StatusNormalClosure, "")
	})
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) subscribe(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscriptions[channel]; ok {
		return false
	}
	c.subscriptions[channel] = struct{}{}
	return true
}

func (c *Conn) unsubscribe(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subscriptions[channel]; !ok {
		return false
	}
	delete(c.subscriptions, channel)
	return true
}

// Subscriptions returns the channels the connection listens on.
func (c *Conn) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subscriptions))
	for ch := range c.subscriptions {
		out = append(out, ch)
	}
	return out
}
