package admin

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zapcore"

	"github.com/mcprouter/mcprouter/internal/util"
)

// maxBroadcastRunes caps a single log line sent to a WebSocket client, so a
// runaway tool result logged at debug level can't flood every viewer.
const maxBroadcastRunes = 4000

// WSLogCore is a zapcore.Core that fans every log entry out to every
// connected WebSocket client. It writes only to those clients and does not
// wrap another core. Grounded on the original's WebSocketLogHandler: a client set guarded by a
// lock, pruning disconnected clients on send failure.
type WSLogCore struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWSLogCore creates a core at the given level using a console-style
// encoder for the broadcast payload.
func NewWSLogCore(level zapcore.LevelEnabler, enc zapcore.Encoder) *WSLogCore {
	return &WSLogCore{LevelEnabler: level, enc: enc, clients: make(map[*websocket.Conn]struct{})}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection and registers it as a broadcast target
// until it disconnects.
func (c *WSLogCore) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c.addClient(conn)
	defer c.removeClient(conn)

	// Drain incoming messages (none expected) until the client disconnects;
	// this is what detects a closed connection on this side.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *WSLogCore) addClient(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[conn] = struct{}{}
}

func (c *WSLogCore) removeClient(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, conn)
	_ = conn.Close()
}

// With returns c itself, so every derived logger shares the one client set
// and its lock; fields added through With are not included in broadcast
// entries.
func (c *WSLogCore) With(fields []zapcore.Field) zapcore.Core {
	return c
}

func (c *WSLogCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *WSLogCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	c.mu.Lock()
	if len(c.clients) == 0 {
		c.mu.Unlock()
		return nil
	}
	targets := make([]*websocket.Conn, 0, len(c.clients))
	for conn := range c.clients {
		targets = append(targets, conn)
	}
	c.mu.Unlock()

	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	msg := []byte(util.TruncateRunes(buf.String(), maxBroadcastRunes))
	buf.Free()

	var dead []*websocket.Conn
	for _, conn := range targets {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			dead = append(dead, conn)
		}
	}
	if len(dead) > 0 {
		c.mu.Lock()
		for _, conn := range dead {
			delete(c.clients, conn)
		}
		c.mu.Unlock()
	}
	return nil
}

func (c *WSLogCore) Sync() error { return nil }
