// README: Websocket transport for the device session: upgrade, read loop and serialized writes.
package device

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Devices connect from native apps, which send no browser Origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and makes it the device session. A newer
// session replaces the previous one.
func (b *Bridge) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	b.attach(conn)
	defer b.detach(conn)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.log.Warn().Err(err).Msg("device websocket closed unexpectedly")
			}
			return
		}
		if err := b.Handle(msg); err != nil {
			b.log.Debug().Err(err).Str("type", string(msg.Type)).Msg("device report rejected")
		}
	}
}

func (b *Bridge) attach(conn *websocket.Conn) {
	b.mu.Lock()
	old := b.conn
	b.conn = conn
	b.mu.Unlock()

	if old != nil {
		old.Close()
	}
	b.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("device websocket attached")

	// Flush commands queued while no session was attached.
	for {
		select {
		case msg := <-b.outbox:
			if err := b.write(conn, msg); err != nil {
				b.enqueue(msg)
				return
			}
		default:
			return
		}
	}
}

func (b *Bridge) detach(conn *websocket.Conn) {
	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
	}
	b.mu.Unlock()
	conn.Close()
	b.log.Info().Msg("device websocket detached")
}

func (b *Bridge) write(conn *websocket.Conn, msg Message) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
