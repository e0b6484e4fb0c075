package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Close codes sent to plugin connections.
const (
	CloseSuperseded = 4000
	writeWait       = 10 * time.Second
	maxMessageSize  = 1 << 20
)

// Peer is the transport half of a plugin connection. Send must not block:
// it enqueues the frame and returns. Close sends a close frame with the
// given code before dropping the socket; Terminate drops it immediately.
type Peer interface {
	Send(data []byte) error
	Ping() error
	Close(code int, reason string) error
	Terminate()
	Closed() bool
	RemoteAddr() string
}

// wsPeer is a Peer over a gorilla WebSocket. Data frames are written only
// by writePump; control frames go through WriteControl, which gorilla
// allows concurrently with other writers.
type wsPeer struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

func newWSPeer(conn *websocket.Conn, buffer int) *wsPeer {
	if buffer < 1 {
		buffer = 1
	}
	p := &wsPeer{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
	go p.writePump()
	return p
}

func (p *wsPeer) Send(data []byte) error {
	if p.closed.Load() {
		return ErrPeerClosed
	}
	select {
	case p.send <- data:
		return nil
	case <-p.done:
		return ErrPeerClosed
	default:
		return ErrSendQueueFull
	}
}

func (p *wsPeer) Ping() error {
	if p.closed.Load() {
		return ErrPeerClosed
	}
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (p *wsPeer) Close(code int, reason string) error {
	var err error
	p.shutdown(func() {
		err = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	})
	return err
}

func (p *wsPeer) Terminate() {
	p.shutdown(nil)
}

func (p *wsPeer) shutdown(beforeClose func()) {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.done)
		if beforeClose != nil {
			beforeClose()
		}
		p.conn.Close()
	})
}

func (p *wsPeer) Closed() bool {
	return p.closed.Load()
}

func (p *wsPeer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

func (p *wsPeer) writePump() {
	for {
		select {
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.Terminate()
				return
			}
		case <-p.done:
			return
		}
	}
}
