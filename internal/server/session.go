package server

import (
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/fabrica-dev/fabrica/internal/protocol"
	"github.com/fabrica-dev/fabrica/internal/world"
)

// outboundBuffer is the per-session frame queue depth. A client that cannot
// drain this many frames is effectively dead.
const outboundBuffer = 256

// Session is one connected client. The network goroutines own the socket;
// every other field is written only on the simulation worker.
type Session struct {
	ID   uuid.UUID
	conn net.Conn

	outbound chan []byte
	limiter  *rate.Limiter

	closeOnce sync.Once

	// Simulation-worker state.
	playerID      int64
	authenticated bool
	subscribed    map[world.ChunkPos]struct{}
	visible       map[int64]struct{} // peers this client was told about
}

func newSession(conn net.Conn, msgRate float64, burst int) *Session {
	return &Session{
		ID:         uuid.New(),
		conn:       conn,
		outbound:   make(chan []byte, outboundBuffer),
		limiter:    rate.NewLimiter(rate.Limit(msgRate), burst),
		subscribed: make(map[world.ChunkPos]struct{}),
		visible:    make(map[int64]struct{}),
	}
}

// send encodes and queues one message. A full queue drops the frame; the
// write loop's deadline will tear the session down if the client is gone.
func (sess *Session) send(msgType int, payload interface{}) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error("Failed to encode message", "type", msgType, "error", err)
		return
	}
	sess.sendFrame(frame)
}

// sendFrame queues a pre-encoded frame.
func (sess *Session) sendFrame(frame []byte) {
	select {
	case sess.outbound <- frame:
	default:
		log.Debug("Dropping frame for slow client", "session", sess.ID)
	}
}

// close shuts the socket down once. Pending reads and writes fail, which
// unwinds both loops.
func (sess *Session) close() {
	sess.closeOnce.Do(func() {
		sess.conn.Close()
	})
}

// readLoop decodes frames until the socket dies, forwarding messages to the
// server queue. SYNC is answered in place; it touches nothing the simulation
// owns beyond the atomic tick mirror.
func (s *Server) readLoop(sess *Session) {
	defer s.disconnect(sess)

	reader := protocol.NewReader(sess.conn)
	for {
		if s.cfg.Server.IdleTimeout > 0 {
			sess.conn.SetReadDeadline(time.Now().Add(s.cfg.Server.IdleTimeout))
		}

		msg, err := reader.Next()
		if err != nil {
			log.Debug("Session read ended", "session", sess.ID, "error", err)
			return
		}

		if !sess.limiter.Allow() {
			log.Debug("Rate limit exceeded, dropping message", "session", sess.ID, "type", msg.Type)
			continue
		}

		if msg.Type == protocol.TypeSync {
			var sync protocol.Sync
			if err := msg.Decode(&sync); err != nil {
				continue
			}
			sess.send(protocol.TypeSync, protocol.Sync{
				ServerTime: time.Now().UnixMilli(),
				ClientTime: sync.ClientTime,
				Tick:       s.tick.Load(),
			})
			continue
		}

		s.enqueue(sess, msg)
	}
}

// writeLoop drains the outbound queue onto the socket.
func (s *Server) writeLoop(sess *Session) {
	defer s.disconnect(sess)

	for {
		select {
		case frame := <-sess.outbound:
			sess.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if _, err := sess.conn.Write(frame); err != nil {
				log.Debug("Session write failed", "session", sess.ID, "error", err)
				return
			}
		case <-s.done:
			return
		}
	}
}
