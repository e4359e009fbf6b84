// Package server wires the pieces together: a TCP listener feeding per-session
// read/write goroutines, and the simulation worker that owns all world state.
// Client messages are queued on ingress and applied at the start of the next
// tick, so mutation happens on exactly one goroutine.
package server

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/fabrica-dev/fabrica/internal/catalog"
	"github.com/fabrica-dev/fabrica/internal/config"
	"github.com/fabrica-dev/fabrica/internal/persist"
	"github.com/fabrica-dev/fabrica/internal/protocol"
	"github.com/fabrica-dev/fabrica/internal/sim"
	"github.com/fabrica-dev/fabrica/internal/world"
)

// inbound is one queued client message. A nil msg marks a disconnect.
type inbound struct {
	sess *Session
	msg  *protocol.Message
}

// Server owns the listener, the session table and the simulation worker.
type Server struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	sim     *sim.Simulation
	store   *world.Store
	db      *persist.Store

	listener net.Listener

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	queueMu sync.Mutex
	queue   []inbound

	// tick mirrors the world tick for goroutines outside the simulation.
	tick atomic.Int64

	nextPlayerID int64

	// catalogFrame is the pre-encoded CATALOG message, identical for every
	// client.
	catalogFrame []byte

	done chan struct{}
}

// New assembles a server. The catalog must already be loaded and the world
// database open.
func New(cfg *config.Config, cat *catalog.Catalog, simulation *sim.Simulation, db *persist.Store) (*Server, error) {
	frame, err := protocol.Encode(protocol.TypeCatalog, protocol.NewCatalog(cat))
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}

	// Catalog constants back any tuning the config leaves unset.
	if cfg.World.TickRate <= 0 {
		cfg.World.TickRate = cat.IntConstant("WORLD_TICK_RATE", 60)
	}
	if cfg.World.ViewDistance <= 0 {
		cfg.World.ViewDistance = cat.IntConstant("PLAYER_VIEW_DISTANCE", 3)
	}

	s := &Server{
		cfg:          cfg,
		catalog:      cat,
		sim:          simulation,
		store:        simulation.Store(),
		db:           db,
		sessions:     make(map[uuid.UUID]*Session),
		nextPlayerID: 1,
		catalogFrame: frame,
		done:         make(chan struct{}),
	}
	s.tick.Store(s.store.Tick)
	return s, nil
}

// Listen binds the TCP socket. Split from Run so callers can learn the bound
// address before serving (port 0 in tests).
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = l
	log.Info("Listening", "addr", l.Addr().String())
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run serves until the context is canceled, then flushes and closes every
// session. Listen is called first when it has not been already.
func (s *Server) Run(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	go s.acceptLoop()
	s.simLoop(ctx)

	close(s.done)
	s.listener.Close()
	s.shutdownFlush()

	s.mu.Lock()
	for _, sess := range s.sessions {
		sess.close()
	}
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()

	log.Info("Server stopped")
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Error("Accept failed", "error", err)
			}
			return
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			tcp.SetNoDelay(true)
		}

		sess := newSession(conn, s.cfg.Server.MessageRate, s.cfg.Server.MessageBurst)
		s.mu.Lock()
		s.sessions[sess.ID] = sess
		s.mu.Unlock()
		log.Debug("Session connected", "session", sess.ID, "remote", conn.RemoteAddr())

		go s.readLoop(sess)
		go s.writeLoop(sess)
	}
}

// simLoop is the simulation worker: a fixed-rate accumulator clock driving
// ticks, with the periodic persistence flush riding on the same goroutine so
// the world is never written concurrently.
func (s *Server) simLoop(ctx context.Context) {
	interval := time.Second / time.Duration(s.cfg.World.TickRate)
	last := time.Now()
	lastFlush := last
	var accumulator time.Duration

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now()
		accumulator += now.Sub(last)
		last = now

		for accumulator >= interval {
			s.runTick()
			accumulator -= interval
		}

		if now.Sub(lastFlush) >= s.cfg.World.FlushInterval {
			s.flush()
			lastFlush = now
		}

		time.Sleep(time.Millisecond)
	}
}

// runTick advances the world one tick and broadcasts the fallout.
func (s *Server) runTick() {
	dirty := s.sim.Tick(s.applyQueued)
	s.tick.Store(s.store.Tick)

	for _, e := range dirty {
		rec, err := e.Encode()
		if err != nil {
			log.Error("Failed to encode entity", "id", e.ID, "error", err)
			continue
		}
		s.broadcastToChunk(world.PosOf(e.X, e.Y), protocol.TypeEntityUpdate, rec)
	}
}

// applyQueued drains the inbound queue in arrival order. Runs at the start
// of the tick, on the simulation worker.
func (s *Server) applyQueued() {
	s.queueMu.Lock()
	batch := s.queue
	s.queue = nil
	s.queueMu.Unlock()

	for _, in := range batch {
		s.dispatch(in.sess, in.msg)
	}
}

func (s *Server) enqueue(sess *Session, msg *protocol.Message) {
	s.queueMu.Lock()
	s.queue = append(s.queue, inbound{sess: sess, msg: msg})
	s.queueMu.Unlock()
}

// disconnect tears a session down from the network side. The world-side
// cleanup runs on the simulation worker via a nil-message marker.
func (s *Server) disconnect(sess *Session) {
	s.mu.Lock()
	_, present := s.sessions[sess.ID]
	delete(s.sessions, sess.ID)
	s.mu.Unlock()

	sess.close()
	if present {
		s.enqueue(sess, nil)
	}
}

// flush persists dirty chunks, all players and the world metadata, then
// evicts far-away chunks. Runs on the simulation worker.
func (s *Server) flush() {
	ctx := context.Background()
	start := time.Now()

	saved := 0
	for _, c := range s.store.Loaded() {
		if !c.Dirty {
			continue
		}
		if err := s.db.SaveChunk(ctx, c); err != nil {
			// Dirty flag stays set; the next flush retries.
			log.Error("Failed to save chunk", "cx", c.Pos.X, "cy", c.Pos.Y, "error", err)
			continue
		}
		saved++
	}

	for _, p := range s.store.Players() {
		if err := s.db.SavePlayer(ctx, p); err != nil {
			log.Error("Failed to save player", "name", p.Name, "error", err)
		}
	}

	if err := s.db.SetTick(ctx, s.store.Tick); err != nil {
		log.Error("Failed to save tick", "error", err)
	}
	if err := s.db.SetNextEntityID(ctx, s.store.NextEntityID()); err != nil {
		log.Error("Failed to save entity id counter", "error", err)
	}

	evicted := s.store.EvictBeyond(s.cfg.World.EvictRadius, s.cfg.World.MaxLoadedChunks, func(c *world.Chunk) error {
		return s.db.SaveChunk(ctx, c)
	})

	log.Debug("Flush completed", "chunks", saved, "evicted", evicted, "duration", time.Since(start))
}

func (s *Server) shutdownFlush() {
	log.Info("Final flush")
	s.flush()
}

// sessionsSnapshot copies the session table under the read lock, in a stable
// order.
func (s *Server) sessionsSnapshot() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// broadcastToChunk sends to every session subscribed to the chunk.
func (s *Server) broadcastToChunk(pos world.ChunkPos, msgType int, payload interface{}) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error("Failed to encode broadcast", "type", msgType, "error", err)
		return
	}
	for _, sess := range s.sessionsSnapshot() {
		if _, ok := sess.subscribed[pos]; ok {
			sess.sendFrame(frame)
		}
	}
}

// broadcastExcept sends to every authenticated session but one.
func (s *Server) broadcastExcept(exclude *Session, msgType int, payload interface{}) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error("Failed to encode broadcast", "type", msgType, "error", err)
		return
	}
	for _, sess := range s.sessionsSnapshot() {
		if sess == exclude || !sess.authenticated {
			continue
		}
		sess.sendFrame(frame)
	}
}
