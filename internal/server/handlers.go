package server

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/fabrica-dev/fabrica/internal/inventory"
	"github.com/fabrica-dev/fabrica/internal/protocol"
	"github.com/fabrica-dev/fabrica/internal/world"
)

// dispatch handles one queued message on the simulation worker. Malformed
// payloads and unauthenticated traffic are dropped silently.
func (s *Server) dispatch(sess *Session, msg *protocol.Message) {
	if msg == nil {
		s.handleDisconnect(sess)
		return
	}

	if msg.Type == protocol.TypeAuth {
		s.handleAuth(sess, msg)
		return
	}
	if !sess.authenticated {
		log.Debug("Ignoring message from unauthenticated session", "session", sess.ID, "type", msg.Type)
		return
	}

	switch msg.Type {
	case protocol.TypePlayerMove:
		s.handleMove(sess, msg)
	case protocol.TypeChunkRequest:
		s.handleChunkRequest(sess, msg)
	case protocol.TypePlayerAction:
		s.handlePlayerAction(sess, msg)
	case protocol.TypeInventoryAction:
		s.handleInventoryAction(sess, msg)
	default:
		log.Debug("Ignoring unknown message type", "session", sess.ID, "type", msg.Type)
	}
}

func (s *Server) handleAuth(sess *Session, msg *protocol.Message) {
	if sess.authenticated {
		return
	}

	var auth protocol.Auth
	if err := msg.Decode(&auth); err != nil {
		log.Debug("Malformed auth", "session", sess.ID, "error", err)
		return
	}

	id := s.nextPlayerID
	s.nextPlayerID++

	name := auth.Name
	if name == "" {
		name = fmt.Sprintf("Player%d", id)
	}

	player, err := s.db.LoadPlayer(context.Background(), name)
	if err != nil {
		log.Error("Failed to load player, starting fresh", "name", name, "error", err)
		player = nil
	}
	if player == nil {
		x, y := s.store.Generator().SpawnPoint()
		player = &world.Player{Name: name, X: x, Y: y, Inventory: inventory.New()}
	}
	player.ID = id

	s.store.AddPlayer(player)
	sess.playerID = id
	sess.authenticated = true
	log.Info("Player authenticated", "name", name, "player_id", id, "session", sess.ID)

	sess.send(protocol.TypeAuthResponse, protocol.AuthResponse{
		Success:  true,
		PlayerID: id,
		X:        player.X,
		Y:        player.Y,
		Tick:     s.store.Tick,
	})
	sess.sendFrame(s.catalogFrame)
	s.sendInventory(sess, player)
	s.recomputeAoI(sess, player)
}

func (s *Server) handleDisconnect(sess *Session) {
	if !sess.authenticated {
		return
	}
	sess.authenticated = false

	player := s.store.RemovePlayer(sess.playerID)
	if player == nil {
		return
	}

	if err := s.db.SavePlayer(context.Background(), player); err != nil {
		log.Error("Failed to persist player on disconnect", "name", player.Name, "error", err)
	}

	s.broadcastExcept(sess, protocol.TypePlayerLeave, protocol.PlayerLeave{ID: player.ID})
	for _, other := range s.sessionsSnapshot() {
		delete(other.visible, player.ID)
	}
	log.Info("Player disconnected", "name", player.Name, "player_id", player.ID)
}

func (s *Server) handleMove(sess *Session, msg *protocol.Message) {
	var move protocol.PlayerMove
	if err := msg.Decode(&move); err != nil {
		log.Debug("Malformed move", "session", sess.ID, "error", err)
		return
	}

	player := s.store.Player(sess.playerID)
	if player == nil {
		return
	}
	if math.IsNaN(move.X) || math.IsInf(move.X, 0) ||
		math.IsNaN(move.Y) || math.IsInf(move.Y, 0) {
		log.Debug("Non-finite move rejected", "session", sess.ID)
		return
	}
	// Positions are client-authoritative; see the catalog PLAYER_SPEED for
	// what clients are expected to respect.
	player.X = move.X
	player.Y = move.Y

	s.recomputeAoI(sess, player)

	move.ID = player.ID
	s.broadcastNearby(sess, protocol.TypePlayerMove, move)
}

func (s *Server) handleChunkRequest(sess *Session, msg *protocol.Message) {
	var req protocol.ChunkRequest
	if err := msg.Decode(&req); err != nil {
		log.Debug("Malformed chunk request", "session", sess.ID, "error", err)
		return
	}

	pos := world.ChunkPos{X: req.CX, Y: req.CY}
	s.sendChunk(sess, pos)
	sess.subscribed[pos] = struct{}{}
}

func (s *Server) handlePlayerAction(sess *Session, msg *protocol.Message) {
	var action protocol.PlayerAction
	if err := msg.Decode(&action); err != nil {
		log.Debug("Malformed player action", "session", sess.ID, "error", err)
		return
	}

	switch action.Action {
	case protocol.ActionBuild:
		e := s.sim.Build(world.Kind(action.EntityType), action.X, action.Y, world.Direction(action.Direction))
		if e == nil {
			return
		}
		rec, err := e.Encode()
		if err != nil {
			log.Error("Failed to encode entity", "id", e.ID, "error", err)
			return
		}
		s.broadcastToChunk(world.PosOf(e.X, e.Y), protocol.TypeEntityAdd, rec)

	case protocol.ActionDestroy:
		e := s.sim.Destroy(action.EntityID)
		if e == nil {
			return
		}
		s.broadcastToChunk(world.PosOf(e.X, e.Y), protocol.TypeEntityRemove, protocol.EntityRemove{ID: e.ID})

	case protocol.ActionConfigure:
		e := s.sim.Configure(action.EntityID, action.Recipe)
		if e == nil {
			return
		}
		rec, err := e.Encode()
		if err != nil {
			log.Error("Failed to encode entity", "id", e.ID, "error", err)
			return
		}
		s.broadcastToChunk(world.PosOf(e.X, e.Y), protocol.TypeEntityUpdate, rec)

	default:
		log.Debug("Unknown player action", "session", sess.ID, "action", action.Action)
	}
}

func (s *Server) handleInventoryAction(sess *Session, msg *protocol.Message) {
	var action protocol.InventoryAction
	if err := msg.Decode(&action); err != nil {
		log.Debug("Malformed inventory action", "session", sess.ID, "error", err)
		return
	}

	player := s.store.Player(sess.playerID)
	if player == nil {
		return
	}

	switch action.Action {
	case protocol.InvActionPickup:
		if action.Mine {
			if s.sim.Mine(player, action.X, action.Y) != "" {
				s.sendInventory(sess, player)
			}
			return
		}
		touched := s.sim.Pickup(player)
		if len(touched) > 0 {
			s.sendInventory(sess, player)
		}

	case protocol.InvActionDrop:
		count := action.Count
		if count <= 0 {
			count = 1
		}
		if s.sim.Drop(player, action.Item, count) > 0 {
			s.sendInventory(sess, player)
		}

	case protocol.InvActionTransferTo:
		count := action.Count
		if count <= 0 {
			count = 1
		}
		if s.sim.TransferTo(player, action.EntityID, action.Item, count) > 0 {
			s.sendInventory(sess, player)
			s.broadcastEntityState(action.EntityID)
		}

	case protocol.InvActionTransferFrom:
		count := action.Count
		if count <= 0 {
			count = 1
		}
		if s.sim.TransferFrom(player, action.EntityID, action.Item, count) > 0 {
			s.sendInventory(sess, player)
			s.broadcastEntityState(action.EntityID)
		}

	case protocol.InvActionSwap:
		if player.Inventory.Swap(action.Slot1, action.Slot2) {
			s.sendInventory(sess, player)
		}

	case protocol.InvActionCraft:
		if s.sim.Craft(player, action.Recipe) {
			s.sendInventory(sess, player)
		}

	case protocol.InvActionSplit:
		count := action.Count
		if count <= 0 {
			count = 1
		}
		if player.Inventory.Split(action.Src, action.Dst, count) {
			s.sendInventory(sess, player)
		}

	case protocol.InvActionSort:
		player.Inventory.Sort(func(item string) (int, string) {
			def, ok := s.catalog.Items[item]
			if !ok {
				return s.catalog.CategoryRank(""), item
			}
			return s.catalog.CategoryRank(def.Category), def.DisplayName
		})
		s.sendInventory(sess, player)

	default:
		log.Debug("Unknown inventory action", "session", sess.ID, "action", action.Action)
	}
}

func (s *Server) sendInventory(sess *Session, player *world.Player) {
	sess.send(protocol.TypeInventoryUpdate, player.Inventory)
}

// broadcastEntityState pushes a full ENTITY_UPDATE for one entity to its
// chunk subscribers, used after player-driven transfers.
func (s *Server) broadcastEntityState(id int64) {
	e := s.store.Entity(id)
	if e == nil {
		return
	}
	rec, err := e.Encode()
	if err != nil {
		log.Error("Failed to encode entity", "id", id, "error", err)
		return
	}
	s.broadcastToChunk(world.PosOf(e.X, e.Y), protocol.TypeEntityUpdate, rec)
}

func (s *Server) sendChunk(sess *Session, pos world.ChunkPos) {
	c := s.store.Chunk(pos)

	ids := make([]int64, 0, len(c.Entities))
	for id := range c.Entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]world.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := c.Entities[id].Encode()
		if err != nil {
			log.Error("Failed to encode entity", "id", id, "error", err)
			continue
		}
		records = append(records, rec)
	}

	sess.send(protocol.TypeChunkData, protocol.NewChunkData(c, records))
}

// recomputeAoI brings the session's subscription set in line with the
// player's position: newly entered chunks are sent in full, left chunks are
// dropped without a message. Peer visibility follows the chunk sets.
func (s *Server) recomputeAoI(sess *Session, player *world.Player) {
	view := s.cfg.World.ViewDistance
	center := world.PosOf(int(player.X), int(player.Y))

	desired := make(map[world.ChunkPos]struct{}, (2*view+1)*(2*view+1))
	for cy := center.Y - view; cy <= center.Y+view; cy++ {
		for cx := center.X - view; cx <= center.X+view; cx++ {
			desired[world.ChunkPos{X: cx, Y: cy}] = struct{}{}
		}
	}

	// Send newly visible chunks in deterministic order.
	var added []world.ChunkPos
	for pos := range desired {
		if _, ok := sess.subscribed[pos]; !ok {
			added = append(added, pos)
		}
	}
	sort.Slice(added, func(i, j int) bool {
		if added[i].Y != added[j].Y {
			return added[i].Y < added[j].Y
		}
		return added[i].X < added[j].X
	})
	for _, pos := range added {
		s.sendChunk(sess, pos)
	}
	sess.subscribed = desired

	s.updateVisibility(sess, player)
}

// updateVisibility exchanges PLAYER_JOIN messages between peers whose AoIs
// started to overlap, and forgets peers that drifted out of range so a later
// re-approach announces them again.
func (s *Server) updateVisibility(sess *Session, player *world.Player) {
	for _, other := range s.sessionsSnapshot() {
		if other == sess || !other.authenticated {
			continue
		}
		peer := s.store.Player(other.playerID)
		if peer == nil {
			continue
		}

		if sessionsShareChunks(sess, other) {
			if _, known := sess.visible[peer.ID]; !known {
				sess.visible[peer.ID] = struct{}{}
				sess.send(protocol.TypePlayerJoin, protocol.PlayerJoin{
					ID: peer.ID, Name: peer.Name, X: peer.X, Y: peer.Y,
				})
			}
			if _, known := other.visible[player.ID]; !known {
				other.visible[player.ID] = struct{}{}
				other.send(protocol.TypePlayerJoin, protocol.PlayerJoin{
					ID: player.ID, Name: player.Name, X: player.X, Y: player.Y,
				})
			}
		} else {
			delete(sess.visible, peer.ID)
			delete(other.visible, player.ID)
		}
	}
}

// sessionsShareChunks reports whether two sessions subscribe to at least one
// common chunk.
func sessionsShareChunks(a, b *Session) bool {
	small, large := a.subscribed, b.subscribed
	if len(large) < len(small) {
		small, large = large, small
	}
	for pos := range small {
		if _, ok := large[pos]; ok {
			return true
		}
	}
	return false
}

// broadcastNearby sends to every session whose subscription overlaps the
// mover's, excluding the mover.
func (s *Server) broadcastNearby(sess *Session, msgType int, payload interface{}) {
	frame, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error("Failed to encode broadcast", "type", msgType, "error", err)
		return
	}
	for _, other := range s.sessionsSnapshot() {
		if other == sess || !other.authenticated {
			continue
		}
		if sessionsShareChunks(sess, other) {
			other.sendFrame(frame)
		}
	}
}
