package server

import (
	"context"
	"math"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrica-dev/fabrica/internal/catalog"
	"github.com/fabrica-dev/fabrica/internal/config"
	"github.com/fabrica-dev/fabrica/internal/inventory"
	"github.com/fabrica-dev/fabrica/internal/persist"
	"github.com/fabrica-dev/fabrica/internal/protocol"
	"github.com/fabrica-dev/fabrica/internal/sim"
	"github.com/fabrica-dev/fabrica/internal/world"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         "0",
			IdleTimeout:  time.Minute,
			MessageRate:  1000,
			MessageBurst: 1000,
		},
		World: config.WorldConfig{
			DBPath:          filepath.Join(t.TempDir(), "world.db"),
			Seed:            424242,
			TickRate:        120,
			ViewDistance:    3,
			FlushInterval:   time.Hour,
			EvictRadius:     64,
			MaxLoadedChunks: 4096,
		},
	}
}

// newTestServer assembles a bound but not yet serving server, so tests can
// prepare world state before the simulation worker starts.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig(t)

	db, err := persist.Open(cfg.World.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat := catalog.Defaults()
	store := world.NewStore(world.NewGenerator(cfg.World.Seed), db)
	srv, err := New(cfg, cat, sim.New(store, cat), db)
	require.NoError(t, err)
	require.NoError(t, srv.Listen())
	return srv
}

func start(t *testing.T, srv *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
}

// paintTile overwrites one tile before the server starts serving.
func paintTile(srv *Server, x, y int, tile uint8) {
	c := srv.store.Chunk(world.PosOf(x, y))
	lx, ly := world.Local(x, y)
	c.Tiles[ly][lx] = tile
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *protocol.Reader
}

func dial(t *testing.T, srv *Server) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, r: protocol.NewReader(conn)}
}

func (c *testClient) send(msgType int, payload interface{}) {
	c.t.Helper()
	require.NoError(c.t, protocol.Write(c.conn, msgType, payload))
}

func (c *testClient) next() *protocol.Message {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	msg, err := c.r.Next()
	require.NoError(c.t, err)
	return msg
}

func (c *testClient) expect(msgType int) *protocol.Message {
	c.t.Helper()
	msg := c.next()
	require.Equalf(c.t, msgType, msg.Type, "unexpected message type")
	return msg
}

// expectSilence asserts no message arrives within the window.
func (c *testClient) expectSilence(d time.Duration) {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(d))
	msg, err := c.r.Next()
	if err == nil {
		c.t.Fatalf("expected silence, got message type %d", msg.Type)
	}
	var ne net.Error
	require.ErrorAs(c.t, err, &ne)
	require.True(c.t, ne.Timeout())
}

// login runs the handshake and drains everything up to and including the
// initial chunk batch.
func (c *testClient) login(srv *Server, name string) protocol.AuthResponse {
	c.t.Helper()
	resp := c.auth(name)
	c.drainChunks(initialChunkCount(srv))
	return resp
}

func (c *testClient) auth(name string) protocol.AuthResponse {
	c.t.Helper()
	c.send(protocol.TypeAuth, protocol.Auth{Name: name})

	var resp protocol.AuthResponse
	require.NoError(c.t, c.expect(protocol.TypeAuthResponse).Decode(&resp))
	require.True(c.t, resp.Success)
	c.expect(protocol.TypeCatalog)
	c.expect(protocol.TypeInventoryUpdate)
	return resp
}

func (c *testClient) drainChunks(n int) []protocol.ChunkData {
	c.t.Helper()
	out := make([]protocol.ChunkData, 0, n)
	for i := 0; i < n; i++ {
		var cd protocol.ChunkData
		require.NoError(c.t, c.expect(protocol.TypeChunkData).Decode(&cd))
		out = append(out, cd)
	}
	return out
}

func initialChunkCount(srv *Server) int {
	side := 2*srv.cfg.World.ViewDistance + 1
	return side * side
}

func TestLoginHandshake(t *testing.T) {
	srv := newTestServer(t)
	start(t, srv)

	c := dial(t, srv)
	c.send(protocol.TypeAuth, protocol.Auth{Name: "alice"})

	var resp protocol.AuthResponse
	require.NoError(t, c.expect(protocol.TypeAuthResponse).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(1), resp.PlayerID)

	var cat protocol.Catalog
	require.NoError(t, c.expect(protocol.TypeCatalog).Decode(&cat))
	assert.Len(t, cat.Tiles, len(srv.catalog.Tiles))
	assert.Len(t, cat.Entities, len(srv.catalog.Entities))
	assert.NotEmpty(t, cat.AssemblerRecipes)

	var inv inventory.Inventory
	require.NoError(t, c.expect(protocol.TypeInventoryUpdate).Decode(&inv))

	chunks := c.drainChunks(initialChunkCount(srv))

	view := srv.cfg.World.ViewDistance
	center := world.PosOf(int(resp.X), int(resp.Y))
	seen := make(map[world.ChunkPos]bool, len(chunks))
	for _, cd := range chunks {
		seen[world.ChunkPos{X: cd.CX, Y: cd.CY}] = true
	}
	for cy := center.Y - view; cy <= center.Y+view; cy++ {
		for cx := center.X - view; cx <= center.X+view; cx++ {
			assert.Truef(t, seen[world.ChunkPos{X: cx, Y: cy}], "missing chunk %d,%d", cx, cy)
		}
	}
}

func TestSyncEcho(t *testing.T) {
	srv := newTestServer(t)
	start(t, srv)

	c := dial(t, srv)
	c.login(srv, "alice")

	c.send(protocol.TypeSync, protocol.Sync{ClientTime: 777})

	var sync protocol.Sync
	require.NoError(t, c.expect(protocol.TypeSync).Decode(&sync))
	assert.Equal(t, int64(777), sync.ClientTime)
	assert.Greater(t, sync.ServerTime, int64(0))
	assert.GreaterOrEqual(t, sync.Tick, int64(0))
}

func TestChunkRequestReturnsSnapshot(t *testing.T) {
	srv := newTestServer(t)
	start(t, srv)

	c := dial(t, srv)
	c.login(srv, "alice")

	c.send(protocol.TypeChunkRequest, protocol.ChunkRequest{CX: 40, CY: -17})

	var cd protocol.ChunkData
	require.NoError(t, c.expect(protocol.TypeChunkData).Decode(&cd))
	assert.Equal(t, 40, cd.CX)
	assert.Equal(t, -17, cd.CY)
}

func TestBuildAndDestroyBroadcast(t *testing.T) {
	srv := newTestServer(t)
	sx, sy := srv.store.Generator().SpawnPoint()
	bx, by := int(sx)+2, int(sy)+2
	paintTile(srv, bx, by, world.TileGrass)
	start(t, srv)

	c := dial(t, srv)
	c.login(srv, "alice")

	c.send(protocol.TypePlayerAction, protocol.PlayerAction{
		Action:     protocol.ActionBuild,
		X:          bx,
		Y:          by,
		EntityType: int(world.KindChest),
	})

	var rec world.Record
	require.NoError(t, c.expect(protocol.TypeEntityAdd).Decode(&rec))
	assert.Equal(t, int(world.KindChest), rec.Type)
	assert.Equal(t, bx, rec.X)
	assert.Equal(t, by, rec.Y)
	assert.Greater(t, rec.ID, int64(0))

	// Building on an occupied tile is a silent no-op; the sync echo proves
	// nothing else was sent.
	c.send(protocol.TypePlayerAction, protocol.PlayerAction{
		Action:     protocol.ActionBuild,
		X:          bx,
		Y:          by,
		EntityType: int(world.KindChest),
	})
	c.send(protocol.TypeSync, protocol.Sync{ClientTime: 1})
	c.expect(protocol.TypeSync)

	c.send(protocol.TypePlayerAction, protocol.PlayerAction{
		Action:   protocol.ActionDestroy,
		EntityID: rec.ID,
	})

	var rm protocol.EntityRemove
	require.NoError(t, c.expect(protocol.TypeEntityRemove).Decode(&rm))
	assert.Equal(t, rec.ID, rm.ID)
}

func TestMineAddsResourceToInventory(t *testing.T) {
	srv := newTestServer(t)
	sx, sy := srv.store.Generator().SpawnPoint()
	mx, my := int(sx)+1, int(sy)
	paintTile(srv, mx, my, world.TileIronOre)
	start(t, srv)

	c := dial(t, srv)
	c.login(srv, "alice")

	c.send(protocol.TypeInventoryAction, protocol.InventoryAction{
		Action: protocol.InvActionPickup,
		Mine:   true,
		X:      mx,
		Y:      my,
	})

	var inv inventory.Inventory
	require.NoError(t, c.expect(protocol.TypeInventoryUpdate).Decode(&inv))
	assert.Equal(t, 1, inv.Count("iron_ore"))
}

func TestPeerVisibilityFollowsChunks(t *testing.T) {
	srv := newTestServer(t)
	start(t, srv)

	a := dial(t, srv)
	respA := a.login(srv, "alice")

	b := dial(t, srv)
	respB := b.login(srv, "bob")

	// Same spawn point, so both learn about each other right away.
	var join protocol.PlayerJoin
	require.NoError(t, b.expect(protocol.TypePlayerJoin).Decode(&join))
	assert.Equal(t, respA.PlayerID, join.ID)
	assert.Equal(t, "alice", join.Name)

	require.NoError(t, a.expect(protocol.TypePlayerJoin).Decode(&join))
	assert.Equal(t, respB.PlayerID, join.ID)
	assert.Equal(t, "bob", join.Name)

	// Bob walks far enough that the chunk sets stop intersecting. Alice
	// hears nothing about it.
	b.send(protocol.TypePlayerMove, protocol.PlayerMove{X: respB.X + 1000, Y: respB.Y})
	b.drainChunks(initialChunkCount(srv))
	a.expectSilence(300 * time.Millisecond)

	// Walking back re-announces bob before his movement resumes streaming.
	b.send(protocol.TypePlayerMove, protocol.PlayerMove{X: respB.X + 1, Y: respB.Y})
	b.drainChunks(initialChunkCount(srv))
	require.NoError(t, b.expect(protocol.TypePlayerJoin).Decode(&join))
	assert.Equal(t, respA.PlayerID, join.ID)

	require.NoError(t, a.expect(protocol.TypePlayerJoin).Decode(&join))
	assert.Equal(t, respB.PlayerID, join.ID)

	var move protocol.PlayerMove
	require.NoError(t, a.expect(protocol.TypePlayerMove).Decode(&move))
	assert.Equal(t, respB.PlayerID, move.ID)
	assert.InDelta(t, respB.X+1, move.X, 0.001)
}

func TestDisconnectPersistsPlayerAndWorld(t *testing.T) {
	srv := newTestServer(t)
	sx, sy := srv.store.Generator().SpawnPoint()
	bx, by := int(sx)+2, int(sy)+2
	paintTile(srv, bx, by, world.TileGrass)
	start(t, srv)

	a := dial(t, srv)
	respA := a.login(srv, "alice")

	a.send(protocol.TypePlayerAction, protocol.PlayerAction{
		Action:     protocol.ActionBuild,
		X:          bx,
		Y:          by,
		EntityType: int(world.KindChest),
	})
	var rec world.Record
	require.NoError(t, a.expect(protocol.TypeEntityAdd).Decode(&rec))

	a.send(protocol.TypePlayerMove, protocol.PlayerMove{X: respA.X + 5, Y: respA.Y + 5})
	require.NoError(t, a.conn.Close())
	time.Sleep(200 * time.Millisecond)

	b := dial(t, srv)
	resp := b.auth("alice")
	assert.InDelta(t, respA.X+5, resp.X, 0.001)
	assert.InDelta(t, respA.Y+5, resp.Y, 0.001)

	chunks := b.drainChunks(initialChunkCount(srv))
	found := false
	for _, cd := range chunks {
		for _, e := range cd.Entities {
			if e.ID == rec.ID {
				found = true
				assert.Equal(t, int(world.KindChest), e.Type)
			}
		}
	}
	assert.True(t, found, "built entity should survive a reconnect")
}

func TestCatalogConstantsBackfillConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.World.TickRate = 0
	cfg.World.ViewDistance = 0

	db, err := persist.Open(cfg.World.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat := catalog.Defaults()
	store := world.NewStore(world.NewGenerator(cfg.World.Seed), db)
	srv, err := New(cfg, cat, sim.New(store, cat), db)
	require.NoError(t, err)

	assert.Equal(t, 60, srv.cfg.World.TickRate)
	assert.Equal(t, 3, srv.cfg.World.ViewDistance)
}

func TestNonFiniteMoveRejected(t *testing.T) {
	srv := newTestServer(t)
	start(t, srv)

	a := dial(t, srv)
	respA := a.login(srv, "alice")

	a.send(protocol.TypePlayerMove, protocol.PlayerMove{X: math.NaN(), Y: respA.Y})
	a.send(protocol.TypePlayerMove, protocol.PlayerMove{X: respA.X, Y: math.Inf(1)})
	a.send(protocol.TypePlayerMove, protocol.PlayerMove{X: respA.X + 3, Y: respA.Y + 3})
	require.NoError(t, a.conn.Close())
	time.Sleep(200 * time.Millisecond)

	// The garbage moves never stuck, so the player persisted cleanly at the
	// last finite position.
	b := dial(t, srv)
	resp := b.auth("alice")
	assert.InDelta(t, respA.X+3, resp.X, 0.001)
	assert.InDelta(t, respA.Y+3, resp.Y, 0.001)
}

func TestUnauthenticatedTrafficIgnored(t *testing.T) {
	srv := newTestServer(t)
	start(t, srv)

	c := dial(t, srv)
	c.send(protocol.TypePlayerAction, protocol.PlayerAction{
		Action:     protocol.ActionBuild,
		X:          0,
		Y:          0,
		EntityType: int(world.KindChest),
	})
	c.expectSilence(200 * time.Millisecond)

	// The session is still healthy and can log in afterwards.
	resp := c.auth("late")
	assert.True(t, resp.Success)
}
