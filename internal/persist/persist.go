// Package persist stores world state in a sqlite database: chunk snapshots
// as msgpack blobs, player rows keyed by display name, and a small metadata
// table for the world seed and counters.
package persist

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fabrica-dev/fabrica/internal/inventory"
	"github.com/fabrica-dev/fabrica/internal/world"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store wraps the world database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the world database at path and brings the schema
// up to date.
func Open(path string) (*Store, error) {
	log.Debug("Opening world database", "path", path)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The simulation worker is the only writer; a single connection keeps
	// sqlite's locking out of the picture.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("World database initialized", "path", path)
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Debug("Database migrations completed")
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// chunkBlob is the serialized form of a chunk. Tiles are flattened row-major.
type chunkBlob struct {
	CX       int            `msgpack:"cx"`
	CY       int            `msgpack:"cy"`
	Tiles    []byte         `msgpack:"tiles"`
	Entities []world.Record `msgpack:"entities"`
}

// SaveChunk writes one chunk snapshot and clears its dirty flag on success.
func (s *Store) SaveChunk(ctx context.Context, c *world.Chunk) error {
	blob := chunkBlob{
		CX:    c.Pos.X,
		CY:    c.Pos.Y,
		Tiles: make([]byte, 0, world.ChunkSize*world.ChunkSize),
	}
	for y := 0; y < world.ChunkSize; y++ {
		blob.Tiles = append(blob.Tiles, c.Tiles[y][:]...)
	}
	// Entities in id order so identical chunks serialize identically.
	ids := make([]int64, 0, len(c.Entities))
	for id := range c.Entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		rec, err := c.Entities[id].Encode()
		if err != nil {
			return fmt.Errorf("failed to encode chunk (%d, %d): %w", c.Pos.X, c.Pos.Y, err)
		}
		blob.Entities = append(blob.Entities, rec)
	}

	data, err := msgpack.Marshal(blob)
	if err != nil {
		return fmt.Errorf("failed to encode chunk (%d, %d): %w", c.Pos.X, c.Pos.Y, err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chunks (cx, cy, data, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (cx, cy) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		c.Pos.X, c.Pos.Y, data)
	logQuery("SaveChunk", start, err, "cx", c.Pos.X, "cy", c.Pos.Y, "bytes", len(data))
	if err != nil {
		return fmt.Errorf("failed to save chunk (%d, %d): %w", c.Pos.X, c.Pos.Y, err)
	}

	c.Dirty = false
	return nil
}

// LoadChunk implements world.ChunkSource. Returns (nil, nil) when the chunk
// was never saved.
func (s *Store) LoadChunk(pos world.ChunkPos) (*world.Chunk, error) {
	var data []byte
	start := time.Now()
	err := s.db.QueryRowContext(context.Background(),
		`SELECT data FROM chunks WHERE cx = ? AND cy = ?`, pos.X, pos.Y).Scan(&data)
	logQuery("LoadChunk", start, err, "cx", pos.X, "cy", pos.Y)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk (%d, %d): %w", pos.X, pos.Y, err)
	}

	var blob chunkBlob
	if err := msgpack.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("failed to decode chunk (%d, %d): %w", pos.X, pos.Y, err)
	}
	if len(blob.Tiles) != world.ChunkSize*world.ChunkSize {
		return nil, fmt.Errorf("corrupt chunk (%d, %d): %d tiles", pos.X, pos.Y, len(blob.Tiles))
	}

	c := world.NewChunk(pos)
	for y := 0; y < world.ChunkSize; y++ {
		copy(c.Tiles[y][:], blob.Tiles[y*world.ChunkSize:(y+1)*world.ChunkSize])
	}
	for _, rec := range blob.Entities {
		e, err := world.Decode(rec)
		if err != nil {
			log.Warn("Skipping undecodable entity", "cx", pos.X, "cy", pos.Y, "id", rec.ID, "error", err)
			continue
		}
		c.Entities[e.ID] = e
	}
	c.Dirty = false
	return c, nil
}

// SavePlayer upserts one player row.
func (s *Store) SavePlayer(ctx context.Context, p *world.Player) error {
	inv, err := msgpack.Marshal(p.Inventory)
	if err != nil {
		return fmt.Errorf("failed to encode inventory of %q: %w", p.Name, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO players (name, x, y, inventory, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (name) DO UPDATE SET x = excluded.x, y = excluded.y,
		     inventory = excluded.inventory, updated_at = CURRENT_TIMESTAMP`,
		p.Name, p.X, p.Y, inv)
	if err != nil {
		return fmt.Errorf("failed to save player %q: %w", p.Name, err)
	}
	return nil
}

// LoadPlayer reads a player row by display name. Returns (nil, nil) when no
// such player was ever saved.
func (s *Store) LoadPlayer(ctx context.Context, name string) (*world.Player, error) {
	var (
		x, y float64
		inv  []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT x, y, inventory FROM players WHERE name = ?`, name).Scan(&x, &y, &inv)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player %q: %w", name, err)
	}

	p := &world.Player{Name: name, X: x, Y: y, Inventory: inventory.New()}
	if len(inv) > 0 {
		if err := msgpack.Unmarshal(inv, p.Inventory); err != nil {
			return nil, fmt.Errorf("failed to decode inventory of %q: %w", name, err)
		}
	}
	return p, nil
}

// SetMeta writes one metadata key.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO world_meta (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %q: %w", key, err)
	}
	return nil
}

// Meta reads one metadata key. Returns ("", false, nil) when unset.
func (s *Store) Meta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM world_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get meta %q: %w", key, err)
	}
	return value, true, nil
}

// Seed returns the persisted world seed, or ok=false for a fresh database.
func (s *Store) Seed(ctx context.Context) (int64, bool, error) {
	v, ok, err := s.Meta(ctx, "seed")
	if err != nil || !ok {
		return 0, false, err
	}
	seed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt seed %q: %w", v, err)
	}
	return seed, true, nil
}

// SetSeed persists the world seed.
func (s *Store) SetSeed(ctx context.Context, seed int64) error {
	return s.SetMeta(ctx, "seed", strconv.FormatInt(seed, 10))
}

// NextEntityID returns the persisted entity id counter, or ok=false.
func (s *Store) NextEntityID(ctx context.Context) (int64, bool, error) {
	v, ok, err := s.Meta(ctx, "next_entity_id")
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt next_entity_id %q: %w", v, err)
	}
	return id, true, nil
}

// SetNextEntityID persists the entity id counter.
func (s *Store) SetNextEntityID(ctx context.Context, id int64) error {
	return s.SetMeta(ctx, "next_entity_id", strconv.FormatInt(id, 10))
}

// Tick returns the persisted world tick, or ok=false.
func (s *Store) Tick(ctx context.Context) (int64, bool, error) {
	v, ok, err := s.Meta(ctx, "tick")
	if err != nil || !ok {
		return 0, false, err
	}
	tick, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt tick %q: %w", v, err)
	}
	return tick, true, nil
}

// SetTick persists the world tick.
func (s *Store) SetTick(ctx context.Context, tick int64) error {
	return s.SetMeta(ctx, "tick", strconv.FormatInt(tick, 10))
}

// Stats summarizes the database contents for inspection tools.
type Stats struct {
	Chunks  int
	Players int
}

// Stats counts the saved chunks and players.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&st.Chunks); err != nil {
		return st, fmt.Errorf("failed to count chunks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&st.Players); err != nil {
		return st, fmt.Errorf("failed to count players: %w", err)
	}
	return st, nil
}

// PlayerNames lists every saved player name in alphabetical order.
func (s *Store) PlayerNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM players ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan player name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// logQuery emits one debug line per statement with its duration. Row misses
// are not errors.
func logQuery(name string, start time.Time, err error, keyvals ...interface{}) {
	duration := time.Since(start)
	if err != nil && err != sql.ErrNoRows {
		log.Debug("Database query failed", append([]interface{}{"query", name, "duration", duration, "error", err}, keyvals...)...)
		return
	}
	log.Debug("Database query executed", append([]interface{}{"query", name, "duration", duration}, keyvals...)...)
}
