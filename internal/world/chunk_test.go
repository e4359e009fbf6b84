package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosOfFlooredDivision(t *testing.T) {
	tests := []struct {
		x, y   int
		cx, cy int
	}{
		{0, 0, 0, 0},
		{31, 31, 0, 0},
		{32, 32, 1, 1},
		{-1, -1, -1, -1},
		{-32, -32, -1, -1},
		{-33, -33, -2, -2},
		{63, -65, 1, -3},
	}
	for _, tt := range tests {
		assert.Equal(t, ChunkPos{tt.cx, tt.cy}, PosOf(tt.x, tt.y), "PosOf(%d, %d)", tt.x, tt.y)
	}
}

func TestLocalNonNegative(t *testing.T) {
	for _, v := range []int{-100, -65, -33, -32, -1, 0, 1, 31, 32, 100} {
		lx, ly := Local(v, v)
		assert.GreaterOrEqual(t, lx, 0)
		assert.Less(t, lx, ChunkSize)
		assert.GreaterOrEqual(t, ly, 0)
		assert.Less(t, ly, ChunkSize)
	}

	lx, ly := Local(-1, 33)
	assert.Equal(t, 31, lx)
	assert.Equal(t, 1, ly)
}

func TestLocalMatchesPosOf(t *testing.T) {
	// Reassembling chunk and local coordinates must give back the input.
	for x := -70; x <= 70; x += 13 {
		for y := -70; y <= 70; y += 11 {
			pos := PosOf(x, y)
			lx, ly := Local(x, y)
			assert.Equal(t, x, pos.X*ChunkSize+lx)
			assert.Equal(t, y, pos.Y*ChunkSize+ly)
		}
	}
}

func TestChunkTileBounds(t *testing.T) {
	c := NewChunk(ChunkPos{0, 0})
	c.Tiles[3][5] = TileIronOre

	assert.Equal(t, TileIronOre, c.Tile(5, 3))
	assert.Equal(t, TileVoid, c.Tile(-1, 0))
	assert.Equal(t, TileVoid, c.Tile(0, ChunkSize))
}

func TestChunkEntities(t *testing.T) {
	c := NewChunk(ChunkPos{0, 0})
	e := &Entity{ID: 7, Kind: KindChest, X: 4, Y: 9, State: &ChestState{}}

	c.AddEntity(e)
	assert.True(t, c.Dirty)
	assert.Same(t, e, c.EntityAt(4, 9))
	assert.Nil(t, c.EntityAt(4, 8))

	c.Dirty = false
	assert.Same(t, e, c.RemoveEntity(7))
	assert.True(t, c.Dirty)
	assert.Nil(t, c.RemoveEntity(7))
	assert.Nil(t, c.EntityAt(4, 9))
}
