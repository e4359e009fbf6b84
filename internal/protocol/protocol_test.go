package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fabrica-dev/fabrica/internal/catalog"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, TypeAuth, Auth{Name: "ada"}))

	msg, err := NewReader(&buf).Next()
	require.NoError(t, err)
	assert.Equal(t, TypeAuth, msg.Type)

	var auth Auth
	require.NoError(t, msg.Decode(&auth))
	assert.Equal(t, "ada", auth.Name)
}

func TestFramePrefixIsBigEndian(t *testing.T) {
	frame, err := Encode(TypeSync, Sync{ClientTime: 42})
	require.NoError(t, err)
	require.Greater(t, len(frame), 4)
	assert.Equal(t, uint32(len(frame)-4), binary.BigEndian.Uint32(frame[:4]))
}

func TestReaderSequencesMessages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, TypeChunkRequest, ChunkRequest{CX: -3, CY: 7}))
	require.NoError(t, Write(&buf, TypePlayerMove, PlayerMove{X: 1.5, Y: -2.5}))

	r := NewReader(&buf)

	msg, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeChunkRequest, msg.Type)
	var req ChunkRequest
	require.NoError(t, msg.Decode(&req))
	assert.Equal(t, -3, req.CX)
	assert.Equal(t, 7, req.CY)

	msg, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, TypePlayerMove, msg.Type)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderSkipsCorruptFrame(t *testing.T) {
	var buf bytes.Buffer

	// A well-framed but undecodable payload, then a valid message.
	junk := []byte{0xc1, 0xff, 0x00} // 0xc1 is never valid msgpack
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(junk)))
	buf.Write(prefix[:])
	buf.Write(junk)
	require.NoError(t, Write(&buf, TypeAuth, Auth{Name: "bob"}))

	msg, err := NewReader(&buf).Next()
	require.NoError(t, err, "corrupt frames are skipped, not fatal")
	assert.Equal(t, TypeAuth, msg.Type)
}

func TestReaderRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], MaxFrameSize+1)
	buf.Write(prefix[:])

	_, err := NewReader(&buf).Next()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReaderTruncatedStream(t *testing.T) {
	frame, err := Encode(TypeAuth, Auth{Name: "ada"})
	require.NoError(t, err)

	_, err = NewReader(bytes.NewReader(frame[:len(frame)-2])).Next()
	assert.Equal(t, io.EOF, err)
}

func TestEnvelopeShape(t *testing.T) {
	frame, err := Encode(TypePlayerLeave, PlayerLeave{ID: 9})
	require.NoError(t, err)

	// Clients written against the raw format read {t, d} maps.
	var env map[string]msgpack.RawMessage
	require.NoError(t, msgpack.Unmarshal(frame[4:], &env))
	require.Contains(t, env, "t")
	require.Contains(t, env, "d")

	var msgType int
	require.NoError(t, msgpack.Unmarshal(env["t"], &msgType))
	assert.Equal(t, TypePlayerLeave, msgType)
}

func TestNewCatalogStableOrder(t *testing.T) {
	cat := catalog.Defaults()
	a := NewCatalog(cat)
	b := NewCatalog(cat)
	assert.Equal(t, a, b)

	require.Len(t, a.Tiles, len(cat.Tiles))
	assert.Equal(t, 0, a.Tiles[0].ID)
	assert.Equal(t, "VOID", a.Tiles[0].Name)
	require.Len(t, a.Entities, len(cat.Entities))
	assert.Equal(t, "PLAYER", a.Entities[0].Name)
	assert.Len(t, a.Items, len(cat.Items))
	assert.Len(t, a.FurnaceRecipes, len(cat.FurnaceRecipes))
	assert.Len(t, a.AssemblerRecipes, len(cat.AssemblerRecipes))
	assert.Equal(t, cat.Constants, a.Constants)
}

func TestCatalogSurvivesWire(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, TypeCatalog, NewCatalog(catalog.Defaults())))

	msg, err := NewReader(&buf).Next()
	require.NoError(t, err)
	require.Equal(t, TypeCatalog, msg.Type)

	var snap Catalog
	require.NoError(t, msg.Decode(&snap))
	assert.Equal(t, "GRASS", snap.Tiles[1].Name)
	assert.Equal(t, float64(60), snap.Constants["WORLD_TICK_RATE"])
}
