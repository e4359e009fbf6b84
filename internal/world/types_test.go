package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestDirectionDelta(t *testing.T) {
	tests := []struct {
		dir    Direction
		dx, dy int
	}{
		{North, 0, -1},
		{East, 1, 0},
		{South, 0, 1},
		{West, -1, 0},
	}
	for _, tt := range tests {
		dx, dy := tt.dir.Delta()
		assert.Equal(t, tt.dx, dx)
		assert.Equal(t, tt.dy, dy)
	}
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, South, North.Opposite())
	assert.Equal(t, West, East.Opposite())
	assert.Equal(t, North, South.Opposite())
	assert.Equal(t, East, West.Opposite())
}

func TestNewStateMatchesKind(t *testing.T) {
	kinds := []Kind{KindPlayer, KindConveyor, KindMiner, KindFurnace, KindAssembler, KindChest, KindInserter}
	for _, k := range kinds {
		state := NewState(k)
		require.NotNil(t, state, "kind %v", k)
		assert.Equal(t, k, state.stateKind())
	}
	assert.Nil(t, NewState(Kind(99)))
}

func TestEntityEncodeDecodeRoundTrip(t *testing.T) {
	entities := []*Entity{
		{
			ID: 1, Kind: KindMiner, X: 5, Y: 5, Dir: East,
			State: &MinerState{Output: []Item{{"iron_ore"}}, Cooldown: 30},
		},
		{
			ID: 2, Kind: KindConveyor, X: 6, Y: 5, Dir: East,
			State: &ConveyorState{Items: []ConveyorItem{{"iron_ore", 0.5}, {"coal", 0.99}}},
		},
		{
			ID: 3, Kind: KindInserter, X: 7, Y: 5, Dir: West,
			State: &InserterState{Held: &Item{"circuit"}, Progress: 0.4, Cooldown: 0},
		},
		{
			ID: 4, Kind: KindAssembler, X: 8, Y: 5, Dir: North,
			State: &AssemblerState{Input: []Item{{"iron_plate"}}, Recipe: "iron_gear", Cooldown: 12},
		},
	}

	for _, e := range entities {
		rec, err := e.Encode()
		require.NoError(t, err)

		decoded, err := Decode(rec)
		require.NoError(t, err)
		assert.Equal(t, e, decoded)
	}
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	// A future writer may add state fields; old readers drop them.
	data, err := msgpack.Marshal(map[string]any{
		"output":       []map[string]any{{"item": "coal"}},
		"cooldown":     9,
		"future_field": "ignored",
	})
	require.NoError(t, err)

	e, err := Decode(Record{ID: 5, Type: int(KindMiner), X: 1, Y: 2, Dir: 1, Data: data})
	require.NoError(t, err)

	state := e.State.(*MinerState)
	assert.Equal(t, []Item{{"coal"}}, state.Output)
	assert.Equal(t, 9, state.Cooldown)
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode(Record{ID: 1, Type: 99})
	assert.Error(t, err)
}

func TestDecodeEmptyData(t *testing.T) {
	e, err := Decode(Record{ID: 6, Type: int(KindChest), X: 0, Y: 0})
	require.NoError(t, err)
	assert.Empty(t, e.State.(*ChestState).Items)
}
