// Package world holds the authoritative world state: tiles, chunks, entities
// and the procedural generator. All mutation happens on the simulation
// worker; other goroutines only see snapshots encoded for the wire.
package world

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Tile kind ids. The catalog may describe more kinds than the generator
// emits; these are the ones generation and placement rules rely on.
const (
	TileVoid uint8 = iota
	TileGrass
	TileDirt
	TileStone
	TileWater
	TileIronOre
	TileCopperOre
	TileGoldOre
	TileDiamondOre
	TileBauxiteOre
	TileTinOre
	TileUraniumOre
	TileCoal
)

// Kind identifies an entity kind. Values match the catalog's entity ids and
// the wire protocol's "type" field.
type Kind int

const (
	KindPlayer    Kind = 0
	KindConveyor  Kind = 1
	KindMiner     Kind = 2
	KindFurnace   Kind = 3
	KindAssembler Kind = 4
	KindChest     Kind = 5
	KindInserter  Kind = 6
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "PLAYER"
	case KindConveyor:
		return "CONVEYOR"
	case KindMiner:
		return "MINER"
	case KindFurnace:
		return "FURNACE"
	case KindAssembler:
		return "ASSEMBLER"
	case KindChest:
		return "CHEST"
	case KindInserter:
		return "INSERTER"
	}
	return fmt.Sprintf("KIND(%d)", int(k))
}

// Direction is a cardinal facing.
type Direction int

const (
	North Direction = 0
	East  Direction = 1
	South Direction = 2
	West  Direction = 3
)

// Delta returns the unit tile offset of the direction.
func (d Direction) Delta() (int, int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	}
	return 0, 0
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Item is one buffered item record.
type Item struct {
	Name string `msgpack:"item"`
}

// ConveyorItem is an item travelling along a conveyor, with its position on
// the belt in [0, 1).
type ConveyorItem struct {
	Name     string  `msgpack:"item"`
	Progress float64 `msgpack:"progress"`
}

// State is the kind-specific mutable state of an entity. The concrete type
// is determined by the entity's Kind.
type State interface {
	stateKind() Kind
}

// MinerState: extraction cooldown and output FIFO.
type MinerState struct {
	Output   []Item `msgpack:"output"`
	Cooldown int    `msgpack:"cooldown"`
}

func (*MinerState) stateKind() Kind { return KindMiner }

// FurnaceState: smelting input/output FIFOs and recipe cooldown.
type FurnaceState struct {
	Input    []Item `msgpack:"input"`
	Output   []Item `msgpack:"output"`
	Cooldown int    `msgpack:"cooldown"`
}

func (*FurnaceState) stateKind() Kind { return KindFurnace }

// AssemblerState: ingredient input, result output, configured recipe name.
type AssemblerState struct {
	Input    []Item `msgpack:"input"`
	Output   []Item `msgpack:"output"`
	Cooldown int    `msgpack:"cooldown"`
	Recipe   string `msgpack:"recipe,omitempty"`
}

func (*AssemblerState) stateKind() Kind { return KindAssembler }

// ConveyorState: items in transit.
type ConveyorState struct {
	Items []ConveyorItem `msgpack:"items"`
}

func (*ConveyorState) stateKind() Kind { return KindConveyor }

// InserterState: the held item (nil when the arm is empty), swing progress
// and post-drop cooldown.
type InserterState struct {
	Held     *Item   `msgpack:"held_item,omitempty"`
	Progress float64 `msgpack:"progress"`
	Cooldown int     `msgpack:"cooldown"`
}

func (*InserterState) stateKind() Kind { return KindInserter }

// ChestState: passive storage.
type ChestState struct {
	Items []Item `msgpack:"items"`
}

func (*ChestState) stateKind() Kind { return KindChest }

// PlayerState: the avatar carries no machine state.
type PlayerState struct{}

func (*PlayerState) stateKind() Kind { return KindPlayer }

// NewState returns the zero state for a kind.
func NewState(k Kind) State {
	switch k {
	case KindConveyor:
		return &ConveyorState{}
	case KindMiner:
		return &MinerState{}
	case KindFurnace:
		return &FurnaceState{}
	case KindAssembler:
		return &AssemblerState{}
	case KindChest:
		return &ChestState{}
	case KindInserter:
		return &InserterState{}
	case KindPlayer:
		return &PlayerState{}
	}
	return nil
}

// Entity is a placed machine (or player avatar). Machines occupy exactly one
// tile at integer coordinates.
type Entity struct {
	ID    int64
	Kind  Kind
	X, Y  int
	Dir   Direction
	State State
}

// Record is the wire and persistence form of an entity. Data is the
// kind-specific state encoded as a self-describing msgpack map, so readers
// can ignore fields they do not know (forward-readable schema).
type Record struct {
	ID   int64              `msgpack:"id"`
	Type int                `msgpack:"type"`
	X    int                `msgpack:"x"`
	Y    int                `msgpack:"y"`
	Dir  int                `msgpack:"dir"`
	Data msgpack.RawMessage `msgpack:"data"`
}

// Encode converts the entity to its wire form.
func (e *Entity) Encode() (Record, error) {
	data, err := msgpack.Marshal(e.State)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode state of entity %d: %w", e.ID, err)
	}
	return Record{
		ID:   e.ID,
		Type: int(e.Kind),
		X:    e.X,
		Y:    e.Y,
		Dir:  int(e.Dir),
		Data: data,
	}, nil
}

// Decode rebuilds an entity from its wire form. Unknown state fields are
// dropped; missing ones stay at their zero values.
func Decode(r Record) (*Entity, error) {
	kind := Kind(r.Type)
	state := NewState(kind)
	if state == nil {
		return nil, fmt.Errorf("unknown entity kind %d", r.Type)
	}
	if len(r.Data) > 0 {
		if err := msgpack.Unmarshal(r.Data, state); err != nil {
			return nil, fmt.Errorf("failed to decode state of entity %d: %w", r.ID, err)
		}
	}
	return &Entity{
		ID:    r.ID,
		Kind:  kind,
		X:     r.X,
		Y:     r.Y,
		Dir:   Direction(r.Dir),
		State: state,
	}, nil
}
