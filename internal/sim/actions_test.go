package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrica-dev/fabrica/internal/inventory"
	"github.com/fabrica-dev/fabrica/internal/world"
)

func newTestPlayer() *world.Player {
	return &world.Player{ID: 1, Name: "tester", X: 0, Y: 0, Inventory: inventory.New()}
}

func TestBuildRespectsPlacementRules(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)
	paint(s, 1, 0, world.TileIronOre)
	paint(s, 2, 0, world.TileWater)

	assert.Nil(t, s.Build(world.KindMiner, 0, 0, world.East), "miner needs an ore tile")
	assert.NotNil(t, s.Build(world.KindMiner, 1, 0, world.East))
	assert.Nil(t, s.Build(world.KindChest, 2, 0, world.North), "chest forbidden on water")
	assert.NotNil(t, s.Build(world.KindChest, 0, 0, world.North))
}

func TestBuildRejectsOccupiedTile(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	first := s.Build(world.KindChest, 0, 0, world.North)
	require.NotNil(t, first)
	assert.Nil(t, s.Build(world.KindConveyor, 0, 0, world.East))
	assert.Same(t, first, s.Store().EntityAt(0, 0))
}

func TestBuildRejectsPlayerKind(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)
	assert.Nil(t, s.Build(world.KindPlayer, 0, 0, world.North))
}

func TestBuildNormalizesDirectionlessKinds(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	chest := s.Build(world.KindChest, 0, 0, world.South)
	require.NotNil(t, chest)
	assert.Equal(t, world.North, chest.Dir)
}

func TestBuildRejectsUnknownDirection(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	// A conveyor with a bogus facing would target its own tile and eat its
	// items; the build must be refused instead.
	assert.Nil(t, s.Build(world.KindConveyor, 0, 0, world.Direction(7)))
	assert.Nil(t, s.Build(world.KindConveyor, 0, 0, world.Direction(-1)))
	assert.Nil(t, s.Store().EntityAt(0, 0))

	belt := s.Build(world.KindConveyor, 0, 0, world.East)
	require.NotNil(t, belt)
	state := belt.State.(*world.ConveyorState)
	state.Items = append(state.Items, world.ConveyorItem{Name: "coal"})
	run(s, 60)
	assert.Len(t, state.Items, 1, "a blocked belt keeps its items")
}

func TestDestroyDissolvesBufferedItems(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	chest := s.Build(world.KindChest, 0, 0, world.North)
	require.NotNil(t, chest)
	state := chest.State.(*world.ChestState)
	state.Items = append(state.Items, world.Item{Name: "coal"})

	removed := s.Destroy(chest.ID)
	require.NotNil(t, removed)
	assert.Nil(t, s.Store().Entity(chest.ID))
	assert.Nil(t, s.Store().EntityAt(0, 0))
}

func TestConfigureClearsUnknownRecipe(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	asm := s.Build(world.KindAssembler, 0, 0, world.East)
	require.NotNil(t, asm)
	state := asm.State.(*world.AssemblerState)

	require.NotNil(t, s.Configure(asm.ID, "iron_gear"))
	assert.Equal(t, "iron_gear", state.Recipe)

	require.NotNil(t, s.Configure(asm.ID, "no_such_recipe"))
	assert.Equal(t, "", state.Recipe)
}

func TestConfigureRejectsNonAssembler(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	chest := s.Build(world.KindChest, 0, 0, world.North)
	require.NotNil(t, chest)
	assert.Nil(t, s.Configure(chest.ID, "iron_gear"))
	assert.Nil(t, s.Configure(99999, "iron_gear"))
}

func TestTransferToConservesItems(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	chest := s.Build(world.KindChest, 0, 0, world.North)
	require.NotNil(t, chest)

	p := newTestPlayer()
	p.Inventory.Add("iron_plate", 7)

	moved := s.TransferTo(p, chest.ID, "iron_plate", 5)
	assert.Equal(t, 5, moved)
	assert.Equal(t, 2, p.Inventory.Count("iron_plate"))
	assert.Len(t, chest.State.(*world.ChestState).Items, 5)
}

func TestTransferToStopsAtCapacity(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	conv := s.Build(world.KindConveyor, 0, 0, world.East)
	require.NotNil(t, conv)

	p := newTestPlayer()
	p.Inventory.Add("coal", 10)

	moved := s.TransferTo(p, conv.ID, "coal", 10)
	assert.Equal(t, defaultConveyorCapacity, moved)
	assert.Equal(t, 10-defaultConveyorCapacity, p.Inventory.Count("coal"))
}

func TestTransferToStopsWhenPlayerRunsOut(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	chest := s.Build(world.KindChest, 0, 0, world.North)
	require.NotNil(t, chest)

	p := newTestPlayer()
	p.Inventory.Add("coal", 2)

	assert.Equal(t, 2, s.TransferTo(p, chest.ID, "coal", 99))
	assert.Equal(t, 0, p.Inventory.Count("coal"))
}

func TestTransferFromPullsNamedItems(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	chest := s.Build(world.KindChest, 0, 0, world.North)
	require.NotNil(t, chest)
	state := chest.State.(*world.ChestState)
	state.Items = append(state.Items,
		world.Item{Name: "coal"},
		world.Item{Name: "iron_plate"},
		world.Item{Name: "coal"})

	p := newTestPlayer()
	moved := s.TransferFrom(p, chest.ID, "coal", 5)
	assert.Equal(t, 2, moved)
	assert.Equal(t, 2, p.Inventory.Count("coal"))
	require.Len(t, state.Items, 1)
	assert.Equal(t, "iron_plate", state.Items[0].Name)
}

func TestTransferFromRespectsFullInventory(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)

	chest := s.Build(world.KindChest, 0, 0, world.North)
	require.NotNil(t, chest)
	state := chest.State.(*world.ChestState)
	state.Items = append(state.Items, world.Item{Name: "coal"})

	p := newTestPlayer()
	for i := 0; i < inventory.MaxSlots; i++ {
		p.Inventory.Add("iron_plate", inventory.MaxStack)
	}

	assert.Equal(t, 0, s.TransferFrom(p, chest.ID, "coal", 1))
	assert.Len(t, state.Items, 1, "item stays in the chest")
}

func TestPickupSweepsNearbyContainers(t *testing.T) {
	s := newTestSim(t)
	paint(s, 0, 0, world.TileGrass)
	paint(s, 1, 0, world.TileGrass)
	paint(s, 5, 5, world.TileGrass)

	conv := s.Build(world.KindConveyor, 0, 0, world.East)
	chest := s.Build(world.KindChest, 1, 0, world.North)
	far := s.Build(world.KindChest, 5, 5, world.North)
	require.NotNil(t, conv)
	require.NotNil(t, chest)
	require.NotNil(t, far)

	conv.State.(*world.ConveyorState).Items = append(conv.State.(*world.ConveyorState).Items,
		world.ConveyorItem{Name: "coal", Progress: 0.5})
	chest.State.(*world.ChestState).Items = append(chest.State.(*world.ChestState).Items,
		world.Item{Name: "circuit"})
	far.State.(*world.ChestState).Items = append(far.State.(*world.ChestState).Items,
		world.Item{Name: "iron_plate"})

	p := newTestPlayer()
	touched := s.Pickup(p)
	assert.Len(t, touched, 2)
	assert.Equal(t, 1, p.Inventory.Count("coal"))
	assert.Equal(t, 1, p.Inventory.Count("circuit"))
	assert.Equal(t, 0, p.Inventory.Count("iron_plate"), "out of reach")
	assert.Len(t, far.State.(*world.ChestState).Items, 1)

	// A wider catalog radius brings the far chest into reach.
	s.catalog.Constants["PICKUP_RADIUS"] = 10
	s.Pickup(p)
	assert.Equal(t, 1, p.Inventory.Count("iron_plate"))
}

func TestMineExtractsTileResource(t *testing.T) {
	s := newTestSim(t)
	paint(s, 3, 3, world.TileGoldOre)
	paint(s, 4, 3, world.TileGrass)

	p := newTestPlayer()
	assert.Equal(t, "gold_ore", s.Mine(p, 3, 3))
	assert.Equal(t, 1, p.Inventory.Count("gold_ore"))
	assert.Equal(t, "", s.Mine(p, 4, 3))
}

func TestCraftConsumesIngredients(t *testing.T) {
	s := newTestSim(t)
	p := newTestPlayer()
	p.Inventory.Add("iron_plate", 3)
	p.Inventory.Add("copper_wire", 3)

	require.True(t, s.Craft(p, "circuit"))
	assert.Equal(t, 1, p.Inventory.Count("circuit"))
	assert.Equal(t, 2, p.Inventory.Count("iron_plate"))
	assert.Equal(t, 0, p.Inventory.Count("copper_wire"))
}

func TestCraftFailsWithoutIngredients(t *testing.T) {
	s := newTestSim(t)
	p := newTestPlayer()
	p.Inventory.Add("iron_plate", 1)

	assert.False(t, s.Craft(p, "circuit"))
	assert.Equal(t, 1, p.Inventory.Count("iron_plate"), "nothing consumed on failure")
	assert.False(t, s.Craft(p, "no_such_recipe"))
}

func TestCraftAbortsWhenOutputWouldOverflow(t *testing.T) {
	s := newTestSim(t)
	p := newTestPlayer()
	// Fill every slot with an unrelated full stack, then the ingredients
	// would free no room for the result.
	for i := 0; i < inventory.MaxSlots-1; i++ {
		p.Inventory.Add("coal", inventory.MaxStack)
	}
	p.Inventory.Add("copper_plate", inventory.MaxStack)

	assert.False(t, s.Craft(p, "copper_wire"))
	assert.Equal(t, inventory.MaxStack, p.Inventory.Count("copper_plate"), "ingredients survive the abort")
}

func TestDropDiscardsItems(t *testing.T) {
	s := newTestSim(t)
	p := newTestPlayer()
	p.Inventory.Add("coal", 10)

	assert.Equal(t, 4, s.Drop(p, "coal", 4))
	assert.Equal(t, 6, p.Inventory.Count("coal"))
	assert.Equal(t, 6, s.Drop(p, "coal", 99), "drop caps at what is held")
}
