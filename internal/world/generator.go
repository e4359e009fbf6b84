package world

import (
	"math"
	"math/rand"

	"github.com/fabrica-dev/fabrica/internal/noise"
)

// Biome classifies terrain from elevation, moisture and temperature.
type Biome int

const (
	BiomeOcean Biome = iota
	BiomeLake
	BiomeBeach
	BiomePlains
	BiomeForest
	BiomeDesert
	BiomeSwamp
	BiomeMountains
	BiomeTundra
)

type biomeConfig struct {
	base            uint8
	secondary       uint8
	secondaryChance float64
}

var biomeConfigs = map[Biome]biomeConfig{
	BiomeOcean:     {base: TileWater},
	BiomeLake:      {base: TileWater},
	BiomeBeach:     {base: TileDirt, secondary: TileGrass, secondaryChance: 0.1},
	BiomePlains:    {base: TileGrass, secondary: TileDirt, secondaryChance: 0.05},
	BiomeForest:    {base: TileGrass},
	BiomeDesert:    {base: TileDirt, secondary: TileStone, secondaryChance: 0.1},
	BiomeSwamp:     {base: TileGrass, secondary: TileWater, secondaryChance: 0.15},
	BiomeMountains: {base: TileStone, secondary: TileDirt, secondaryChance: 0.1},
	BiomeTundra:    {base: TileStone, secondary: TileGrass, secondaryChance: 0.2},
}

// resourceConfig tunes patch generation for one ore kind. Frequency is the
// expected patch count per tile of region area.
type resourceConfig struct {
	tile          uint8
	frequency     float64
	minRadius     float64
	maxRadius     float64
	minRichness   float64
	maxRichness   float64
	noiseStrength float64
}

// Order is fixed: region patch generation iterates this slice, so the same
// seed always yields the same patch list.
var resourceConfigs = []resourceConfig{
	{TileIronOre, 0.0005, 8, 20, 0.6, 1.0, 0.15},
	{TileCopperOre, 0.0004, 8, 18, 0.5, 0.95, 0.15},
	{TileCoal, 0.00035, 7, 16, 0.5, 0.9, 0.12},
	{TileGoldOre, 0.00015, 4, 10, 0.4, 0.7, 0.2},
	{TileUraniumOre, 0.00008, 3, 8, 0.3, 0.6, 0.25},
	{TileDiamondOre, 0.00004, 2, 5, 0.2, 0.5, 0.2},
	{TileBauxiteOre, 0.00025, 6, 14, 0.5, 0.8, 0.15},
	{TileTinOre, 0.0003, 5, 12, 0.5, 0.85, 0.15},
}

const (
	regionSize      = 128
	spawnRadius     = 250.0
	patchCacheLimit = 4096
)

// patch is a procedurally placed ore deposit. Patches are a pure function of
// (seed, region); they are cached but never persisted.
type patch struct {
	centerX, centerY float64
	tile             uint8
	radius           float64
	richness         float64
	shapeSeed        int64
	noiseStrength    float64
}

// Generator produces tiles deterministically from a world seed. Tile kinds
// are a pure function of (seed, x, y): regenerating the same coordinates
// always yields the same result.
type Generator struct {
	seed int64

	elevation   *noise.Field
	moisture    *noise.Field
	temperature *noise.Field
	detail      *noise.Field
	shape       *noise.Field

	seaLevel          float64
	beachThreshold    float64
	mountainThreshold float64

	elevationScale   float64
	moistureScale    float64
	temperatureScale float64
	detailScale      float64

	patchCache map[[2]int][]patch
}

// NewGenerator builds a generator for the given world seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		seed:              seed,
		elevation:         noise.NewField(seed),
		moisture:          noise.NewField(seed + 1),
		temperature:       noise.NewField(seed + 2),
		detail:            noise.NewField(seed + 3),
		shape:             noise.NewField(seed + 1000),
		seaLevel:          -0.15,
		beachThreshold:    0.05,
		mountainThreshold: 0.55,
		elevationScale:    0.004,
		moistureScale:     0.012,
		temperatureScale:  0.008,
		detailScale:       0.08,
		patchCache:        make(map[[2]int][]patch),
	}
}

// Seed returns the world seed.
func (g *Generator) Seed() int64 { return g.seed }

// Elevation returns terrain elevation at a world position. Within the spawn
// radius a quadratic boost guarantees walkable ground near the origin.
func (g *Generator) Elevation(x, y float64) float64 {
	base := g.elevation.Octave(x*g.elevationScale, y*g.elevationScale, 6, 0.5, 2.0)
	detail := g.detail.At(x*g.detailScale, y*g.detailScale) * 0.03
	elevation := base + detail

	dist := math.Sqrt(x*x + y*y)
	if dist < spawnRadius {
		f := 1 - dist/spawnRadius
		elevation += 0.5 * f * f
	}
	return elevation
}

// Moisture returns moisture in [0, 1].
func (g *Generator) Moisture(x, y float64) float64 {
	n := g.moisture.Octave(x*g.moistureScale, y*g.moistureScale, 4, 0.6, 2.0)
	return (n + 1) / 2
}

// Temperature returns temperature in [0, 1].
func (g *Generator) Temperature(x, y float64) float64 {
	n := g.temperature.Octave(x*g.temperatureScale, y*g.temperatureScale, 3, 0.5, 2.0)
	return (n + 1) / 2
}

// BiomeAt classifies the biome with a fixed decision tree.
func (g *Generator) BiomeAt(elevation, moisture, temperature float64) Biome {
	switch {
	case elevation < g.seaLevel-0.15:
		return BiomeOcean
	case elevation < g.seaLevel:
		return BiomeLake
	case elevation < g.seaLevel+g.beachThreshold:
		return BiomeBeach
	case elevation > g.mountainThreshold:
		if temperature < 0.3 {
			return BiomeTundra
		}
		return BiomeMountains
	case moisture > 0.7:
		if temperature < 0.4 {
			return BiomeSwamp
		}
		return BiomeForest
	case moisture < 0.3:
		if temperature > 0.6 {
			return BiomeDesert
		}
		return BiomePlains
	case temperature < 0.3:
		return BiomeTundra
	}
	return BiomePlains
}

// TileAt returns the tile kind at world tile (x, y).
func (g *Generator) TileAt(x, y int) uint8 {
	fx, fy := float64(x), float64(y)

	elevation := g.Elevation(fx, fy)
	moisture := g.Moisture(fx, fy)
	temperature := g.Temperature(fx, fy)
	biome := g.BiomeAt(elevation, moisture, temperature)
	cfg := biomeConfigs[biome]

	if resource, ok := g.resourceAt(fx, fy, biome); ok {
		return resource
	}

	tile := cfg.base
	if cfg.secondaryChance > 0 {
		d := g.detail.At(fx*0.2, fy*0.2)
		if (d+1)/2 < cfg.secondaryChance {
			tile = cfg.secondary
		}
	}
	return tile
}

// GenerateChunk fills a fresh chunk's tile matrix.
func (g *Generator) GenerateChunk(pos ChunkPos) *Chunk {
	c := NewChunk(pos)
	baseX := pos.X * ChunkSize
	baseY := pos.Y * ChunkSize

	for ly := 0; ly < ChunkSize; ly++ {
		for lx := 0; lx < ChunkSize; lx++ {
			c.Tiles[ly][lx] = g.TileAt(baseX+lx, baseY+ly)
		}
	}
	c.Dirty = true
	return c
}

// SpawnPoint scans rings around the origin for a walkable, non-mountain tile.
func (g *Generator) SpawnPoint() (float64, float64) {
	for radius := 0; radius < 100; radius += 5 {
		for angle := 0; angle < 360; angle += 15 {
			rad := float64(angle) * math.Pi / 180
			x := float64(radius) * math.Cos(rad)
			y := float64(radius) * math.Sin(rad)

			elevation := g.Elevation(x, y)
			if elevation > g.seaLevel+0.1 && elevation < g.mountainThreshold {
				return x, y
			}
		}
	}
	return 0, 0
}

// resourceAt decides whether an ore patch claims the tile. When several
// patches overlap, the one with the highest normalized proximity wins, and
// placement inside the winner is sampled purely positionally.
func (g *Generator) resourceAt(x, y float64, biome Biome) (uint8, bool) {
	if biome == BiomeOcean || biome == BiomeLake {
		return 0, false
	}

	var best *patch
	bestScore := -1.0

	shapeNoise := g.shape.At(x*0.1, y*0.1)

	for _, p := range g.patchesNear(x, y) {
		dx := x - p.centerX
		dy := y - p.centerY
		distance := math.Sqrt(dx*dx + dy*dy)

		effectiveRadius := p.radius * (1 + shapeNoise*p.noiseStrength)
		if distance >= effectiveRadius {
			continue
		}
		score := 1 - distance/effectiveRadius
		if score > bestScore {
			bestScore = score
			q := p
			best = &q
		}
	}

	if best == nil {
		return 0, false
	}

	normalizedDist := 1 - bestScore
	density := best.richness * (1 - normalizedDist*0.7)
	density *= 0.85 + 0.15*g.shape.At(x*0.5, y*0.5)

	if hashedUnit(int64(x), int64(y), best.shapeSeed) < density {
		return best.tile, true
	}
	return 0, false
}

// patchesNear gathers the patches of the enclosing region and its eight
// neighbors.
func (g *Generator) patchesNear(x, y float64) []patch {
	rx := int(math.Floor(x / regionSize))
	ry := int(math.Floor(y / regionSize))

	var patches []patch
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			patches = append(patches, g.regionPatches(rx+dx, ry+dy)...)
		}
	}
	return patches
}

func (g *Generator) regionPatches(rx, ry int) []patch {
	key := [2]int{rx, ry}
	if cached, ok := g.patchCache[key]; ok {
		return cached
	}
	// Regenerating a region is cheap and deterministic, so resetting the
	// cache when it grows too large is safe.
	if len(g.patchCache) >= patchCacheLimit {
		g.patchCache = make(map[[2]int][]patch)
	}

	rng := rand.New(rand.NewSource(mix3(g.seed, int64(rx), int64(ry))))
	baseX := float64(rx * regionSize)
	baseY := float64(ry * regionSize)

	var patches []patch
	for _, cfg := range resourceConfigs {
		expected := cfg.frequency * regionSize * regionSize
		count := int(expected)
		if rng.Float64() < expected-float64(count) {
			count++
		}

		for i := 0; i < count; i++ {
			patches = append(patches, patch{
				centerX:       baseX + rng.Float64()*regionSize,
				centerY:       baseY + rng.Float64()*regionSize,
				tile:          cfg.tile,
				radius:        cfg.minRadius + rng.Float64()*(cfg.maxRadius-cfg.minRadius),
				richness:      cfg.minRichness + rng.Float64()*(cfg.maxRichness-cfg.minRichness),
				shapeSeed:     rng.Int63n(1_000_000),
				noiseStrength: cfg.noiseStrength,
			})
		}
	}

	g.patchCache[key] = patches
	return patches
}

// mix3 combines three integers into one well-distributed seed (splitmix64
// finalizer per input).
func mix3(a, b, c int64) int64 {
	h := uint64(a)
	for _, v := range [2]uint64{uint64(b), uint64(c)} {
		h ^= v + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
		h = (h ^ (h >> 30)) * 0xbf58476d1ce4e5b9
		h = (h ^ (h >> 27)) * 0x94d049bb133111eb
		h ^= h >> 31
	}
	return int64(h)
}

// hashedUnit maps (x, y, seed) to a uniform value in [0, 1).
func hashedUnit(x, y, seed int64) float64 {
	h := uint64(mix3(mix3(x, y, seed), seed, x^y))
	return float64(h>>11) / float64(1<<53)
}
