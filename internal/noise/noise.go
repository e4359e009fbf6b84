// Package noise wraps seeded 2D gradient noise for terrain generation.
package noise

import (
	"github.com/aquilax/go-perlin"
)

// Field is a deterministic 2D noise field. Two fields built with the same
// seed always return identical values for identical coordinates.
type Field struct {
	noise *perlin.Perlin
	seed  int64
}

// NewField creates a noise field from a seed.
func NewField(seed int64) *Field {
	// alpha=2, beta=2, n=3 gives terrain-like noise
	return &Field{
		noise: perlin.NewPerlin(2, 2, 3, seed),
		seed:  seed,
	}
}

// At returns a noise value in roughly [-1, 1].
func (f *Field) At(x, y float64) float64 {
	return f.noise.Noise2D(x, y)
}

// Octave sums octaves of the field at doubling frequency and decaying
// amplitude, normalized back into roughly [-1, 1].
func (f *Field) Octave(x, y float64, octaves int, persistence, lacunarity float64) float64 {
	total := 0.0
	frequency := 1.0
	amplitude := 1.0
	maxValue := 0.0

	for i := 0; i < octaves; i++ {
		total += f.noise.Noise2D(x*frequency, y*frequency) * amplitude
		maxValue += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}

	return total / maxValue
}

// Seed returns the seed the field was built from.
func (f *Field) Seed() int64 {
	return f.seed
}
