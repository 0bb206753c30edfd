// Package generators produces synthetic stream values. Each category has one pure function of elapsed time
// (plus whatever randomness the caller hands in), the Synthetic source ties them to a stream.
package generators

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"pulto/models"
)

const (
	sensorBaseline  = 22.5
	sensorAmplitude = 5.0
	sensorNoise     = 2.0

	financialStart      = 100.0
	financialVolatility = 0.01
	financialMin        = 1.0
	financialMax        = 1000.0

	scientificFrequency = 0.2 // Hz
)

// Sensor models an environmental reading, a slow drift plus noise. noise is expected in [-1, 1].
// Output stays within sensorBaseline ± (sensorAmplitude + sensorNoise).
func Sensor(t float64, noise float64) float64 {
	return sensorBaseline + sensorAmplitude*math.Sin(t*0.5) + sensorNoise*clamp(noise, -1, 1)
}

// Financial steps a random walk from prev. shock is a standard normal draw.
func Financial(prev float64, shock float64) float64 {
	if prev <= 0 || math.IsNaN(prev) {
		prev = financialStart
	}
	return clamp(prev*(1+financialVolatility*shock), financialMin, financialMax)
}

// Scientific is the sum of a fundamental and its third harmonic, bounded to [-1.5, 1.5].
func Scientific(t float64) float64 {
	w := 2 * math.Pi * scientificFrequency
	return math.Sin(w*t) + 0.5*math.Sin(3*w*t)
}

// ScientificCoordinates traces a Lissajous curve so point cloud views have something to draw.
func ScientificCoordinates(t float64) models.Vec3 {
	w := 2 * math.Pi * scientificFrequency
	return models.Vec3{
		X: math.Sin(3 * w * t),
		Y: math.Sin(2 * w * t),
		Z: Scientific(t) / 1.5,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Synthetic generates samples for one stream of a synthetic category.
type Synthetic struct {
	category models.Category
	start    time.Time
	rng      *rand.Rand
	previous float64
}

func NewSynthetic(category models.Category, start time.Time, seed int64) (*Synthetic, error) {
	switch category {
	case models.CategorySensor, models.CategoryFinancial, models.CategoryScientific:
	default:
		return nil, fmt.Errorf("no synthetic generator for %s: %w", category, models.ErrUnknownCategory)
	}
	return &Synthetic{
		category: category,
		start:    start,
		rng:      rand.New(rand.NewSource(seed)),
		previous: financialStart,
	}, nil
}

// Next produces the sample for the tick at now. It isn't safe for concurrent use, each stream owns its own.
func (s *Synthetic) Next(now time.Time) (models.Sample, error) {
	t := now.Sub(s.start).Seconds()
	metadata := map[string]string{"category": s.category.String()}

	switch s.category {
	case models.CategorySensor:
		return models.NewSample(now, Sensor(t, s.rng.Float64()*2-1), nil, metadata), nil
	case models.CategoryFinancial:
		s.previous = Financial(s.previous, s.rng.NormFloat64())
		return models.NewSample(now, s.previous, nil, metadata), nil
	case models.CategoryScientific:
		coords := ScientificCoordinates(t)
		return models.NewSample(now, Scientific(t), &coords, metadata), nil
	}
	return models.Sample{}, fmt.Errorf("no synthetic generator for %s: %w", s.category, models.ErrUnknownCategory)
}
