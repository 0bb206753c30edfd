package generators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulto/models"
)

func TestFormulasStayBounded(t *testing.T) {
	prev := 0.0
	for i := 0; i < 5000; i++ {
		ts := float64(i) * 0.037

		s := Sensor(ts, float64(i%7)/3-1)
		assert.GreaterOrEqual(t, s, sensorBaseline-sensorAmplitude-sensorNoise)
		assert.LessOrEqual(t, s, sensorBaseline+sensorAmplitude+sensorNoise)

		sc := Scientific(ts)
		assert.GreaterOrEqual(t, sc, -1.5)
		assert.LessOrEqual(t, sc, 1.5)

		prev = Financial(prev, 40)
		assert.GreaterOrEqual(t, prev, financialMin)
		assert.LessOrEqual(t, prev, financialMax)
	}
	assert.Equal(t, financialMax, prev)
}

func TestSensorClampsNoise(t *testing.T) {
	assert.Equal(t, Sensor(0, 1), Sensor(0, 50))
}

func TestSyntheticNext(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	for _, category := range []models.Category{models.CategorySensor, models.CategoryFinancial, models.CategoryScientific} {
		t.Run(category.String(), func(t *testing.T) {
			gen, err := NewSynthetic(category, start, 1)
			require.NoError(t, err)

			now := start.Add(1500 * time.Millisecond)
			sample, err := gen.Next(now)
			require.NoError(t, err)
			assert.Equal(t, now, sample.Timestamp)
			assert.Equal(t, category.String(), sample.Metadata["category"])
			if category == models.CategoryScientific {
				require.NotNil(t, sample.Coordinates)
			} else {
				assert.Nil(t, sample.Coordinates)
			}
		})
	}
}

func TestSyntheticIsDeterministicPerSeed(t *testing.T) {
	start := time.Unix(0, 0)
	a, err := NewSynthetic(models.CategoryFinancial, start, 42)
	require.NoError(t, err)
	b, err := NewSynthetic(models.CategoryFinancial, start, 42)
	require.NoError(t, err)

	for i := 1; i <= 10; i++ {
		now := start.Add(time.Duration(i) * time.Second)
		sa, _ := a.Next(now)
		sb, _ := b.Next(now)
		assert.Equal(t, sa.Value, sb.Value)
	}
}

func TestNewSyntheticRejectsDevice(t *testing.T) {
	_, err := NewSynthetic(models.CategoryDevice, time.Now(), 1)
	assert.ErrorIs(t, err, models.ErrUnknownCategory)
}
