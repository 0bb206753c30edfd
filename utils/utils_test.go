package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundToXDp(t *testing.T) {
	assert.Equal(t, 50.2, RoundToXDp(50.196, 1))
	assert.Equal(t, 3.0, RoundToXDp(3.0000000000000004, 2))
	assert.Equal(t, 12.0, RoundToXDp(11.6, 0))
}

func TestCreateNextAvailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	first, err := CreateNextAvailable(dir, "RAWLOG", ".bin")
	require.NoError(t, err)
	defer first.Close()
	assert.Equal(t, filepath.Join(dir, "RAWLOG.bin"), first.Name())

	second, err := CreateNextAvailable(dir, "RAWLOG", ".bin")
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, filepath.Join(dir, "RAWLOG_1.bin"), second.Name())

	_, err = os.Stat(second.Name())
	assert.NoError(t, err)
}
