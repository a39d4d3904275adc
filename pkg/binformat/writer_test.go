package binformat

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsforge/tsforge/pkg/models"
)

func makeChannels(n int) []Channel {
	x := make([]float64, n)
	a := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		a[i] = float64(i) * 2
	}
	return []Channel{
		{IsX: true, Name: "time", Data: x},
		{Name: "pressure", Unit: "psi", Data: a},
	}
}

func TestWriteSmallFileUsesJSONOnly(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "small")
	res, err := Write(stem, models.XTypeNumeric, "", makeChannels(1000))
	require.NoError(t, err)

	assert.False(t, res.UseBinaryFormat)
	assert.Empty(t, res.BinaryPath)
	assert.NotEmpty(t, res.OverviewPath)
	assert.NotEmpty(t, res.JSONPath)
	assert.EqualValues(t, 1000, res.TotalPoints)
}

func TestWriteLargeFileUsesBinaryFormat(t *testing.T) {
	stem := filepath.Join(t.TempDir(), "large")
	res, err := Write(stem, models.XTypeNumeric, "", makeChannels(BinaryFormatThreshold+1))
	require.NoError(t, err)

	assert.True(t, res.UseBinaryFormat)
	assert.NotEmpty(t, res.BinaryPath)
	assert.NotEmpty(t, res.MetaPath)
	assert.NotEmpty(t, res.OverviewPath)

	meta, err := ReadMeta(res.MetaPath)
	require.NoError(t, err)
	assert.Equal(t, int64(BinaryFormatThreshold+1), meta.TotalPoints)
	assert.Equal(t, 1, meta.NumChannels())
	assert.Equal(t, []string{"pressure"}, meta.ChannelNames())
	assert.Equal(t, "time", meta.XColumn.Name)
	assert.Equal(t, 0, meta.XColumn.Column)
	assert.Equal(t, []ChannelMeta{{Name: "pressure", Unit: "psi", Column: 1}}, meta.Channels)
}

func TestReaderGetSliceRoundTrips(t *testing.T) {
	defer ClearReaderCache()

	stem := filepath.Join(t.TempDir(), "reader")
	n := BinaryFormatThreshold + 500
	res, err := Write(stem, models.XTypeNumeric, "", makeChannels(n))
	require.NoError(t, err)
	require.True(t, res.UseBinaryFormat)

	reader, err := GetReader(res.BinaryPath, res.MetaPath)
	require.NoError(t, err)

	x, channels, count := reader.GetSlice(100, 200)
	assert.EqualValues(t, 101, count)
	assert.Len(t, x, 101)
	assert.Equal(t, float64(100), x[0])
	assert.Equal(t, float64(200), x[100])
	require.Len(t, channels, 1)
	assert.Equal(t, float64(400), channels[0][100])

	second, err := GetReader(res.BinaryPath, res.MetaPath)
	require.NoError(t, err)
	assert.Same(t, reader, second, "reader cache must return the same instance for the same path")
}

func TestReaderGetSliceClampsOutOfRange(t *testing.T) {
	defer ClearReaderCache()

	stem := filepath.Join(t.TempDir(), "clamp")
	n := BinaryFormatThreshold + 10
	res, err := Write(stem, models.XTypeNumeric, "", makeChannels(n))
	require.NoError(t, err)

	reader, err := GetReader(res.BinaryPath, res.MetaPath)
	require.NoError(t, err)

	x, _, count := reader.GetSlice(-1000, 1e9)
	assert.EqualValues(t, n, count)
	assert.Len(t, x, n)
}
