package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsforge/tsforge/pkg/models"
)

func writeCSVFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCSVNumericX(t *testing.T) {
	path := writeCSVFixture(t, "time,pressure,flow\n0,1.0,10\n1,2.0,20\n2,3.0,30\n")

	tpl := Template{
		FileType: FileTypeCSV,
		HeadRow:  0,
		X:        XSpec{Selector: ColumnSelector{Raw: "col:0"}, Name: "time"},
		Channels: []ChannelSpec{
			{ChannelName: "pressure", Selector: ColumnSelector{Raw: "^pressure$"}, Mandatory: true},
			{ChannelName: "flow", Selector: ColumnSelector{Raw: "col:2"}, Mandatory: true},
		},
	}

	cols, xType, _, err := Parse(path, tpl)
	require.NoError(t, err)
	require.Equal(t, models.XTypeNumeric, xType)
	require.Len(t, cols, 3)
	assert.True(t, cols[0].X)
	assert.Equal(t, []float64{0, 1, 2}, cols[0].Data)
	assert.Equal(t, []float64{1, 2, 3}, cols[1].Data)
	assert.Equal(t, []float64{10, 20, 30}, cols[2].Data)
}

func TestParseCSVMissingMandatoryChannelFails(t *testing.T) {
	path := writeCSVFixture(t, "time,pressure\n0,1.0\n")

	tpl := Template{
		FileType: FileTypeCSV,
		HeadRow:  0,
		X:        XSpec{Selector: ColumnSelector{Raw: "col:0"}},
		Channels: []ChannelSpec{
			{ChannelName: "flow", Selector: ColumnSelector{Raw: "^flow$"}, Mandatory: true},
		},
	}

	_, _, _, err := Parse(path, tpl)
	require.ErrorIs(t, err, ErrChannelMissing)
}

func TestParseCSVSkipRowBeyondDataFails(t *testing.T) {
	path := writeCSVFixture(t, "time,pressure\n0,1.0\n1,2.0\n")

	tpl := Template{
		FileType: FileTypeCSV,
		HeadRow:  0,
		SkipRow:  2, // == len(df): no data rows remain
		X:        XSpec{Selector: ColumnSelector{Raw: "col:0"}},
		Channels: []ChannelSpec{
			{ChannelName: "pressure", Selector: ColumnSelector{Raw: "^pressure$"}, Mandatory: true},
		},
	}

	_, _, _, err := Parse(path, tpl)
	require.ErrorIs(t, err, ErrNoDataRows)
}

func TestParseCSVMissingOptionalChannelSkipped(t *testing.T) {
	path := writeCSVFixture(t, "time,pressure\n0,1.0\n1,2.0\n")

	tpl := Template{
		FileType: FileTypeCSV,
		HeadRow:  0,
		X:        XSpec{Selector: ColumnSelector{Raw: "col:0"}},
		Channels: []ChannelSpec{
			{ChannelName: "pressure", Selector: ColumnSelector{Raw: "^pressure$"}, Mandatory: true},
			{ChannelName: "flow", Selector: ColumnSelector{Raw: "^flow$"}, Mandatory: false},
		},
	}

	cols, _, _, err := Parse(path, tpl)
	require.NoError(t, err)
	assert.Len(t, cols, 2) // x + pressure only, flow skipped silently
}

func TestParseCSVUseIndex(t *testing.T) {
	path := writeCSVFixture(t, "pressure\n1.0\n2.0\n3.0\n")

	tpl := Template{
		FileType: FileTypeCSV,
		HeadRow:  0,
		X:        XSpec{UseIndex: true},
		Channels: []ChannelSpec{
			{ChannelName: "pressure", Selector: ColumnSelector{Raw: "col:0"}, Mandatory: true},
		},
	}

	cols, xType, _, err := Parse(path, tpl)
	require.NoError(t, err)
	assert.Equal(t, models.XTypeNumeric, xType)
	assert.Equal(t, []float64{0, 1, 2}, cols[0].Data)
}

func TestParseCSVTimeColumnAutodetects(t *testing.T) {
	path := writeCSVFixture(t, "time,pressure\n2024-01-01 00:00:00,1.0\n2024-01-01 00:00:01,2.0\n")

	tpl := Template{
		FileType: FileTypeCSV,
		HeadRow:  0,
		X:        XSpec{Selector: ColumnSelector{Raw: "col:0"}, IsTime: true},
		Channels: []ChannelSpec{
			{ChannelName: "pressure", Selector: ColumnSelector{Raw: "col:1"}, Mandatory: true},
		},
	}

	cols, xType, xFormat, err := Parse(path, tpl)
	require.NoError(t, err)
	assert.Equal(t, models.XTypeTimestamp, xType)
	assert.Equal(t, "date_time", xFormat)
	require.Len(t, cols[0].Data, 2)
	assert.Equal(t, float64(1), cols[0].Data[1]-cols[0].Data[0])
}

func TestParseCSVNonNumericXFails(t *testing.T) {
	path := writeCSVFixture(t, "time,pressure\nabc,1.0\n")

	tpl := Template{
		FileType: FileTypeCSV,
		HeadRow:  0,
		X:        XSpec{Selector: ColumnSelector{Raw: "col:0"}, IsTime: false},
		Channels: []ChannelSpec{
			{ChannelName: "pressure", Selector: ColumnSelector{Raw: "col:1"}, Mandatory: true},
		},
	}

	_, _, _, err := Parse(path, tpl)
	require.ErrorIs(t, err, ErrNonNumericX)
}

func TestDetectTimeFormatFallsBackToAuto(t *testing.T) {
	format, layout := detectTimeFormat([]string{"Jan 2, 2024 3:04pm"})
	assert.Equal(t, "auto", format)
	assert.Empty(t, layout)
}
