package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/parser"
)

func TestFileStemStripsExtension(t *testing.T) {
	f := &models.File{RawPath: "/data/uploads/run-42.csv"}
	assert.Equal(t, "/data/uploads/run-42", fileStem(f))
}

func TestFileStemNoExtension(t *testing.T) {
	f := &models.File{RawPath: "/data/uploads/run-42"}
	assert.Equal(t, "/data/uploads/run-42", fileStem(f))
}

func TestMinMaxOfFindsXColumnRange(t *testing.T) {
	cols := []parser.Column{
		{X: true, Data: []float64{3, 1, 7, -2}},
		{X: false, Data: []float64{100, 200}},
	}
	lo, hi := minMaxOf(cols)
	assert.Equal(t, -2.0, lo)
	assert.Equal(t, 7.0, hi)
}

func TestMinMaxOfEmptyColumnsReturnsZero(t *testing.T) {
	lo, hi := minMaxOf(nil)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.0, hi)
}

func TestStaticTemplateResolverAlwaysReturnsTemplate(t *testing.T) {
	tpl := parser.Template{FileType: parser.FileTypeCSV}
	r := StaticTemplateResolver{Template: tpl}
	got, err := r.ResolveTemplate(nil, &models.File{})
	assert.NoError(t, err)
	assert.Equal(t, tpl, got)
}

func TestFolderTemplateResolverFallsBackToDefault(t *testing.T) {
	specific := parser.Template{FileType: parser.FileTypeXLSX}
	def := parser.Template{FileType: parser.FileTypeCSV}
	r := FolderTemplateResolver{
		ByFolder: map[string]parser.Template{"rig-1": specific},
		Default:  def,
	}

	got, err := r.ResolveTemplate(nil, &models.File{Folder: "rig-1"})
	assert.NoError(t, err)
	assert.Equal(t, specific, got)

	got, err = r.ResolveTemplate(nil, &models.File{Folder: "rig-2"})
	assert.NoError(t, err)
	assert.Equal(t, def, got)
}
