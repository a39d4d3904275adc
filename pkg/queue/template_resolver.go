package queue

import (
	"context"

	"github.com/tsforge/tsforge/pkg/models"
	"github.com/tsforge/tsforge/pkg/parser"
)

// StaticTemplateResolver always returns the same Template, useful for
// single-format deployments and for tests. A real deployment would
// resolve per-folder templates from whatever store owns template CRUD
// (spec.md §1 Non-goals).
type StaticTemplateResolver struct {
	Template parser.Template
}

func (r StaticTemplateResolver) ResolveTemplate(_ context.Context, _ *models.File) (parser.Template, error) {
	return r.Template, nil
}

// FolderTemplateResolver picks a Template by the file's folder, falling
// back to Default when the folder has no specific entry.
type FolderTemplateResolver struct {
	ByFolder map[string]parser.Template
	Default  parser.Template
}

func (r FolderTemplateResolver) ResolveTemplate(_ context.Context, f *models.File) (parser.Template, error) {
	if tpl, ok := r.ByFolder[f.Folder]; ok {
		return tpl, nil
	}
	return r.Default, nil
}
