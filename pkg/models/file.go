// Package models defines the shared domain types persisted and exchanged
// across tsforge's subsystems: files, events, plans, agent state, and
// conversations.
package models

import "time"

// ParsingStatus is the lifecycle state of a file's ingestion pipeline.
// The zero value is never valid: callers must set an explicit status.
type ParsingStatus string

const (
	ParsingUploading ParsingStatus = "uploading"
	ParsingQueued    ParsingStatus = "queued"
	ParsingParsing   ParsingStatus = "parsing"
	ParsingParsed    ParsingStatus = "parsed"
	// ParsingError is a prefix; the actual stored value is "error: <msg>".
	ParsingError ParsingStatus = "error"
)

// XType identifies how the x column should be interpreted.
type XType string

const (
	XTypeTimestamp XType = "timestamp"
	XTypeNumeric   XType = "numeric"
)

// File is the subset of the external file record that the core subsystems
// read and update. Project/folder/template/label CRUD lives outside the
// core (spec.md §1 Non-goals); this struct only carries what C2-C12 touch.
type File struct {
	ID     string
	Folder string

	RawPath      string
	JSONPath     string
	BinaryPath   string
	MetaPath     string
	OverviewPath string

	UseBinaryFormat bool
	TotalPoints     int64

	XType   XType
	XFormat string
	XMin    float64
	XMax    float64

	Parsing ParsingStatus
	// ParsingMessage is not filled by services.FileService; the error text
	// of a failed parse is stored in Parsing itself ("error: <msg>").
	ParsingMessage string

	LabelID string

	LastModifier string
	LastUpdate   time.Time
}

// ErrorStatus returns the status encoding a parse failure, as stored
// in the `parsing` column: "error: <msg>".
func ErrorStatus(msg string) ParsingStatus {
	return ParsingStatus("error: " + msg)
}
