// Package model defines the core data types for the fact and KPI pipeline.
package model

import "time"

// DocumentKind identifies the source file format a document was ingested from.
type DocumentKind string

const (
	DocKindSpreadsheet DocumentKind = "spreadsheet"
	DocKindCSV         DocumentKind = "csv"
	DocKindText        DocumentKind = "text"
	DocKindXBRL        DocumentKind = "xbrl"
)

// Document is one ingested source artifact, created once per
// (deal, content hash) and immutable thereafter. Corrections arrive as a
// new version with a new hash, never as in-place edits.
type Document struct {
	ID          string       `json:"id"`
	DealID      string       `json:"deal_id"`
	Name        string       `json:"name"`
	Kind        DocumentKind `json:"kind"`
	Version     string       `json:"version,omitempty"`
	ContentHash string       `json:"content_hash"`
	CreatedAt   time.Time    `json:"created_at"`
}

// LogicalTable groups the atomic facts extracted from one document in a
// single extraction pass (one spreadsheet sheet, one CSV).
type LogicalTable struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Name       string    `json:"name"`
	Sheet      string    `json:"sheet,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
