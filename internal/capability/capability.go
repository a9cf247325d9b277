// Package capability resolves, once at startup, which optional features the
// process can use. Components receive a Capabilities value and branch on it
// instead of probing library state per call; tests flip individual flags to
// exercise degraded paths (keyword-only search, sentence-chunking fallback).
package capability

// Capabilities reports which optional subsystems are usable.
type Capabilities struct {
	PDF        bool // PDF text extraction
	DOCX       bool // Word (.docx) extraction
	XLSX       bool // Excel (.xlsx) extraction
	PPTX       bool // PowerPoint (.pptx) extraction
	LegacyXLS  bool // legacy BIFF .xls extraction
	RTF        bool // RTF extraction
	HTML       bool // HTML extraction
	Markdown   bool // Markdown extraction
	Embedding  bool // an embedding model/API is configured
	VectorMath bool // vector similarity scoring is available
}

// Detect returns the capabilities of the current build. Extraction and vector
// math are compiled in, so they are always available here; Embedding depends
// on runtime configuration and is set by the caller.
func Detect() Capabilities {
	return Capabilities{
		PDF:        true,
		DOCX:       true,
		XLSX:       true,
		PPTX:       true,
		LegacyXLS:  true,
		RTF:        true,
		HTML:       true,
		Markdown:   true,
		Embedding:  false,
		VectorMath: true,
	}
}
