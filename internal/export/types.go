// Package export renders the finalized business plan and produces PDF and
// DOCX artifacts. It receives the answer set and section quality scores,
// never engine internals.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

// Plan is the finalized view handed over by the session controller.
type Plan struct {
	SessionID   string
	Title       string
	Applicant   string
	Score       int
	AllPassed   bool
	Forced      bool
	GeneratedAt time.Time
	Sections    []SectionView
}

// SectionView is one chapter of the produced document.
type SectionView struct {
	Title   string
	Quality int
	Answers []QA
}

// QA pairs a question prompt with the accepted answer.
type QA struct {
	Prompt string
	Value  string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrDOCXDependencyMissing indicates DOCX export runtime dependencies are unavailable.
	ErrDOCXDependencyMissing = errors.New("export docx dependency missing")
	// ErrUnsupportedFormat rejects formats outside pdf/docx.
	ErrUnsupportedFormat = errors.New("export format unsupported")
)
