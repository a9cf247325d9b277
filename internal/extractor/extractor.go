// Package extractor converts document files into plain text for chunking.
// It dispatches by file extension (with OLE2 container sniffing for legacy
// Office formats) and uses the VantageDataChat libraries (GoPDF2, GoWord,
// GoExcel, GoPPT) plus xlsReader/mscfb for legacy formats.
//
// Page-oriented formats (PDF, DOCX, PPTX) return per-page/paragraph/slide
// lists so the chunker can honor natural boundaries; everything else returns
// a single string. Every handler is guarded: a malformed file or a panicking
// parser yields an error for that one file, never an aborted batch.
package extractor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"docsearch/internal/capability"
)

// ErrUnsupportedType marks a file whose format has no handler. Soft failure:
// the index builder logs and skips the file.
var ErrUnsupportedType = errors.New("unsupported file type")

// UnavailableError marks a format whose handler is disabled in this build's
// capabilities. Soft failure, same policy as ErrUnsupportedType.
type UnavailableError struct {
	Format string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s extraction unavailable in this build", e.Format)
}

// Heading is one document outline entry, recorded by extractors that can see
// structural headings (currently Markdown). The index builder uses the
// outline to label chunks with their heading hierarchy.
type Heading struct {
	Line  int // 1-based line in Text
	Level int
	Title string
}

// Result holds extracted document text. Exactly one of Text or Pages is
// populated: Pages for formats with natural page/slide boundaries, Text for
// everything else.
type Result struct {
	Text     string
	Pages    []string
	Headings []Heading
	Type     string // normalized type: "pdf", "docx", "xlsx", "pptx", "html", "markdown", "rtf", "text"
}

// IsPaged reports whether the result carries per-page content.
func (r *Result) IsPaged() bool { return r.Pages != nil }

// Plain returns the full text regardless of representation.
func (r *Result) Plain() string {
	if r.Pages != nil {
		return strings.Join(r.Pages, "\n\n")
	}
	return r.Text
}

// Extractor dispatches files to format handlers according to the resolved
// capabilities.
type Extractor struct {
	caps capability.Capabilities
}

// New creates an Extractor with the given capabilities.
func New(caps capability.Capabilities) *Extractor {
	return &Extractor{caps: caps}
}

// oleMagic is the OLE2 compound-file signature used by legacy Office formats.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Extract reads the file at path and extracts its text. The format is chosen
// by extension, with OLE2 magic-byte sniffing to distinguish legacy Office
// container files carrying a modern extension.
func (e *Extractor) Extract(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ft := TypeForPath(path)
	if len(data) >= 8 && strings.HasPrefix(string(data[:8]), string(oleMagic)) {
		// Modern extension on a legacy container: route to the OLE handler.
		switch ft {
		case "xlsx":
			ft = "xls"
		case "docx":
			ft = "doc"
		case "pptx":
			ft = "ppt"
		}
	}
	return e.ExtractBytes(data, ft)
}

// ExtractBytes extracts text from raw file content of the given type.
// Supported types: pdf, docx, doc, xlsx, xls, pptx, ppt, html, markdown
// (or md), rtf, text (or txt).
func (e *Extractor) ExtractBytes(data []byte, fileType string) (*Result, error) {
	switch strings.ToLower(fileType) {
	case "pdf":
		if !e.caps.PDF {
			return nil, &UnavailableError{Format: "pdf"}
		}
		return e.extractPDF(data)
	case "docx":
		if !e.caps.DOCX {
			return nil, &UnavailableError{Format: "docx"}
		}
		return e.extractDOCX(data)
	case "doc":
		if !e.caps.DOCX {
			return nil, &UnavailableError{Format: "doc"}
		}
		return e.extractLegacyDoc(data)
	case "xlsx":
		if !e.caps.XLSX {
			return nil, &UnavailableError{Format: "xlsx"}
		}
		return e.extractXLSX(data)
	case "xls":
		if !e.caps.LegacyXLS {
			return nil, &UnavailableError{Format: "xls"}
		}
		return e.extractLegacyXLS(data)
	case "pptx":
		if !e.caps.PPTX {
			return nil, &UnavailableError{Format: "pptx"}
		}
		return e.extractPPTX(data)
	case "ppt":
		if !e.caps.PPTX {
			return nil, &UnavailableError{Format: "ppt"}
		}
		return e.extractLegacyPPT(data)
	case "html", "htm":
		if !e.caps.HTML {
			return nil, &UnavailableError{Format: "html"}
		}
		return e.extractHTML(data)
	case "markdown", "md":
		if !e.caps.Markdown {
			return nil, &UnavailableError{Format: "markdown"}
		}
		return e.extractMarkdown(data)
	case "rtf":
		if !e.caps.RTF {
			return nil, &UnavailableError{Format: "rtf"}
		}
		return e.extractRTF(data)
	case "text", "txt", "":
		return e.extractText(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}
}

// TypeForPath maps a file path to a normalized extraction type.
func TypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".doc":
		return "doc"
	case ".xlsx":
		return "xlsx"
	case ".xls":
		return "xls"
	case ".pptx":
		return "pptx"
	case ".ppt":
		return "ppt"
	case ".html", ".htm":
		return "html"
	case ".md", ".markdown":
		return "markdown"
	case ".rtf":
		return "rtf"
	default:
		return "text"
	}
}

// extractText handles plain text. Binary files misidentified as text are
// rejected instead of poisoning the index with mojibake.
func (e *Extractor) extractText(data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file is not valid UTF-8 text")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("file is empty")
	}
	return &Result{Text: text, Type: "text"}, nil
}

// Pre-compiled regexes for CleanText to avoid recompilation on every call.
var (
	controlCharRe  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	multiSpaceRe   = regexp.MustCompile(`[ \t]+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// CleanText removes excessive whitespace and control characters from text.
// It trims leading/trailing whitespace, collapses runs of spaces per line,
// and removes control characters (except newlines and tabs).
func CleanText(text string) string {
	text = controlCharRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = multiSpaceRe.ReplaceAllString(line, " ")
		cleaned = append(cleaned, strings.TrimSpace(line))
	}
	text = strings.Join(cleaned, "\n")

	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
