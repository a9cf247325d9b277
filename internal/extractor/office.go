package extractor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf16"

	goexcel "github.com/VantageDataChat/GoExcel"
	gopdf "github.com/VantageDataChat/GoPDF2"
	goppt "github.com/VantageDataChat/GoPPT"
	goword "github.com/VantageDataChat/GoWord"
	"github.com/richardlehane/mscfb"
	"github.com/shakinm/xlsReader/xls"
)

// extractPDF extracts text page by page using GoPDF2. Pages that fail to
// extract are skipped; the page list preserves original page numbering by
// keeping empty entries out but never reordering.
func (e *Extractor) extractPDF(data []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	if len(data) < 5 || string(data[:5]) != "%PDF-" {
		return nil, fmt.Errorf("not a valid PDF file")
	}

	pageCount, err := gopdf.GetSourcePDFPageCountFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("pdf page count: %w", err)
	}

	pages := make([]string, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		text, err := gopdf.ExtractPageText(data, i)
		if err != nil {
			continue
		}
		text = CleanText(text)
		if text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf contains no extractable text")
	}
	return &Result{Pages: pages, Type: "pdf"}, nil
}

// extractDOCX extracts text from a Word .docx using GoWord, split into
// paragraph groups so the chunker sees natural boundaries.
func (e *Extractor) extractDOCX(data []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("docx parse panic: %v", r)
		}
	}()

	doc, err := goword.OpenFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("docx parse: %w", err)
	}

	text := CleanText(doc.ExtractText())
	if text == "" {
		return nil, fmt.Errorf("docx contains no extractable text")
	}

	var pages []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			pages = append(pages, para)
		}
	}
	return &Result{Pages: pages, Type: "docx"}, nil
}

// extractXLSX extracts cell content using GoExcel, one line per non-empty
// cell in "SheetName-Row,Col: value" form.
func (e *Extractor) extractXLSX(data []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("xlsx parse panic: %v", r)
		}
	}()

	reader := goexcel.NewXLSXReader()
	wb, err := reader.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("xlsx parse: %w", err)
	}

	var sb strings.Builder
	for _, name := range wb.GetSheetNames() {
		sheet, err := wb.GetSheetByName(name)
		if err != nil {
			continue
		}
		rows, err := sheet.RowIterator()
		if err != nil {
			continue
		}
		for rowIdx, row := range rows {
			for _, cell := range row {
				if cell == nil || cell.IsEmpty() {
					continue
				}
				val := cell.GetFormattedValue()
				if val == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(fmt.Sprintf("%s-%d,%d: %s", name, rowIdx+1, cell.Col()+1, val))
			}
		}
	}

	text := CleanText(sb.String())
	if text == "" {
		return nil, fmt.Errorf("xlsx contains no extractable text")
	}
	return &Result{Text: text, Type: "xlsx"}, nil
}

// extractLegacyXLS extracts text from legacy .xls (BIFF) files using xlsReader.
func (e *Extractor) extractLegacyXLS(data []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("xls parse panic: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xls parse: %w", err)
	}

	var sb strings.Builder
	numSheets := wb.GetNumberSheets()
	for i := 0; i < numSheets; i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil {
			continue
		}
		sheetName := sheet.GetName()
		numRows := sheet.GetNumberRows()
		for rowIdx := 0; rowIdx < numRows; rowIdx++ {
			row, err := sheet.GetRow(rowIdx)
			if err != nil || row == nil {
				continue
			}
			for colIdx, cell := range row.GetCols() {
				val := strings.TrimSpace(cell.GetString())
				if val == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(fmt.Sprintf("%s-%d,%d: %s", sheetName, rowIdx+1, colIdx+1, val))
			}
		}
	}

	text := CleanText(sb.String())
	if text == "" {
		return nil, fmt.Errorf("xls contains no extractable text")
	}
	return &Result{Text: text, Type: "xlsx"}, nil
}

// extractPPTX extracts text per slide using GoPPT.
func (e *Extractor) extractPPTX(data []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pptx parse panic: %v", r)
		}
	}()

	pres, err := goppt.ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pptx parse: %w", err)
	}
	defer pres.Close()

	slides := pres.Slides()
	pages := make([]string, 0, len(slides))
	for _, slide := range slides {
		text := CleanText(slide.ExtractText())
		if text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pptx contains no extractable text")
	}
	return &Result{Pages: pages, Type: "pptx"}, nil
}

// extractLegacyDoc extracts text from legacy .doc files via mscfb (OLE2).
// It reads the WordDocument stream and scans it for printable text runs; the
// full piece-table reconstruction is not attempted, so formatting artifacts
// may leak through and are cleaned afterwards.
func (e *Extractor) extractLegacyDoc(data []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("doc parse panic: %v", r)
		}
	}()

	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("doc parse: %w", err)
	}

	var wordDocData []byte
	for {
		entry, nextErr := doc.Next()
		if nextErr != nil {
			break
		}
		if entry.Name == "WordDocument" {
			wordDocData, _ = io.ReadAll(entry)
		}
	}
	if len(wordDocData) == 0 {
		return nil, fmt.Errorf("doc parse: WordDocument stream not found")
	}

	text := CleanText(scanPrintableRuns(wordDocData))
	if text == "" {
		return nil, fmt.Errorf("doc contains no extractable text")
	}
	return &Result{Text: text, Type: "docx"}, nil
}

// extractLegacyPPT extracts text from legacy .ppt files via mscfb (OLE2) by
// walking record headers in the PowerPoint Document stream. Text lives in
// TextBytesAtom (0x0FA8, ANSI) and TextCharsAtom (0x0FA0, UTF-16LE) records.
func (e *Extractor) extractLegacyPPT(data []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("ppt parse panic: %v", r)
		}
	}()

	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ppt parse: %w", err)
	}

	var pptData []byte
	for {
		entry, nextErr := doc.Next()
		if nextErr != nil {
			break
		}
		if entry.Name == "PowerPoint Document" {
			pptData, _ = io.ReadAll(entry)
		}
	}
	if len(pptData) == 0 {
		return nil, fmt.Errorf("ppt parse: PowerPoint Document stream not found")
	}

	text := CleanText(walkPPTRecords(pptData))
	if text == "" {
		return nil, fmt.Errorf("ppt contains no extractable text")
	}
	return &Result{Text: text, Type: "pptx"}, nil
}

// pptNoiseExact contains master-slide placeholder strings filtered out of
// legacy PPT text.
var pptNoiseExact = map[string]bool{
	"*":                                true,
	"Click to edit Master title style": true,
	"Click to edit Master text styles": true,
	"Second level":                     true,
	"Third level":                      true,
	"Fourth level":                     true,
	"Fifth level":                      true,
}

// walkPPTRecords walks the PPT binary record stream. Record header layout:
// recVer(4 bits) + recInstance(12 bits) + recType(16 bits) + recLen(32 bits).
// Container records (recVer == 0xF) hold sub-records inline, so they are
// descended into by not skipping recLen.
func walkPPTRecords(data []byte) string {
	var sb strings.Builder
	pos := 0

	appendText := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" || pptNoiseExact[text] {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}

	for pos+8 <= len(data) {
		recVerInstance := binary.LittleEndian.Uint16(data[pos : pos+2])
		recType := binary.LittleEndian.Uint16(data[pos+2 : pos+4])
		recLen := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		recVer := recVerInstance & 0x0F
		pos += 8

		if recLen > uint32(len(data)-pos) {
			break
		}

		switch recType {
		case 0x0FA0: // TextCharsAtom — UTF-16LE
			if recLen >= 2 {
				charCount := recLen / 2
				u16s := make([]uint16, charCount)
				for i := uint32(0); i < charCount; i++ {
					u16s[i] = binary.LittleEndian.Uint16(data[pos+int(i*2) : pos+int(i*2+2)])
				}
				appendText(string(utf16.Decode(u16s)))
			}
			pos += int(recLen)
		case 0x0FA8: // TextBytesAtom — ANSI
			if recLen > 0 {
				appendText(string(data[pos : pos+int(recLen)]))
			}
			pos += int(recLen)
		default:
			if recVer != 0x0F {
				pos += int(recLen)
			}
		}
	}
	return sb.String()
}

// scanPrintableRuns is a best-effort text recovery for Word binary streams:
// it collects runs of printable characters of a minimum length, which catches
// the document body while dropping binary structure bytes.
func scanPrintableRuns(data []byte) string {
	const minRun = 16
	var sb strings.Builder
	var run []rune

	flush := func() {
		if len(run) >= minRun {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(string(run))
		}
		run = run[:0]
	}

	for _, b := range data {
		r := rune(b)
		if r == '\r' {
			r = '\n'
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			run = append(run, r)
		} else {
			flush()
		}
	}
	flush()
	return sb.String()
}
