package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Pre-compiled regexes for extractMarkdown.
var (
	mdImgRe         = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	mdHeadingRe     = regexp.MustCompile(`^#{1,6}\s+`)
	mdBoldRe        = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdUnderBoldRe   = regexp.MustCompile(`__(.+?)__`)
	mdItalicRe      = regexp.MustCompile(`\*(.+?)\*`)
	mdUnderItalicRe = regexp.MustCompile(`_(.+?)_`)
	mdCodeRe        = regexp.MustCompile("`([^`]+)`")
	mdLinkRe        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
)

// extractMarkdown strips Markdown syntax line by line, preserving line
// numbers so the recorded heading outline maps onto chunk positions.
func (e *Extractor) extractMarkdown(data []byte) (*Result, error) {
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("markdown file is empty")
	}

	lines := strings.Split(text, "\n")
	var headings []Heading
	for i, line := range lines {
		if marker := mdHeadingRe.FindString(line); marker != "" {
			title := stripMarkdownInline(strings.TrimSpace(line[len(marker):]))
			lines[i] = title
			if title != "" {
				headings = append(headings, Heading{
					Line:  i + 1,
					Level: strings.Count(marker, "#"),
					Title: title,
				})
			}
			continue
		}
		lines[i] = stripMarkdownInline(line)
	}

	out := strings.TrimRight(strings.Join(lines, "\n"), " \t\n")
	return &Result{Text: out, Headings: headings, Type: "markdown"}, nil
}

// stripMarkdownInline removes inline emphasis, code, link, and image syntax,
// keeping the visible text.
func stripMarkdownInline(s string) string {
	s = mdImgRe.ReplaceAllString(s, "$1")
	s = mdLinkRe.ReplaceAllString(s, "$1")
	s = mdBoldRe.ReplaceAllString(s, "$1")
	s = mdUnderBoldRe.ReplaceAllString(s, "$1")
	s = mdItalicRe.ReplaceAllString(s, "$1")
	s = mdUnderItalicRe.ReplaceAllString(s, "$1")
	s = mdCodeRe.ReplaceAllString(s, "$1")
	return s
}

// Pre-compiled regexes for extractHTML.
var (
	htmlScriptRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlStyleRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlCommentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlBrRe      = regexp.MustCompile(`(?i)<br\s*/?\s*>`)
	htmlTdRe      = regexp.MustCompile(`(?i)<t[dh][^>]*>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
)

// Block-level tags replaced with newlines to preserve text structure.
var blockTags = []string{"div", "p", "br", "hr", "h1", "h2", "h3", "h4", "h5", "h6",
	"li", "tr", "blockquote", "pre", "section", "article", "header", "footer", "nav", "main"}

var (
	blockOpenRe  = make(map[string]*regexp.Regexp)
	blockCloseRe = make(map[string]*regexp.Regexp)
)

func init() {
	for _, tag := range blockTags {
		blockOpenRe[tag] = regexp.MustCompile(`(?i)<` + tag + `[^>]*>`)
		blockCloseRe[tag] = regexp.MustCompile(`(?i)</` + tag + `\s*>`)
	}
}

// extractHTML strips HTML tags while preserving text structure.
func (e *Extractor) extractHTML(data []byte) (*Result, error) {
	html := string(data)
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("html file is empty")
	}

	html = htmlScriptRe.ReplaceAllString(html, "")
	html = htmlStyleRe.ReplaceAllString(html, "")
	html = htmlCommentRe.ReplaceAllString(html, "")

	for _, tag := range blockTags {
		html = blockOpenRe[tag].ReplaceAllString(html, "\n")
		html = blockCloseRe[tag].ReplaceAllString(html, "\n")
	}
	html = htmlBrRe.ReplaceAllString(html, "\n")
	html = htmlTdRe.ReplaceAllString(html, "\t")
	html = htmlTagRe.ReplaceAllString(html, "")

	html = decodeHTMLEntities(html)

	text := CleanText(html)
	if text == "" {
		return nil, fmt.Errorf("html contains no extractable text")
	}
	return &Result{Text: text, Type: "html"}, nil
}

// Pre-compiled regexes for decodeHTMLEntities.
var (
	reNumericEntity = regexp.MustCompile(`&#(\d+);`)
	reHexEntity     = regexp.MustCompile(`(?i)&#x([0-9a-f]+);`)
)

// decodeHTMLEntities decodes common HTML entities to their text equivalents.
func decodeHTMLEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&apos;", "'",
		"&nbsp;", " ",
		"&mdash;", "—",
		"&ndash;", "–",
		"&hellip;", "…",
		"&copy;", "©",
		"&reg;", "®",
		"&trade;", "™",
	)
	s = reNumericEntity.ReplaceAllStringFunc(s, func(match string) string {
		n, err := strconv.Atoi(match[2 : len(match)-1])
		if err == nil && n > 0 && n < 0x110000 {
			return string(rune(n))
		}
		return match
	})
	s = reHexEntity.ReplaceAllStringFunc(s, func(match string) string {
		n, err := strconv.ParseInt(strings.ToLower(match[3:len(match)-1]), 16, 32)
		if err == nil && n > 0 && n < 0x110000 {
			return string(rune(n))
		}
		return match
	})
	return replacer.Replace(s)
}

// rtfEscapes maps RTF escape control symbols to their text equivalents.
var rtfEscapes = map[byte]string{
	'\\': "\\",
	'{':  "{",
	'}':  "}",
	'~':  " ",
	'-':  "",
	'_':  "-",
}

// Destination groups whose content is metadata, not document text.
var rtfSkipGroups = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
	"object":     true,
	"themedata":  true,
	"colorschememapping": true,
	"listtable":  true,
	"listoverridetable": true,
}

// extractRTF strips RTF control words and destination groups, keeping only
// document body text. \par and \line become newlines; \uN escapes decode to
// their Unicode character.
func (e *Extractor) extractRTF(data []byte) (*Result, error) {
	s := string(data)
	if !strings.HasPrefix(s, `{\rtf`) {
		return nil, fmt.Errorf("not a valid RTF file")
	}

	var sb strings.Builder
	skipDepth := 0 // >0 while inside a metadata destination group
	depth := 0
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '{':
			depth++
			i++
			// Peek for a destination group to skip: {\*\dest ...} or {\fonttbl ...}
			j := i
			if j+1 < len(s) && s[j] == '\\' {
				starred := s[j+1] == '*'
				k := j + 1
				if starred {
					k++
					if k < len(s) && s[k] == '\\' {
						k++
					}
				}
				start := k
				for k < len(s) && s[k] >= 'a' && s[k] <= 'z' {
					k++
				}
				word := s[start:k]
				if skipDepth == 0 && (starred || rtfSkipGroups[word]) {
					skipDepth = depth
				}
			}
		case '}':
			if skipDepth == depth {
				skipDepth = 0
			}
			depth--
			i++
		case '\\':
			i++
			if i >= len(s) {
				break
			}
			next := s[i]
			if esc, ok := rtfEscapes[next]; ok {
				if skipDepth == 0 {
					sb.WriteString(esc)
				}
				i++
				break
			}
			if next == '\'' {
				// \'hh hex-encoded byte
				if i+2 < len(s) {
					if n, err := strconv.ParseInt(s[i+1:i+3], 16, 16); err == nil && skipDepth == 0 {
						sb.WriteByte(byte(n))
					}
					i += 3
				} else {
					i = len(s)
				}
				break
			}
			// Control word: letters followed by optional numeric parameter.
			start := i
			for i < len(s) && ((s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z')) {
				i++
			}
			word := s[start:i]
			numStart := i
			if i < len(s) && (s[i] == '-' || (s[i] >= '0' && s[i] <= '9')) {
				i++
				for i < len(s) && s[i] >= '0' && s[i] <= '9' {
					i++
				}
			}
			param := s[numStart:i]
			if i < len(s) && s[i] == ' ' {
				i++ // control word delimiter
			}
			if skipDepth != 0 {
				break
			}
			switch word {
			case "par", "line", "sect", "page":
				sb.WriteString("\n")
			case "tab", "cell":
				sb.WriteString("\t")
			case "u":
				if n, err := strconv.Atoi(param); err == nil {
					if n < 0 {
						n += 65536
					}
					sb.WriteRune(rune(n))
					// Skip the fallback character following \uN.
					if i < len(s) && s[i] != '\\' && s[i] != '{' && s[i] != '}' {
						i++
					}
				}
			}
		case '\r', '\n':
			i++
		default:
			if skipDepth == 0 {
				sb.WriteByte(c)
			}
			i++
		}
	}

	text := CleanText(sb.String())
	if text == "" {
		return nil, fmt.Errorf("rtf contains no extractable text")
	}
	return &Result{Text: text, Type: "rtf"}, nil
}
