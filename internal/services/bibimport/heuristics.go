package bibimport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	DefaultAuthors  = "Unknown author"
	DefaultKeywords = "pending classification"

	abstractMin    = 100
	abstractMax    = 2000
	abstractPrefix = 500
)

// Document holds the bibliographic fields guessed from free text.
type Document struct {
	Title    string
	Authors  string
	Abstract string
	DOI      string
	Journal  string
	Keywords string
	Year     int
}

var (
	doiRe      = regexp.MustCompile(`(?i)\bdoi[\s:]+(10\.\d{4,}/\S+)`)
	yearRe     = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	abstractRe = regexp.MustCompile(`(?i)\b(?:abstract|resumen|summary)\b[\s:.]*`)
	abstractTo = regexp.MustCompile(`\n\s*\n|(?i:keywords|key words|palabras clave|introduction)|\n[A-Z][A-Z ]{3,}\n`)
	keywordsRe = regexp.MustCompile(`(?s)(?i:keywords|key words|palabras clave)[\s:]+(.+?)(?:\n\s*\n|\n[A-Z]|(?i:introduction)|$)`)
	journalRe  = regexp.MustCompile(`(?i)(?:published in|journal|revista)[\s:]+([A-Z][^\n]{10,100})`)
	authorsRe  = regexp.MustCompile(`[A-Z][a-z]+.*[A-Z][a-z]+`)
)

// GuessMetadata applies text heuristics and fills the defaults for anything
// not found: a title derived from fileName, an unknown author, the current
// year, the first 500 characters as abstract.
func GuessMetadata(text, fileName string, now time.Time) Document {
	var d Document
	if m := doiRe.FindStringSubmatch(text); m != nil {
		d.DOI = strings.TrimRight(m[1], ".,;)]")
	}
	if y := yearRe.FindString(text); y != "" {
		d.Year, _ = strconv.Atoi(y)
	}

	lines := nonEmptyLines(text)
	titleIdx := -1
	for i, l := range lines {
		if i >= 10 {
			break
		}
		if n := len([]rune(l)); n > 20 && n < 300 {
			d.Title, titleIdx = l, i
			break
		}
	}
	if titleIdx >= 0 && titleIdx+1 < len(lines) {
		next := lines[titleIdx+1]
		if len(next) < 200 && authorsRe.MatchString(next) {
			d.Authors = next
		}
	}

	d.Abstract = findAbstract(text)
	if m := keywordsRe.FindStringSubmatch(text); m != nil {
		d.Keywords = collapse(m[1])
	}
	if m := journalRe.FindStringSubmatch(text); m != nil {
		d.Journal = strings.TrimSpace(m[1])
	}

	if d.Title == "" {
		d.Title = "Article extracted from " + fileName
	}
	if d.Authors == "" {
		d.Authors = DefaultAuthors
	}
	if d.Abstract == "" {
		flat := collapse(text)
		if r := []rune(flat); len(r) > abstractPrefix {
			flat = string(r[:abstractPrefix]) + "..."
		}
		d.Abstract = flat
	}
	if d.Year == 0 {
		d.Year = now.Year()
	}
	if d.Keywords == "" {
		d.Keywords = DefaultKeywords
	}
	return d
}

// findAbstract takes the text after an "Abstract" heading up to the next
// section marker, accepting it only when its length is plausible.
func findAbstract(text string) string {
	loc := abstractRe.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := text[loc[1]:]
	if end := abstractTo.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	rest = collapse(rest)
	n := len([]rune(rest))
	if n < abstractMin || n > abstractMax {
		return ""
	}
	return rest
}

// CitationKey is the first author's surname followed by the year, e.g. smith2020.
func (d Document) CitationKey() string {
	surname := "unknown"
	if d.Authors != "" && d.Authors != DefaultAuthors {
		if s := firstSurname(d.Authors); s != "" {
			surname = s
		}
	}
	return fmt.Sprintf("%s%d", surname, d.Year)
}

// Entry renders the document as a BibTeX article under key.
func (d Document) Entry(key string) Entry {
	return NewEntry("article", key, map[string]string{
		"author":   d.Authors,
		"title":    d.Title,
		"year":     strconv.Itoa(d.Year),
		"journal":  d.Journal,
		"doi":      d.DOI,
		"abstract": d.Abstract,
		"keywords": d.Keywords,
	})
}

func firstSurname(authors string) string {
	first := strings.Split(authors, ";")[0]
	if i := strings.Index(strings.ToLower(first), " and "); i >= 0 {
		first = first[:i]
	}
	if before, _, ok := strings.Cut(first, ","); ok {
		first = before
		if words := strings.Fields(first); len(words) > 1 {
			// "John Smith, Jane Doe" rather than "Smith, John"
			first = words[len(words)-1]
		}
	} else if words := strings.Fields(first); len(words) > 0 {
		first = words[len(words)-1]
	}
	var b strings.Builder
	for _, r := range first {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
