package bibimport

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/nickng/bibtex"
)

// Entry is one bibliographic record ready to become an article.
type Entry struct {
	Key    string
	Type   string
	Title  string
	DOI    string
	Fields map[string]string
	BibTeX string
}

// Metadata is the JSON document stored on the article.
func (e Entry) Metadata() map[string]any {
	m := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		m[k] = v
	}
	m["entry_type"] = e.Type
	return m
}

// Failure describes an entry that could not be imported.
type Failure struct {
	Entry  string
	Reason string
}

type Result struct {
	Entries  []Entry
	Failures []Failure
}

const (
	maxTitleLength = 500
	snippetLength  = 60
)

var (
	entryStart = regexp.MustCompile(`(?m)^[ \t]*@`)
	entryHead  = regexp.MustCompile(`^@\s*([A-Za-z]+)\s*[{(]`)
	entryKey   = regexp.MustCompile(`^@\s*[A-Za-z]+\s*[{(]\s*([^,\s{}()=]+)\s*,`)
	spaces     = regexp.MustCompile(`\s+`)
)

// ParseBibTeX parses a .bib file. When the whole file is rejected by the
// parser it is split into top-level entries that are parsed one at a time,
// so a malformed entry only costs itself.
func ParseBibTeX(data []byte) (*Result, error) {
	text, err := Decode(data)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	if bib, err := parse(text); err == nil {
		for _, be := range bib.Entries {
			res.add(be)
		}
		return res, nil
	}

	chunks := splitEntries(text)
	var macros []string
	for _, c := range chunks {
		if entryType(c) == "string" {
			macros = append(macros, c)
		}
	}
	prefix := strings.Join(macros, "\n")
	for _, c := range chunks {
		switch entryType(c) {
		case "string", "comment", "preamble":
			continue
		}
		if key := citeKey(c); key == "" {
			res.Failures = append(res.Failures, Failure{Entry: snippet(c), Reason: "entry has no citation key"})
			continue
		}
		bib, err := parse(prefix + "\n" + c)
		if err != nil || len(bib.Entries) == 0 {
			reason := "malformed entry"
			if err != nil {
				reason = fmt.Sprintf("malformed entry: %v", err)
			}
			res.Failures = append(res.Failures, Failure{Entry: citeKey(c), Reason: reason})
			continue
		}
		for _, be := range bib.Entries {
			res.add(be)
		}
	}
	return res, nil
}

// The parser keeps package-level lexer state between calls, and a syntax
// error can leave it inside a field value. Calls are serialized and a failed
// parse resets that state before the lock is released.
var parseMu sync.Mutex

// A lone comma returns the lexer to top level; a known-good entry confirms it.
const (
	resetInput = ","
	resetCheck = "@misc{reset, note = {ok}}"
)

func parse(text string) (*bibtex.BibTex, error) {
	parseMu.Lock()
	defer parseMu.Unlock()
	bib, err := bibtex.Parse(strings.NewReader(text))
	if err != nil {
		if rerr := resetParser(); rerr != nil {
			return nil, fmt.Errorf("%w (parser reset failed: %v)", err, rerr)
		}
		return nil, err
	}
	return bib, nil
}

func resetParser() error {
	_, _ = bibtex.Parse(strings.NewReader(resetInput))
	_, err := bibtex.Parse(strings.NewReader(resetCheck))
	return err
}

func (r *Result) add(be *bibtex.BibEntry) {
	if strings.TrimSpace(be.CiteName) == "" {
		label := "@" + be.Type
		if t, ok := be.Fields["title"]; ok && t != nil {
			label += " " + clean(t.String())
		}
		r.Failures = append(r.Failures, Failure{Entry: snippet(label), Reason: "entry has no citation key"})
		return
	}
	e := Entry{
		Key:    strings.TrimSpace(be.CiteName),
		Type:   strings.ToLower(be.Type),
		Fields: make(map[string]string, len(be.Fields)),
	}
	for name, v := range be.Fields {
		if v == nil {
			continue
		}
		e.Fields[strings.ToLower(name)] = clean(v.String())
	}
	e.Title = truncate(e.Fields["title"], maxTitleLength)
	e.DOI = e.Fields["doi"]
	e.BibTeX = render(be)
	r.Entries = append(r.Entries, e)
}

// render writes a single entry back out in the parser's canonical layout.
func render(be *bibtex.BibEntry) string {
	out := bibtex.NewBibTex()
	out.AddEntry(be)
	return strings.TrimSpace(out.PrettyString())
}

// NewEntry builds an article entry from plain fields, rendering its BibTeX.
func NewEntry(entryType, key string, fields map[string]string) Entry {
	be := bibtex.NewBibEntry(entryType, key)
	names := make([]string, 0, len(fields))
	for k, v := range fields {
		if strings.TrimSpace(v) != "" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	kept := make(map[string]string, len(names))
	for _, k := range names {
		be.AddField(k, bibtex.NewBibConst(fields[k]))
		kept[k] = fields[k]
	}
	return Entry{
		Key:    key,
		Type:   entryType,
		Title:  truncate(kept["title"], maxTitleLength),
		DOI:    kept["doi"],
		Fields: kept,
		BibTeX: render(be),
	}
}

func splitEntries(text string) []string {
	idx := entryStart.FindAllStringIndex(text, -1)
	out := make([]string, 0, len(idx))
	for i, loc := range idx {
		end := len(text)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		if c := strings.TrimSpace(text[loc[0]:end]); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func entryType(chunk string) string {
	m := entryHead.FindStringSubmatch(chunk)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

func citeKey(chunk string) string {
	m := entryKey.FindStringSubmatch(chunk)
	if m == nil {
		return ""
	}
	return m[1]
}

func snippet(s string) string {
	s = spaces.ReplaceAllString(strings.TrimSpace(s), " ")
	return truncate(s, snippetLength)
}

func clean(s string) string {
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
