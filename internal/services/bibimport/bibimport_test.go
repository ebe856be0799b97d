package bibimport_test

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
	"time"

	"metareview/internal/services/bibimport"
)

const wellFormed = `@article{smith2020,
  author = {Smith, John and Doe, Jane},
  title = {Effects of exercise on mood},
  journal = {Journal of Tests},
  year = {2020},
  doi = {10.1000/xyz123}
}

@inproceedings{lee2021,
  author = {Lee, Ann},
  title = {A {Bayesian} approach},
  year = {2021}
}
`

func TestParseBibTeXWellFormed(t *testing.T) {
	res, err := bibimport.ParseBibTeX([]byte(wellFormed))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Entries) != 2 || len(res.Failures) != 0 {
		t.Fatalf("unexpected result: entries=%d failures=%+v", len(res.Entries), res.Failures)
	}
	byKey := map[string]bibimport.Entry{}
	for _, e := range res.Entries {
		byKey[e.Key] = e
	}
	e, ok := byKey["smith2020"]
	if !ok {
		t.Fatalf("smith2020 missing: %+v", res.Entries)
	}
	if e.Title != "Effects of exercise on mood" || e.DOI != "10.1000/xyz123" || e.Type != "article" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if !strings.Contains(e.BibTeX, "smith2020") {
		t.Fatalf("normalized bibtex lost the key: %q", e.BibTeX)
	}
	if md := e.Metadata(); md["entry_type"] != "article" || md["year"] != "2020" {
		t.Fatalf("unexpected metadata: %+v", md)
	}
	if got := byKey["lee2021"].Title; got != "A Bayesian approach" {
		t.Fatalf("braces not stripped: %q", got)
	}
}

func TestParseBibTeXIsolatesBadEntries(t *testing.T) {
	in := `@string{jt = "Journal of Tests"}

@article{good2019,
  title = {First good entry},
  year = {2019}
}

@article{title = {No key here}, year = {2021}}

@article{bad2020,
  title = {Unclosed, year = {2020}

@book{good2022,
  title = {Second good entry},
  year = {2022}
}
`
	res, err := bibimport.ParseBibTeX([]byte(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var keys []string
	for _, e := range res.Entries {
		keys = append(keys, e.Key)
	}
	if strings.Join(keys, ",") != "good2019,good2022" {
		t.Fatalf("unexpected entries: %v", keys)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", res.Failures)
	}
	if res.Failures[0].Reason != "entry has no citation key" {
		t.Fatalf("unexpected first failure: %+v", res.Failures[0])
	}
	if res.Failures[1].Entry != "bad2020" || !strings.HasPrefix(res.Failures[1].Reason, "malformed entry") {
		t.Fatalf("unexpected second failure: %+v", res.Failures[1])
	}
}

func TestParseBibTeXRecoversAfterMalformedFile(t *testing.T) {
	// Unbalanced braces leave the lexer mid-field when parsing stops.
	broken := "@article{broken2018,\n  title = {Never closed,\n  year = {2018}\n"
	if _, err := bibimport.ParseBibTeX([]byte(broken)); err != nil {
		t.Fatalf("parse broken file: %v", err)
	}
	for i := 0; i < 2; i++ {
		res, err := bibimport.ParseBibTeX([]byte(wellFormed))
		if err != nil {
			t.Fatalf("parse #%d: %v", i, err)
		}
		if len(res.Entries) != 2 || len(res.Failures) != 0 {
			t.Fatalf("parse #%d after malformed file: entries=%d failures=%+v", i, len(res.Entries), res.Failures)
		}
	}

	mixed := `@article{first2019,
  title = {Kept before},
  year = {2019}
}

@article{bad2020,
  title = {Unclosed, year = {2020}

@article{second2021,
  title = {Kept after},
  year = {2021}
}
`
	res, err := bibimport.ParseBibTeX([]byte(mixed))
	if err != nil {
		t.Fatalf("parse mixed: %v", err)
	}
	var keys []string
	for _, e := range res.Entries {
		keys = append(keys, e.Key)
	}
	if strings.Join(keys, ",") != "first2019,second2021" {
		t.Fatalf("good entries lost: %v failures=%+v", keys, res.Failures)
	}
	if len(res.Failures) != 1 || res.Failures[0].Entry != "bad2020" {
		t.Fatalf("unexpected failures: %+v", res.Failures)
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want string
	}{
		{"utf8", []byte("Muñoz"), "Muñoz"},
		{"utf8 with bom", []byte("\xef\xbb\xbfabc"), "abc"},
		{"latin1", []byte("Jos\xe9"), "José"},
		{"windows-1252 quotes", []byte("\x93quoted\x94"), "“quoted”"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bibimport.Decode(tc.in)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got=%q want=%q", got, tc.want)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]bibimport.Format{
		"refs.BIB":   bibimport.FormatBibTeX,
		"paper.pdf":  bibimport.FormatPDF,
		"draft.docx": bibimport.FormatDOCX,
		"notes.txt":  bibimport.FormatText,
	}
	for name, want := range cases {
		got, err := bibimport.DetectFormat(name)
		if err != nil || got != want {
			t.Fatalf("%s: got=%s err=%v", name, got, err)
		}
	}
	if _, err := bibimport.DetectFormat("legacy.doc"); err == nil {
		t.Fatalf("expected .doc to be rejected")
	}
}

const paper = `Effects of aerobic exercise on depressive symptoms in adults
Maria Garcia, John Smith
University of Somewhere

Abstract: We ran a randomized trial with one hundred and twenty adults assigned to aerobic
exercise or waiting list and measured depressive symptoms after twelve weeks of training.

Keywords: exercise, depression, adults
Introduction
Depression is common. Published in: Journal of Applied Psychology
Received 2019, doi: 10.1037/apl0000123.
`

func TestGuessMetadata(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := bibimport.GuessMetadata(paper, "garcia.pdf", now)

	if d.Title != "Effects of aerobic exercise on depressive symptoms in adults" {
		t.Fatalf("title: %q", d.Title)
	}
	if d.Authors != "Maria Garcia, John Smith" {
		t.Fatalf("authors: %q", d.Authors)
	}
	if d.Year != 2019 || d.DOI != "10.1037/apl0000123" {
		t.Fatalf("year/doi: %d %q", d.Year, d.DOI)
	}
	if d.Keywords != "exercise, depression, adults" {
		t.Fatalf("keywords: %q", d.Keywords)
	}
	if d.Journal != "Journal of Applied Psychology" {
		t.Fatalf("journal: %q", d.Journal)
	}
	if !strings.HasPrefix(d.Abstract, "We ran a randomized trial") || strings.Contains(d.Abstract, "\n") {
		t.Fatalf("abstract: %q", d.Abstract)
	}
	if key := d.CitationKey(); key != "garcia2019" {
		t.Fatalf("citation key: %q", key)
	}
	e := d.Entry("garcia2019")
	if e.Title != d.Title || e.Fields["author"] != d.Authors || !strings.Contains(e.BibTeX, "garcia2019") {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestGuessMetadataDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	d := bibimport.GuessMetadata("short\nnote", "notes.txt", now)

	want := bibimport.Document{
		Title:    "Article extracted from notes.txt",
		Authors:  bibimport.DefaultAuthors,
		Abstract: "short note",
		Keywords: bibimport.DefaultKeywords,
		Year:     2026,
	}
	if d != want {
		t.Fatalf("got=%+v want=%+v", d, want)
	}
	if d.CitationKey() != "unknown2026" {
		t.Fatalf("citation key: %q", d.CitationKey())
	}
}

func TestExtractTextDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>
<w:p><w:r><w:t>Second</w:t></w:r></w:p>
</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	got, err := bibimport.ExtractText(bibimport.FormatDOCX, buf.Bytes())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got != "Hello world\nSecond\n" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestExtractTextErrors(t *testing.T) {
	if _, err := bibimport.ExtractText(bibimport.FormatPDF, []byte("not a pdf")); err == nil {
		t.Fatalf("expected error for non-PDF bytes")
	}
	if _, err := bibimport.ExtractText(bibimport.FormatDOCX, []byte("not a zip")); err == nil {
		t.Fatalf("expected error for non-zip docx")
	}
	if _, err := bibimport.ExtractText(bibimport.FormatText, []byte("  \n ")); err != bibimport.ErrNoText {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}
