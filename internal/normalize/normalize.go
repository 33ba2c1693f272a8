// Package normalize applies uniform text and date cleanup to adapter output.
package normalize

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/JakeFAU/research-digest/internal/digest"
)

// isoLayouts are accepted as already canonical and never rewritten.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// foreignLayouts are rewritten to RFC 3339 in UTC.
var foreignLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	"2006-01-02 15:04:05",
	"2 Jan 2006",
	"January 2, 2006",
}

// Entry cleans one Entry. It is idempotent.
func Entry(e digest.Entry) digest.Entry {
	e.Title = Text(e.Title)
	e.Abstract = Text(e.Abstract)
	e.URL = strings.TrimSpace(e.URL)
	if e.Abstract == "" {
		e.AbstractState = digest.AbstractMissing
	} else if e.AbstractState == "" {
		e.AbstractState = digest.AbstractPresent
	}
	e.Date, e.DateState = canonicalDate(e.Date, e.DateState)
	return e
}

// Entries cleans every Entry, preserving order.
func Entries(entries []digest.Entry) []digest.Entry {
	out := make([]digest.Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry(e)
	}
	return out
}

// Text drops invalid bytes and control characters, converts to NFC, collapses whitespace runs and trims.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) || r == '\u200b' || r == '\ufeff' {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// ParseDate reads any ISO-8601 form produced by adapters. Zone-less values are UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func canonicalDate(raw string, state digest.DateState) (string, digest.DateState) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if state == "" || state == digest.DateExact || state == digest.DateYearOnly {
			return "", digest.DateMissing
		}
		return "", state
	}
	if _, ok := ParseDate(raw); ok {
		if state == "" || state == digest.DateMissing || state == digest.DateUnparsed {
			state = digest.DateExact
		}
		return raw, state
	}
	for _, layout := range foreignLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339), digest.DateExact
		}
	}
	return "", digest.DateUnparsed
}
