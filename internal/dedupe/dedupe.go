// Package dedupe collapses entries that describe the same underlying item.
package dedupe

import (
	"fmt"

	"github.com/JakeFAU/research-digest/internal/digest"
)

// Deduplicator keeps the first Entry seen per (title, url) fingerprint.
type Deduplicator struct {
	hasher digest.Hasher
}

// New builds a Deduplicator around a content hasher.
func New(hasher digest.Hasher) *Deduplicator {
	return &Deduplicator{hasher: hasher}
}

// Fingerprint hashes the identity key of an Entry.
func (d *Deduplicator) Fingerprint(e digest.Entry) (string, error) {
	sum, err := d.hasher.Hash(e.Title, e.URL)
	if err != nil {
		return "", fmt.Errorf("fingerprint %q: %w", e.URL, err)
	}
	return sum, nil
}

// Dedupe returns the unique entries in order of first occurrence.
func (d *Deduplicator) Dedupe(entries []digest.Entry) ([]digest.Entry, error) {
	seen := make(map[string]struct{}, len(entries))
	out := make([]digest.Entry, 0, len(entries))
	for _, e := range entries {
		fp, err := d.Fingerprint(e)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}
