package jar

import (
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/mcncl/convertkit/internal/errors"
)

var (
	classPattern    = regexp.MustCompile(`[A-Za-z0-9_$\-]+(?:/[A-Za-z0-9_$\-]+)*\.class`)
	resourcePattern = regexp.MustCompile(`[A-Za-z0-9_\-]+(?:[/.][A-Za-z0-9_\-]+)*\.(?:xml|properties|json|yml|yaml|txt|config)`)
	manifestPattern = regexp.MustCompile(`Manifest-Version:`)
)

// scanText recovers entry names from raw archive bytes. Local and central
// headers both carry names in the clear, so matches are deduplicated. A
// stored manifest is parsed when its text is present.
func scanText(buf []byte) ([]FileEntry, *Manifest, error) {
	decoded, err := unicode.UTF8.NewDecoder().Bytes(buf)
	if err != nil {
		return nil, nil, errors.NewIOError("archive buffer could not be decoded", errors.ErrUnreadable)
	}
	text := string(decoded)

	seen := map[string]bool{}
	var entries []FileEntry
	add := func(name string, typ EntryType) {
		if seen[name] {
			return
		}
		seen[name] = true
		entries = append(entries, FileEntry{Name: name, Type: typ})
	}

	for _, name := range classPattern.FindAllString(text, -1) {
		add(name, EntryClass)
	}
	for _, name := range resourcePattern.FindAllString(text, -1) {
		add(name, Classify(name))
	}
	if strings.Contains(text, ManifestPath) {
		add(ManifestPath, EntryManifest)
	}

	var manifest *Manifest
	if loc := manifestPattern.FindStringIndex(text); loc != nil {
		block := text[loc[0]:]
		if end := strings.Index(block, "\r\n\r\n"); end >= 0 {
			block = block[:end]
		} else if end := strings.Index(block, "\n\n"); end >= 0 {
			block = block[:end]
		}
		manifest = ParseManifest(block)
	}
	return entries, manifest, nil
}
