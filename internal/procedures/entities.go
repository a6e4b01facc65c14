// Package procedures indexes processing pipeline outputs on disk and records
// them as procedure entries attached to scanning sessions. Output files carry
// their descriptive tags encoded in the filename as hyphenated key-value
// pairs, which the parser lifts into a queryable tag-set per path.
package procedures

import (
	"path/filepath"
	"strings"
)

// Reserved entity tags assigned from the filename remainder rather than from
// a key-value token.
const (
	EntitySuffix    = "suffix"
	EntityExtension = "extension"
)

// ParseEntities extracts the tag-set from one output filename. Tokens are
// underscore-separated; each token of the form key-value contributes a tag.
// The trailing token without a hyphen becomes the suffix, and the file
// extension (everything from the first dot) is kept separately. Malformed
// tokens are ignored rather than failing the file.
func ParseEntities(path string) map[string]string {
	name := filepath.Base(path)
	entities := make(map[string]string)

	if dot := strings.Index(name, "."); dot >= 0 {
		entities[EntityExtension] = name[dot:]
		name = name[:dot]
	}

	tokens := strings.Split(name, "_")
	for i, token := range tokens {
		if token == "" {
			continue
		}
		key, value, found := strings.Cut(token, "-")
		if !found || key == "" || value == "" {
			// Only the final token may stand alone as the suffix.
			if i == len(tokens)-1 {
				entities[EntitySuffix] = token
			}
			continue
		}
		entities[key] = value
	}
	return entities
}
