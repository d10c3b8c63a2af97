package playlist

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPlaylist is returned for documents that are not a list of
// identifier strings.
var ErrInvalidPlaylist = errors.New("invalid playlist")

// Parse decodes a JSON playlist: an array of identifier strings. Duplicates
// keep their first position.
func Parse(data []byte) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlaylist, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected an array", ErrInvalidPlaylist)
	}

	ids := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, item := range raw {
		var id string
		if err := json.Unmarshal(item, &id); err != nil {
			return nil, fmt.Errorf("%w: entry %d is not a string", ErrInvalidPlaylist, i)
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// Encode renders ids as a JSON playlist.
func Encode(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.MarshalIndent(ids, "", "  ")
}

// Known keeps the ids present in known, in order, and reports how many were
// dropped.
func Known(ids []string, known func(id string) bool) (kept []string, dropped int) {
	kept = make([]string, 0, len(ids))
	for _, id := range ids {
		if known(id) {
			kept = append(kept, id)
		} else {
			dropped++
		}
	}
	return kept, dropped
}
