// Package listing separates the human-readable part of an agent reply from
// a JSON array of property listings embedded in it.
package listing

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/FeelPulse/haven/pkg/types"
)

// fencePattern matches a fenced block holding an array
var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\[.*?\\])\\s*```")

// arrayStart finds where a bare array of objects opens
var arrayStart = regexp.MustCompile(`\[\s*\{`)

// Extract returns the reply text with the first embedded listing array removed,
// and the decoded listings. If no array is found, or it does not decode into at
// least one listing, raw is returned unmodified with nil listings.
func Extract(raw string) (string, []types.Listing) {
	start, end, payload, ok := locate(raw)
	if !ok {
		return raw, nil
	}

	listings, ok := Decode([]byte(payload))
	if !ok {
		return raw, nil
	}

	clean := strings.TrimSpace(raw[:start] + raw[end:])
	return clean, listings
}

// locate returns the span to cut from raw and the array inside it. The
// leftmost of a fenced block and a bare array wins. A bare array ends where
// its JSON value ends, so later arrays or stray brackets are left alone.
func locate(raw string) (start, end int, payload string, ok bool) {
	fence := fencePattern.FindStringSubmatchIndex(raw)
	bare := arrayStart.FindStringIndex(raw)

	if fence != nil && (bare == nil || fence[0] <= bare[0]) {
		return fence[0], fence[1], raw[fence[2]:fence[3]], true
	}
	if bare == nil {
		return 0, 0, "", false
	}

	dec := json.NewDecoder(strings.NewReader(raw[bare[0]:]))
	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return 0, 0, "", false
	}
	end = bare[0] + int(dec.InputOffset())
	return bare[0], end, raw[bare[0]:end], true
}

// Decode parses a JSON array of listings. ok is false for malformed input and
// for an empty array.
func Decode(data []byte) ([]types.Listing, bool) {
	var listings []types.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, false
	}
	if len(listings) == 0 {
		return nil, false
	}
	return listings, true
}
