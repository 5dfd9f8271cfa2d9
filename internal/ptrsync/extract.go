package ptrsync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// ExtractSourceRecords filters a forward zone's records down to the
// address-mapping APP records and pulls every IP literal out of their
// payloads. Extraction is best-effort: malformed payloads produce
// warnings on the affected record, never a failure.
func ExtractSourceRecords(records []technitium.Record) []SourceRecord {
	var out []SourceRecord
	for _, rec := range records {
		if rec.Type != "APP" || rec.RData.ClassPath != technitium.SplitHorizonClassPath {
			continue
		}
		addresses, warnings := parseAddressData(rec.RData.Data)
		out = append(out, SourceRecord{
			RecordName: rec.Name,
			Addresses:  addresses,
			Warnings:   warnings,
		})
	}
	return out
}

// parseAddressData walks the APP record's JSON payload, an object whose
// values are arrays of IP literal strings, keeping key order and
// deduplicating addresses. Anything off-shape becomes a warning.
func parseAddressData(data string) ([]string, []string) {
	var addresses []string
	var warnings []string

	dec := json.NewDecoder(strings.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, []string{"address data is not valid JSON"}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, []string{"address data is not a JSON object"}
	}

	seen := make(map[string]bool)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			warnings = append(warnings, "address data is truncated")
			break
		}
		key, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			warnings = append(warnings, "address data is truncated")
			break
		}

		var list []interface{}
		if err := json.Unmarshal(value, &list); err != nil {
			warnings = append(warnings, fmt.Sprintf("value for %q is not an array", key))
			continue
		}
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("non-string address under %q", key))
				continue
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			addresses = append(addresses, s)
		}
	}
	return addresses, warnings
}
