package webhook

import (
	"bytes"
	"encoding/json"
	"strings"
)

// messageKeys are checked in order when a caller passes a JSON object.
var messageKeys = []string{"text", "query", "message"}

// NormalizeMessage turns a caller message into the string sent upstream.
//
// Only a JSON object is unpacked. The first of text, query, message holding a
// usable value wins; string values are sent as-is and other values as their
// compact JSON. An object without any of those keys is sent as compact JSON in
// its original key order. Anything else, including valid non-object JSON such
// as "123" or "[1,2]", is sent unchanged.
func NormalizeMessage(message string) string {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, "{") {
		return message
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return message
	}

	for _, key := range messageKeys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if v, ok := fieldText(raw); ok {
			return v
		}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(trimmed)); err != nil {
		return message
	}
	return buf.String()
}

// fieldText reports the outbound text for a recognized key. Empty strings,
// null, false and numeric zero count as absent.
func fieldText(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}

	switch string(bytes.TrimSpace(raw)) {
	case "null", "false":
		return "", false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && f == 0 {
		return "", false
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", false
	}
	return buf.String(), true
}
