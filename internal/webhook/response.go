package webhook

import (
	"bytes"
	"encoding/json"
)

// DecodeBody returns body as JSON. Bodies that are not valid JSON are wrapped
// as {"text": <raw body>}.
func DecodeBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return WrapText(body)
}

// WrapText returns {"text": <body>}.
func WrapText(body []byte) json.RawMessage {
	wrapped, _ := json.Marshal(map[string]string{"text": string(body)})
	return wrapped
}

// ExtractOutput returns the value of a top-level "output" field when the body
// is an object carrying a non-null one, and the whole body otherwise.
func ExtractOutput(body json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return body
	}
	out, ok := obj["output"]
	if !ok || string(bytes.TrimSpace(out)) == "null" {
		return body
	}
	return out
}
