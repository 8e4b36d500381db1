package webhook

import "testing"

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{
			name:    "plain string passes through",
			message: "hello",
			want:    "hello",
		},
		{
			name:    "plain sentence with spaces",
			message: "properties in Sector 150 Noida",
			want:    "properties in Sector 150 Noida",
		},
		{
			name:    "text field wins",
			message: `{"text":"hello"}`,
			want:    "hello",
		},
		{
			name:    "text preferred over query and message",
			message: `{"message":"m","query":"q","text":"t"}`,
			want:    "t",
		},
		{
			name:    "query used when text missing",
			message: `{"query":"2 BHK in Sector 62","message":"ignored"}`,
			want:    "2 BHK in Sector 62",
		},
		{
			name:    "message used when text and query missing",
			message: `{"message":"villas near expressway"}`,
			want:    "villas near expressway",
		},
		{
			name:    "empty text falls through to query",
			message: `{"text":"","query":"q"}`,
			want:    "q",
		},
		{
			name:    "null text falls through to message",
			message: `{"text":null,"message":"m"}`,
			want:    "m",
		},
		{
			name:    "non-string field is sent as json",
			message: `{"query":{"sector":150}}`,
			want:    `{"sector":150}`,
		},
		{
			name:    "object without known keys re-serialized in key order",
			message: `{ "query_type": "locality", "search_term": "Sector 150 Noida", "request_type": "general_lookup" }`,
			want:    `{"query_type":"locality","search_term":"Sector 150 Noida","request_type":"general_lookup"}`,
		},
		{
			name:    "nested filters kept",
			message: `{"request_type":"general_lookup","filters":{"bedrooms":3,"max_price":10000000}}`,
			want:    `{"request_type":"general_lookup","filters":{"bedrooms":3,"max_price":10000000}}`,
		},
		{
			name:    "empty object re-serialized",
			message: `{}`,
			want:    `{}`,
		},
		{
			name:    "json number stays a plain string",
			message: "123",
			want:    "123",
		},
		{
			name:    "json string literal stays verbatim",
			message: `"quoted"`,
			want:    `"quoted"`,
		},
		{
			name:    "json array stays verbatim",
			message: `["a","b"]`,
			want:    `["a","b"]`,
		},
		{
			name:    "broken json falls back to input",
			message: `{"text": "unterminated`,
			want:    `{"text": "unterminated`,
		},
		{
			name:    "brace prefixed plain text",
			message: "{not json} please",
			want:    "{not json} please",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeMessage(tt.message); got != tt.want {
				t.Errorf("NormalizeMessage(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}
