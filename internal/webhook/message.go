package webhook

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds error messages surfaced from webhook bodies.
const MaxMessageLength = 400

var messageKeys = []string{"message", "error", "msg", "detail", "description"}

// ExtractMessage pulls a human readable message out of an error body. JSON
// objects are searched for the usual message keys, other JSON is shown
// compacted and anything else is used as text. The result is trimmed and
// cut to limit runes; an empty string means nothing usable was found.
func ExtractMessage(body []byte, limit int) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var msg string
	var decoded any
	if json.Unmarshal(body, &decoded) == nil {
		msg = fromJSON(decoded)
		if msg == "" {
			var compact bytes.Buffer
			if json.Compact(&compact, body) == nil {
				msg = compact.String()
			}
		}
	} else {
		msg = string(body)
	}
	return truncate(strings.TrimSpace(msg), limit)
}

func fromJSON(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, key := range messageKeys {
			switch inner := t[key].(type) {
			case string:
				if inner != "" {
					return inner
				}
			case map[string]any:
				if s := fromJSON(inner); s != "" {
					return s
				}
			}
		}
	case []any:
		if len(t) > 0 {
			return fromJSON(t[0])
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
