package http

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/godswillmedia-source/stylesync-pwa/internal/extract"
)

// ErrNoText means no message text could be located in the webhook body.
var ErrNoText = errors.New("no message text found")

const defaultSender = "StyleSeat"

// accepted field-name variants, checked in priority order. "messag" is a
// known truncation some shortcut configs produce.
var textFields = []string{"message", "messag", "msg", "text", "content", "sms", "body"}

// minimum length for the any-string fallback: filters out flags and
// labels that happen to be strings
const minFallbackLen = 5

// LocateText digs the message text and sender out of a best-effort
// webhook body. The body may be JSON with the text under one of several
// field names, any JSON object with one long string value, or plain
// text. Escaped punctuation is collapsed before storage.
func LocateText(body []byte) (text, sender string, err error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", "", ErrNoText
	}

	var payload map[string]any
	if jsonErr := json.Unmarshal(body, &payload); jsonErr != nil {
		// a bare JSON string is just the message
		var str string
		if json.Unmarshal(body, &str) == nil {
			if s := extract.Normalize(str); s != "" {
				return s, defaultSender, nil
			}
			return "", "", ErrNoText
		}
		// not JSON at all: the raw body is the message
		return extract.Normalize(trimmed), defaultSender, nil
	}

	for _, f := range textFields {
		if v, ok := payload[f].(string); ok && v != "" {
			text = v
			break
		}
	}
	if text == "" {
		// fallback: first long string value, keys sorted for determinism
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "sender" {
				continue
			}
			if v, ok := payload[k].(string); ok && len(v) > minFallbackLen {
				text = v
				break
			}
		}
	}
	if text == "" {
		return "", "", ErrNoText
	}

	sender = defaultSender
	if v, ok := payload["sender"].(string); ok && v != "" {
		sender = v
	}
	return extract.Normalize(text), sender, nil
}
