package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCompletion is returned when the model responds without content.
var ErrEmptyCompletion = errors.New("classifier: empty completion")

// MalformedOutputError reports model output that could not be decoded as
// JSON even after sanitizing. Raw carries the original payload for logging.
type MalformedOutputError struct {
	Raw string
	err error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("classifier: malformed model output: %v (payload snippet: %s)", e.err, snippet(e.Raw))
}

func (e *MalformedOutputError) Unwrap() error { return e.err }

// DecodeModelJSON decodes JSON from model output, handling common
// formatting quirks such as markdown code fences and surrounding prose.
func DecodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyCompletion
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return &MalformedOutputError{Raw: content, err: directErr}
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return &MalformedOutputError{Raw: content, err: err}
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
