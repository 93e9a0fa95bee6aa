package llm

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when a response contains no well-formed JSON object.
var ErrNoJSON = errors.New("no JSON object found in response")

// ExtractJSONObject returns the first well-formed JSON object embedded in
// text. Surrounding prose and markdown code fences are ignored. Braces
// inside string literals do not affect matching.
func ExtractJSONObject(text string) (string, error) {
	return extractFirst(text, '{', '}')
}

// ExtractJSONArray returns the first well-formed JSON array embedded in text.
func ExtractJSONArray(text string) (string, error) {
	return extractFirst(text, '[', ']')
}

func extractFirst(text string, open, close byte) (string, error) {
	for start := strings.IndexByte(text, open); start >= 0; {
		if end := matchClose(text, start, open, close); end > 0 {
			candidate := text[start : end+1]
			if gjson.Valid(candidate) {
				return candidate, nil
			}
		}
		next := strings.IndexByte(text[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSON
}

// matchClose returns the index of the delimiter balancing text[start],
// or -1 if it is never closed.
func matchClose(text string, start int, open, close byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
