package indexer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind is how a rendered template value is classified before emission.
type ValueKind int

const (
	StringLike ValueKind = iota
	IntegerLike
	FloatLike
	ObjectLike
)

func (k ValueKind) String() string {
	switch k {
	case IntegerLike:
		return "integer"
	case FloatLike:
		return "float"
	case ObjectLike:
		return "object"
	default:
		return "string"
	}
}

// Classify checks integer, then float, then object. Numeric-looking text is
// never quoted, so the string "2020" comes out as the number 2020. Only plain
// decimal floats count: Go digit separators ("1_000") and hex are strings.
func Classify(text string) ValueKind {
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return IntegerLike
	}
	if isDecimalFloat(text) {
		return FloatLike
	}
	if strings.HasPrefix(text, "{") {
		return ObjectLike
	}
	return StringLike
}

func isDecimalFloat(text string) bool {
	if strings.ContainsRune(text, '_') || isHex(text) {
		return false
	}
	f, err := strconv.ParseFloat(text, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func isHex(text string) bool {
	t := strings.TrimLeft(text, "+-")
	return len(t) > 1 && t[0] == '0' && (t[1] == 'x' || t[1] == 'X')
}

// MaybeQuote is the maybeQuote template helper.
func MaybeQuote(v any) (string, error) {
	text, err := valueText(v)
	if err != nil {
		return "", err
	}
	if Classify(text) != StringLike {
		return text, nil
	}
	return encodeJSON(text)
}

func valueText(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case map[string]any, []any:
		return encodeJSON(val)
	default:
		return fmt.Sprint(val), nil
	}
}

func encodeJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
