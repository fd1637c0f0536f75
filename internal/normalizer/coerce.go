package normalizer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// parseObject decodes raw bytes into a JSON object, preserving numeric
// precision with json.Number so the coercion helpers can distinguish
// numbers from strings.
func parseObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// dig descends through nested objects, returning false if any step is
// missing or not an object.
func dig(obj map[string]any, path ...string) (map[string]any, bool) {
	cur := obj
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// firstOf returns the first present value among the given keys. The
// producer has shipped both MMUserId and user_id spellings over time.
func firstOf(obj map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			return v
		}
	}
	return nil
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	default:
		return "", false
	}
}

// asFloat accepts JSON numbers and numeric strings. Coordinates arrive as
// strings from older producer versions.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asTime accepts RFC3339(/Nano) strings and unix-seconds values, always
// returning UTC. Unix seconds arrive both as JSON numbers and as
// string-encoded numbers, like the coordinates.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), true
			}
		}
		if secs, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return unixTime(secs), true
		}
		return time.Time{}, false
	case json.Number:
		secs, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return unixTime(secs), true
	default:
		return time.Time{}, false
	}
}

func unixTime(secs float64) time.Time {
	whole := int64(secs)
	nanos := int64((secs - float64(whole)) * 1e9)
	return time.Unix(whole, nanos).UTC()
}

// asBool accepts JSON booleans and the producer's "TRUE"/"FALSE" string
// encoding (case-insensitive).
func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToUpper(strings.TrimSpace(b)) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}
