package reports

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/bryanwahyu/kinetic-intake/internal/domain/intake"
)

// ParseResponse tries to read assistant text as JSON. It accepts a fenced
// ```json block and a JSON document that was itself encoded as a JSON string.
// When the text is not JSON it is returned unchanged with ok=false.
func ParseResponse(text string) (value any, ok bool) {
	clean := stripFence(strings.TrimSpace(text))

	if len(clean) >= 2 {
		first, last := clean[0], clean[len(clean)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			var inner string
			if err := json.Unmarshal([]byte(clean), &inner); err != nil {
				return text, false
			}
			clean = inner
		}
	}

	v, err := decode([]byte(clean))
	if err != nil {
		return text, false
	}
	return v, true
}

// IsReport reports whether v is an object carrying a report marker.
func IsReport(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	return Truthy(m[FieldSchemaVersion]) || Truthy(m[FieldReportType])
}

// MergeContact copies the non-empty contact fields into personal_snapshot,
// creating the snapshot object when it is missing.
func MergeContact(doc map[string]any, c intake.Contact) {
	if c.Empty() {
		return
	}
	snap, ok := doc[FieldPersonalSnapshot].(map[string]any)
	if !ok {
		snap = map[string]any{}
		doc[FieldPersonalSnapshot] = snap
	}
	if c.Name != "" {
		snap["name"] = c.Name
	}
	if c.Email != "" {
		snap["email"] = c.Email
	}
	if c.PhoneNumber != "" {
		snap["phoneNumber"] = c.PhoneNumber
	}
}

// Truthy follows JavaScript truthiness for decoded JSON values.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		return err == nil && f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return true
}

// Decode reads a JSON value keeping numbers as json.Number.
func Decode(b []byte) (any, error) { return decode(b) }

func decode(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func decodeObject(b []byte) (map[string]any, error) {
	v, err := decode(b)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("report document is not a JSON object")
	}
	return m, nil
}

// DecodeDocument reads a stored report body.
func DecodeDocument(b []byte) (map[string]any, error) { return decodeObject(b) }

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if i := strings.IndexByte(body, '\n'); i >= 0 && !strings.ContainsAny(body[:i], "{[\"") {
		body = body[i+1:]
	}
	return strings.TrimSpace(body)
}
