package reports

import (
	"encoding/json"
	"fmt"
	"time"
)

// ID tipe untuk Report
type ID string

// Field names the assistant output is expected to carry.
const (
	FieldSchemaVersion    = "schema_version"
	FieldReportType       = "report_type"
	FieldPersonalSnapshot = "personal_snapshot"
)

// Report is the stored diagnostic report. Document holds whatever JSON object
// the assistant produced, contact fields included; the typed fields are
// denormalized from it for indexing.
type Report struct {
	ID            ID
	ReportType    string
	SchemaVersion string
	Document      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New builds a report around an assistant document.
func New(id ID, doc map[string]any, now time.Time) *Report {
	return &Report{
		ID:            id,
		ReportType:    stringField(doc, FieldReportType),
		SchemaVersion: stringField(doc, FieldSchemaVersion),
		Document:      doc,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarshalJSON flattens the document and adds the storage fields next to it,
// the shape the report viewer consumes.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Document)+3)
	for k, v := range r.Document {
		out[k] = v
	}
	out["_id"] = r.ID
	out["createdAt"] = r.CreatedAt
	out["updatedAt"] = r.UpdatedAt
	return json.Marshal(out)
}

// Summary is the list view of a report.
type Summary struct {
	ID             ID        `json:"_id"`
	ReportType     string    `json:"report_type"`
	SchemaVersion  string    `json:"schema_version"`
	Name           string    `json:"name,omitempty"`
	PrimaryConcern string    `json:"primary_concern,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (r *Report) Summary() Summary {
	s := Summary{
		ID:            r.ID,
		ReportType:    r.ReportType,
		SchemaVersion: r.SchemaVersion,
		CreatedAt:     r.CreatedAt,
	}
	if snap, ok := r.Document[FieldPersonalSnapshot].(map[string]any); ok {
		s.Name = stringField(snap, "name")
		s.PrimaryConcern = stringField(snap, "primary_concern")
	}
	return s
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// UnmarshalJSON reverses MarshalJSON.
func (r *Report) UnmarshalJSON(b []byte) error {
	doc, err := decodeObject(b)
	if err != nil {
		return err
	}

	var created, updated time.Time
	if s, ok := doc["createdAt"].(string); ok {
		if created, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return fmt.Errorf("createdAt: %w", err)
		}
	}
	if s, ok := doc["updatedAt"].(string); ok {
		if updated, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return fmt.Errorf("updatedAt: %w", err)
		}
	}
	id := stringField(doc, "_id")
	delete(doc, "_id")
	delete(doc, "createdAt")
	delete(doc, "updatedAt")

	*r = *New(ID(id), doc, created)
	r.UpdatedAt = updated
	return nil
}
