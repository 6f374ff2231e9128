package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrMissingInput is returned when a submission carries neither free text nor form data.
var ErrMissingInput = errors.New("missing input to send to AI")

// Contact is the personal-contact part of the form that is copied onto a stored report.
type Contact struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// Empty reports whether no contact field is set.
func (c Contact) Empty() bool {
	return strings.TrimSpace(c.Name) == "" &&
		strings.TrimSpace(c.Email) == "" &&
		strings.TrimSpace(c.PhoneNumber) == ""
}

// MovementAssessment is one recorded guided-movement check.
type MovementAssessment struct {
	MovementName   string   `json:"movementName"`
	Impact         string   `json:"impact"`
	TightnessAreas []string `json:"tightnessAreas"`
	Sensations     []string `json:"sensations"`
}

// FormData is the typed view of the intake form. The service forwards the raw
// JSON to the assistant; this struct is only read for contact and logging.
type FormData struct {
	Contact

	Age        string `json:"age"`
	SexAtBirth string `json:"sexAtBirth"`
	Height     string `json:"height"`
	Weight     string `json:"weight"`

	PrimaryDiscomfortArea string  `json:"primaryDiscomfortArea"`
	PrimaryIntensity      float64 `json:"primaryIntensity"`
	PrimaryDuration       string  `json:"primaryDuration"`
	PrimaryBehavior       string  `json:"primaryBehavior"`

	HasOtherDiscomfort      string  `json:"hasOtherDiscomfort"`
	SecondaryDiscomfortArea string  `json:"secondaryDiscomfortArea"`
	SecondaryIntensity      float64 `json:"secondaryIntensity"`
	SecondaryDuration       string  `json:"secondaryDuration"`
	SecondaryBehavior       string  `json:"secondaryBehavior"`

	SelectedMovement       string               `json:"selectedMovement"`
	MovementImpact         string               `json:"movementImpact"`
	MovementTightnessAreas []string             `json:"movementTightnessAreas"`
	SensationDescription   []string             `json:"sensationDescription"`
	SensationTravels       string               `json:"sensationTravels"`
	SensationTravelArea    string               `json:"sensationTravelArea"`
	FrontHipTightness      string               `json:"frontHipTightness"`
	RecordedAssessments    []MovementAssessment `json:"recordedAssessments"`

	ActivityRanks       map[string]float64 `json:"activityRanks"`
	EndOfDayFatigueArea string             `json:"endOfDayFatigueArea"`

	SleepPosition        string `json:"sleepPosition"`
	SleepImpact          string `json:"sleepImpact"`
	MorningStiffnessArea string `json:"morningStiffnessArea"`

	WorseningSituations []string `json:"worseningSituations"`
	HarderPosition      string   `json:"harderPosition"`
	ImprovingSituations []string `json:"improvingSituations"`
}

// HasMovementAssessment mirrors the form rule: at least one recorded
// assessment, or a selected movement with its impact filled in.
func (f FormData) HasMovementAssessment() bool {
	if len(f.RecordedAssessments) > 0 {
		return true
	}
	return strings.TrimSpace(f.SelectedMovement) != "" && strings.TrimSpace(f.MovementImpact) != ""
}

// DecodeForm reads the typed form. Unknown or mistyped fields are tolerated by
// falling back to a contact-only decode.
func DecodeForm(raw json.RawMessage) FormData {
	var f FormData
	if len(raw) == 0 {
		return f
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		f = FormData{}
		_ = json.Unmarshal(raw, &f.Contact)
	}
	return f
}

// ExtractInput picks the text sent to the assistant: trimmed free text when
// given, otherwise the form pretty-printed with two-space indentation.
func ExtractInput(input string, form json.RawMessage) (string, error) {
	if s := strings.TrimSpace(input); s != "" {
		return s, nil
	}
	if !present(form) {
		return "", ErrMissingInput
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, form); err != nil {
		return "", ErrMissingInput
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return "", ErrMissingInput
	}
	return out.String(), nil
}

// present treats null, false, 0 and "" as absent.
func present(raw json.RawMessage) bool {
	if len(bytes.TrimSpace(raw)) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	}
	return true
}
