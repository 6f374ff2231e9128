package pdf

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
)

//go:embed templates/*.html
var templateFS embed.FS

const defaultBadge = "DIAGNOSTIC REPORT"

// Page builds the printable HTML of a report document.
type Page struct {
	tmpl *template.Template
}

// NewPage parses the embedded report template.
func NewPage() (*Page, error) {
	tmpl, err := template.New("report.html").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Page{tmpl: tmpl}, nil
}

// Build implements delivery.ReportPage.
func (p *Page) Build(report map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, newView(report)); err != nil {
		return "", fmt.Errorf("render report template: %w", err)
	}
	return buf.String(), nil
}

type view struct {
	Badge      string
	Snapshot   *snapshot
	Clinical   *section
	Movement   *section
	Hypotheses []hypothesis
	Load       *section
	Lifestyle  *section
	Mobility   *mobility
	Why        *section
	Questions  []string
	HandOff    *section
	Notes      *section
	NextSteps  *section
	Disclaimer string
}

type snapshot struct {
	Name, Email, Phone, Age, PrimaryConcern string
}

func (s *snapshot) HasContact() bool {
	return s.Name != "" || s.Email != "" || s.Phone != ""
}

// section is a free-form report block: a paragraph, a list, or titled groups.
type section struct {
	Title  string
	Text   string
	Items  []string
	Groups []group
}

type group struct {
	Title string
	Text  string
	Items []string
}

type hypothesis struct {
	Letter      string
	Label       string
	Region      string
	Pathway     []string
	Explanation string
	Findings    []string
}

type mobility struct {
	Regions []string
	Themes  []string
}

func newView(doc map[string]any) view {
	v := view{
		Badge:      badge(doc[reports.FieldReportType]),
		Clinical:   newSection("Clinical Insight Snapshot", doc["clinical_insight_snapshot"]),
		Movement:   newSection("Movement Observations", doc["movement_observations"]),
		Load:       newSection("Load vs Recovery Overview", doc["load_vs_recovery_overview"]),
		Lifestyle:  newSection("Lifestyle & Postural Contributors", doc["lifestyle_and_postural_contributors"]),
		Why:        newSection("Why This Pattern Matters", doc["why_this_pattern_matters"]),
		HandOff:    newSection("Practitioner Hand-Off Summary", doc["practitioner_hand_off_summary"]),
		Notes:      newSection("Practitioner Notes", doc["practitioner_notes"]),
		NextSteps:  newSection("Next Steps & Recovery Tools", doc["next_steps_and_recovery_tools"]),
		Questions:  list(doc["questions_to_ask_your_practitioner"]),
		Disclaimer: text(doc["disclaimer"]),
	}

	if snap, ok := doc[reports.FieldPersonalSnapshot].(map[string]any); ok {
		v.Snapshot = &snapshot{
			Name:           text(snap["name"]),
			Email:          text(snap["email"]),
			Phone:          text(snap["phoneNumber"]),
			Age:            text(snap["age"]),
			PrimaryConcern: text(snap["primary_concern"]),
		}
	}

	for _, h := range []struct{ key, letter string }{
		{"kinetic_chain_hypothesis_a", "A"},
		{"kinetic_chain_hypothesis_b", "B"},
	} {
		m, ok := doc[h.key].(map[string]any)
		if !ok {
			continue
		}
		v.Hypotheses = append(v.Hypotheses, hypothesis{
			Letter:      h.letter,
			Label:       text(m["hypothesis_label"]),
			Region:      text(m["initiating_region"]),
			Pathway:     list(m["kinetic_chain_pathway"]),
			Explanation: text(m["biomechanical_explanation"]),
			Findings:    list(m["supporting_findings"]),
		})
	}

	if m, ok := doc["at_home_mobility_focus"].(map[string]any); ok {
		v.Mobility = &mobility{
			Regions: list(m["focus_regions"]),
			Themes:  list(m["mobility_themes"]),
		}
	}
	return v
}

func badge(reportType any) string {
	s := text(reportType)
	if s == "" {
		return defaultBadge
	}
	return strings.ToUpper(strings.ReplaceAll(s, "_", " "))
}

// newSection returns nil for falsy content so the template skips the block.
func newSection(title string, content any) *section {
	if !reports.Truthy(content) {
		return nil
	}
	s := &section{Title: title}
	switch c := content.(type) {
	case string:
		s.Text = c
	case []any:
		s.Items = list(c)
	case map[string]any:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			g := group{Title: strings.ReplaceAll(k, "_", " ")}
			switch val := c[k].(type) {
			case string:
				g.Text = val
			case []any:
				g.Items = list(val)
			}
			s.Groups = append(s.Groups, g)
		}
	default:
		s.Text = text(c)
	}
	return s
}

// list renders each element of an array; anything else yields nil.
func list(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		out = append(out, text(item))
	}
	return out
}

// text renders scalars as-is and composite values as compact JSON.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool, float64, int:
		return fmt.Sprint(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
