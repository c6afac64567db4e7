package model

import (
	"strconv"
	"strings"
)

// Well-known profile field names. A profile may carry arbitrary extra
// columns; these are the ones the pipeline reads or writes.
const (
	FieldName     = "name"
	FieldCompany  = "company"
	FieldRole     = "role"
	FieldResearch = "research"
	FieldDraft    = "draft"
)

// Profile is one row of the outreach sheet: a stable row index plus a
// field→value mapping. Unknown columns pass through untouched so a
// persist never loses data the pipeline does not understand.
type Profile struct {
	// ID is the row position within the batch. Unique and stable for the
	// duration of a run.
	ID int

	// Fields maps column name to cell value.
	Fields map[string]string
}

// NewProfile creates a profile with an initialized field map.
func NewProfile(id int) Profile {
	return Profile{ID: id, Fields: make(map[string]string)}
}

// Get returns the value of the named field, or "" if absent.
func (p Profile) Get(field string) string {
	return p.Fields[field]
}

// Set assigns a field value, allocating the map if needed.
func (p *Profile) Set(field, value string) {
	if p.Fields == nil {
		p.Fields = make(map[string]string)
	}
	p.Fields[field] = value
}

// Name returns the contact's name, falling back to a positional label so
// logs and archives always have something to key on.
func (p Profile) Name() string {
	if n := strings.TrimSpace(p.Fields[FieldName]); n != "" {
		return n
	}
	return "row-" + strconv.Itoa(p.ID)
}

// Company returns the contact's company.
func (p Profile) Company() string { return p.Fields[FieldCompany] }

// Role returns the contact's role.
func (p Profile) Role() string { return p.Fields[FieldRole] }

// Research returns the research field value ("" = not yet produced).
func (p Profile) Research() string { return p.Fields[FieldResearch] }

// Draft returns the email draft field value ("" = not yet produced).
func (p Profile) Draft() string { return p.Fields[FieldDraft] }

// HasResearch reports whether the research stage has already run.
func (p Profile) HasResearch() bool { return strings.TrimSpace(p.Research()) != "" }

// HasDraft reports whether the email stage has already run.
func (p Profile) HasDraft() bool { return strings.TrimSpace(p.Draft()) != "" }

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	c := Profile{ID: p.ID, Fields: make(map[string]string, len(p.Fields))}
	for k, v := range p.Fields {
		c.Fields[k] = v
	}
	return c
}

// FieldUpdate is one pending cell write destined for the tabular source.
type FieldUpdate struct {
	ProfileID int    `json:"profile_id"`
	Field     string `json:"field"`
	Value     string `json:"value"`
}
