package models

import (
	"encoding/json"

	"cardsheets/internal/platform/docstore"
)

const (
	FieldTypeOfCards   = "typeOfCards"
	FieldTypeOfProfile = "typeOfProfile"
	FieldHistory       = "history"
	FieldName          = "name"
)

// Fields is a free-form JSON object such as a template entry or a card's
// user defined values.
type Fields map[string]interface{}

// String returns the string value of key, or "" when absent or not a string.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// HistoryEntry is the shape new cards are written with. Stored entries may
// carry other keys or a non-string timestamp; readers keep them as they are.
type HistoryEntry struct {
	Field     string      `json:"field"`
	Value     interface{} `json:"value"`
	Timestamp interface{} `json:"timestamp"`
}

// Card is a CRM record. Values holds every stored field, including the
// reserved ones mirrored in the typed fields.
type Card struct {
	ID            string
	TypeOfCards   string
	TypeOfProfile string
	History       []HistoryEntry
	Values        Fields
}

func CardFromSnapshot(snap *docstore.Snapshot) *Card {
	values := Fields(snap.Data)
	card := &Card{
		ID:            snap.ID,
		TypeOfCards:   values.String(FieldTypeOfCards),
		TypeOfProfile: values.String(FieldTypeOfProfile),
		Values:        values,
	}
	card.History = decodeHistory(values[FieldHistory])
	return card
}

// Has reports whether the card stores key.
func (c *Card) Has(key string) bool {
	_, ok := c.Values[key]
	return ok
}

// HistoryWithout drops the stored history entries whose field is one of
// fields. Kept entries are returned untouched. The second result is false
// when nothing was dropped or the history is not a list.
func (c *Card) HistoryWithout(fields []string) ([]interface{}, bool) {
	entries, ok := c.Values[FieldHistory].([]interface{})
	if !ok {
		return nil, false
	}

	drop := make(map[string]bool, len(fields))
	for _, f := range fields {
		drop[f] = true
	}

	kept := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		if m, ok := entry.(map[string]interface{}); ok {
			if field, _ := m["field"].(string); drop[field] {
				continue
			}
		}
		kept = append(kept, entry)
	}
	return kept, len(kept) != len(entries)
}

// decodeHistory reads the entries it can and skips the rest.
func decodeHistory(raw interface{}) []HistoryEntry {
	entries, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	history := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		field, _ := m["field"].(string)
		history = append(history, HistoryEntry{Field: field, Value: m["value"], Timestamp: m["timestamp"]})
	}
	return history
}

type CardTemplate struct {
	ID          string   `json:"-"`
	TypeOfCards string   `json:"typeOfCards"`
	Name        string   `json:"name"`
	Headers     []Fields `json:"headers"`
}

// TemplateProfile groups templates and pipelines under a stable id.
type TemplateProfile struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Templates []Fields      `json:"templates"`
	Pipelines []interface{} `json:"pipelines"`
	UpdatedAt string        `json:"updatedAt,omitempty"`
}

func ProfileFromSnapshot(snap *docstore.Snapshot) (*TemplateProfile, error) {
	b, err := json.Marshal(snap.Data)
	if err != nil {
		return nil, err
	}
	profile := &TemplateProfile{}
	if err := docstore.Unmarshal(b, profile); err != nil {
		return nil, err
	}
	if profile.ID == "" {
		profile.ID = snap.ID
	}
	return profile, nil
}

// Lists reports whether one of the profile's templates has typeOfCards.
func (p *TemplateProfile) Lists(typeOfCards string) bool {
	for _, t := range p.Templates {
		if t.String(FieldTypeOfCards) == typeOfCards {
			return true
		}
	}
	return false
}

// ToDocument converts a tagged struct to a store document through its JSON form.
func ToDocument(v interface{}) (docstore.Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := docstore.Document{}
	if err := docstore.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromDocument decodes a store document into a tagged struct.
func FromDocument(doc docstore.Document, v interface{}) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return docstore.Unmarshal(b, v)
}
