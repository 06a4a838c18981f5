package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Lora is one LoRA applied to a generation. The wire format is a tagged
// union: either a bare string reference ("style-v2") or a structured object
// {id, name, strength}. Both shapes decode into this struct; string
// references get a default strength of 1.
type Lora struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Strength float64 `json:"strength"`
}

// UnmarshalJSON resolves the union at the boundary so the rest of the code
// never sees an untyped value.
func (l *Lora) UnmarshalJSON(data []byte) error {
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		*l = Lora{Name: ref, Strength: 1}
		return nil
	}

	type structured Lora
	var s structured
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("lora: neither string nor object: %w", err)
	}
	*l = Lora(s)
	return nil
}

// LoraList is an ordered list of LoRAs, stored as a JSON column.
type LoraList []Lora

// Value implements driver.Valuer for GORM.
func (l LoraList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for GORM.
func (l *LoraList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("lora list: unsupported column type %T", value)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(data, l)
}

// Regional holds the regional-prompting configuration of a generation,
// stored as a JSON column.
type Regional struct {
	Enabled bool     `json:"enabled"`
	Layout  string   `json:"layout,omitempty"`
	Prompts []string `json:"prompts,omitempty"`
}

// Value implements driver.Valuer for GORM.
func (r Regional) Value() (driver.Value, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for GORM.
func (r *Regional) Scan(value interface{}) error {
	if value == nil {
		*r = Regional{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("regional prompting: unsupported column type %T", value)
	}
	if len(data) == 0 {
		*r = Regional{}
		return nil
	}
	return json.Unmarshal(data, r)
}
