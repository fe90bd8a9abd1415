package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// DataModel is a user-defined collection of records belonging to an agent.
type DataModel struct {
	ID          string `json:"id"`
	AgentID     string `json:"agent_id" validate:"required"`
	Name        string `json:"name"     validate:"required"`
	Description string `json:"description"`
	// Schema is an optional JSON schema applied to record data on save.
	// A nil schema accepts any data.
	Schema    map[string]any `json:"schema,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ValidateRecord checks record data against the model's JSON schema, if any.
func (m *DataModel) ValidateRecord(data map[string]any) error {
	if m.Schema == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(m.Schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("record does not match model %s schema: %s", m.Name, strings.Join(errs, "; "))
	}

	return nil
}
