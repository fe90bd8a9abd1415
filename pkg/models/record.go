package models

import "time"

// Record is one item of user data belonging to a data model. The engine only
// reads Data for filtering and hands the whole record to the action executor;
// it never mutates records itself.
type Record struct {
	ID        string         `json:"id"`
	ModelID   string         `json:"model_id" validate:"required"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
