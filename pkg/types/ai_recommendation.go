package types

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// AiRecommendation stores the repair-or-replace advisor verdict on a case.
type AiRecommendation struct {
	Recommendation string    `json:"recommendation"`
	Confidence     float64   `json:"confidence"`
	Rationale      string    `json:"rationale"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Value serializes the recommendation to JSON.
func (a *AiRecommendation) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Scan decodes JSONB into the recommendation struct.
func (a *AiRecommendation) Scan(value interface{}) error {
	if value == nil {
		*a = AiRecommendation{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, a)
}
