package enrichment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"recruiting-pipeline/internal/domain"
)

// ErrInvalidResult marks payloads that will never become valid on redelivery.
var ErrInvalidResult = errors.New("invalid enrichment result")

// Result is the message the analysis service sends back.
type Result struct {
	EntityID       string    `json:"entityId"`
	EntityType     string    `json:"entityType"`
	MatchScore     int       `json:"matchScore"`
	Recommendation string    `json:"recommendation"`
	Strengths      []string  `json:"strengths"`
	Concerns       []string  `json:"concerns"`
	AnalyzedAt     time.Time `json:"analyzedAt"`
}

// Enrichment converts the message into the application field value.
func (r *Result) Enrichment() *domain.Enrichment {
	analyzedAt := r.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now().UTC()
	}
	return &domain.Enrichment{
		MatchScore:     r.MatchScore,
		Recommendation: domain.Recommendation(r.Recommendation),
		Strengths:      nonNil(r.Strengths),
		Concerns:       nonNil(r.Concerns),
		AnalyzedAt:     analyzedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func resultSchema() map[string]interface{} {
	recommendations := make([]interface{}, 0, len(domain.ValidRecommendations()))
	for _, r := range domain.ValidRecommendations() {
		recommendations = append(recommendations, string(r))
	}
	stringList := map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"entityId", "matchScore", "recommendation"},
		"properties": map[string]interface{}{
			"entityId":       map[string]interface{}{"type": "string", "minLength": 1},
			"entityType":     map[string]interface{}{"type": "string", "enum": []interface{}{"application", "candidate"}},
			"matchScore":     map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
			"recommendation": map[string]interface{}{"type": "string", "enum": recommendations},
			"strengths":      stringList,
			"concerns":       stringList,
			"analyzedAt":     map[string]interface{}{"type": "string", "format": "date-time"},
		},
	}
}

var schemaLoader = gojsonschema.NewGoLoader(resultSchema())

// ParseResult validates raw JSON against the result schema and decodes it.
func ParseResult(body []byte) (*Result, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if result.EntityType == "" {
		result.EntityType = domain.EntityTypeApplication
	}
	return &result, nil
}

// Validate checks an already decoded document against the result schema.
func Validate(doc interface{}) error {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidResult, strings.Join(msgs, "; "))
	}
	return nil
}
