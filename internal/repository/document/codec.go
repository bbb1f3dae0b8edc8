package document

import (
	"encoding/json"
	"fmt"

	"recruiting-pipeline/internal/domain"
)

// toFields flattens an entity into document fields. id and version live on the
// document itself, not in its data.
func toFields(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	delete(fields, "id")
	delete(fields, "version")
	return fields, nil
}

// decode fills out from a stored document.
func decode(doc *domain.Document, out interface{}) error {
	fields := make(map[string]interface{}, len(doc.Fields)+2)
	for k, v := range doc.Fields {
		fields[k] = v
	}
	fields["id"] = doc.ID
	fields["version"] = doc.Version

	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode %s/%s: %w", doc.Collection, doc.ID, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", doc.Collection, doc.ID, err)
	}
	return nil
}
