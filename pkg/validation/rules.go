package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Coercion tells a rule how to read a loosely typed form value.
type Coercion int

const (
	AsString Coercion = iota
	AsBool
	AsNumber
)

// FieldRule is one check on one form field. Compare names a second field for
// cross-field tags such as eqfield.
type FieldRule struct {
	Field   string
	Tag     string
	Compare string
	As      Coercion
	Message string
}

// Text builds a rule over a string field.
func Text(field, tag, message string) FieldRule {
	return FieldRule{Field: field, Tag: tag, As: AsString, Message: message}
}

// Consent builds a rule that requires a boolean field to be true.
func Consent(field, message string) FieldRule {
	return FieldRule{Field: field, Tag: "eq=true", As: AsBool, Message: message}
}

// Number builds a rule over a numeric field.
func Number(field, tag, message string) FieldRule {
	return FieldRule{Field: field, Tag: tag, As: AsNumber, Message: message}
}

// Matches builds an equality rule between two string fields.
func Matches(field, other, message string) FieldRule {
	return FieldRule{Field: field, Tag: "eqfield", Compare: other, As: AsString, Message: message}
}

// FirstFailure runs the rules in order and returns the message of the first one
// that fails. An empty string means every rule passed.
func FirstFailure(v *validator.Validate, fields map[string]interface{}, rules []FieldRule) string {
	for _, rule := range rules {
		value := coerce(fields[rule.Field], rule.As)
		var err error
		if rule.Compare != "" {
			err = v.VarWithValue(value, coerce(fields[rule.Compare], rule.As), rule.Tag)
		} else {
			err = v.Var(value, rule.Tag)
		}
		if err != nil {
			return rule.Message
		}
	}
	return ""
}

func coerce(raw interface{}, as Coercion) interface{} {
	switch as {
	case AsBool:
		return toBool(raw)
	case AsNumber:
		return toNumber(raw)
	default:
		return toString(raw)
	}
}

func toString(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toBool(raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return false
	}
}

// toNumber maps unparseable input to -1 so range tags reject it.
func toNumber(raw interface{}) float64 {
	switch v := raw.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return -1
		}
		return f
	default:
		return -1
	}
}
