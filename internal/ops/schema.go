package ops

// Envelope is the payload of a single remote call: a flat mapping from
// field name to JSON-decoded value.
type Envelope map[string]any

// FieldType is the closed enumeration of primitive tags a schema may
// declare. Object-typed fields pass through opaque; their nested shape is
// never validated here.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeObject FieldType = "object"
)

// Schema declares the exact key set an envelope must carry, field name to
// primitive tag. Schemas are per-operation constants, never persisted.
type Schema map[string]FieldType

// Validate checks an envelope against a schema. Both missing and extra
// fields are rejected, as is any value whose runtime type does not match
// the declared tag. A nil value satisfies TypeObject (JSON null).
func Validate(envelope Envelope, schema Schema) error {
	if len(envelope) != len(schema) {
		return failInvalidArgument("number of arguments invalid")
	}
	for key, value := range envelope {
		declared, ok := schema[key]
		if !ok {
			return failInvalidArgument("invalid arguments")
		}
		if !matchesType(value, declared) {
			return failInvalidArgument("invalid arguments")
		}
	}
	return nil
}

func matchesType(value any, declared FieldType) bool {
	switch declared {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeObject:
		if value == nil {
			return true
		}
		_, ok := value.(map[string]any)
		return ok
	default:
		return false
	}
}
