// internal/core/domain/outcome.go
package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// OutcomeKind discrimina las dos variantes de Outcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

// Payload es el dato estructurado devuelto por un probe.
// Tras NewSuccess sólo contiene tipos JSON: map[string]any, []any, string, float64, bool, nil.
type Payload map[string]any

// Outcome es el resultado de un probe: Success(Payload) o Failure(Message).
type Outcome struct {
	Kind    OutcomeKind
	Payload Payload
	Message string
}

// Success crea un Outcome exitoso sin normalizar el payload.
// Usar NewSuccess cuando el payload proviene de un probe.
func Success(p Payload) Outcome {
	if p == nil {
		p = Payload{}
	}
	return Outcome{Kind: OutcomeSuccess, Payload: p}
}

// Failure crea un Outcome fallido.
func Failure(msg string) Outcome {
	return Outcome{Kind: OutcomeFailure, Message: msg}
}

// NewSuccess normaliza el payload a tipos JSON para que cualquier Report sea serializable
// y sobreviva el round-trip estructurado.
//
// Un payload con forma de sobre de error ({"error": "<msg>"} como única clave) se
// registra como Failure, igual que lo interpreta la exportación estructurada.
// Un payload no serializable se convierte en Failure con el motivo.
func NewSuccess(p map[string]any) Outcome {
	if p == nil {
		return Success(Payload{})
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return Failure(fmt.Sprintf("unserializable result: %v", err))
	}

	var normalized Payload
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return Failure(fmt.Sprintf("unserializable result: %v", err))
	}

	if msg, ok := ErrorEnvelope(normalized); ok {
		return Failure(msg)
	}

	return Success(normalized)
}

// ErrorEnvelope indica si un objeto es un sobre de error ({"error": string} como única clave).
func ErrorEnvelope(obj map[string]any) (string, bool) {
	if len(obj) != 1 {
		return "", false
	}
	msg, ok := obj["error"].(string)
	return msg, ok
}

// IsSuccess indica si el outcome es exitoso.
func (o Outcome) IsSuccess() bool { return o.Kind == OutcomeSuccess }

// IsFailure indica si el outcome es un fallo.
func (o Outcome) IsFailure() bool { return o.Kind == OutcomeFailure }

// Equal compara dos outcomes por variante y contenido.
func (o Outcome) Equal(other Outcome) bool {
	if o.Kind != other.Kind {
		return false
	}
	if o.Kind == OutcomeFailure {
		return o.Message == other.Message
	}
	return reflect.DeepEqual(o.Payload, other.Payload)
}

// Envelope devuelve la representación estructurada del outcome:
// el payload para Success o {"error": msg} para Failure.
func (o Outcome) Envelope() map[string]any {
	if o.IsFailure() {
		return map[string]any{"error": o.Message}
	}
	if o.Payload == nil {
		return map[string]any{}
	}
	return o.Payload
}

// OutcomeFromEnvelope es la inversa de Envelope.
func OutcomeFromEnvelope(obj map[string]any) Outcome {
	if msg, ok := ErrorEnvelope(obj); ok {
		return Failure(msg)
	}
	return Success(Payload(obj))
}

// MarshalOutcome serializa un outcome para persistirlo (sobre JSON).
func MarshalOutcome(o Outcome) ([]byte, error) {
	return json.Marshal(o.Envelope())
}

// UnmarshalOutcome reconstruye un outcome persistido con MarshalOutcome.
func UnmarshalOutcome(data []byte) (Outcome, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return Outcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return OutcomeFromEnvelope(obj), nil
}

// String retorna una representación legible del outcome.
func (o Outcome) String() string {
	if o.IsFailure() {
		return fmt.Sprintf("Failure(%s)", o.Message)
	}
	return fmt.Sprintf("Success(%d fields)", len(o.Payload))
}
