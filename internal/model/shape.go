package model

import (
	"encoding/json"
	"strings"
)

// Shape is one of the three playable symbols
type Shape int

const (
	ShapeNone Shape = iota // No shape revealed yet
	ShapeRock
	ShapePaper
	ShapeScissors
)

// Shapes lists every playable shape in a stable order
var Shapes = []Shape{ShapeRock, ShapePaper, ShapeScissors}

// String returns the canonical ledger spelling of the shape
func (s Shape) String() string {
	switch s {
	case ShapeRock:
		return "Rock"
	case ShapePaper:
		return "Paper"
	case ShapeScissors:
		return "Scissors"
	default:
		return ""
	}
}

// Valid reports whether s is a playable shape
func (s Shape) Valid() bool {
	return s >= ShapeRock && s <= ShapeScissors
}

// Beats reports whether s wins against other
func (s Shape) Beats(other Shape) bool {
	switch s {
	case ShapeRock:
		return other == ShapeScissors
	case ShapePaper:
		return other == ShapeRock
	case ShapeScissors:
		return other == ShapePaper
	default:
		return false
	}
}

// ParseShape parses a shape name case-insensitively.
// The empty string parses to ShapeNone without error.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ShapeNone, nil
	case "rock":
		return ShapeRock, nil
	case "paper":
		return ShapePaper, nil
	case "scissors":
		return ShapeScissors, nil
	default:
		return ShapeNone, ErrInvalidShape
	}
}

// MarshalJSON encodes the shape as its ledger string
func (s Shape) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a shape from its ledger string
func (s *Shape) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseShape(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
