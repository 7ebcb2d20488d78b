package enums

import "fmt"

// OversellMode selects how confirm_payment treats insufficient stock.
//
// Clamp floors each product at zero and lets the transition succeed,
// recording the oversold quantities. Strict rejects the transition before
// any inventory is touched when any line item exceeds available stock.
type OversellMode string

const (
	OversellModeClamp  OversellMode = "clamp"
	OversellModeStrict OversellMode = "strict"
)

var validOversellModes = []OversellMode{
	OversellModeClamp,
	OversellModeStrict,
}

// String implements fmt.Stringer.
func (m OversellMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known OversellMode.
func (m OversellMode) IsValid() bool {
	for _, candidate := range validOversellModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseOversellMode converts raw input into an OversellMode.
func ParseOversellMode(value string) (OversellMode, error) {
	for _, candidate := range validOversellModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid oversell mode %q", value)
}
