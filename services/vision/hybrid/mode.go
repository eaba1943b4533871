package hybrid

import (
	"strings"

	"github.com/pkg/errors"
)

// Mode selects how the two vision sources are combined.
type Mode int

// Vision modes.
const (
	// Fusion requires both sources and averages or cross-validates them.
	Fusion Mode = iota
	// PrimaryOnly uses only the primary camera.
	PrimaryOnly
	// SecondaryOnly uses only the coprocessor.
	SecondaryOnly
	// PrimaryFallback prefers the primary camera and falls back to the coprocessor.
	PrimaryFallback
	// SecondaryFallback prefers the coprocessor and falls back to the primary camera.
	SecondaryFallback
)

var modeNames = map[Mode]string{
	Fusion:            "fusion",
	PrimaryOnly:       "primary_only",
	SecondaryOnly:     "secondary_only",
	PrimaryFallback:   "primary_fallback",
	SecondaryFallback: "secondary_fallback",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseMode parses a mode name, case-insensitively. The empty string is Fusion.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Fusion, nil
	}
	for mode, modeName := range modeNames {
		if modeName == name {
			return mode, nil
		}
	}
	return Fusion, errors.Errorf("unknown vision mode %q", name)
}

// MarshalText renders the mode name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
