// pkg/settings/settings.go
package settings

import (
	"fmt"
	"strings"
)

// Kind identifies which headset setting a Setting carries
type Kind string

const (
	KindName            Kind = "NAME"
	KindNoiseCancelling Kind = "NOISE_CANCELLING"
	KindAutoOff         Kind = "AUTO_OFF"
	KindPromptLanguage  Kind = "PROMPT_LANGUAGE"
)

// NoiseCancelling is the noise-cancelling level
type NoiseCancelling int

const (
	NoiseCancellingHigh NoiseCancelling = iota
	NoiseCancellingLow
	NoiseCancellingOff
)

// AutoOff is the auto power-off timeout
type AutoOff int

const (
	AutoOffNever AutoOff = iota
	AutoOff5Min
	AutoOff20Min
	AutoOff40Min
	AutoOff60Min
	AutoOff180Min
)

// PromptLanguage is the voice-prompt language
type PromptLanguage int

const (
	PromptLanguageOff PromptLanguage = iota
	PromptLanguageEN
	PromptLanguageFR
	PromptLanguageIT
	PromptLanguageDE
	PromptLanguageES
	PromptLanguagePT
	PromptLanguageZH
	PromptLanguageKO
	PromptLanguageNL
	PromptLanguageJA
	PromptLanguageSV
)

type entry struct {
	name string
	code byte
}

// Wire code tables. Array length is tied to the enum so a missing member fails to compile.
var noiseCancellingTable = [...]entry{
	NoiseCancellingHigh: {"high", 0x01},
	NoiseCancellingLow:  {"low", 0x03},
	NoiseCancellingOff:  {"off", 0x00},
}

var autoOffTable = [...]entry{
	AutoOffNever:  {"never", 0},
	AutoOff5Min:   {"5", 5},
	AutoOff20Min:  {"20", 20},
	AutoOff40Min:  {"40", 40},
	AutoOff60Min:  {"60", 60},
	AutoOff180Min: {"180", 180},
}

var promptLanguageTable = [...]entry{
	PromptLanguageOff: {"off", 0x00},
	PromptLanguageEN:  {"en", 0x21},
	PromptLanguageFR:  {"fr", 0x22},
	PromptLanguageIT:  {"it", 0x23},
	PromptLanguageDE:  {"de", 0x24},
	PromptLanguageES:  {"es", 0x26},
	PromptLanguagePT:  {"pt", 0x27},
	PromptLanguageZH:  {"zh", 0x28},
	PromptLanguageKO:  {"ko", 0x29},
	PromptLanguageNL:  {"nl", 0x2E},
	PromptLanguageJA:  {"ja", 0x2F},
	PromptLanguageSV:  {"sv", 0x32},
}

// ValidationError reports a CLI value outside a closed setting set
type ValidationError struct {
	Kind    Kind
	Value   string
	Allowed []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value %q (allowed: %s)",
		strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", "-")), e.Value, strings.Join(e.Allowed, ", "))
}

func names(table []entry) []string {
	out := make([]string, len(table))
	for i, e := range table {
		out[i] = e.name
	}
	return out
}

func lookup(kind Kind, table []entry, value string) (int, error) {
	for i, e := range table {
		if e.name == value {
			return i, nil
		}
	}
	return 0, &ValidationError{Kind: kind, Value: value, Allowed: names(table)}
}

// ParseNoiseCancelling validates a noise-cancelling level name
func ParseNoiseCancelling(value string) (NoiseCancelling, error) {
	i, err := lookup(KindNoiseCancelling, noiseCancellingTable[:], value)
	return NoiseCancelling(i), err
}

// ParseAutoOff validates an auto-off value ("never" or minutes).
// Only members of the closed set are accepted; any other number is rejected.
func ParseAutoOff(value string) (AutoOff, error) {
	i, err := lookup(KindAutoOff, autoOffTable[:], value)
	return AutoOff(i), err
}

// ParsePromptLanguage validates a voice-prompt language code
func ParsePromptLanguage(value string) (PromptLanguage, error) {
	i, err := lookup(KindPromptLanguage, promptLanguageTable[:], value)
	return PromptLanguage(i), err
}

// UnknownWireCode is sent for a value outside its closed set. No table
// contains it, so the headset rejects it.
const UnknownWireCode byte = 0xFF

func at(table []entry, i int) (entry, bool) {
	if i < 0 || i >= len(table) {
		return entry{}, false
	}
	return table[i], true
}

func (n NoiseCancelling) String() string {
	if e, ok := at(noiseCancellingTable[:], int(n)); ok {
		return e.name
	}
	return fmt.Sprintf("noise-cancelling(%d)", int(n))
}

// WireCode returns the on-wire code for the level
func (n NoiseCancelling) WireCode() byte {
	if e, ok := at(noiseCancellingTable[:], int(n)); ok {
		return e.code
	}
	return UnknownWireCode
}

func (a AutoOff) String() string {
	if e, ok := at(autoOffTable[:], int(a)); ok {
		return e.name
	}
	return fmt.Sprintf("auto-off(%d)", int(a))
}

// WireCode returns the timeout in minutes, 0 meaning never
func (a AutoOff) WireCode() byte {
	if e, ok := at(autoOffTable[:], int(a)); ok {
		return e.code
	}
	return UnknownWireCode
}

// Minutes returns the timeout in minutes, 0 meaning never and -1 an unknown value
func (a AutoOff) Minutes() int {
	if e, ok := at(autoOffTable[:], int(a)); ok {
		return int(e.code)
	}
	return -1
}

func (p PromptLanguage) String() string {
	if e, ok := at(promptLanguageTable[:], int(p)); ok {
		return e.name
	}
	return fmt.Sprintf("prompt-language(%d)", int(p))
}

// WireCode returns the on-wire language code
func (p PromptLanguage) WireCode() byte {
	if e, ok := at(promptLanguageTable[:], int(p)); ok {
		return e.code
	}
	return UnknownWireCode
}

// NoiseCancellingValues lists the accepted level names
func NoiseCancellingValues() []string { return names(noiseCancellingTable[:]) }

// AutoOffValues lists the accepted auto-off values
func AutoOffValues() []string { return names(autoOffTable[:]) }

// PromptLanguageValues lists the accepted language codes
func PromptLanguageValues() []string { return names(promptLanguageTable[:]) }

// NoiseCancellingFromWire maps a wire code back to a level
func NoiseCancellingFromWire(code byte) (NoiseCancelling, bool) {
	for i, e := range noiseCancellingTable {
		if e.code == code {
			return NoiseCancelling(i), true
		}
	}
	return 0, false
}

// AutoOffFromWire maps a wire code back to a timeout
func AutoOffFromWire(code byte) (AutoOff, bool) {
	for i, e := range autoOffTable {
		if e.code == code {
			return AutoOff(i), true
		}
	}
	return 0, false
}

// PromptLanguageFromWire maps a wire code back to a language
func PromptLanguageFromWire(code byte) (PromptLanguage, bool) {
	for i, e := range promptLanguageTable {
		if e.code == code {
			return PromptLanguage(i), true
		}
	}
	return 0, false
}
