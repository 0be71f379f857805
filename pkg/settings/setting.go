// pkg/settings/setting.go
package settings

import "fmt"

// Setting is one requested change; exactly one value field is meaningful, selected by Kind
type Setting struct {
	Kind            Kind
	Name            DeviceName
	NoiseCancelling NoiseCancelling
	AutoOff         AutoOff
	PromptLanguage  PromptLanguage
}

// NameSetting builds a rename request
func NameSetting(name DeviceName) Setting {
	return Setting{Kind: KindName, Name: name}
}

// NoiseCancellingSetting builds a noise-cancelling request
func NoiseCancellingSetting(level NoiseCancelling) Setting {
	return Setting{Kind: KindNoiseCancelling, NoiseCancelling: level}
}

// AutoOffSetting builds an auto-off request
func AutoOffSetting(timeout AutoOff) Setting {
	return Setting{Kind: KindAutoOff, AutoOff: timeout}
}

// PromptLanguageSetting builds a prompt language request
func PromptLanguageSetting(language PromptLanguage) Setting {
	return Setting{Kind: KindPromptLanguage, PromptLanguage: language}
}

// Parse validates a raw CLI value for the given kind
func Parse(kind Kind, value string) (Setting, error) {
	switch kind {
	case KindName:
		return NameSetting(NewDeviceName(value)), nil
	case KindNoiseCancelling:
		nc, err := ParseNoiseCancelling(value)
		if err != nil {
			return Setting{}, err
		}
		return NoiseCancellingSetting(nc), nil
	case KindAutoOff:
		ao, err := ParseAutoOff(value)
		if err != nil {
			return Setting{}, err
		}
		return AutoOffSetting(ao), nil
	case KindPromptLanguage:
		pl, err := ParsePromptLanguage(value)
		if err != nil {
			return Setting{}, err
		}
		return PromptLanguageSetting(pl), nil
	default:
		return Setting{}, fmt.Errorf("unknown setting kind: %s", kind)
	}
}

// Payload returns the wire payload of the setting
func (s Setting) Payload() []byte {
	switch s.Kind {
	case KindName:
		return s.Name.Bytes()
	case KindNoiseCancelling:
		return []byte{s.NoiseCancelling.WireCode()}
	case KindAutoOff:
		return []byte{s.AutoOff.WireCode()}
	case KindPromptLanguage:
		return []byte{s.PromptLanguage.WireCode()}
	default:
		return nil
	}
}

// Value returns the human-readable value
func (s Setting) Value() string {
	switch s.Kind {
	case KindName:
		return s.Name.String()
	case KindNoiseCancelling:
		return s.NoiseCancelling.String()
	case KindAutoOff:
		return s.AutoOff.String()
	case KindPromptLanguage:
		return s.PromptLanguage.String()
	default:
		return ""
	}
}

func (s Setting) String() string {
	return fmt.Sprintf("%s=%s", s.Kind, s.Value())
}
