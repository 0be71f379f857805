package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"based-connect/pkg/settings"
)

// requestedSetting is one setting flag as typed, before validation
type requestedSetting struct {
	kind  settings.Kind
	value string
}

// settingFlag is a repeatable flag that appends to a list shared by all
// setting flags, so that settings are applied in command-line order
type settingFlag struct {
	kind settings.Kind
	list *[]requestedSetting
}

var _ pflag.Value = (*settingFlag)(nil)

func (f *settingFlag) String() string {
	return ""
}

func (f *settingFlag) Set(value string) error {
	*f.list = append(*f.list, requestedSetting{kind: f.kind, value: value})
	return nil
}

func (f *settingFlag) Type() string {
	switch f.kind {
	case settings.KindName:
		return "name"
	case settings.KindNoiseCancelling:
		return "level"
	case settings.KindAutoOff:
		return "minutes"
	default:
		return "language"
	}
}

func registerSettingFlags(fs *pflag.FlagSet, list *[]requestedSetting) {
	fs.VarP(&settingFlag{kind: settings.KindName, list: list}, "name", "n",
		fmt.Sprintf("Change the name of the headphones (at most %d bytes)", settings.MaxNameLen))
	fs.VarP(&settingFlag{kind: settings.KindNoiseCancelling, list: list}, "noise-cancelling", "c",
		fmt.Sprintf("Change the noise cancelling level: %s", joinValues(settings.NoiseCancellingValues())))
	fs.VarP(&settingFlag{kind: settings.KindAutoOff, list: list}, "auto-off", "o",
		fmt.Sprintf("Change the auto-off time: %s", joinValues(settings.AutoOffValues())))
	fs.VarP(&settingFlag{kind: settings.KindPromptLanguage, list: list}, "prompt-language", "l",
		fmt.Sprintf("Change the voice-prompt language: %s", joinValues(settings.PromptLanguageValues())))
}

// parseSettings validates every requested value before anything is sent
func parseSettings(list []requestedSetting) ([]settings.Setting, error) {
	parsed := make([]settings.Setting, 0, len(list))
	for _, r := range list {
		s, err := settings.Parse(r.kind, r.value)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, s)
	}
	return parsed, nil
}

func joinValues(values []string) string {
	return strings.Join(values, ", ")
}
