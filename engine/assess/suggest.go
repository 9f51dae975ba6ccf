package assess

import (
	"context"
	"fmt"
	"strings"

	"github.com/assemblylab/pcbench/engine/domain"
)

// Suggestion is a device configuration recommended for an activity.
type Suggestion struct {
	Monitor  string `json:"monitor"`
	Keyboard string `json:"keyboard"`
	Mouse    string `json:"mouse"`
	Other    string `json:"other"`
}

// Suggest asks the model which devices suit an activity such as gaming or
// video editing. Unlike Analyze it has no rule-based fallback and reports errors.
func (s *Service) Suggest(ctx context.Context, activity string) (Suggestion, error) {
	if err := domain.ValidateActivity(activity); err != nil {
		return Suggestion{}, err
	}
	if s.gen == nil {
		return Suggestion{}, ErrNoGenerator
	}

	text, err := s.generate()(ctx, SuggestionPrompt(strings.TrimSpace(activity))).Unwrap()
	if err != nil {
		return Suggestion{}, fmt.Errorf("suggest: %w", err)
	}
	obj, err := ExtractObject(text)
	if err != nil {
		return Suggestion{}, fmt.Errorf("suggest: %w", err)
	}

	sg := Suggestion{
		Monitor:  field(obj, "monitor"),
		Keyboard: field(obj, "keyboard"),
		Mouse:    field(obj, "mouse"),
		Other:    field(obj, "other"),
	}
	if sg == (Suggestion{}) {
		return Suggestion{}, fmt.Errorf("suggest: %w", ErrInvalidReply)
	}
	return sg, nil
}

// field reads a string key; lists are joined and other values formatted.
func field(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, x := range v {
			parts = append(parts, fmt.Sprint(x))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}
