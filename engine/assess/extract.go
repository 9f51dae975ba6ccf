package assess

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/engine/reconcile"
)

// ErrInvalidReply means no JSON object could be recovered from the model text.
var ErrInvalidReply = errors.New("model reply has no JSON object")

const feedbackUnavailable = "Analyse non disponible"

var (
	thinkRe     = regexp.MustCompile(`(?is)<think>.*?</think>`)
	jsonFenceRe = regexp.MustCompile("(?is)```json[\r\n]+(.*?)```")
	fenceRe     = regexp.MustCompile("(?is)```[\r\n]+(.*?)```")
	braceRe     = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractObject recovers the JSON object in a model reply. Reasoning blocks
// are removed first; then a direct parse, a fenced block (json-tagged first)
// and the outermost brace region are tried in turn.
func ExtractObject(raw string) (map[string]any, error) {
	clean := strings.TrimSpace(thinkRe.ReplaceAllString(raw, ""))

	if obj, ok := parseObject(clean); ok {
		return obj, nil
	}
	for _, re := range []*regexp.Regexp{jsonFenceRe, fenceRe} {
		if m := re.FindStringSubmatch(clean); m != nil {
			if obj, ok := parseObject(m[1]); ok {
				return obj, nil
			}
			break
		}
	}
	if m := braceRe.FindString(clean); m != "" {
		if obj, ok := parseObject(m); ok {
			return obj, nil
		}
	}
	return nil, ErrInvalidReply
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ExtractVerdict recovers and normalises a verdict from a model reply.
func ExtractVerdict(raw string) (domain.Verdict, error) {
	obj, err := ExtractObject(raw)
	if err != nil {
		return domain.Verdict{}, err
	}
	return NormalizeVerdict(obj), nil
}

// NormalizeVerdict coerces a loosely typed model object into a Verdict:
// validity by truthiness, score clamped to [0,100], a default feedback, and
// issue or suggestion lists flattened to strings.
func NormalizeVerdict(obj map[string]any) domain.Verdict {
	v := domain.NewVerdict()
	v.IsValid = truthy(obj["isValid"])
	v.Score = domain.ClampScore(number(obj["score"]))
	v.Feedback = feedbackUnavailable
	if s, ok := obj["feedback"].(string); ok && s != "" {
		v.Feedback = s
	}
	if list, ok := obj["issues"].([]any); ok {
		v.Issues = reconcile.Flatten(list)
	}
	if list, ok := obj["suggestions"].([]any); ok {
		v.Suggestions = reconcile.Flatten(list)
	}
	return v
}

func truthy(x any) bool {
	switch v := x.(type) {
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case string:
		return v != ""
	case nil:
		return false
	default:
		return true
	}
}

func number(x any) int {
	var f float64
	switch v := x.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if v {
			f = 1
		}
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Round(math.Max(-1, math.Min(101, f))))
}
