// Package lexicon holds the French labels and bilingual keyword tables used by
// grading and reconciliation. The tables are data, decoded from an embedded
// YAML document, so new phrasings can be covered without touching logic.
package lexicon

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/assemblylab/pcbench/engine/domain"
)

//go:embed lexicon.yaml
var defaultYAML []byte

// Rule drops an issue when condition When holds and the issue mentions every
// family in All.
type Rule struct {
	When string   `yaml:"when"`
	All  []string `yaml:"all"`
}

// Lexicon is an immutable set of labels, keyword families and prune rules.
type Lexicon struct {
	Labels   map[domain.ComponentType]string `yaml:"labels"`
	Families map[string][]string             `yaml:"families"`
	Prune    []Rule                          `yaml:"prune"`
}

// Parse decodes a lexicon document. Keywords are lowercased and every rule
// must reference known families.
func Parse(data []byte) (*Lexicon, error) {
	var lx Lexicon
	if err := yaml.Unmarshal(data, &lx); err != nil {
		return nil, fmt.Errorf("lexicon: %w", err)
	}
	for name, words := range lx.Families {
		for i, w := range words {
			words[i] = strings.ToLower(w)
		}
		lx.Families[name] = words
	}
	for i, r := range lx.Prune {
		if r.When == "" || len(r.All) == 0 {
			return nil, fmt.Errorf("lexicon: prune rule %d is incomplete", i)
		}
		for _, f := range r.All {
			if _, ok := lx.Families[f]; !ok {
				return nil, fmt.Errorf("lexicon: prune rule %d: unknown family %q", i, f)
			}
		}
	}
	return &lx, nil
}

var loadDefault = sync.OnceValue(func() *Lexicon {
	lx, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return lx
})

// Default returns the embedded lexicon.
func Default() *Lexicon { return loadDefault() }

// Label returns the French label of t, or t itself when none is known.
func (lx *Lexicon) Label(t domain.ComponentType) string {
	if l, ok := lx.Labels[t]; ok {
		return l
	}
	return string(t)
}

// SortedLabels labels every type and sorts the result.
func (lx *Lexicon) SortedLabels(types []domain.ComponentType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, lx.Label(t))
	}
	slices.Sort(out)
	return out
}

// Mentions reports whether text contains a keyword of every named family.
// Matching is case-insensitive; an unknown family never matches.
func (lx *Lexicon) Mentions(text string, families ...string) bool {
	m := strings.ToLower(text)
	for _, f := range families {
		words, ok := lx.Families[f]
		if !ok {
			return false
		}
		if !slices.ContainsFunc(words, func(w string) bool { return strings.Contains(m, w) }) {
			return false
		}
	}
	return true
}

// Contradicted reports whether some prune rule whose condition holds matches text.
func (lx *Lexicon) Contradicted(text string, holds func(cond string) bool) bool {
	for _, r := range lx.Prune {
		if holds(r.When) && lx.Mentions(text, r.All...) {
			return true
		}
	}
	return false
}
