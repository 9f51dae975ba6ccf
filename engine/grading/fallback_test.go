package grading

import (
	"strings"
	"testing"

	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wire struct {
	from, port string
	kind       domain.ConnectionKind
}

var types = map[string]domain.ComponentType{
	"cu": domain.TypeCentralUnit, "mon": domain.TypeMonitor, "kbd": domain.TypeKeyboard,
	"mouse": domain.TypeMouse, "strip": domain.TypePowerStrip, "ad": domain.TypeAdapter,
}

func build(ids []string, wires ...wire) domain.Scene {
	s := domain.Scene{Connections: map[string][]domain.Connection{}}
	for _, id := range ids {
		s.Components = append(s.Components, domain.Component{ID: id, Type: types[id]})
	}
	for _, w := range wires {
		s.Connections[w.from] = append(s.Connections[w.from], domain.Connection{ToPortID: w.port, Kind: w.kind})
	}
	return s
}

var (
	allFive   = []string{"cu", "mon", "kbd", "mouse", "strip"}
	cuOnStrip = wire{"cu", "power-strip-1", domain.KindPower}
	monPower  = wire{"mon", "power-strip-2", domain.KindPower}
	monHDMI   = wire{"mon", "hdmi1", domain.KindData}
	kbdUSB    = wire{"kbd", "usb1", domain.KindData}
	mouseUSB  = wire{"mouse", "usb2", domain.KindData}
	stripWall = wire{"strip", "wall-outlet", domain.KindPower}
)

func minimalBuild() domain.Scene {
	return build(allFive, cuOnStrip, monPower, monHDMI, kbdUSB, mouseUSB, stripWall)
}

func hasIssue(v domain.Verdict, substr string) bool {
	for _, i := range v.Issues {
		if strings.Contains(i, substr) {
			return true
		}
	}
	return false
}

func TestFallback_EmptyScene(t *testing.T) {
	v := Fallback(domain.Scene{}, ReasonInvalidRequest)
	assert.False(t, v.IsValid)
	assert.LessOrEqual(t, v.Score, 5)
	require.NotEmpty(t, v.Issues)
	assert.Equal(t,
		"Configuration de base incomplète. Composants manquants: unité centrale, moniteur, clavier, souris, multiprise.",
		v.Issues[0])
	assert.True(t, strings.HasPrefix(v.Feedback, "["+ReasonInvalidRequest+"] "))
	assert.NotContains(t, v.Feedback, "Tous les composants")
}

func TestFallback_MinimalValidBuild(t *testing.T) {
	v := Fallback(minimalBuild(), ReasonRules)
	assert.True(t, v.IsValid)
	assert.Equal(t, 100, v.Score)
	assert.Empty(t, v.Issues)
	assert.NotNil(t, v.Issues)
	assert.Equal(t, "["+ReasonRules+"] "+fallbackFeedback[TierExcellent]+allConnectedClause, v.Feedback)
}

func TestFallback_AdapterStranded(t *testing.T) {
	s := build(append(allFive, "ad"),
		cuOnStrip, monPower, monHDMI, stripWall,
		wire{"kbd", "adapter-port1", domain.KindData},
		wire{"mouse", "adapter-port2", domain.KindData},
	)
	v := Fallback(s, ReasonRules)
	assert.False(t, v.IsValid)
	require.True(t, hasIssue(v, "l'adaptateur n'est pas relié"))
	assert.True(t, hasIssue(v, "clavier, souris"))
}

func TestFallback_PowerStripUnplugged(t *testing.T) {
	v := Fallback(build(allFive, cuOnStrip, monPower, monHDMI, kbdUSB, mouseUSB), ReasonRules)
	assert.False(t, v.IsValid)
	assert.Equal(t, []string{"La multiprise n'est pas branchée au mur"}, v.Issues)

	// Without input devices the budget stays under the cap, so the strip
	// penalty is visible in the score.
	noInput := []string{"cu", "mon", "strip"}
	plugged := Fallback(build(noInput, cuOnStrip, monPower, monHDMI, stripWall), ReasonRules)
	unplugged := Fallback(build(noInput, cuOnStrip, monPower, monHDMI), ReasonRules)
	assert.Equal(t, pointsStripOnWall, plugged.Score-unplugged.Score)
	assert.False(t, hasIssue(unplugged, "unité centrale"))
	assert.False(t, hasIssue(unplugged, "moniteur n'est pas"))
}

func TestFallback_PowerNotViaStrip(t *testing.T) {
	s := build(allFive,
		wire{"cu", "wall-outlet", domain.KindPower},
		monPower, monHDMI, kbdUSB, mouseUSB,
		wire{"strip", "power-strip-4", domain.KindPower},
	)
	v := Fallback(s, ReasonRules)
	assert.False(t, v.IsValid)
	assert.Contains(t, v.Issues, "L'unité centrale n'est pas branchée sur la multiprise")
	assert.Contains(t, v.Issues, "La multiprise n'est pas branchée au mur")
}

func TestFallback_MonitorDataNotHDMI(t *testing.T) {
	s := build(allFive, cuOnStrip, monPower, wire{"mon", "usb3", domain.KindData}, kbdUSB, mouseUSB, stripWall)
	v := Fallback(s, ReasonRules)
	assert.False(t, v.IsValid)
	assert.Equal(t, []string{"Le moniteur doit être relié en HDMI à l'unité centrale"}, v.Issues)
	assert.Equal(t, 100, v.Score)
}

func TestFallback_MonitorThroughLinkedAdapter(t *testing.T) {
	s := build(append(allFive, "ad"),
		cuOnStrip, monPower, kbdUSB, mouseUSB, stripWall,
		wire{"mon", "adapter-hdmi1", domain.KindData},
		wire{"ad", "usb4", domain.KindData},
	)
	v := Fallback(s, ReasonRules)
	assert.True(t, v.IsValid)
	assert.Empty(t, v.Issues)
}

func TestFallback_NoInputDevicesOnlySuggests(t *testing.T) {
	s := build([]string{"cu", "mon"}, wire{"cu", "wall-outlet", domain.KindPower}, monHDMI,
		wire{"mon", "wall-outlet", domain.KindPower})
	v := Fallback(s, ReasonRules)
	assert.Contains(t, v.Suggestions, "Ajoutez un clavier et une souris pour pouvoir utiliser l'ordinateur")
	assert.False(t, hasIssue(v, "périphériques d'entrée"))
	// No strip is placed, so direct power is acceptable for validity; the
	// composite issue still names the missing essentials.
	assert.True(t, v.IsValid)
	assert.True(t, hasIssue(v, "clavier, souris, multiprise"))
}

func TestFallback_Idempotent(t *testing.T) {
	s := build(allFive, cuOnStrip, monHDMI)
	assert.Equal(t, Fallback(s, ReasonRules), Fallback(s, ReasonRules))
}

func TestFallback_Monotonic(t *testing.T) {
	all := []wire{cuOnStrip, monPower, monHDMI, kbdUSB, mouseUSB, stripWall}
	var wires []wire
	prev := Fallback(build(allFive), ReasonRules)
	for _, w := range all {
		wires = append(wires, w)
		next := Fallback(build(allFive, wires...), ReasonRules)
		assert.GreaterOrEqual(t, next.Score, prev.Score, "adding %v", w)
		assert.LessOrEqual(t, len(next.Issues), len(prev.Issues), "adding %v", w)
		prev = next
	}
	assert.True(t, prev.IsValid)
}

func TestFeedbackTiers(t *testing.T) {
	tests := []struct {
		score int
		want  Tier
	}{{100, TierExcellent}, {80, TierExcellent}, {79, TierGood}, {60, TierGood}, {40, TierFair}, {39, TierLow}, {0, TierLow}}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierOf(tt.score), "score %d", tt.score)
	}
	assert.Equal(t, "[x] "+fallbackFeedback[TierLow], Feedback("x", 10, 2))
	assert.Equal(t, "Ollama API 503 - analyse basique utilisée", ReasonStatus(503))
}

func TestReconciledFeedback(t *testing.T) {
	assert.Equal(t, reconciledFeedback[TierExcellent], ReconciledFeedback(85, []string{"a"}))
	assert.Equal(t, reconciledFeedback[TierLow], ReconciledFeedback(10, nil))
	assert.Equal(t, reconciledFeedback[TierLow]+" (a; b; c)", ReconciledFeedback(10, []string{"a", "b", "c", "d"}))
}
