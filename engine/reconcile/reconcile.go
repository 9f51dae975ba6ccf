// Package reconcile audits a model-written verdict against connectivity facts.
// Contradicted claims are dropped, missed faults are added, and the score,
// validity and feedback are recomputed deterministically.
package reconcile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/assemblylab/pcbench/engine/connectivity"
	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/engine/grading"
	"github.com/assemblylab/pcbench/engine/lexicon"
)

// Penalties applied to the model score per ground-truth violation.
const (
	PenaltyMissingEssential = 15
	PenaltyNoCentralUnit    = 40
	PenaltyNoMonitor        = 25
	PenaltyStripNotOnWall   = 10
	PenaltyCentralUnpowered = 30
	PenaltyNotViaStrip      = 10
	PenaltyMonitorUnpowered = 20
	PenaltyNoDisplayPath    = 30
	PenaltyAdapterStranded  = 25
	PenaltyUnlinkedDevice   = 8
	MaxUnlinkedPenalty      = 30
	PenaltyNothingConnected = 30
)

// Issue strings added when the model missed a fault.
const (
	IssueNoCentralUnit    = "Aucune unité centrale n'a été placée sur la scène."
	IssueNoMonitor        = "Aucun moniteur n'a été placé."
	IssueStripNotOnWall   = "La multiprise n'est pas branchée à la prise murale."
	IssueCentralUnpowered = "L'unité centrale n'est pas connectée à l'alimentation."
	IssueCentralNotStrip  = "L'unité centrale n'est pas branchée sur la multiprise."
	IssueMonitorUnpowered = "Le moniteur n'est pas alimenté."
	IssueMonitorNotStrip  = "Le moniteur n'est pas branché sur la multiprise."
	IssueNoDisplayPath    = "Le moniteur n'est pas connecté au port HDMI de l'unité centrale."
)

// Prune condition names referenced by the lexicon rules.
const (
	CondPowerStripAbsent  = "power-strip-absent"
	CondMonitorAbsent     = "monitor-absent"
	CondCentralUnitAbsent = "central-unit-absent"
	CondPowerStripOnWall  = "power-strip-on-wall"
	CondMonitorDataPath   = "monitor-data-path"
	CondAdapterLinked     = "adapter-linked"
	CondCentralPowered    = "central-unit-powered"
)

// Conditions evaluates every prune condition against the facts.
func Conditions(basic connectivity.BasicResult, f connectivity.Facts) map[string]bool {
	return map[string]bool{
		CondPowerStripAbsent:  !f.PowerStrip.Present,
		CondMonitorAbsent:     !basic.HasMonitor,
		CondCentralUnitAbsent: !basic.HasCentralUnit,
		CondPowerStripOnWall:  f.PowerStripConnectedToWall,
		CondMonitorDataPath:   f.MonitorHasValidDataPath(),
		CondAdapterLinked:     f.Adapter.Present && f.AdapterConnectedToCentral,
		CondCentralPowered:    f.CentralUnit.Powered,
	}
}

// Prune drops the issues the facts contradict, keeping order.
func Prune(lx *lexicon.Lexicon, issues []string, conds map[string]bool) []string {
	out := make([]string, 0, len(issues))
	for _, msg := range issues {
		if !lx.Contradicted(msg, func(c string) bool { return conds[c] }) {
			out = append(out, msg)
		}
	}
	return out
}

type audit struct {
	issues      []string
	suggestions []string
	adjustment  int
}

func (a *audit) add(issue, suggestion string, penalty int) {
	if issue != "" && !slices.Contains(a.issues, issue) {
		a.issues = append(a.issues, issue)
	}
	a.suggest(suggestion)
	a.adjustment -= penalty
}

func (a *audit) suggest(s string) {
	if s != "" && !slices.Contains(a.suggestions, s) {
		a.suggestions = append(a.suggestions, s)
	}
}

// Apply reconciles a model verdict with the scene. Model feedback is discarded.
func Apply(ai domain.Verdict, s domain.Scene) domain.Verdict {
	return ApplyWith(lexicon.Default(), ai, s)
}

// ApplyWith is Apply with an explicit lexicon.
func ApplyWith(lx *lexicon.Lexicon, ai domain.Verdict, s domain.Scene) domain.Verdict {
	basic, f := connectivity.Inspect(s)

	a := &audit{
		issues:      Prune(lx, ai.Issues, Conditions(basic, f)),
		suggestions: slices.Clone(ai.Suggestions),
	}
	if a.suggestions == nil {
		a.suggestions = []string{}
	}

	if missing := grading.MissingEssentials(s); len(missing) > 0 {
		labels := make([]string, 0, len(missing))
		for _, t := range missing {
			labels = append(labels, lx.Label(t))
		}
		a.add(grading.MissingEssentialsIssue(labels), grading.MissingEssentialsSuggestion(labels),
			PenaltyMissingEssential*len(missing))
	}

	if !basic.HasCentralUnit {
		a.add(IssueNoCentralUnit, "Ajoutez une unité centrale pour pouvoir faire fonctionner les périphériques.", PenaltyNoCentralUnit)
	}
	if !basic.HasMonitor {
		a.add(IssueNoMonitor, "Ajoutez un moniteur et reliez-le en HDMI (directement ou via l'adaptateur).", PenaltyNoMonitor)
	}

	if f.PowerStrip.Present && !f.PowerStripConnectedToWall {
		a.add(IssueStripNotOnWall, "Branchez la multiprise à la prise murale pour alimenter les équipements.", PenaltyStripNotOnWall)
	}

	if f.CentralUnit.Present {
		switch {
		case !f.CentralUnit.Powered:
			a.add(IssueCentralUnpowered, "Branchez l'unité centrale sur une prise de la multiprise.", PenaltyCentralUnpowered)
		case !f.CentralUnit.ViaPowerStrip:
			a.add(IssueCentralNotStrip, "Connectez l'unité centrale à une prise de la multiprise plutôt que directement ailleurs.", PenaltyNotViaStrip)
		}
	}

	if f.Monitor.Present {
		switch {
		case !f.Monitor.Powered:
			a.add(IssueMonitorUnpowered, "Branchez le moniteur à la multiprise.", PenaltyMonitorUnpowered)
		case !f.Monitor.ViaPowerStrip:
			a.add(IssueMonitorNotStrip, "Connectez le moniteur à une prise de la multiprise.", PenaltyNotViaStrip)
		}
		if !f.MonitorHasValidDataPath() {
			a.add(IssueNoDisplayPath, "Reliez le moniteur au port HDMI de l'unité centrale avec un câble HDMI.", PenaltyNoDisplayPath)
		}
	}

	if f.AdapterStranded() {
		impacted := strings.Join(lx.SortedLabels(f.ConnectedViaAdapter), ", ")
		a.add(AdapterStrandedIssue(impacted),
			fmt.Sprintf("Ces périphériques ne fonctionneront pas tant que l'adaptateur n'est pas relié à l'unité centrale: %s.", impacted),
			PenaltyAdapterStranded)
		a.suggest("Branchez l'adaptateur USB sur un port USB de l'unité centrale.")
	}

	if len(f.PresentDevices) > 0 {
		if connected := f.DataConnectedPeripherals(); len(connected) > 0 {
			a.suggest(fmt.Sprintf("Périphériques de données connectés: %s.", strings.Join(lx.SortedLabels(connected), ", ")))
		}
		if unlinked := f.UnlinkedDevices(); len(unlinked) > 0 {
			names := strings.Join(lx.SortedLabels(unlinked), ", ")
			a.add(fmt.Sprintf("Périphériques non reliés pour les données: %s.", names),
				fmt.Sprintf("Reliez ces périphériques à l'unité centrale (directement USB/HDMI ou via l'adaptateur): %s.", names),
				min(MaxUnlinkedPenalty, PenaltyUnlinkedDevice*len(unlinked)))
		}
	}

	score := ai.Score + a.adjustment
	if f.NothingConnected() {
		score -= PenaltyNothingConnected
	}

	v := domain.NewVerdict()
	v.Score = domain.ClampScore(score)
	v.Issues = a.issues
	v.Suggestions = a.suggestions
	v.IsValid = (v.Score >= 80 && len(v.Issues) == 0) || (ai.IsValid && a.adjustment >= 0)
	v.Feedback = grading.ReconciledFeedback(v.Score, v.Issues)
	return v
}

// AdapterStrandedIssue names the devices cut off by an unlinked adapter.
func AdapterStrandedIssue(impacted string) string {
	return fmt.Sprintf("L'adaptateur USB est utilisé mais n'est pas connecté à l'unité centrale (périphériques concernés: %s).", impacted)
}
