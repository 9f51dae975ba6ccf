// Package grading is the deterministic rule engine. It scores a scene from
// connectivity facts alone and is the ground truth whenever the model path is
// unused or fails.
package grading

import (
	"fmt"
	"strings"

	"github.com/assemblylab/pcbench/engine/connectivity"
	"github.com/assemblylab/pcbench/engine/domain"
	"github.com/assemblylab/pcbench/engine/graph"
	"github.com/assemblylab/pcbench/engine/lexicon"
)

// Reason tags recorded in the feedback of a rule-engine verdict.
const (
	ReasonInvalidRequest = "Requête invalide - analyse basique utilisée"
	ReasonUnavailable    = "Service IA non disponible - analyse basique utilisée"
	ReasonSaturated      = "Service IA saturé - analyse basique utilisée"
	ReasonInvalidReply   = "Réponse IA invalide - analyse basique utilisée"
	ReasonInternal       = "Erreur serveur inattendue - analyse basique utilisée"
	ReasonRules          = "Analyse déterministe"
)

// ReasonStatus tags a non-success status from the model server.
func ReasonStatus(code int) string {
	return fmt.Sprintf("Ollama API %d - analyse basique utilisée", code)
}

// Points awarded per satisfied requirement.
const (
	pointsCentralUnit    = 20
	pointsCentralPowered = 15
	pointsMonitor        = 15
	pointsMonitorData    = 15
	pointsMonitorPowered = 10
	pointsInputDevices   = 10
	pointsInputConnected = 15
	pointsStripOnWall    = 10
)

// Essentials are the component types a functional setup cannot do without.
var Essentials = []domain.ComponentType{
	domain.TypeCentralUnit, domain.TypeMonitor, domain.TypeKeyboard, domain.TypeMouse, domain.TypePowerStrip,
}

// MissingEssentials returns the essential types absent from the scene, in
// Essentials order.
func MissingEssentials(s domain.Scene) []domain.ComponentType {
	g := graph.New(s)
	var out []domain.ComponentType
	for _, t := range Essentials {
		if !g.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// MissingEssentialsIssue is the composite issue naming every missing essential.
func MissingEssentialsIssue(labels []string) string {
	return fmt.Sprintf("Configuration de base incomplète. Composants manquants: %s.", strings.Join(labels, ", "))
}

// MissingEssentialsSuggestion pairs with MissingEssentialsIssue.
func MissingEssentialsSuggestion(labels []string) string {
	return fmt.Sprintf("Pour une installation fonctionnelle, ajoutez d'abord: %s.", strings.Join(labels, ", "))
}

// Fallback grades a scene with the additive point budget. It is pure: the same
// snapshot and reason always yield the same verdict.
func Fallback(s domain.Scene, reason string) domain.Verdict {
	basic, facts := connectivity.Inspect(s)
	lx := lexicon.Default()

	v := domain.NewVerdict()
	score := 0
	issue := func(i, sugg string) {
		v.Issues = append(v.Issues, i)
		v.Suggestions = append(v.Suggestions, sugg)
	}

	if missing := MissingEssentials(s); len(missing) > 0 {
		labels := make([]string, 0, len(missing))
		for _, t := range missing {
			labels = append(labels, lx.Label(t))
		}
		issue(MissingEssentialsIssue(labels), MissingEssentialsSuggestion(labels))
	}

	if !basic.HasCentralUnit {
		issue("Aucune unité centrale n'a été placée sur la scène",
			"Ajoutez une unité centrale - c'est le composant principal de l'ordinateur")
	} else {
		score += pointsCentralUnit
		switch {
		case !basic.CentralUnitPowered:
			issue("L'unité centrale n'est pas connectée à l'alimentation",
				"Connectez l'unité centrale à une prise de la multiprise")
		case !facts.CentralUnit.ViaPowerStrip:
			score += pointsCentralPowered
			issue("L'unité centrale n'est pas branchée sur la multiprise",
				"Branchez l'unité centrale sur la multiprise")
		default:
			score += pointsCentralPowered
		}
	}

	if !basic.HasMonitor {
		issue("Aucun moniteur n'a été placé - impossible d'afficher l'interface",
			"Ajoutez un moniteur pour voir ce qui se passe sur l'ordinateur")
	} else {
		score += pointsMonitor
		switch {
		case !basic.MonitorConnected:
			issue("Le moniteur n'est pas connecté à l'unité centrale pour recevoir l'image",
				"Connectez le moniteur au port HDMI de l'unité centrale")
		case !facts.MonitorHasValidDataPath():
			score += pointsMonitorData
			issue("Le moniteur doit être relié en HDMI à l'unité centrale",
				"Utilisez un câble HDMI entre le moniteur et le port HDMI de l'unité centrale")
		default:
			score += pointsMonitorData
		}

		switch {
		case !facts.Monitor.Powered:
			issue("Le moniteur n'est pas connecté à l'alimentation",
				"Connectez le moniteur à une source d'alimentation")
		case !facts.Monitor.ViaPowerStrip:
			score += pointsMonitorPowered
			issue("Le moniteur n'est pas branché sur la multiprise",
				"Branchez le moniteur sur une prise de la multiprise")
		default:
			score += pointsMonitorPowered
		}
	}

	if !basic.HasInputDevices {
		v.Suggestions = append(v.Suggestions, "Ajoutez un clavier et une souris pour pouvoir utiliser l'ordinateur")
	} else {
		score += pointsInputDevices
		if !basic.InputDevicesConnected {
			issue("Les périphériques d'entrée ne sont pas connectés à l'unité centrale",
				"Connectez le clavier et la souris aux ports USB de l'unité centrale")
		} else {
			score += pointsInputConnected
		}
	}

	if facts.PowerStrip.Present {
		if !facts.PowerStripConnectedToWall {
			issue("La multiprise n'est pas branchée au mur", "Connectez la multiprise à la prise murale")
		} else {
			score += pointsStripOnWall
		}
	}

	if facts.AdapterStranded() {
		impacted := strings.Join(lx.SortedLabels(facts.ConnectedViaAdapter), ", ")
		issue(fmt.Sprintf("Les périphériques sont branchés à l'adaptateur USB, mais l'adaptateur n'est pas relié à l'unité centrale (périphériques concernés: %s)", impacted),
			"Branchez l'adaptateur USB sur un port USB de l'unité centrale")
	}

	v.IsValid = valid(basic, facts)
	v.Score = min(100, score)
	v.Feedback = Feedback(reason, v.Score, len(v.Issues))
	return v
}

func valid(basic connectivity.BasicResult, f connectivity.Facts) bool {
	centralOK := basic.CentralUnitPowered
	monitorPowerOK := f.Monitor.Powered
	if f.PowerStrip.Present {
		centralOK = f.CentralUnit.ViaPowerStrip
		monitorPowerOK = f.Monitor.ViaPowerStrip
	}
	return basic.HasCentralUnit && centralOK &&
		basic.HasMonitor && f.MonitorHasValidDataPath() && monitorPowerOK &&
		(!basic.HasInputDevices || basic.InputDevicesConnected) &&
		!f.AdapterStranded() &&
		(!f.PowerStrip.Present || f.PowerStripConnectedToWall)
}
