package grading

import "strings"

// Tier is one of the four score bands used to phrase feedback.
type Tier int

const (
	TierLow Tier = iota
	TierFair
	TierGood
	TierExcellent
)

// TierOf maps a score to its band: >=80, >=60, >=40, else.
func TierOf(score int) Tier {
	switch {
	case score >= 80:
		return TierExcellent
	case score >= 60:
		return TierGood
	case score >= 40:
		return TierFair
	default:
		return TierLow
	}
}

var fallbackFeedback = map[Tier]string{
	TierExcellent: "Excellent travail ! Votre installation informatique est bien configurée et fonctionnelle.",
	TierGood:      "Bonne installation ! Il reste quelques améliorations à apporter pour une configuration optimale.",
	TierFair:      "Installation correcte mais incomplète. Vérifiez les connexions manquantes.",
	TierLow:       "L'installation nécessite des améliorations importantes pour être fonctionnelle.",
}

const allConnectedClause = " Tous les composants essentiels sont correctement connectés."

// Feedback phrases a rule-engine verdict: the reason tag in brackets, the tier
// sentence, and a closing clause when nothing is wrong.
func Feedback(reason string, score int, issues int) string {
	msg := "[" + reason + "] " + fallbackFeedback[TierOf(score)]
	if issues == 0 {
		msg += allConnectedClause
	}
	return msg
}

var reconciledFeedback = map[Tier]string{
	TierExcellent: "Excellent travail ! Votre installation est globalement correcte.",
	TierGood:      "Bonne installation, quelques améliorations restent nécessaires.",
	TierFair:      "Installation partiellement correcte. Certaines connexions manquent.",
	TierLow:       "Installation à améliorer. Plusieurs connexions essentielles sont absentes.",
}

// ReconciledFeedback phrases an audited verdict. In the lowest band the first
// three issues are appended in parentheses.
func ReconciledFeedback(score int, issues []string) string {
	tier := TierOf(score)
	msg := reconciledFeedback[tier]
	if tier == TierLow && len(issues) > 0 {
		msg += " (" + strings.Join(issues[:min(3, len(issues))], "; ") + ")"
	}
	return msg
}
