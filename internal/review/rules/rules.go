// Package rules derives escalation flags and the ambiguity score from an
// intake answer set. Everything here is pure: missing answers never
// trigger a rule.
package rules

import (
	"strings"

	"expatdesk/internal/review/models"
)

// Rule binds a flag to the condition that raises it.
type Rule struct {
	Flag    models.EscalationFlag
	Keys    []models.QuestionKey
	Summary string
	Applies func(a models.Answers) bool
}

// Table lists every rule in evaluation order. Evaluate returns flags in
// this order.
var Table = []Rule{
	{
		Flag:    models.FlagMultiJurisdictionResidency,
		Keys:    []models.QuestionKey{models.KeyOtherTaxResidencies},
		Summary: "Client reports tax residency in another country; tie-breaker rules apply.",
		Applies: func(a models.Answers) bool {
			return a.Is(models.KeyOtherTaxResidencies, "yes")
		},
	},
	{
		Flag:    models.FlagA1CertificateMissing,
		Keys:    []models.QuestionKey{models.KeyA1CertificateStatus, models.KeyForeignSocialSecurity},
		Summary: "Contributing to a foreign social security system without an A1 certificate.",
		Applies: func(a models.Answers) bool {
			return a.Is(models.KeyA1CertificateStatus, "no") && a.Is(models.KeyForeignSocialSecurity, "yes")
		},
	},
	{
		Flag:    models.FlagHabitualAbodeConflict,
		Keys:    []models.QuestionKey{models.KeyAccommodationType, models.KeyIntendedDuration},
		Summary: "Long-term lease suggests habitual abode despite a stay under 183 days.",
		Applies: func(a models.Answers) bool {
			return a.Is(models.KeyAccommodationType, "long_term_lease") && a.Is(models.KeyIntendedDuration, "less_than_183_days")
		},
	},
	{
		Flag:    models.FlagEmployeeMisclassificationRisk,
		Keys:    []models.QuestionKey{models.KeySingleClientDependency},
		Summary: "Over 80% of income from one client; economic dependency contributions may apply.",
		Applies: func(a models.Answers) bool {
			return a.Is(models.KeySingleClientDependency, "yes_over_80")
		},
	},
	{
		Flag:    models.FlagComplexVATScenario,
		Keys:    []models.QuestionKey{models.KeyClientType},
		Summary: "Cross-border B2C or high-volume mixed invoicing needs OSS or place-of-supply review.",
		Applies: func(a models.Answers) bool {
			return a.Is(models.KeyClientType, "b2c_eu") || a.Is(models.KeyClientType, "mixed_high_volume")
		},
	},
	{
		Flag:    models.FlagCryptoProfessionalActivity,
		Keys:    []models.QuestionKey{models.KeyCryptoActivity},
		Summary: "Active crypto trading may be taxed as professional income.",
		Applies: func(a models.Answers) bool {
			return a.Is(models.KeyCryptoActivity, "active_trading")
		},
	},
	{
		Flag:    models.FlagVATThresholdExceeded,
		Keys:    []models.QuestionKey{models.KeyEstimatedAnnualTurnover, models.KeyVATRegistrationStatus},
		Summary: "Turnover above the VAT exemption threshold without VAT registration.",
		Applies: func(a models.Answers) bool {
			over := a.Is(models.KeyEstimatedAnnualTurnover, "25k_50k") || a.Is(models.KeyEstimatedAnnualTurnover, "over_50k")
			return over && a.Is(models.KeyVATRegistrationStatus, "no")
		},
	},
	{
		Flag:    models.FlagNISSDeclarationMissing,
		Keys:    []models.QuestionKey{models.KeySocialSecurityRegistered, models.KeyQuarterlyDeclarationsFiled},
		Summary: "Registered with Segurança Social but quarterly declarations are not filed.",
		Applies: func(a models.Answers) bool {
			return a.Is(models.KeySocialSecurityRegistered, "yes") && a.Is(models.KeyQuarterlyDeclarationsFiled, "no")
		},
	},
}

// Evaluate returns the flags raised by answers, in table order. The result
// is never nil.
func Evaluate(answers models.Answers) []models.EscalationFlag {
	flags := []models.EscalationFlag{}
	for _, r := range Table {
		if r.Applies(answers) {
			flags = append(flags, r.Flag)
		}
	}
	return flags
}

// Describe returns the operator summary for flag.
func Describe(flag models.EscalationFlag) (string, bool) {
	for _, r := range Table {
		if r.Flag == flag {
			return r.Summary, true
		}
	}
	return "", false
}

var ambiguousValues = map[string]bool{
	"":         true,
	"not_sure": true,
	"unsure":   true,
	"unknown":  true,
}

// AmbiguityScore counts string answers the client could not settle. Choice
// and free-text answers are both scanned; list and boolean answers are not.
func AmbiguityScore(answers models.Answers) int {
	score := 0
	for _, v := range answers {
		text, ok := v.(models.Text)
		if !ok {
			continue
		}
		if ambiguousValues[strings.ToLower(strings.TrimSpace(string(text)))] {
			score++
		}
	}
	return score
}

// Assess bundles Evaluate and AmbiguityScore.
func Assess(answers models.Answers) models.Assessment {
	return models.Assessment{
		EscalationFlags: Evaluate(answers),
		AmbiguityScore:  AmbiguityScore(answers),
	}
}
