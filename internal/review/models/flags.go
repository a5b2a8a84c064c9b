package models

// EscalationFlag marks an intake that needs a specialist before review.
type EscalationFlag string

const (
	FlagMultiJurisdictionResidency    EscalationFlag = "MULTI_JURISDICTION_RESIDENCY"
	FlagA1CertificateMissing          EscalationFlag = "A1_CERTIFICATE_MISSING"
	FlagHabitualAbodeConflict         EscalationFlag = "HABITUAL_ABODE_CONFLICT"
	FlagEmployeeMisclassificationRisk EscalationFlag = "EMPLOYEE_MISCLASSIFICATION_RISK"
	FlagComplexVATScenario            EscalationFlag = "COMPLEX_VAT_SCENARIO"
	FlagCryptoProfessionalActivity    EscalationFlag = "CRYPTO_PROFESSIONAL_ACTIVITY"
	FlagVATThresholdExceeded          EscalationFlag = "VAT_THRESHOLD_EXCEEDED"
	FlagNISSDeclarationMissing        EscalationFlag = "NISS_DECLARATION_MISSING"
)

func (f EscalationFlag) String() string { return string(f) }

// FlagStrings renders flags for the wire and the database. A nil input
// yields an empty, non-nil slice so JSON carries [] rather than null.
func FlagStrings(flags []EscalationFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

// ParseFlags converts stored flag strings back into flags.
func ParseFlags(values []string) []EscalationFlag {
	out := make([]EscalationFlag, len(values))
	for i, v := range values {
		out[i] = EscalationFlag(v)
	}
	return out
}

// SameFlags reports whether a and b hold the same flags, ignoring order.
func SameFlags(a, b []EscalationFlag) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[EscalationFlag]int, len(a))
	for _, f := range a {
		counts[f]++
	}
	for _, f := range b {
		counts[f]--
		if counts[f] < 0 {
			return false
		}
	}
	return true
}
