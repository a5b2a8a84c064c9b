package models

// Section is one wizard step of the intake questionnaire.
type Section string

const (
	SectionResidency            Section = "residency"
	SectionTaxResidency         Section = "tax_residency"
	SectionSocialSecurity       Section = "social_security"
	SectionProfessionalActivity Section = "professional_activity"
	SectionVATInvoicing         Section = "vat_invoicing"
	SectionInvestments          Section = "investments"
	SectionDeclaration          Section = "declaration"
)

// Sections lists every section in wizard order.
var Sections = []Section{
	SectionResidency,
	SectionTaxResidency,
	SectionSocialSecurity,
	SectionProfessionalActivity,
	SectionVATInvoicing,
	SectionInvestments,
	SectionDeclaration,
}

// Index returns the wizard position of s, or -1 for an unknown section.
func (s Section) Index() int {
	for i, sec := range Sections {
		if sec == s {
			return i
		}
	}
	return -1
}

func (s Section) IsValid() bool { return s.Index() >= 0 }

func (s Section) String() string { return string(s) }

// AnswerKind is the value shape a question accepts.
type AnswerKind string

const (
	KindChoice AnswerKind = "choice"
	KindText   AnswerKind = "text"
	KindMulti  AnswerKind = "multi"
	KindFlag   AnswerKind = "flag"
)

// QuestionKey identifies one question of the catalog.
type QuestionKey string

const (
	KeyArrivalDate         QuestionKey = "arrival_date"
	KeyResidencyPermitType QuestionKey = "residency_permit_type"
	KeyAccommodationType   QuestionKey = "accommodation_type"
	KeyIntendedDuration    QuestionKey = "intended_duration"

	KeyNIFStatus             QuestionKey = "nif_status"
	KeyOtherTaxResidencies   QuestionKey = "other_tax_residencies"
	KeyTaxResidencyCountries QuestionKey = "tax_residency_countries"
	KeyNHRIFICIStatus        QuestionKey = "nhr_ifici_status"

	KeySocialSecurityRegistered   QuestionKey = "social_security_registered"
	KeyForeignSocialSecurity      QuestionKey = "foreign_social_security"
	KeyA1CertificateStatus        QuestionKey = "a1_certificate_status"
	KeyQuarterlyDeclarationsFiled QuestionKey = "quarterly_declarations_filed"

	KeyActivityType           QuestionKey = "activity_type"
	KeyActivityOpened         QuestionKey = "activity_opened"
	KeySingleClientDependency QuestionKey = "single_client_dependency"
	KeyCAECodes               QuestionKey = "cae_codes"

	KeyClientType              QuestionKey = "client_type"
	KeyEstimatedAnnualTurnover QuestionKey = "estimated_annual_turnover"
	KeyVATRegistrationStatus   QuestionKey = "vat_registration_status"
	KeyInvoicingSoftware       QuestionKey = "invoicing_software"

	KeyCryptoActivity            QuestionKey = "crypto_activity"
	KeyForeignInvestmentAccounts QuestionKey = "foreign_investment_accounts"
	KeyForeignIncomeSources      QuestionKey = "foreign_income_sources"
	KeyRentalIncome              QuestionKey = "rental_income"

	KeyAdditionalNotes      QuestionKey = "additional_notes"
	KeyAccuracyConfirmation QuestionKey = "accuracy_confirmation"
)

// Question describes one catalog entry.
type Question struct {
	Key     QuestionKey
	Section Section
	Kind    AnswerKind
	// Options lists the values the wizard offers for choice and multi
	// questions. The server does not enforce membership.
	Options []string
}

var yesNoUnsure = []string{"yes", "no", "not_sure"}

// Catalog lists every question in wizard order.
var Catalog = []Question{
	{Key: KeyArrivalDate, Section: SectionResidency, Kind: KindText},
	{Key: KeyResidencyPermitType, Section: SectionResidency, Kind: KindChoice,
		Options: []string{"eu_citizen", "d7", "digital_nomad", "golden_visa", "work_permit", "other", "not_sure"}},
	{Key: KeyAccommodationType, Section: SectionResidency, Kind: KindChoice,
		Options: []string{"owned", "long_term_lease", "short_term_rental", "staying_with_others", "not_sure"}},
	{Key: KeyIntendedDuration, Section: SectionResidency, Kind: KindChoice,
		Options: []string{"less_than_183_days", "more_than_183_days", "permanent", "not_sure"}},

	{Key: KeyNIFStatus, Section: SectionTaxResidency, Kind: KindChoice,
		Options: []string{"resident_nif", "non_resident_nif", "no_nif", "not_sure"}},
	{Key: KeyOtherTaxResidencies, Section: SectionTaxResidency, Kind: KindChoice, Options: yesNoUnsure},
	{Key: KeyTaxResidencyCountries, Section: SectionTaxResidency, Kind: KindMulti},
	{Key: KeyNHRIFICIStatus, Section: SectionTaxResidency, Kind: KindChoice,
		Options: []string{"nhr_active", "ifici_applied", "ifici_active", "none", "not_sure"}},

	{Key: KeySocialSecurityRegistered, Section: SectionSocialSecurity, Kind: KindChoice, Options: yesNoUnsure},
	{Key: KeyForeignSocialSecurity, Section: SectionSocialSecurity, Kind: KindChoice, Options: yesNoUnsure},
	{Key: KeyA1CertificateStatus, Section: SectionSocialSecurity, Kind: KindChoice,
		Options: []string{"yes", "no", "applied", "not_sure"}},
	{Key: KeyQuarterlyDeclarationsFiled, Section: SectionSocialSecurity, Kind: KindChoice, Options: yesNoUnsure},

	{Key: KeyActivityType, Section: SectionProfessionalActivity, Kind: KindChoice,
		Options: []string{"freelancer", "sole_trader", "company", "employee", "not_sure"}},
	{Key: KeyActivityOpened, Section: SectionProfessionalActivity, Kind: KindChoice, Options: yesNoUnsure},
	{Key: KeySingleClientDependency, Section: SectionProfessionalActivity, Kind: KindChoice,
		Options: []string{"yes_over_80", "yes_50_80", "no", "not_sure"}},
	{Key: KeyCAECodes, Section: SectionProfessionalActivity, Kind: KindMulti},

	{Key: KeyClientType, Section: SectionVATInvoicing, Kind: KindChoice,
		Options: []string{"b2b_pt", "b2b_eu", "b2b_non_eu", "b2c_pt", "b2c_eu", "mixed_high_volume", "not_sure"}},
	{Key: KeyEstimatedAnnualTurnover, Section: SectionVATInvoicing, Kind: KindChoice,
		Options: []string{"under_15k", "15k_25k", "25k_50k", "over_50k", "not_sure"}},
	{Key: KeyVATRegistrationStatus, Section: SectionVATInvoicing, Kind: KindChoice,
		Options: []string{"yes", "no", "exempt_art53", "not_sure"}},
	{Key: KeyInvoicingSoftware, Section: SectionVATInvoicing, Kind: KindText},

	{Key: KeyCryptoActivity, Section: SectionInvestments, Kind: KindChoice,
		Options: []string{"none", "holding", "occasional_trading", "active_trading", "not_sure"}},
	{Key: KeyForeignInvestmentAccounts, Section: SectionInvestments, Kind: KindMulti,
		Options: []string{"brokerage", "bank_savings", "pension", "crypto_exchange", "none"}},
	{Key: KeyForeignIncomeSources, Section: SectionInvestments, Kind: KindMulti,
		Options: []string{"dividends", "interest", "rental", "pension", "employment", "none"}},
	{Key: KeyRentalIncome, Section: SectionInvestments, Kind: KindChoice,
		Options: []string{"none", "portugal", "abroad", "both", "not_sure"}},

	{Key: KeyAdditionalNotes, Section: SectionDeclaration, Kind: KindText},
	{Key: KeyAccuracyConfirmation, Section: SectionDeclaration, Kind: KindFlag},
}

var questionsByKey = func() map[QuestionKey]Question {
	m := make(map[QuestionKey]Question, len(Catalog))
	for _, q := range Catalog {
		m[q.Key] = q
	}
	return m
}()

// LookupQuestion returns the catalog entry for key.
func LookupQuestion(key QuestionKey) (Question, bool) {
	q, ok := questionsByKey[key]
	return q, ok
}

// QuestionsIn returns the questions of one section in wizard order.
func QuestionsIn(section Section) []Question {
	var out []Question
	for _, q := range Catalog {
		if q.Section == section {
			out = append(out, q)
		}
	}
	return out
}
