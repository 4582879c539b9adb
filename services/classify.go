package services

import "strings"

// Complaint categories recognized by the intake classifier. Anything that
// does not match falls back to GeneralComplaint.
const (
	TypeTheft            = "Theft"
	TypeFraud            = "Fraud"
	TypeHarassment       = "Harassment"
	TypeCyberCrime       = "Cyber Crime"
	TypeAssault          = "Assault"
	TypeDomesticViolence = "Domestic Violence"
	TypeMissingPerson    = "Missing Person"
	TypePropertyDispute  = "Property Dispute"
	GeneralComplaint     = "General Complaint"
)

// keyword tables checked in order; first category with a hit wins
var classifierRules = []struct {
	category string
	keywords []string
}{
	{TypeCyberCrime, []string{"online", "internet", "cyber", "upi", "otp fraud", "phishing", "hacked", "facebook", "whatsapp", "instagram", "email account"}},
	{TypeTheft, []string{"stolen", "theft", "stole", "robbed", "robbery", "burglary", "snatched", "pickpocket", "missing bike", "missing vehicle"}},
	{TypeFraud, []string{"fraud", "cheated", "cheating", "scam", "duped", "fake", "forged", "forgery", "embezzle"}},
	{TypeDomesticViolence, []string{"husband beat", "dowry", "domestic violence", "in-laws", "marital cruelty"}},
	{TypeHarassment, []string{"harass", "stalking", "stalked", "threaten", "blackmail", "eve teasing", "abusing me", "intimidat"}},
	{TypeAssault, []string{"assault", "attacked", "beaten", "hit me", "injured", "fight", "physical"}},
	{TypeMissingPerson, []string{"missing person", "not returned home", "disappeared", "kidnap", "abduct"}},
	{TypePropertyDispute, []string{"land grab", "property dispute", "encroach", "boundary dispute", "illegal construction"}},
}

// applicableLaws maps a complaint category to the statute sections cited on
// the generated filing document.
var applicableLaws = map[string]string{
	TypeTheft:            "BNS 2023 Section 303 (Theft); IPC Section 378/379",
	TypeFraud:            "BNS 2023 Section 318 (Cheating); IPC Section 415/420",
	TypeHarassment:       "BNS 2023 Section 78 (Stalking), Section 351 (Criminal intimidation); IPC Section 354D/506",
	TypeCyberCrime:       "IT Act 2000 Section 66 (Computer-related offences), Section 66D (Cheating by personation); BNS 2023 Section 318",
	TypeAssault:          "BNS 2023 Section 115 (Voluntarily causing hurt), Section 131 (Assault); IPC Section 323/351",
	TypeDomesticViolence: "Protection of Women from Domestic Violence Act 2005; BNS 2023 Section 85; IPC Section 498A",
	TypeMissingPerson:    "BNS 2023 Section 137 (Kidnapping); IPC Section 359-363; immediate FIR per Supreme Court guidelines",
	TypePropertyDispute:  "BNS 2023 Section 329 (Criminal trespass); IPC Section 441/447; Specific Relief Act 1963",
	GeneralComplaint:     "To be determined by the Station House Officer on review",
}

// ClassifyComplaint derives a complaint category from free-text incident
// descriptions. It replaces an interactive suggestion step: the caller may
// always override the result with an explicit type.
func ClassifyComplaint(description string) string {
	lowered := strings.ToLower(description)
	for _, rule := range classifierRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.category
			}
		}
	}
	return GeneralComplaint
}

// ApplicableLaws returns the statute sections for a complaint category. An
// unknown category gets the GeneralComplaint text.
func ApplicableLaws(category string) string {
	if laws, ok := applicableLaws[category]; ok {
		return laws
	}
	return applicableLaws[GeneralComplaint]
}

// ViolationTypes are the traffic violation options offered to reporters.
var ViolationTypes = []string{
	"Illegal Parking",
	"Wrong Side Driving",
	"Traffic Signal Violation",
	"Over Speeding",
	"Other Violation",
}

// IsValidViolationType reports whether v is one of the offered options.
func IsValidViolationType(v string) bool {
	for _, vt := range ViolationTypes {
		if strings.EqualFold(strings.TrimSpace(v), vt) {
			return true
		}
	}
	return false
}
