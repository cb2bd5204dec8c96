package domain

// Illicit-category keys recognised by the Rule Scorer (§4.2 table).
const (
	CategoryKeyMixer               = "mixer"
	CategoryKeyStolen              = "stolen"
	CategoryKeyDarknet             = "darknet"
	CategoryKeyScam                = "scam"
	CategoryKeyRansomware          = "ransomware"
	CategoryKeyTerroristFinancing  = "terrorist_financing"
)

// ExposureInput is the per-address exposure record consumed by the
// Rule Scorer (§6 "Rule input"). Volumes are percentages in [0, 100].
type ExposureInput struct {
	Address string

	DirectSanctionedVolumePct             float64
	Indirect1HopSanctionedVolumePct       float64
	Indirect2To4HopSanctionedVolumePct    float64

	// IllicitCategoryVolumePct keys are the CategoryKey* constants.
	IllicitCategoryVolumePct map[string]float64

	// LastIllicitTxDaysAgo is nil when there is no known illicit
	// transaction (no temporal adjustment applies).
	LastIllicitTxDaysAgo *float64

	PeelChainDetected bool
	PeelChainLength   int

	OutDegree int
	InDegree  int

	// AdditionalData is exposed to tenant-authored custom exposure
	// rules (internal/customrules) as extra CEL activation fields.
	AdditionalData map[string]any
}
