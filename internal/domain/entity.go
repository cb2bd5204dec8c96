package domain

// EntityType is the fine-grained classification of a graph node as
// returned by the Entity Classifier.
type EntityType string

const (
	EntityTypeExternallyOwned EntityType = "externally-owned"
	EntityTypeContract        EntityType = "contract"
	EntityTypeCEX             EntityType = "centralised-exchange"
	EntityTypeDEX             EntityType = "decentralised-exchange"
	EntityTypeMixer           EntityType = "mixer"
	EntityTypeBridge          EntityType = "bridge"
	EntityTypeScam            EntityType = "scam"
	EntityTypeDarknet         EntityType = "darknet"
	EntityTypeSanctioned      EntityType = "sanctioned"
	EntityTypeUnknown         EntityType = "unknown"
)

// EntityCategory is the coarser classification consumed by pattern
// automata and the rule scorer.
type EntityCategory string

const (
	CategoryClean                EntityCategory = "clean"
	CategoryMixer                EntityCategory = "mixer"
	CategoryBridge                EntityCategory = "bridge"
	CategoryHighRiskCEX          EntityCategory = "high-risk-cex"
	CategoryCompliantCEX         EntityCategory = "compliant-cex"
	CategoryDarknet              EntityCategory = "darknet"
	CategoryScam                 EntityCategory = "scam"
	CategorySanctioned           EntityCategory = "sanctioned"
	CategoryStolen               EntityCategory = "stolen"
	CategoryRansomware           EntityCategory = "ransomware"
	CategoryTerroristFinancing   EntityCategory = "terrorist-financing"
	CategoryUnknown              EntityCategory = "unknown"
)

// Well-known tags. Category-consistency is an invariant (§3): if
// Category == CategoryMixer then TagMixer must be present in Tags, etc.
const (
	TagMixer      = "MIXER"
	TagSanctioned = "SANCTIONED"
	TagScam       = "SCAM"
	TagDarknet    = "DARKNET"
)

// Entity is a node in an ego graph: an address (or contract) identified
// by a chain-qualified string id.
type Entity struct {
	ID       string
	Chain    string
	Type     EntityType
	Category EntityCategory
	Tags     []string

	// Derived metrics, populated by the Ego-Graph Builder and the graph
	// metrics pass.
	InDegree               int
	OutDegree              int
	PageRank               float64
	ClusteringCoefficient  float64
}

// HasTag reports whether e carries the given tag.
func (e *Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// categoryTag returns the tag that must accompany a category per the
// category/tag consistency invariant, or "" if the category carries no
// mandatory tag.
func categoryTag(cat EntityCategory) string {
	switch cat {
	case CategoryMixer:
		return TagMixer
	case CategorySanctioned:
		return TagSanctioned
	case CategoryScam:
		return TagScam
	case CategoryDarknet:
		return TagDarknet
	default:
		return ""
	}
}

// EnsureCategoryTag appends the category's mandatory tag if it is
// missing, restoring the category/tag consistency invariant after
// classification.
func (e *Entity) EnsureCategoryTag() {
	tag := categoryTag(e.Category)
	if tag == "" || e.HasTag(tag) {
		return
	}
	e.Tags = append(e.Tags, tag)
}
