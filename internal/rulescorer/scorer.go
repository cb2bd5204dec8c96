// Package rulescorer implements the additive, per-address rule-based
// scorer of §4.2.
package rulescorer

import (
	"fmt"
	"math"

	"github.com/riskgraph/addrrisk/internal/domain"
)

type categoryDef struct {
	key        string
	multiplier float64
	cap        float64
	tagCode    string
	label      string
	severity   func(volumePct float64) domain.Severity
}

func categoryDefs(caps domain.RuleCapsConfig) []categoryDef {
	return []categoryDef{
		{
			key: domain.CategoryKeyMixer, multiplier: orDefault(caps.MixerMultiplier, 0.6), cap: orDefault(caps.MixerCap, 20),
			tagCode: "MIXER_USAGE", label: "mixers & privacy services",
			severity: func(v float64) domain.Severity {
				if v > 50 {
					return domain.SeverityHigh
				}
				return domain.SeverityMedium
			},
		},
		{
			key: domain.CategoryKeyStolen, multiplier: orDefault(caps.StolenMultiplier, 0.8), cap: orDefault(caps.StolenCap, 25),
			tagCode: "STOLEN_FUNDS", label: "stolen funds",
			severity: func(float64) domain.Severity { return domain.SeverityHigh },
		},
		{
			key: domain.CategoryKeyDarknet, multiplier: orDefault(caps.DarknetMultiplier, 0.7), cap: orDefault(caps.DarknetCap, 20),
			tagCode: "DARKNET_MARKET", label: "darknet markets",
			severity: func(float64) domain.Severity { return domain.SeverityHigh },
		},
		{
			key: domain.CategoryKeyScam, multiplier: orDefault(caps.ScamMultiplier, 0.7), cap: orDefault(caps.ScamCap, 20),
			tagCode: "SCAM_FRAUD", label: "scams & fraud",
			severity: func(float64) domain.Severity { return domain.SeverityMedium },
		},
		{
			key: domain.CategoryKeyRansomware, multiplier: orDefault(caps.RansomwareMultiplier, 0.9), cap: orDefault(caps.RansomwareCap, 30),
			tagCode: "RANSOMWARE", label: "ransomware",
			severity: func(float64) domain.Severity { return domain.SeverityCritical },
		},
		{
			key: domain.CategoryKeyTerroristFinancing, multiplier: orDefault(caps.TerroristMultiplier, 1.0), cap: orDefault(caps.TerroristCap, 70),
			tagCode: "TERRORIST_FINANCING", label: "terrorist financing",
			severity: func(float64) domain.Severity { return domain.SeverityCritical },
		},
	}
}

func orDefault(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

// Score computes a RiskScore from an ExposureInput per the §4.2
// formula: purely additive contributions with an upper clamp.
func Score(input *domain.ExposureInput, caps domain.RuleCapsConfig) *domain.RiskScore {
	var components []domain.BreakdownComponent
	var tags []domain.Tag
	var total int

	switch {
	case input.DirectSanctionedVolumePct > 0:
		total += 60
		components = append(components, domain.BreakdownComponent{
			Dimension: "sanctions", Value: 60, Explanation: "direct sanctions exposure present",
		})
		tags = append(tags, domain.Tag{Code: "DIRECT_SANCTIONS", Severity: domain.SeverityCritical, Description: "direct sanctioned-entity exposure detected"})
	case input.Indirect1HopSanctionedVolumePct > 10:
		total += 40
		components = append(components, domain.BreakdownComponent{
			Dimension: "sanctions", Value: 40,
			Explanation: fmt.Sprintf("1-hop indirect sanctions exposure %.1f%%", input.Indirect1HopSanctionedVolumePct),
		})
		tags = append(tags, domain.Tag{Code: "SANCTIONS_1HOP", Severity: domain.SeverityHigh, Description: "1-hop indirect sanctioned-entity exposure detected"})
	case input.Indirect2To4HopSanctionedVolumePct > 20:
		total += 25
		components = append(components, domain.BreakdownComponent{
			Dimension: "sanctions", Value: 25,
			Explanation: fmt.Sprintf("2-to-4-hop indirect sanctions exposure %.1f%%", input.Indirect2To4HopSanctionedVolumePct),
		})
		tags = append(tags, domain.Tag{Code: "SANCTIONS_2_4HOP", Severity: domain.SeverityMedium, Description: "2-to-4-hop indirect sanctioned-entity exposure detected"})
	}

	var illicitVolumeTotal float64
	for _, def := range categoryDefs(caps) {
		v := input.IllicitCategoryVolumePct[def.key]
		if v <= 0 {
			continue
		}
		illicitVolumeTotal += v
		contribution := int(math.Trunc(math.Min(def.multiplier*v, def.cap)))
		total += contribution
		components = append(components, domain.BreakdownComponent{
			Dimension:   def.key,
			Value:       contribution,
			Explanation: fmt.Sprintf("%s volume %.1f%%", def.label, v),
		})
		tags = append(tags, domain.Tag{Code: def.tagCode, Severity: def.severity(v), Description: fmt.Sprintf("%s exposure detected", def.label)})
	}

	if input.LastIllicitTxDaysAgo != nil {
		days := *input.LastIllicitTxDaysAgo
		switch {
		case days > 365:
			total -= 10
			components = append(components, domain.BreakdownComponent{
				Dimension: "temporal_decay", Value: -10, Explanation: "time decay: last illicit activity over 365 days ago",
			})
		case days < 30:
			total += 10
			components = append(components, domain.BreakdownComponent{
				Dimension: "temporal_decay", Value: 10, Explanation: "recent activity: last illicit activity under 30 days ago",
			})
		}
	}

	if input.PeelChainDetected && input.PeelChainLength > 5 {
		total += 5
		components = append(components, domain.BreakdownComponent{
			Dimension: "peel_chain", Value: 5, Explanation: fmt.Sprintf("peel-chain pattern detected, length %d", input.PeelChainLength),
		})
		tags = append(tags, domain.Tag{Code: "PEEL_CHAIN", Severity: domain.SeverityMedium, Description: "peel-chain distribution behaviour detected"})
	}

	if input.OutDegree > 50 {
		ratio := 0.0
		if input.OutDegree > 0 {
			ratio = float64(input.InDegree) / float64(input.OutDegree)
		}
		if ratio < 0.2 {
			total += 3
			components = append(components, domain.BreakdownComponent{
				Dimension: "distribution_pattern", Value: 3,
				Explanation: fmt.Sprintf("fan-out distribution pattern: out-degree %d, in/out ratio %.2f", input.OutDegree, ratio),
			})
			tags = append(tags, domain.Tag{Code: "DISTRIBUTION_PATTERN", Severity: domain.SeverityLow, Description: "high out-degree distribution behaviour detected"})
		}
	}

	clamped := clampInt(total, 0, 100)
	return &domain.RiskScore{
		Total:                   clamped,
		Level:                   domain.LevelForTotal(clamped),
		Breakdown:               components,
		IllicitVolumePercentage: illicitVolumeTotal,
		CleanVolumePercentage:   math.Max(0, 100-illicitVolumeTotal),
		Tags:                    tags,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
