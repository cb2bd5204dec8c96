package patterns

import "github.com/riskgraph/addrrisk/internal/domain"

// structuringVolumeFloor is the minimum cumulative volume a chain of
// rapid small transfers must move before it is flagged as structuring
// rather than incidental low-value activity. The condition grammar has
// no way to bound an individual hop's amount from above, so this gate
// is checked against the running total instead: ordinary dust transfers
// never accumulate past it within the 24-hour window structuring()
// enforces.
const structuringVolumeFloor = 1000.0

func categoryCond(cat domain.EntityCategory) domain.Condition {
	return domain.Condition{Kind: domain.ConditionEntityCategory, Category: cat}
}

func timeWindowCond(hours float64) domain.Condition {
	return domain.Condition{Kind: domain.ConditionTimeWindow, Hours: hours}
}

func hopCountCond(n int) domain.Condition {
	return domain.Condition{Kind: domain.ConditionHopCount, HopCount: n}
}

func bridgeCond() domain.Condition { return domain.Condition{Kind: domain.ConditionBridgeCrossing} }
func mixerCond() domain.Condition  { return domain.Condition{Kind: domain.ConditionMixerHop} }

func volumeThresholdCond(v float64) domain.Condition {
	return domain.Condition{Kind: domain.ConditionVolumeThreshold, Volume: v}
}

func transition(target string, conds ...domain.Condition) domain.Transition {
	return domain.Transition{TargetStateID: target, Conditions: conds}
}

func state(id string, typ domain.StateType, transitions ...domain.Transition) *domain.State {
	return &domain.State{ID: id, Type: typ, Transitions: transitions}
}

func newAutomaton(id, name, desc, initial string, weight int, severity domain.Severity, states ...*domain.State) *domain.PatternAutomaton {
	m := make(map[string]*domain.State, len(states))
	for _, s := range states {
		m[s.ID] = s
	}
	return &domain.PatternAutomaton{
		ID: id, DisplayName: name, Description: desc, InitialStateID: initial,
		States: m, Weight: weight, Severity: severity,
	}
}

// mixerBridgeCEX: funds move mixer -> cross-chain bridge -> a high-risk
// exchange, three hops from the centre.
func mixerBridgeCEX() *domain.PatternAutomaton {
	return newAutomaton("MIXER_BRIDGE_CEX", "Mixer → Bridge → High-Risk CEX",
		"Funds routed through a mixing service, then a cross-chain bridge, then a high-risk exchange.",
		"start", 85, domain.SeverityHigh,
		state("start", domain.StateStart, transition("via_mixer", categoryCond(domain.CategoryMixer))),
		state("via_mixer", domain.StateNormal, transition("via_bridge", categoryCond(domain.CategoryBridge))),
		state("via_bridge", domain.StateNormal, transition("accept", categoryCond(domain.CategoryHighRiskCEX))),
		state("accept", domain.StateAccept),
	)
}

// rapidMixerChain: two or more mixer hops within a tight time budget.
func rapidMixerChain() *domain.PatternAutomaton {
	return newAutomaton("RAPID_MIXER_CHAIN", "Rapid Mixer Chain",
		"Two or more mixer hops in rapid succession from the centre address.",
		"start", 75, domain.SeverityHigh,
		state("start", domain.StateStart, transition("first_mixer", mixerCond(), timeWindowCond(1))),
		state("first_mixer", domain.StateNormal, transition("accept", mixerCond(), timeWindowCond(3))),
		state("accept", domain.StateAccept),
	)
}

// peelChain: a balance is peeled off through a chain of hops in quick
// succession, with no fixed ceiling on how many times it can peel once
// the chain is established. Three forced hops (start -> chain1 ->
// chain2 -> peeling) establish the minimum four-hop depth before
// "peeling" branches into either another peel (self-loop, capped at 20
// total hops) or acceptance — the walker explores both branches at
// every hop from the fourth onward and keeps whichever produces the
// better match, so the self-loop never has to "win" a priority race
// against accept.
func peelChain() *domain.PatternAutomaton {
	return newAutomaton("PEEL_CHAIN", "Peel Chain",
		"A large balance repeatedly peeled off through a chain of at least four hops in quick succession.",
		"start", 45, domain.SeverityMedium,
		state("start", domain.StateStart, transition("chain1")),
		state("chain1", domain.StateNormal, transition("chain2", timeWindowCond(168))),
		state("chain2", domain.StateNormal, transition("peeling", timeWindowCond(168))),
		state("peeling", domain.StateNormal,
			transition("peeling", timeWindowCond(168), hopCountCond(20)),
			transition("accept"),
		),
		state("accept", domain.StateAccept),
	)
}

// structuring: three or more hops within a 24-hour window whose
// cumulative volume clears structuringVolumeFloor, modelling repeated
// transfers that individually look small but together move a
// meaningful balance. As with peelChain, forced hops (two here)
// establish the minimum depth before the self-loop/accept branch opens.
func structuring() *domain.PatternAutomaton {
	return newAutomaton("STRUCTURING", "Structuring",
		"Three or more transfers within a 24-hour window whose combined volume clears the structuring floor, consistent with deliberate threshold avoidance.",
		"start", 60, domain.SeverityMedium,
		state("start", domain.StateStart, transition("split1", timeWindowCond(24))),
		state("split1", domain.StateNormal, transition("split2", timeWindowCond(24))),
		state("split2", domain.StateNormal,
			transition("split2", timeWindowCond(24), hopCountCond(10)),
			transition("accept", volumeThresholdCond(structuringVolumeFloor)),
		),
		state("accept", domain.StateAccept),
	)
}

// chainHopping: repeated cross-chain bridge or mixer hops, at least two
// deep, with no fixed upper bound on how many hops are chained.
func chainHopping() *domain.PatternAutomaton {
	return newAutomaton("CHAIN_HOPPING", "Chain Hopping",
		"Funds repeatedly cross bridges or mixers across chains before settling.",
		"start", 55, domain.SeverityMedium,
		state("start", domain.StateStart, transition("hopped", bridgeCond())),
		state("hopped", domain.StateNormal,
			transition("hopped", bridgeCond(), hopCountCond(10)),
			transition("hopped", mixerCond(), hopCountCond(10)),
			transition("accept", bridgeCond(), hopCountCond(10)),
			transition("accept", mixerCond(), hopCountCond(10)),
		),
		state("accept", domain.StateAccept),
	)
}

// sanctionsProximity: a sanctioned entity reached directly or within two
// hops.
func sanctionsProximity() *domain.PatternAutomaton {
	return newAutomaton("SANCTIONS_PROXIMITY", "Sanctions Proximity",
		"A sanctioned entity reached directly or through one intermediary.",
		"start", 90, domain.SeverityCritical,
		state("start", domain.StateStart,
			transition("accept", categoryCond(domain.CategorySanctioned)),
			transition("near", hopCountCond(2)),
		),
		state("near", domain.StateNormal, transition("accept", categoryCond(domain.CategorySanctioned))),
		state("accept", domain.StateAccept),
	)
}

// darknetCashOut: proceeds pass through a darknet market, some number of
// laundering hops, then surface at an exchange.
func darknetCashOut() *domain.PatternAutomaton {
	return newAutomaton("DARKNET_CASHOUT", "Darknet Cash-Out",
		"Proceeds pass through a darknet market and later surface at an exchange.",
		"start", 80, domain.SeverityHigh,
		state("start", domain.StateStart, transition("seen", categoryCond(domain.CategoryDarknet))),
		state("seen", domain.StateNormal,
			transition("seen", timeWindowCond(168), hopCountCond(8)),
			transition("accept", categoryCond(domain.CategoryHighRiskCEX)),
			transition("accept", categoryCond(domain.CategoryCompliantCEX)),
		),
		state("accept", domain.StateAccept),
	)
}

// ransomwareLaundering: a ransomware wallet launders proceeds through at
// least one mixer or bridge hop before reaching any further counterparty.
func ransomwareLaundering() *domain.PatternAutomaton {
	return newAutomaton("RANSOMWARE_LAUNDERING", "Ransomware Laundering",
		"Ransomware proceeds laundered through a mixer or bridge before reaching a further counterparty.",
		"start", 95, domain.SeverityCritical,
		state("start", domain.StateStart, transition("tainted", categoryCond(domain.CategoryRansomware))),
		state("tainted", domain.StateNormal,
			transition("laundered", bridgeCond()),
			transition("laundered", mixerCond()),
		),
		state("laundered", domain.StateNormal,
			transition("laundered", bridgeCond(), hopCountCond(12)),
			transition("laundered", mixerCond(), hopCountCond(12)),
			transition("accept"),
		),
		state("accept", domain.StateAccept),
	)
}

// StandardLibrary returns the eight built-in pattern automata, in a
// stable order.
func StandardLibrary() []*domain.PatternAutomaton {
	return []*domain.PatternAutomaton{
		mixerBridgeCEX(),
		rapidMixerChain(),
		peelChain(),
		structuring(),
		chainHopping(),
		sanctionsProximity(),
		darknetCashOut(),
		ransomwareLaundering(),
	}
}

// BuildAutomaton assembles a PatternAutomaton from persisted state
// definitions, for tenant-authored automata managed through the
// rule-bundle API.
func BuildAutomaton(id, name, desc, initial string, weight int, severity domain.Severity, states ...*domain.State) *domain.PatternAutomaton {
	return newAutomaton(id, name, desc, initial, weight, severity, states...)
}

// TagCond builds an entity-tag condition, exported for tenant-authored
// automata assembled outside this package.
func TagCond(tag string) domain.Condition {
	return domain.Condition{Kind: domain.ConditionEntityTag, Tag: tag}
}
