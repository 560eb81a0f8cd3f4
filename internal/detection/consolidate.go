package detection

import "github.com/vanshika/ringtrace/internal/domain"

// Rings is the consolidated ring set of a run.
type Rings struct {
	Cycles []Ring
	Shells []Ring
	// AccountRing maps an account to the single ring it belongs to.
	AccountRing map[string]string
}

// All returns cycle rings followed by shell rings.
func (r Rings) All() []Ring {
	all := make([]Ring, 0, len(r.Cycles)+len(r.Shells))
	all = append(all, r.Cycles...)
	return append(all, r.Shells...)
}

// ConsolidateRings applies cycle priority to independently detected rings.
// A shell chain touching any cycle account is dropped whole; shell rings left
// without chains disappear and the survivors are renumbered after the highest
// cycle ring, keeping their original order.
func ConsolidateRings(cycles, shells []Ring) Rings {
	cycleAccounts := make(map[string]struct{})
	highest := 0
	for _, ring := range cycles {
		if ring.Seq > highest {
			highest = ring.Seq
		}
		for _, cycle := range ring.Paths {
			for _, account := range cycle {
				cycleAccounts[account] = struct{}{}
			}
		}
	}

	var survivors []Ring
	for _, ring := range shells {
		var kept [][]string
		for _, chain := range ring.Paths {
			if !touches(chain, cycleAccounts) {
				kept = append(kept, chain)
			}
		}
		if len(kept) == 0 {
			continue
		}
		seq := highest + len(survivors) + 1
		survivors = append(survivors, Ring{
			ID:      ringID(seq),
			Seq:     seq,
			Pattern: domain.PatternShell,
			Paths:   kept,
		})
	}

	return Rings{
		Cycles:      cycles,
		Shells:      survivors,
		AccountRing: assignAccounts(cycles, survivors),
	}
}

// assignAccounts builds the account to ring map family by family in precedence
// order: cycle membership is written unconditionally, shell membership only
// fills accounts that are still unmapped.
func assignAccounts(cycles, shells []Ring) map[string]string {
	families := []struct {
		rings     []Ring
		overwrite bool
	}{
		{rings: cycles, overwrite: true},
		{rings: shells, overwrite: false},
	}

	mapping := make(map[string]string)
	for _, family := range families {
		for _, ring := range family.rings {
			for _, path := range ring.Paths {
				for _, account := range path {
					if _, mapped := mapping[account]; mapped && !family.overwrite {
						continue
					}
					mapping[account] = ring.ID
				}
			}
		}
	}
	return mapping
}

func touches(path []string, accounts map[string]struct{}) bool {
	for _, account := range path {
		if _, ok := accounts[account]; ok {
			return true
		}
	}
	return false
}
