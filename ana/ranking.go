// Pure ranking/filtering over transient jet triples.

package ana

import "sort"

// JetInfo is the transient (momentum, index, tag score) triple used during
// ranking. It exists only while a selection runs.
type JetInfo struct {
	P4    P4
	Index int
	Tag   float64
}

// RankJets filters infos to those with pt above ptCut and |eta| inside
// etaCut, then sorts them by tag score descending with pt as the tiebreaker.
// Equal (tag, pt) keys fall back to record order, so the result is
// deterministic for a fixed input.
func RankJets(infos []JetInfo, ptCut, etaCut float64) []JetInfo {
	ranked := make([]JetInfo, 0, len(infos))
	for _, info := range infos {
		absEta := info.P4.Eta
		if absEta < 0 {
			absEta = -absEta
		}
		if info.P4.Pt <= ptCut || absEta >= etaCut {
			continue
		}
		ranked = append(ranked, info)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Tag != ranked[j].Tag {
			return ranked[i].Tag > ranked[j].Tag
		}
		return ranked[i].P4.Pt > ranked[j].P4.Pt
	})
	return ranked
}
