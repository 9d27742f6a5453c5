// Deterministic selection of the signal b-jet pair and the VBF jet pair for
// one event. An undefined pair is a legal outcome, never an error.

package ana

import (
	"fmt"
	"math"
)

// JetPair holds two jet positions in the record's jet array. A pair is either
// fully defined or fully undefined; partial states exist only while the
// selection itself runs.
type JetPair struct {
	First  int
	Second int
}

// UndefinedJetPair is the sentinel for a pair with no selected jets.
var UndefinedJetPair = JetPair{First: -1, Second: -1}

// IsDefined reports whether both slots point inside a jet array of size njets.
func (p JetPair) IsDefined(njets int) bool {
	return p.First >= 0 && p.First < njets && p.Second >= 0 && p.Second < njets
}

// Contains reports whether either slot equals n.
func (p JetPair) Contains(n int) bool { return p.First == n || p.Second == n }

// PairToIndex maps an unordered jet pair onto its canonical combination key,
// the same key the record's kinematic-fit side table is written with.
func PairToIndex(p JetPair) (int, error) {
	if p.First < 0 || p.Second < 0 || p.First == p.Second {
		return 0, fmt.Errorf("%w: jet pair (%d, %d) has no combination index", ErrInvalidIndex, p.First, p.Second)
	}
	lo, hi := p.First, p.Second
	if lo > hi {
		lo, hi = hi, lo
	}
	return hi*(hi-1)/2 + lo, nil
}

// PairFromIndex inverts PairToIndex. The returned pair is ordered lo < hi.
func PairFromIndex(key int) (JetPair, error) {
	if key < 0 {
		return UndefinedJetPair, fmt.Errorf("%w: combination index %d", ErrInvalidIndex, key)
	}
	hi := 1
	for hi*(hi+1)/2 <= key {
		hi++
	}
	lo := key - hi*(hi-1)/2
	return JetPair{First: lo, Second: hi}, nil
}

// SignalJetSelection is the outcome of SelectSignalJets for one event.
type SignalJetSelection struct {
	BJetPair     JetPair
	VBFJetPair   JetPair
	NBTaggedJets int
}

// HasBJetPair reports whether the b-jet pair is fully defined.
func (s SignalJetSelection) HasBJetPair(njets int) bool { return s.BJetPair.IsDefined(njets) }

// HasVBFPair reports whether the VBF jet pair is fully defined.
func (s SignalJetSelection) HasVBFPair(njets int) bool { return s.VBFJetPair.IsDefined(njets) }

// IsSelectedBJet reports whether jet n is one of the chosen b jets.
func (s SignalJetSelection) IsSelectedBJet(n int) bool { return s.BJetPair.Contains(n) }

// IsSelectedVBFJet reports whether jet n is one of the chosen VBF jets.
func (s SignalJetSelection) IsSelectedVBFJet(n int) bool { return s.VBFJetPair.Contains(n) }

// BJetIndices returns the selected b-jet positions as a set, for exclusion
// lists. Undefined slots are skipped.
func (s SignalJetSelection) BJetIndices() map[int]bool {
	indices := make(map[int]bool, 2)
	if s.BJetPair.First >= 0 {
		indices[s.BJetPair.First] = true
	}
	if s.BJetPair.Second >= 0 {
		indices[s.BJetPair.Second] = true
	}
	return indices
}

// SelectSignalJets runs the rule-based combinatorial selection:
//
//  1. Candidates are jets passing the detector-noise veto and the required
//     pile-up-id bit, excluding jets already claimed by an earlier stage.
//  2. Candidates ranked by tag score under the b-jet thresholds; the top
//     entry becomes the first b jet.
//  3. The second-ranked entry becomes the second b jet only if it also passes
//     the medium working point.
//  4. Remaining candidates ranked by pt under the VBF thresholds; the pair
//     maximizing the invariant mass (strict comparison, first maximum wins)
//     becomes the VBF pair.
//  5. If the b pair is still open, the top of a recomputed candidate list
//     fills the second slot regardless of working point. When that list is
//     empty the VBF pair is cleared and, if the original b ranking had at
//     least two entries, its second entry fills the slot. This last branch
//     intentionally reuses the pre-working-point ranking without further
//     validation; see the regression test before changing it.
func SelectSignalJets(rec *EventRecord, period Period, ordering JetOrdering) (SignalJetSelection, error) {
	tagger, err := NewBTagger(period, ordering)
	if err != nil {
		return SignalJetSelection{}, err
	}
	if err := rec.validateJetArrays(ordering); err != nil {
		return SignalJetSelection{}, err
	}
	return selectSignalJets(rec, period, tagger), nil
}

func selectSignalJets(rec *EventRecord, period Period, tagger *BTagger) SignalJetSelection {
	sel := SignalJetSelection{BJetPair: UndefinedJetPair, VBFJetPair: UndefinedJetPair}

	candidates := func(useBTag bool) []JetInfo {
		var infos []JetInfo
		for n := range rec.JetP4 {
			if sel.IsSelectedBJet(n) || sel.IsSelectedVBFJet(n) {
				continue
			}
			if !passNoiseVeto(rec.JetP4[n], period, rec.JetPuID[n]) {
				continue
			}
			if rec.JetPuID[n]&puIDLooseBit == 0 {
				continue
			}
			tag := rec.JetP4[n].Pt
			if useBTag {
				tag = tagger.Tag(rec, n)
			}
			infos = append(infos, JetInfo{P4: rec.JetP4[n], Index: n, Tag: tag})
		}
		return infos
	}

	bJets := RankJets(candidates(true), tagger.PtCut(), tagger.EtaCut())
	sel.NBTaggedJets = len(bJets)
	if len(bJets) >= 1 {
		sel.BJetPair.First = bJets[0].Index
	}
	if len(bJets) >= 2 && tagger.Pass(rec, bJets[1].Index, WPMedium) {
		sel.BJetPair.Second = bJets[1].Index
	}

	vbfJets := RankJets(candidates(false), vbfPtCut, vbfEtaCut)
	maxMjj := math.Inf(-1)
	for n := 0; n < len(vbfJets); n++ {
		for h := n + 1; h < len(vbfJets); h++ {
			mjj := vbfJets[n].P4.Add(vbfJets[h].P4).M()
			if mjj > maxMjj {
				maxMjj = mjj
				sel.VBFJetPair = JetPair{First: vbfJets[n].Index, Second: vbfJets[h].Index}
			}
		}
	}

	if sel.HasBJetPair(rec.NJets()) {
		return sel
	}

	// Fallback: refill the open second slot ignoring the working point.
	// The recomputed candidate list excludes everything claimed so far.
	refill := RankJets(candidates(true), tagger.PtCut(), tagger.EtaCut())
	if len(refill) >= 1 {
		sel.BJetPair.Second = refill[0].Index
	} else {
		sel.VBFJetPair = UndefinedJetPair
		if len(bJets) >= 2 {
			sel.BJetPair.Second = bJets[1].Index
		}
	}
	return sel
}
