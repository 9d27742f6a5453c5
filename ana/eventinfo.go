// EventInfo: the per-event aggregate holding a borrowed record reference, the
// signal jet selection computed once at construction, and a lazily populated
// cache of derived candidates.
//
// Every memoized accessor follows the same discipline: take the single
// per-instance lock, compute the field if its slot is empty, store it, return
// it. Concurrent callers therefore observe exactly one computation per field.
// Cross-event parallelism is unaffected because each instance owns its lock.

package ana

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// EventOptions carries the optional collaborators of an EventInfo.
type EventOptions struct {
	// Summary is the run-level production summary. Required for trigger
	// descriptor resolution and for systematic shifts.
	Summary *SummaryInfo
	// Solver handles kinematic fits that miss the record's side table.
	Solver FitSolver
}

// EventInfo is the derived-object view of one candidate pair in one event.
// The record is borrowed and must outlive the instance. An EventInfo is safe
// for concurrent use; the zero value is not usable, construct via
// NewEventInfo.
type EventInfo struct {
	rec       *EventRecord
	summary   *SummaryInfo
	pairIndex int
	period    Period
	ordering  JetOrdering
	tagger    *BTagger
	selection SignalJetSelection
	triggers  TriggerResults
	solver    FitSolver

	mu sync.Mutex
	// Derived-field slots, guarded by mu. A replaced jet collection never
	// coexists with stale downstream values: ApplyShift builds a fresh
	// instance instead of mutating these in place.
	leg1         *LeptonCandidate
	leg2         *LeptonCandidate
	jets         []JetCandidate
	jetsBuilt    bool
	fatJets      []FatJetCandidate
	fatJetsBuilt bool
	met          *METCandidate
	higgsBB      *HiggsBBCandidate
	kinFit       *FitResults
	mt2          *float64
	mvaScore     *float64
}

// NewEventInfo builds the view for candidate pair pairIndex of rec. The
// signal jet selection runs here, exactly once; everything else populates on
// first access.
func NewEventInfo(rec *EventRecord, pairIndex int, period Period, ordering JetOrdering, opts EventOptions) (*EventInfo, error) {
	if rec == nil {
		return nil, fmt.Errorf("event record is nil")
	}
	if pairIndex < 0 || pairIndex >= rec.NPairs() || pairIndex >= len(rec.SecondDaughterIndex) {
		return nil, fmt.Errorf("%w: candidate pair %d, record has %d", ErrInvalidIndex, pairIndex, rec.NPairs())
	}
	tagger, err := NewBTagger(period, ordering)
	if err != nil {
		return nil, err
	}
	if err := rec.validateJetArrays(ordering); err != nil {
		return nil, err
	}

	ei := &EventInfo{
		rec:       rec,
		summary:   opts.Summary,
		pairIndex: pairIndex,
		period:    period,
		ordering:  ordering,
		tagger:    tagger,
		solver:    opts.Solver,
		selection: selectSignalJets(rec, period, tagger),
	}

	if pairIndex >= len(rec.TriggerMatches) {
		return nil, fmt.Errorf("%w: no trigger-match entry for candidate pair %d, record has %d",
			ErrInvalidIndex, pairIndex, len(rec.TriggerMatches))
	}
	matchBits := rec.TriggerMatches[pairIndex]
	var patterns []string
	if opts.Summary != nil {
		patterns, err = opts.Summary.TriggerDescriptors(Channel(rec.ChannelID))
		if err != nil {
			return nil, err
		}
	}
	ei.triggers = TriggerResults{acceptBits: rec.TriggerAccepts, matchBits: matchBits, patterns: patterns}
	return ei, nil
}

// Record returns the borrowed event record.
func (ei *EventInfo) Record() *EventRecord { return ei.rec }

// EventID returns the run/lumi/event identifier.
func (ei *EventInfo) EventID() EventID { return ei.rec.ID }

// Period returns the data-taking period.
func (ei *EventInfo) Period() Period { return ei.period }

// Ordering returns the jet-ordering policy.
func (ei *EventInfo) Ordering() JetOrdering { return ei.ordering }

// Selection returns the signal jet selection computed at construction.
func (ei *EventInfo) Selection() SignalJetSelection { return ei.selection }

// TriggerResults returns the trigger view for the selected pair.
func (ei *EventInfo) TriggerResults() TriggerResults { return ei.triggers }

// NJets returns the number of candidate jets in the record.
func (ei *EventInfo) NJets() int { return ei.rec.NJets() }

// NFatJets returns the number of fat jets in the record.
func (ei *EventInfo) NFatJets() int { return ei.rec.NFatJets() }

// HasBJetPair reports whether a signal b-jet pair was selected.
func (ei *EventInfo) HasBJetPair() bool { return ei.selection.HasBJetPair(ei.rec.NJets()) }

// HasVBFPair reports whether a VBF jet pair was selected.
func (ei *EventInfo) HasVBFPair() bool { return ei.selection.HasVBFPair(ei.rec.NJets()) }

// Summary returns the run summary, or ErrMissingPrerequisite when the
// instance was built without one.
func (ei *EventInfo) Summary() (*SummaryInfo, error) {
	if ei.summary == nil {
		return nil, fmt.Errorf("%w: run summary was not provided for this event", ErrMissingPrerequisite)
	}
	return ei.summary, nil
}

// Leg returns lepton leg n of the selected pair, n in {1, 2}.
func (ei *EventInfo) Leg(n int) (LeptonCandidate, error) {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	return ei.legLocked(n)
}

func (ei *EventInfo) legLocked(n int) (LeptonCandidate, error) {
	var slot **LeptonCandidate
	var idx int
	switch n {
	case 1:
		slot, idx = &ei.leg1, ei.rec.FirstDaughterIndex[ei.pairIndex]
	case 2:
		slot, idx = &ei.leg2, ei.rec.SecondDaughterIndex[ei.pairIndex]
	default:
		return LeptonCandidate{}, fmt.Errorf("%w: leg id %d", ErrInvalidIndex, n)
	}
	if *slot == nil {
		if idx < 0 || idx >= len(ei.rec.LepP4) {
			return LeptonCandidate{}, fmt.Errorf("%w: lepton %d, record has %d", ErrInvalidIndex, idx, len(ei.rec.LepP4))
		}
		cand := LeptonCandidate{Momentum: ei.rec.LepP4[idx], Index: idx}
		if idx < len(ei.rec.LepCharge) {
			cand.Charge = ei.rec.LepCharge[idx]
		}
		if idx < len(ei.rec.LepType) {
			cand.Type = ei.rec.LepType[idx]
		}
		if idx < len(ei.rec.LepIso) {
			cand.Iso = ei.rec.LepIso[idx]
		}
		*slot = &cand
	}
	return **slot, nil
}

// Jets returns the materialized jet collection. The returned slice is a copy;
// the cached collection itself is only ever replaced wholesale via ApplyShift.
func (ei *EventInfo) Jets() []JetCandidate {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	jets := ei.jetsLocked()
	out := make([]JetCandidate, len(jets))
	copy(out, jets)
	return out
}

func (ei *EventInfo) jetsLocked() []JetCandidate {
	if !ei.jetsBuilt {
		jets := make([]JetCandidate, 0, ei.rec.NJets())
		for n := range ei.rec.JetP4 {
			var resolution float64
			if n < len(ei.rec.JetResolution) {
				resolution = ei.rec.JetResolution[n]
			}
			jets = append(jets, JetCandidate{Momentum: ei.rec.JetP4[n], Index: n, Resolution: resolution})
		}
		ei.jets = jets
		ei.jetsBuilt = true
	}
	return ei.jets
}

// FatJets returns the materialized fat-jet collection.
func (ei *EventInfo) FatJets() []FatJetCandidate {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	fatJets := ei.fatJetsLocked()
	out := make([]FatJetCandidate, len(fatJets))
	copy(out, fatJets)
	return out
}

func (ei *EventInfo) fatJetsLocked() []FatJetCandidate {
	if !ei.fatJetsBuilt {
		fatJets := make([]FatJetCandidate, 0, ei.rec.NFatJets())
		for n := range ei.rec.FatJetP4 {
			cand := FatJetCandidate{Momentum: ei.rec.FatJetP4[n], Index: n}
			if n < len(ei.rec.FatJetSoftDropMass) {
				cand.SoftDropMass = ei.rec.FatJetSoftDropMass[n]
			}
			for s, parent := range ei.rec.SubJetParent {
				if parent == n && s < len(ei.rec.SubJetP4) {
					cand.SubJets = append(cand.SubJets, SubJet{Momentum: ei.rec.SubJetP4[s]})
				}
			}
			fatJets = append(fatJets, cand)
		}
		ei.fatJets = fatJets
		ei.fatJetsBuilt = true
	}
	return ei.fatJets
}

// MET returns the missing-energy candidate.
func (ei *EventInfo) MET() METCandidate {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	return ei.metLocked()
}

func (ei *EventInfo) metLocked() METCandidate {
	if ei.met == nil {
		cov := mat.NewSymDense(2, []float64{
			ei.rec.METCovXX, ei.rec.METCovXY,
			ei.rec.METCovXY, ei.rec.METCovYY,
		})
		ei.met = &METCandidate{Momentum: ei.rec.METP4, Cov: cov}
	}
	return *ei.met
}

// BJet returns selected b jet n, n in {1, 2}.
func (ei *EventInfo) BJet(n int) (JetCandidate, error) {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	return ei.bJetLocked(n)
}

func (ei *EventInfo) bJetLocked(n int) (JetCandidate, error) {
	if n != 1 && n != 2 {
		return JetCandidate{}, fmt.Errorf("%w: b jet id %d", ErrInvalidIndex, n)
	}
	if !ei.selection.HasBJetPair(ei.rec.NJets()) {
		return JetCandidate{}, fmt.Errorf("%w: b-jet pair is not defined", ErrMissingPrerequisite)
	}
	jets := ei.jetsLocked()
	if n == 1 {
		return jets[ei.selection.BJetPair.First], nil
	}
	return jets[ei.selection.BJetPair.Second], nil
}

// VBFJet returns selected VBF jet n, n in {1, 2}.
func (ei *EventInfo) VBFJet(n int) (JetCandidate, error) {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	if n != 1 && n != 2 {
		return JetCandidate{}, fmt.Errorf("%w: VBF jet id %d", ErrInvalidIndex, n)
	}
	if !ei.selection.HasVBFPair(ei.rec.NJets()) {
		return JetCandidate{}, fmt.Errorf("%w: VBF jet pair is not defined", ErrMissingPrerequisite)
	}
	jets := ei.jetsLocked()
	if n == 1 {
		return jets[ei.selection.VBFJetPair.First], nil
	}
	return jets[ei.selection.VBFJetPair.Second], nil
}

// HiggsBB returns the composite two-jet candidate built from the selected
// b-jet pair.
func (ei *EventInfo) HiggsBB() (HiggsBBCandidate, error) {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	return ei.higgsBBLocked()
}

func (ei *EventInfo) higgsBBLocked() (HiggsBBCandidate, error) {
	if !ei.selection.HasBJetPair(ei.rec.NJets()) {
		return HiggsBBCandidate{}, fmt.Errorf("%w: can't create H->bb candidate without a b-jet pair", ErrMissingPrerequisite)
	}
	if ei.higgsBB == nil {
		jets := ei.jetsLocked()
		ei.higgsBB = &HiggsBBCandidate{
			First:  jets[ei.selection.BJetPair.First],
			Second: jets[ei.selection.BJetPair.Second],
		}
	}
	return *ei.higgsBB, nil
}

// KinFitResult returns the kinematic-fit outcome for the selected b-jet pair.
// A precomputed side-table entry wins; otherwise the external solver runs.
func (ei *EventInfo) KinFitResult() (FitResults, error) {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	if !ei.selection.HasBJetPair(ei.rec.NJets()) {
		return FitResults{}, fmt.Errorf("%w: can't retrieve kinematic-fit results without a b-jet pair", ErrMissingPrerequisite)
	}
	if ei.kinFit != nil {
		return *ei.kinFit, nil
	}

	key, err := PairToIndex(ei.selection.BJetPair)
	if err != nil {
		return FitResults{}, err
	}
	for i, pairID := range ei.rec.KinFitPairID {
		if pairID != key {
			continue
		}
		chi2 := ei.rec.KinFitChi2[i]
		ei.kinFit = &FitResults{
			Convergence: ei.rec.KinFitConvergence[i],
			Chi2:        chi2,
			Probability: ChiSquareProbability(chi2, kinFitNDF),
			Mass:        ei.rec.KinFitMass[i],
		}
		return *ei.kinFit, nil
	}

	if ei.solver == nil {
		return FitResults{}, fmt.Errorf("%w: kinematic-fit solver is not configured", ErrMissingPrerequisite)
	}
	leg1, err := ei.legLocked(1)
	if err != nil {
		return FitResults{}, err
	}
	leg2, err := ei.legLocked(2)
	if err != nil {
		return FitResults{}, err
	}
	b1, err := ei.bJetLocked(1)
	if err != nil {
		return FitResults{}, err
	}
	b2, err := ei.bJetLocked(2)
	if err != nil {
		return FitResults{}, err
	}
	resolution1 := b1.Resolution * b1.Momentum.E()
	resolution2 := b2.Resolution * b2.Momentum.E()
	convergence, chi2, mass := ei.solver.Fit(leg1.Momentum, leg2.Momentum, b1.Momentum, b2.Momentum,
		ei.metLocked(), resolution1, resolution2)
	ei.kinFit = &FitResults{
		Convergence: convergence,
		Chi2:        chi2,
		Probability: ChiSquareProbability(chi2, kinFitNDF),
		Mass:        mass,
	}
	return *ei.kinFit, nil
}

// MT2 returns the memoized kinematic discriminant.
func (ei *EventInfo) MT2() (float64, error) {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	if ei.mt2 == nil {
		hbb, err := ei.higgsBBLocked()
		if err != nil {
			return 0, err
		}
		leg1, err := ei.legLocked(1)
		if err != nil {
			return 0, err
		}
		leg2, err := ei.legLocked(2)
		if err != nil {
			return 0, err
		}
		value := CalculateMT2(leg1.Momentum, leg2.Momentum,
			hbb.First.Momentum, hbb.Second.Momentum, ei.metLocked().Momentum)
		ei.mt2 = &value
	}
	return *ei.mt2, nil
}

// SelectFatJet looks for a fat jet whose two leading-pt subjets each match
// one H->bb daughter within deltaRCut, with soft-drop mass above massCut.
// Either subjet-to-daughter assignment is accepted. The second return value
// is false when no fat jet matches or no b-jet pair is defined.
func (ei *EventInfo) SelectFatJet(massCut, deltaRCut float64) (FatJetCandidate, bool) {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	hbb, err := ei.higgsBBLocked()
	if err != nil {
		return FatJetCandidate{}, false
	}
	daughters := hbb.Daughters()
	for _, fatJet := range ei.fatJetsLocked() {
		if fatJet.SoftDropMass < massCut {
			continue
		}
		if len(fatJet.SubJets) < 2 {
			continue
		}
		subJets := make([]SubJet, len(fatJet.SubJets))
		copy(subJets, fatJet.SubJets)
		sort.SliceStable(subJets, func(i, j int) bool {
			return subJets[i].Momentum.Pt > subJets[j].Momentum.Pt
		})
		var dR [2][2]float64
		for n := 0; n < 2; n++ {
			for k := 0; k < 2; k++ {
				dR[n][k] = DeltaR(subJets[n].Momentum, daughters[k])
			}
		}
		if (dR[0][0] < deltaRCut && dR[1][1] < deltaRCut) ||
			(dR[0][1] < deltaRCut && dR[1][0] < deltaRCut) {
			return fatJet, true
		}
	}
	return FatJetCandidate{}, false
}

// JetSelectionOptions parameterizes a generic jet sub-selection.
type JetSelectionOptions struct {
	PtCut       float64
	EtaCut      float64
	ApplyPuID   bool
	RequireBTag bool        // medium working point under Ordering
	Ordering    JetOrdering // tagger used for ranking and the b-tag requirement
	Exclude     map[int]bool
	LowEtaCut   float64 // drop jets with |eta| below this window edge
}

// SelectJets returns a filtered, ranked sub-selection of the current jet
// collection. Results are recomputed on every call, not memoized.
func (ei *EventInfo) SelectJets(opts JetSelectionOptions) ([]JetCandidate, error) {
	tagger, err := NewBTagger(ei.period, opts.Ordering)
	if err != nil {
		return nil, err
	}
	if err := ei.rec.validateJetArrays(opts.Ordering); err != nil {
		return nil, err
	}
	ei.mu.Lock()
	defer ei.mu.Unlock()

	byIndex := make(map[int]JetCandidate)
	var infos []JetInfo
	for _, jet := range ei.jetsLocked() {
		n := jet.Index
		byIndex[n] = jet
		if !passNoiseVeto(jet.Momentum, ei.period, ei.rec.JetPuID[n]) {
			continue
		}
		if opts.Exclude[n] {
			continue
		}
		if opts.ApplyPuID && ei.rec.JetPuID[n]&puIDLooseBit == 0 {
			continue
		}
		absEta := jet.Momentum.Eta
		if absEta < 0 {
			absEta = -absEta
		}
		if absEta < opts.LowEtaCut {
			continue
		}
		if opts.RequireBTag && !tagger.Pass(ei.rec, n, WPMedium) {
			continue
		}
		infos = append(infos, JetInfo{P4: jet.Momentum, Index: n, Tag: tagger.Tag(ei.rec, n)})
	}
	ranked := RankJets(infos, opts.PtCut, opts.EtaCut)
	selected := make([]JetCandidate, 0, len(ranked))
	for _, info := range ranked {
		selected = append(selected, byIndex[info.Index])
	}
	return selected, nil
}

// Thresholds of the HT sub-selection.
const (
	htMinJetPt   = 20.0
	htMaxJetEta  = 4.7
	htOpenEtaCut = 5.0
)

// HT returns the summed transverse momentum of the generic sub-selection.
// With includeHbbJets false, the selected b-jet pair is excluded; with
// applyEtaCut false, the eta window widens to the full acceptance.
func (ei *EventInfo) HT(includeHbbJets, applyEtaCut bool) (float64, error) {
	etaCut := htOpenEtaCut
	if applyEtaCut {
		etaCut = htMaxJetEta
	}
	var exclude map[int]bool
	if !includeHbbJets {
		exclude = ei.selection.BJetIndices()
	}
	jets, err := ei.SelectJets(JetSelectionOptions{
		PtCut:    htMinJetPt,
		EtaCut:   etaCut,
		Ordering: OrderByDeepCSV,
		Exclude:  exclude,
	})
	if err != nil {
		return 0, err
	}
	var ht float64
	for _, jet := range jets {
		ht += jet.Momentum.Pt
	}
	return ht, nil
}

// HasFitLegPair reports whether the record carries an upstream-fitted
// leg-pair momentum for the selected candidate pair.
func (ei *EventInfo) HasFitLegPair() bool {
	return ei.pairIndex < len(ei.rec.PairFitValid) && ei.rec.PairFitValid[ei.pairIndex] &&
		ei.pairIndex < len(ei.rec.PairFitP4)
}

// LegPairMomentum returns the momentum of the selected leg pair: the plain
// four-vector sum, or the upstream-fitted momentum when useFit is set.
func (ei *EventInfo) LegPairMomentum(useFit bool) (P4, error) {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	return ei.legPairMomentumLocked(useFit)
}

func (ei *EventInfo) legPairMomentumLocked(useFit bool) (P4, error) {
	if useFit {
		if !ei.HasFitLegPair() {
			return P4{}, fmt.Errorf("%w: no fitted leg-pair momentum for candidate pair %d", ErrMissingPrerequisite, ei.pairIndex)
		}
		return ei.rec.PairFitP4[ei.pairIndex], nil
	}
	leg1, err := ei.legLocked(1)
	if err != nil {
		return P4{}, err
	}
	leg2, err := ei.legLocked(2)
	if err != nil {
		return P4{}, err
	}
	return leg1.Momentum.Add(leg2.Momentum), nil
}

// ResonanceMomentum returns the full-system momentum: leg pair plus H->bb,
// optionally adding the missing energy. Requesting both the fit-corrected
// leg pair and MET inclusion is a conflicting combination.
func (ei *EventInfo) ResonanceMomentum(useFit, addMET bool) (P4, error) {
	if useFit && addMET {
		return P4{}, fmt.Errorf("%w: can't add MET with the fitted leg-pair momentum applied", ErrConflictingRequest)
	}
	ei.mu.Lock()
	defer ei.mu.Unlock()
	legPair, err := ei.legPairMomentumLocked(useFit)
	if err != nil {
		return P4{}, err
	}
	hbb, err := ei.higgsBBLocked()
	if err != nil {
		return P4{}, err
	}
	p4 := legPair.Add(hbb.Momentum())
	if addMET {
		p4 = p4.Add(ei.metLocked().Momentum)
	}
	return p4, nil
}

// SetMvaScore stores an externally computed multivariate score.
func (ei *EventInfo) SetMvaScore(score float64) {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	ei.mvaScore = &score
}

// MvaScore returns the stored multivariate score, if any.
func (ei *EventInfo) MvaScore() (float64, bool) {
	ei.mu.Lock()
	defer ei.mu.Unlock()
	if ei.mvaScore == nil {
		return 0, false
	}
	return *ei.mvaScore, true
}
