package ana

import (
	"sync"
)

// testRecord builds the standard fixture used across the package tests.
//
// Jet layout (period 2017, deep-flavour ordering, medium WP = 0.3033):
//
//	idx  pt   eta   phi   tag    role
//	0    60   0.5   0.8   0.90   first b jet
//	1    50   1.0  -0.8   0.80   second b jet (passes medium)
//	2    45  -1.5   1.5   0.02   b-eligible, fails medium
//	3    80   3.0   1.0   0.00   VBF candidate (outside b eta window)
//	4    70  -3.5  -2.0   0.00   VBF candidate
//	5    40   4.8   0.0   0.00   forward jet outside both eta windows
func testRecord() *EventRecord {
	return &EventRecord{
		ID:        EventID{Run: 1, Lumi: 2, Event: 3},
		ChannelID: int(ChannelMuTau),

		LepP4: []P4{
			{Pt: 40, Eta: 0.2, Phi: 0.3, Mass: 0.105},
			{Pt: 35, Eta: -0.3, Phi: 2.0, Mass: 1.777},
		},
		LepCharge: []int{1, -1},
		LepType:   []int{1, 2},
		LepIso:    []float64{0.05, 0.1},

		JetP4: []P4{
			{Pt: 60, Eta: 0.5, Phi: 0.8, Mass: 10},
			{Pt: 50, Eta: 1.0, Phi: -0.8, Mass: 8},
			{Pt: 45, Eta: -1.5, Phi: 1.5, Mass: 7},
			{Pt: 80, Eta: 3.0, Phi: 1.0, Mass: 12},
			{Pt: 70, Eta: -3.5, Phi: -2.0, Mass: 11},
			{Pt: 40, Eta: 4.8, Phi: 0.0, Mass: 6},
		},
		JetDeepFlavourB:    []float64{0.90, 0.80, 0.02, 0.00, 0.00, 0.00},
		JetDeepFlavourBB:   []float64{0, 0, 0, 0, 0, 0},
		JetDeepFlavourLepB: []float64{0, 0, 0, 0, 0, 0},
		JetDeepCSV:         []float64{0.85, 0.75, 0.05, 0.01, 0.01, 0.01},
		JetCSV:             []float64{0.95, 0.90, 0.20, 0.10, 0.10, 0.10},
		JetPuID:            []uint16{2, 2, 2, 2, 2, 2},
		JetResolution:      []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1},
		OtherJetP4:         []P4{{Pt: 15, Eta: 0.1, Phi: 0.2, Mass: 3}},

		FatJetP4:           []P4{{Pt: 250, Eta: 0.7, Phi: 0.1, Mass: 120}},
		FatJetSoftDropMass: []float64{110},
		SubJetP4: []P4{
			{Pt: 120, Eta: 0.52, Phi: 0.82, Mass: 5},
			{Pt: 100, Eta: 1.02, Phi: -0.78, Mass: 4},
		},
		SubJetParent: []int{0, 0},

		METP4:    P4{Pt: 45, Phi: -1.0},
		METCovXX: 100, METCovXY: 10, METCovYY: 80,

		TriggerAccepts: 0b101,
		TriggerMatches: []uint64{0b001},

		// Side-table entry for the selected pair (0, 1).
		KinFitPairID:      []int{0},
		KinFitConvergence: []int{1},
		KinFitChi2:        []float64{2.5},
		KinFitMass:        []float64{125.0},

		FirstDaughterIndex:  []int{0},
		SecondDaughterIndex: []int{1},

		PairFitP4:    []P4{{Pt: 90, Eta: 0.1, Phi: 1.1, Mass: 116}},
		PairFitValid: []bool{true},
	}
}

func testSummary(corrector JetCorrector) *SummaryInfo {
	summary := &RunSummary{
		TriggerChannels: []int{int(ChannelMuTau), int(ChannelETau)},
		TriggerPatterns: []string{"HLT_IsoMu27_v", "HLT_Ele32_WPTight_Gsf_v"},
		Corrector:       corrector,
	}
	info, err := NewSummaryInfo(summary)
	if err != nil {
		panic(err)
	}
	return info
}

// countingSolver counts Fit invocations and returns fixed results.
type countingSolver struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSolver) Fit(_, _, _, _ P4, _ METCandidate, _, _ float64) (int, float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return 1, 4.0, 130.0
}

func (s *countingSolver) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// scalingCorrector multiplies every jet pt and the MET pt by Factor,
// preserving jet indices.
type scalingCorrector struct {
	Factor float64
}

func (c scalingCorrector) Apply(jets []JetCandidate, _ []P4, met P4, _ UncertaintySource, _ UncertaintyScale) ([]JetCandidate, P4) {
	corrected := make([]JetCandidate, len(jets))
	for i, jet := range jets {
		jet.Momentum.Pt *= c.Factor
		corrected[i] = jet
	}
	met.Pt *= c.Factor
	return corrected, met
}
