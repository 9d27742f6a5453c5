package ana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestEventInfo(t *testing.T, opts EventOptions) *EventInfo {
	t.Helper()
	info, err := NewEventInfo(testRecord(), 0, Period2017, OrderByDeepFlavour, opts)
	require.NoError(t, err)
	return info
}

func TestNewEventInfo_InvalidPairIndex(t *testing.T) {
	_, err := NewEventInfo(testRecord(), 1, Period2017, OrderByDeepFlavour, EventOptions{})
	assert.ErrorIs(t, err, ErrInvalidIndex)

	_, err = NewEventInfo(testRecord(), -1, Period2017, OrderByDeepFlavour, EventOptions{})
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestNewEventInfo_MalformedJetArrays(t *testing.T) {
	// GIVEN a record whose pile-up-id array is shorter than the jet collection
	rec := testRecord()
	rec.JetPuID = rec.JetPuID[:2]

	_, err := NewEventInfo(rec, 0, Period2017, OrderByDeepFlavour, EventOptions{})
	assert.ErrorIs(t, err, ErrMissingPrerequisite)
}

func TestNewEventInfo_MissingTriggerMatchEntry(t *testing.T) {
	rec := testRecord()
	rec.TriggerMatches = nil

	_, err := NewEventInfo(rec, 0, Period2017, OrderByDeepFlavour, EventOptions{})
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestEventInfo_Legs(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{})

	leg1, err := info.Leg(1)
	require.NoError(t, err)
	assert.Equal(t, 0, leg1.Index)
	assert.Equal(t, 1, leg1.Charge)

	leg2, err := info.Leg(2)
	require.NoError(t, err)
	assert.Equal(t, 1, leg2.Index)
	assert.InDelta(t, 1.777, leg2.Momentum.Mass, 1e-9)

	// Leg ids outside {1, 2} are invalid.
	_, err = info.Leg(0)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	_, err = info.Leg(3)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestEventInfo_JetsAndMET(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{})

	jets := info.Jets()
	require.Len(t, jets, 6)
	assert.Equal(t, 3, jets[3].Index)
	assert.InDelta(t, 80, jets[3].Momentum.Pt, 1e-9)

	met := info.MET()
	assert.InDelta(t, 45, met.Momentum.Pt, 1e-9)
	assert.InDelta(t, 100, met.Cov.At(0, 0), 1e-9)
	assert.InDelta(t, 10, met.Cov.At(0, 1), 1e-9)
	assert.InDelta(t, 80, met.Cov.At(1, 1), 1e-9)
}

func TestEventInfo_Jets_ReturnsCopy(t *testing.T) {
	// GIVEN a populated jet collection
	info := newTestEventInfo(t, EventOptions{})
	jets := info.Jets()

	// WHEN the caller mutates the returned slice
	jets[0].Momentum.Pt = -1

	// THEN the cached collection is unaffected
	assert.InDelta(t, 60, info.Jets()[0].Momentum.Pt, 1e-9)
}

func TestEventInfo_BJetAccessors(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{})
	require.True(t, info.HasBJetPair())

	b1, err := info.BJet(1)
	require.NoError(t, err)
	assert.Equal(t, 0, b1.Index)

	b2, err := info.BJet(2)
	require.NoError(t, err)
	assert.Equal(t, 1, b2.Index)

	// Index outside {1, 2} is invalid regardless of selection state.
	_, err = info.BJet(3)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	v1, err := info.VBFJet(1)
	require.NoError(t, err)
	assert.Equal(t, 3, v1.Index)
}

func TestEventInfo_MissingBJetPair_Errors(t *testing.T) {
	// GIVEN an event with a single passing jet, so no b-jet pair
	rec := &EventRecord{
		LepP4:               []P4{{Pt: 40, Eta: 0.2, Phi: 0.3, Mass: 0.105}, {Pt: 35, Eta: -0.3, Phi: 2.0, Mass: 1.777}},
		JetP4:               []P4{{Pt: 50, Eta: 0.0, Phi: 0.5, Mass: 8}},
		JetDeepFlavourB:     []float64{0.9},
		JetDeepFlavourBB:    []float64{0},
		JetDeepFlavourLepB:  []float64{0},
		JetPuID:             []uint16{2},
		TriggerMatches:      []uint64{0},
		FirstDaughterIndex:  []int{0},
		SecondDaughterIndex: []int{1},
	}
	info, err := NewEventInfo(rec, 0, Period2017, OrderByDeepFlavour, EventOptions{})
	require.NoError(t, err)
	require.False(t, info.HasBJetPair())

	// THEN every pair-dependent accessor reports the missing prerequisite
	_, err = info.HiggsBB()
	assert.ErrorIs(t, err, ErrMissingPrerequisite)

	_, err = info.BJet(1)
	assert.ErrorIs(t, err, ErrMissingPrerequisite)

	_, err = info.VBFJet(1)
	assert.ErrorIs(t, err, ErrMissingPrerequisite)

	_, err = info.KinFitResult()
	assert.ErrorIs(t, err, ErrMissingPrerequisite)

	_, err = info.MT2()
	assert.ErrorIs(t, err, ErrMissingPrerequisite)

	// BUT the has-pair predicate itself is a legitimate query, not an error,
	// and the fat-jet match reports "not found".
	_, found := info.SelectFatJet(30, 0.4)
	assert.False(t, found)
}

func TestEventInfo_HiggsBB(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{})

	hbb, err := info.HiggsBB()
	require.NoError(t, err)
	assert.Equal(t, 0, hbb.First.Index)
	assert.Equal(t, 1, hbb.Second.Index)

	// The composite momentum is the four-vector sum of both daughters.
	want := hbb.First.Momentum.Add(hbb.Second.Momentum)
	assert.InDelta(t, want.M(), hbb.Momentum().M(), 1e-9)
	assert.Greater(t, hbb.Momentum().M(), 0.0)
}

func TestEventInfo_MemoizedAccessorsAreIdempotent(t *testing.T) {
	// GIVEN a record whose side table misses, forcing the external solver
	rec := testRecord()
	rec.KinFitPairID = []int{99}
	solver := &countingSolver{}
	info, err := NewEventInfo(rec, 0, Period2017, OrderByDeepFlavour, EventOptions{Solver: solver})
	require.NoError(t, err)

	first, err := info.KinFitResult()
	require.NoError(t, err)

	// WHEN calling the memoized accessors repeatedly
	for i := 0; i < 5; i++ {
		again, err := info.KinFitResult()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	mt2First, err := info.MT2()
	require.NoError(t, err)
	mt2Again, err := info.MT2()
	require.NoError(t, err)

	// THEN results are identical and the solver ran exactly once
	assert.Equal(t, mt2First, mt2Again)
	assert.Equal(t, 1, solver.Calls())
}

func TestEventInfo_ConcurrentAccess_ComputesOnce(t *testing.T) {
	// GIVEN a side-table miss and a call-counting solver
	rec := testRecord()
	rec.KinFitPairID = nil
	solver := &countingSolver{}
	info, err := NewEventInfo(rec, 0, Period2017, OrderByDeepFlavour, EventOptions{Solver: solver})
	require.NoError(t, err)

	// WHEN many goroutines race every accessor on the same instance
	var g errgroup.Group
	results := make([]FitResults, 32)
	for i := 0; i < 32; i++ {
		i := i
		g.Go(func() error {
			fit, err := info.KinFitResult()
			if err != nil {
				return err
			}
			results[i] = fit
			if _, err := info.MT2(); err != nil {
				return err
			}
			if _, err := info.HiggsBB(); err != nil {
				return err
			}
			info.Jets()
			info.MET()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// THEN the fit ran exactly once and every caller saw the same result
	assert.Equal(t, 1, solver.Calls())
	for _, fit := range results[1:] {
		assert.Equal(t, results[0], fit)
	}
}

func TestEventInfo_KinFit_SideTableHit(t *testing.T) {
	// GIVEN the standard record with a precomputed entry for pair (0, 1)
	solver := &countingSolver{}
	info := newTestEventInfo(t, EventOptions{Solver: solver})

	fit, err := info.KinFitResult()
	require.NoError(t, err)

	// THEN the stored values win and the solver is never invoked
	assert.Equal(t, 1, fit.Convergence)
	assert.InDelta(t, 2.5, fit.Chi2, 1e-9)
	assert.InDelta(t, 125.0, fit.Mass, 1e-9)
	assert.InDelta(t, ChiSquareProbability(2.5, 2), fit.Probability, 1e-12)
	assert.True(t, fit.Converged())
	assert.Equal(t, 0, solver.Calls())
}

func TestEventInfo_KinFit_NoSolverOnMiss(t *testing.T) {
	rec := testRecord()
	rec.KinFitPairID = nil
	info, err := NewEventInfo(rec, 0, Period2017, OrderByDeepFlavour, EventOptions{})
	require.NoError(t, err)

	_, err = info.KinFitResult()
	assert.ErrorIs(t, err, ErrMissingPrerequisite)
}

func TestEventInfo_SelectFatJet(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{})

	// GIVEN subjets aligned with both H->bb daughters
	fatJet, found := info.SelectFatJet(30, 0.4)
	require.True(t, found)
	assert.Equal(t, 0, fatJet.Index)
	assert.InDelta(t, 110, fatJet.SoftDropMass, 1e-9)

	// WHEN the soft-drop mass cut exceeds the candidate's mass
	_, found = info.SelectFatJet(200, 0.4)
	assert.False(t, found)

	// WHEN the cone is too tight for the subjet-daughter separations
	_, found = info.SelectFatJet(30, 0.001)
	assert.False(t, found)
}

func TestEventInfo_SelectFatJet_NeedsTwoSubjets(t *testing.T) {
	rec := testRecord()
	rec.SubJetParent = []int{0} // second subjet orphaned
	rec.SubJetP4 = rec.SubJetP4[:1]
	info, err := NewEventInfo(rec, 0, Period2017, OrderByDeepFlavour, EventOptions{})
	require.NoError(t, err)

	_, found := info.SelectFatJet(30, 0.4)
	assert.False(t, found)
}

func TestEventInfo_SelectJets(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{})

	// GIVEN a b-tag-required sub-selection at the medium working point
	tagged, err := info.SelectJets(JetSelectionOptions{
		PtCut:       20,
		EtaCut:      2.4,
		RequireBTag: true,
		Ordering:    OrderByDeepFlavour,
	})
	require.NoError(t, err)
	require.Len(t, tagged, 2)
	assert.Equal(t, 0, tagged[0].Index)
	assert.Equal(t, 1, tagged[1].Index)

	// GIVEN an exclusion set
	remaining, err := info.SelectJets(JetSelectionOptions{
		PtCut:    20,
		EtaCut:   5,
		Ordering: OrderByPt,
		Exclude:  map[int]bool{0: true, 1: true},
	})
	require.NoError(t, err)
	for _, jet := range remaining {
		assert.NotContains(t, []int{0, 1}, jet.Index)
	}

	// GIVEN a low-eta window cut dropping central jets
	forward, err := info.SelectJets(JetSelectionOptions{
		PtCut:     20,
		EtaCut:    5,
		Ordering:  OrderByPt,
		LowEtaCut: 2.5,
	})
	require.NoError(t, err)
	require.Len(t, forward, 3)
	for _, jet := range forward {
		abs := jet.Momentum.Eta
		if abs < 0 {
			abs = -abs
		}
		assert.GreaterOrEqual(t, abs, 2.5)
	}
}

func TestEventInfo_SelectJets_MissingDiscriminatorArray(t *testing.T) {
	// GIVEN an instance built under deep-flavour ordering but a record that
	// does not carry the deep-csv discriminator
	rec := testRecord()
	rec.JetDeepCSV = nil
	info, err := NewEventInfo(rec, 0, Period2017, OrderByDeepFlavour, EventOptions{})
	require.NoError(t, err)

	// THEN a sub-selection ranked by deep-csv reports the missing array
	_, err = info.SelectJets(JetSelectionOptions{PtCut: 20, EtaCut: 4.7, Ordering: OrderByDeepCSV})
	assert.ErrorIs(t, err, ErrMissingPrerequisite)

	// AND so does HT, which ranks by deep-csv internally
	_, err = info.HT(true, true)
	assert.ErrorIs(t, err, ErrMissingPrerequisite)
}

func TestEventInfo_HT(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{})

	// All six jets pass pt > 20; jet 5 at eta 4.8 only enters the open window.
	htAll, err := info.HT(true, true)
	require.NoError(t, err)
	assert.InDelta(t, 60+50+45+80+70, htAll, 1e-9)

	htOpen, err := info.HT(true, false)
	require.NoError(t, err)
	assert.InDelta(t, 60+50+45+80+70+40, htOpen, 1e-9)

	// Excluding the H->bb jets removes jets 0 and 1.
	htNoHbb, err := info.HT(false, true)
	require.NoError(t, err)
	assert.InDelta(t, 45+80+70, htNoHbb, 1e-9)
}

func TestEventInfo_ResonanceMomentum(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{})

	// Requesting both the fitted leg pair and MET inclusion is conflicting.
	_, err := info.ResonanceMomentum(true, true)
	assert.ErrorIs(t, err, ErrConflictingRequest)

	plain, err := info.ResonanceMomentum(false, false)
	require.NoError(t, err)

	withMET, err := info.ResonanceMomentum(false, true)
	require.NoError(t, err)
	assert.Greater(t, withMET.E(), plain.E())

	// The fitted variant uses the upstream-fitted leg-pair momentum.
	require.True(t, info.HasFitLegPair())
	fitted, err := info.ResonanceMomentum(true, false)
	require.NoError(t, err)
	assert.NotEqual(t, plain, fitted)
}

func TestEventInfo_ResonanceMomentum_NoFitAvailable(t *testing.T) {
	rec := testRecord()
	rec.PairFitValid = []bool{false}
	info, err := NewEventInfo(rec, 0, Period2017, OrderByDeepFlavour, EventOptions{})
	require.NoError(t, err)
	require.False(t, info.HasFitLegPair())

	_, err = info.ResonanceMomentum(true, false)
	assert.ErrorIs(t, err, ErrMissingPrerequisite)
}

func TestEventInfo_MvaScore(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{})

	_, ok := info.MvaScore()
	assert.False(t, ok)

	info.SetMvaScore(0.73)
	score, ok := info.MvaScore()
	assert.True(t, ok)
	assert.InDelta(t, 0.73, score, 1e-12)
}

func TestEventInfo_Summary(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{})
	_, err := info.Summary()
	assert.ErrorIs(t, err, ErrMissingPrerequisite)

	withSummary := newTestEventInfo(t, EventOptions{Summary: testSummary(nil)})
	summary, err := withSummary.Summary()
	require.NoError(t, err)
	assert.NotNil(t, summary)
}

func TestEventInfo_TriggerResults(t *testing.T) {
	info := newTestEventInfo(t, EventOptions{Summary: testSummary(nil)})
	triggers := info.TriggerResults()

	accepted, err := triggers.Accept(0)
	require.NoError(t, err)
	assert.True(t, accepted)

	accepted, err = triggers.Accept(1)
	require.NoError(t, err)
	assert.False(t, accepted)

	matched, err := triggers.Match(0)
	require.NoError(t, err)
	assert.True(t, matched)

	_, err = triggers.Accept(-1)
	assert.ErrorIs(t, err, ErrInvalidIndex)

	assert.Equal(t, []string{"HLT_IsoMu27_v"}, triggers.Patterns())
	assert.True(t, triggers.AnyAccept())
}

func TestNewEventInfo_UnknownTriggerChannel(t *testing.T) {
	rec := testRecord()
	rec.ChannelID = int(ChannelTauTau) // summary only registers muTau and eTau

	_, err := NewEventInfo(rec, 0, Period2017, OrderByDeepFlavour, EventOptions{Summary: testSummary(nil)})
	assert.ErrorIs(t, err, ErrMissingPrerequisite)
}
