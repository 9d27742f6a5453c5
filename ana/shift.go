// Systematic shifts: clone an EventInfo with corrected jets and missing
// energy, leaving the source instance and its cache untouched.

package ana

// UncertaintySource names a jet-energy uncertainty source.
type UncertaintySource string

const (
	SourceJetEnergyScale      UncertaintySource = "jes_total"
	SourceJetEnergyResolution UncertaintySource = "jer"
)

// UncertaintyScale is the direction of a systematic variation.
type UncertaintyScale int

const (
	ScaleDown    UncertaintyScale = -1
	ScaleCentral UncertaintyScale = 0
	ScaleUp      UncertaintyScale = 1
)

func (s UncertaintyScale) String() string {
	switch s {
	case ScaleDown:
		return "down"
	case ScaleUp:
		return "up"
	default:
		return "central"
	}
}

// JetCorrector is the external per-source correction collaborator. Apply must
// be pure, must not modify its inputs, and must preserve each jet's Index so
// corrected jets stay aligned with the record's per-jet arrays.
type JetCorrector interface {
	Apply(jets []JetCandidate, otherJets []P4, met P4, source UncertaintySource, scale UncertaintyScale) (corrected []JetCandidate, shiftedMET P4)
}

// ApplyShift produces a new EventInfo with jets and missing energy recomputed
// under the given variation. Only the record reference, selection, period,
// ordering policy, and collaborators carry over; every derived-field slot of
// the clone starts empty except the two shifted fields.
func (ei *EventInfo) ApplyShift(source UncertaintySource, scale UncertaintyScale) (*EventInfo, error) {
	summary, err := ei.Summary()
	if err != nil {
		return nil, err
	}
	corrector, err := summary.JetUncertainties()
	if err != nil {
		return nil, err
	}

	jets := ei.Jets()
	met := ei.MET()
	corrected, shiftedMET := corrector.Apply(jets, ei.rec.OtherJetP4, met.Momentum, source, scale)

	shifted := &EventInfo{
		rec:       ei.rec,
		summary:   ei.summary,
		pairIndex: ei.pairIndex,
		period:    ei.period,
		ordering:  ei.ordering,
		tagger:    ei.tagger,
		selection: ei.selection,
		triggers:  ei.triggers,
		solver:    ei.solver,
	}
	shifted.jets = make([]JetCandidate, len(corrected))
	copy(shifted.jets, corrected)
	shifted.jetsBuilt = true
	shifted.met = &METCandidate{Momentum: shiftedMET, Cov: met.Cov}
	return shifted, nil
}
