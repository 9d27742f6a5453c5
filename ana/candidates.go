// Analysis-level candidate views over the flat record arrays.

package ana

import "gonum.org/v1/gonum/mat"

// LeptonCandidate is one reconstructed lepton leg.
type LeptonCandidate struct {
	Momentum P4
	Index    int
	Charge   int
	Type     int
	Iso      float64
}

// JetCandidate is one reconstructed jet with the fields the derived-object
// engine needs downstream.
type JetCandidate struct {
	Momentum   P4
	Index      int
	Resolution float64 // fractional energy resolution
}

// SubJet is one subjet of a fat jet.
type SubJet struct {
	Momentum P4
}

// FatJetCandidate is one large-radius jet with its subjets.
type FatJetCandidate struct {
	Momentum     P4
	Index        int
	SoftDropMass float64
	SubJets      []SubJet
}

// METCandidate is the missing-energy vector with its 2x2 covariance.
type METCandidate struct {
	Momentum P4
	Cov      *mat.SymDense
}

// HiggsBBCandidate is the composite two-jet candidate built from the selected
// b-jet pair.
type HiggsBBCandidate struct {
	First  JetCandidate
	Second JetCandidate
}

// Momentum returns the four-vector sum of both daughters.
func (h HiggsBBCandidate) Momentum() P4 {
	return h.First.Momentum.Add(h.Second.Momentum)
}

// Daughters returns the daughter momenta in selection order.
func (h HiggsBBCandidate) Daughters() [2]P4 {
	return [2]P4{h.First.Momentum, h.Second.Momentum}
}
