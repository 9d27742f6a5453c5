// MT2 kinematic discriminant. MT2 bounds the mass of pair-produced particles
// with invisible decay products: each lepton leg is paired with one b jet as
// the visible system, and the missing energy is split between the two
// hypothetical invisible particles so that the larger transverse mass is as
// small as possible.

package ana

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// CalculateMT2 computes the discriminant for visible systems (leg1 + b1) and
// (leg2 + b2) against the missing-energy vector. The minimization over the
// invisible-momentum split runs Nelder-Mead from the deterministic even-split
// start, so the result is reproducible for fixed inputs.
func CalculateMT2(leg1, leg2, b1, b2, met P4) float64 {
	vis1 := leg1.Add(b1)
	vis2 := leg2.Add(b2)
	metX, metY := met.Px(), met.Py()

	objective := func(q []float64) float64 {
		m1 := transverseMass(vis1, q[0], q[1])
		m2 := transverseMass(vis2, metX-q[0], metY-q[1])
		return math.Max(m1, m2)
	}

	start := []float64{metX / 2, metY / 2}
	problem := optimize.Problem{Func: objective}
	result, err := optimize.Minimize(problem, start, nil, &optimize.NelderMead{})
	if err != nil || result == nil {
		return objective(start)
	}
	return result.F
}

// transverseMass is the transverse mass of a visible system against a
// massless invisible candidate with transverse momentum (qx, qy).
func transverseMass(vis P4, qx, qy float64) float64 {
	qt := math.Hypot(qx, qy)
	mt2 := vis.Mass*vis.Mass + 2*(vis.Et()*qt-vis.Px()*qx-vis.Py()*qy)
	if mt2 < 0 {
		return 0
	}
	return math.Sqrt(mt2)
}
