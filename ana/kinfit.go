// Kinematic-fit result type and the external solver contract. The numerical
// fit itself is an opaque collaborator: this package either reads a
// precomputed entry from the record's side table or forwards to the solver.

package ana

import "gonum.org/v1/gonum/stat/distuv"

// FitResults is the outcome of the constrained kinematic fit for the selected
// lepton legs, b-jet pair and missing energy.
type FitResults struct {
	Convergence int
	Chi2        float64
	Probability float64
	Mass        float64
}

// Converged reports whether the fit reached a valid minimum.
func (r FitResults) Converged() bool { return r.Convergence > 0 }

// FitSolver is the external constrained-fit collaborator. Implementations
// must be pure: same inputs, same outputs, no retained state.
type FitSolver interface {
	Fit(leg1, leg2, b1, b2 P4, met METCandidate, resolution1, resolution2 float64) (convergence int, chi2 float64, mass float64)
}

// kinFitNDF is the number of degrees of freedom of the constrained fit.
const kinFitNDF = 2

// ChiSquareProbability returns the upper-tail probability of a chi-squared
// distribution with ndf degrees of freedom at chi2.
func ChiSquareProbability(chi2 float64, ndf int) float64 {
	if chi2 < 0 {
		return 1
	}
	dist := distuv.ChiSquared{K: float64(ndf)}
	return dist.Survival(chi2)
}
