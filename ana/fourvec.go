// Four-momentum arithmetic in the (pt, eta, phi, mass) representation used by
// the flat event record. All operations are pure value computations.

package ana

import "math"

// P4 is a four-momentum in (pt, eta, phi, mass) coordinates.
// The zero value is a valid null momentum.
type P4 struct {
	Pt   float64 `yaml:"pt"`
	Eta  float64 `yaml:"eta"`
	Phi  float64 `yaml:"phi"`
	Mass float64 `yaml:"mass"`
}

// Px returns the x component of the transverse momentum.
func (p P4) Px() float64 { return p.Pt * math.Cos(p.Phi) }

// Py returns the y component of the transverse momentum.
func (p P4) Py() float64 { return p.Pt * math.Sin(p.Phi) }

// Pz returns the longitudinal momentum component.
func (p P4) Pz() float64 { return p.Pt * math.Sinh(p.Eta) }

// P returns the magnitude of the three-momentum.
func (p P4) P() float64 { return p.Pt * math.Cosh(p.Eta) }

// E returns the energy. Negative squared masses (possible after float
// round-trips) are clamped to zero.
func (p P4) E() float64 {
	m2 := p.Mass * p.Mass
	if p.Mass < 0 {
		m2 = 0
	}
	pm := p.P()
	return math.Sqrt(pm*pm + m2)
}

// M returns the invariant mass.
func (p P4) M() float64 { return p.Mass }

// Et returns the transverse energy sqrt(m^2 + pt^2).
func (p P4) Et() float64 {
	m2 := p.Mass * p.Mass
	if p.Mass < 0 {
		m2 = 0
	}
	return math.Sqrt(m2 + p.Pt*p.Pt)
}

// FromPxPyPzE builds a P4 from cartesian components.
func FromPxPyPzE(px, py, pz, e float64) P4 {
	pt := math.Hypot(px, py)
	pm := math.Sqrt(px*px + py*py + pz*pz)
	var eta float64
	if pt > 0 {
		eta = math.Asinh(pz / pt)
	} else if pz > 0 {
		eta = math.Inf(1)
	} else if pz < 0 {
		eta = math.Inf(-1)
	}
	phi := math.Atan2(py, px)
	m2 := e*e - pm*pm
	m := 0.0
	if m2 > 0 {
		m = math.Sqrt(m2)
	}
	return P4{Pt: pt, Eta: eta, Phi: phi, Mass: m}
}

// Add returns the four-vector sum of p and o.
func (p P4) Add(o P4) P4 {
	return FromPxPyPzE(p.Px()+o.Px(), p.Py()+o.Py(), p.Pz()+o.Pz(), p.E()+o.E())
}

// DeltaPhi returns the signed azimuthal separation in (-pi, pi].
func DeltaPhi(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// DeltaR returns the eta-phi cone distance between two momenta.
func DeltaR(a, b P4) float64 {
	dEta := a.Eta - b.Eta
	dPhi := DeltaPhi(a.Phi, b.Phi)
	return math.Sqrt(dEta*dEta + dPhi*dPhi)
}
