// B-tagging working points and score extraction per data-taking period and
// jet-ordering policy. Threshold values follow the published per-period
// discriminator calibrations.

package ana

import "fmt"

// Period labels a data-taking period.
type Period int

const (
	Period2016 Period = iota
	Period2017
	Period2018
)

var periodNames = map[Period]string{
	Period2016: "2016",
	Period2017: "2017",
	Period2018: "2018",
}

func (p Period) String() string {
	if name, ok := periodNames[p]; ok {
		return name
	}
	return fmt.Sprintf("period(%d)", int(p))
}

// ParsePeriod converts a config string into a Period.
func ParsePeriod(s string) (Period, error) {
	for p, name := range periodNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown period %q", s)
}

// JetOrdering selects which tagger score ranks jets.
type JetOrdering int

const (
	OrderByPt JetOrdering = iota
	OrderByCSV
	OrderByDeepCSV
	OrderByDeepFlavour
)

var orderingNames = map[JetOrdering]string{
	OrderByPt:          "pt",
	OrderByCSV:         "csv",
	OrderByDeepCSV:     "deep-csv",
	OrderByDeepFlavour: "deep-flavour",
}

func (o JetOrdering) String() string {
	if name, ok := orderingNames[o]; ok {
		return name
	}
	return fmt.Sprintf("ordering(%d)", int(o))
}

// ParseJetOrdering converts a config string into a JetOrdering.
func ParseJetOrdering(s string) (JetOrdering, error) {
	for o, name := range orderingNames {
		if name == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown jet ordering %q", s)
}

// WorkingPoint is a fixed discriminator threshold.
type WorkingPoint int

const (
	WPLoose WorkingPoint = iota
	WPMedium
	WPTight
)

// Signal b-jet acceptance, shared across periods.
const (
	bJetPtCut  = 20.0
	bJetEtaCut = 2.4
)

// VBF jet acceptance, looser than the b-jet one.
const (
	vbfPtCut  = 30.0
	vbfEtaCut = 4.7
)

// puIDLooseBit is the required pile-up-id bit in the jet pu-id word.
const puIDLooseBit = 0x2

type wpKey struct {
	period   Period
	ordering JetOrdering
	wp       WorkingPoint
}

// Per-period discriminator thresholds. CSV is only calibrated through 2017.
var wpThresholds = map[wpKey]float64{
	{Period2016, OrderByCSV, WPLoose}:  0.5426,
	{Period2016, OrderByCSV, WPMedium}: 0.8484,
	{Period2016, OrderByCSV, WPTight}:  0.9535,
	{Period2017, OrderByCSV, WPLoose}:  0.5803,
	{Period2017, OrderByCSV, WPMedium}: 0.8838,
	{Period2017, OrderByCSV, WPTight}:  0.9693,

	{Period2016, OrderByDeepCSV, WPLoose}:  0.2217,
	{Period2016, OrderByDeepCSV, WPMedium}: 0.6321,
	{Period2016, OrderByDeepCSV, WPTight}:  0.8953,
	{Period2017, OrderByDeepCSV, WPLoose}:  0.1522,
	{Period2017, OrderByDeepCSV, WPMedium}: 0.4941,
	{Period2017, OrderByDeepCSV, WPTight}:  0.8001,
	{Period2018, OrderByDeepCSV, WPLoose}:  0.1241,
	{Period2018, OrderByDeepCSV, WPMedium}: 0.4184,
	{Period2018, OrderByDeepCSV, WPTight}:  0.7527,

	{Period2016, OrderByDeepFlavour, WPLoose}:  0.0614,
	{Period2016, OrderByDeepFlavour, WPMedium}: 0.3093,
	{Period2016, OrderByDeepFlavour, WPTight}:  0.7221,
	{Period2017, OrderByDeepFlavour, WPLoose}:  0.0521,
	{Period2017, OrderByDeepFlavour, WPMedium}: 0.3033,
	{Period2017, OrderByDeepFlavour, WPTight}:  0.7489,
	{Period2018, OrderByDeepFlavour, WPLoose}:  0.0494,
	{Period2018, OrderByDeepFlavour, WPMedium}: 0.2770,
	{Period2018, OrderByDeepFlavour, WPTight}:  0.7264,
}

// BTagger evaluates the tagging score and working-point decisions for one
// (period, ordering) combination.
type BTagger struct {
	period   Period
	ordering JetOrdering
}

// NewBTagger validates the combination and returns a tagger for it.
// OrderByPt is accepted for ranking but carries no working points.
func NewBTagger(period Period, ordering JetOrdering) (*BTagger, error) {
	if _, ok := periodNames[period]; !ok {
		return nil, fmt.Errorf("unknown period %d", int(period))
	}
	if _, ok := orderingNames[ordering]; !ok {
		return nil, fmt.Errorf("unknown jet ordering %d", int(ordering))
	}
	if ordering != OrderByPt {
		if _, ok := wpThresholds[wpKey{period, ordering, WPMedium}]; !ok {
			return nil, fmt.Errorf("no %s working points calibrated for period %s", ordering, period)
		}
	}
	return &BTagger{period: period, ordering: ordering}, nil
}

// PtCut returns the signal b-jet transverse-momentum threshold.
func (b *BTagger) PtCut() float64 { return bJetPtCut }

// EtaCut returns the signal b-jet pseudorapidity window.
func (b *BTagger) EtaCut() float64 { return bJetEtaCut }

// Tag returns the ranking score of jet i under the configured ordering.
func (b *BTagger) Tag(rec *EventRecord, i int) float64 {
	switch b.ordering {
	case OrderByCSV:
		return rec.JetCSV[i]
	case OrderByDeepCSV:
		return rec.JetDeepCSV[i]
	case OrderByDeepFlavour:
		return rec.JetDeepFlavourB[i] + rec.JetDeepFlavourBB[i] + rec.JetDeepFlavourLepB[i]
	default:
		return rec.JetP4[i].Pt
	}
}

// Pass reports whether jet i passes the given working point.
// Under OrderByPt there is no discriminator, so every jet passes.
func (b *BTagger) Pass(rec *EventRecord, i int, wp WorkingPoint) bool {
	if b.ordering == OrderByPt {
		return true
	}
	threshold, ok := wpThresholds[wpKey{b.period, b.ordering, wp}]
	if !ok {
		return false
	}
	return b.Tag(rec, i) > threshold
}

// passNoiseVeto applies the detector-noise veto. For the 2017 period, jets
// with pt below 50 pointing at the noisy ECAL transition region are dropped.
func passNoiseVeto(p4 P4, period Period, _ uint16) bool {
	if period != Period2017 {
		return true
	}
	absEta := p4.Eta
	if absEta < 0 {
		absEta = -absEta
	}
	if p4.Pt < 50 && absEta > 2.65 && absEta < 3.139 {
		return false
	}
	return true
}
