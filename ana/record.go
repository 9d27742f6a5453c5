// Flat per-event record and run-level summary, as produced by the upstream
// object-reconstruction pipeline. Both are read-only collaborators: the record
// must outlive every EventInfo built on top of it, and nothing in this package
// ever writes to either.

package ana

import "fmt"

// EventID identifies one collision event within a data-taking run.
type EventID struct {
	Run   uint64 `yaml:"run"`
	Lumi  uint64 `yaml:"lumi"`
	Event uint64 `yaml:"event"`
}

func (id EventID) String() string {
	return fmt.Sprintf("%d:%d:%d", id.Run, id.Lumi, id.Event)
}

// EventRecord is the flat per-event record. Parallel arrays are indexed by
// object position; per-pair arrays are indexed by candidate-pair position.
type EventRecord struct {
	ID        EventID `yaml:"id"`
	ChannelID int     `yaml:"channel_id"`

	// Signal leptons.
	LepP4     []P4      `yaml:"lep_p4"`
	LepCharge []int     `yaml:"lep_charge"`
	LepType   []int     `yaml:"lep_type"`
	LepIso    []float64 `yaml:"lep_iso"`

	// Candidate jets and the jets dropped by the upstream selection.
	JetP4              []P4      `yaml:"jet_p4"`
	JetCSV             []float64 `yaml:"jet_csv"`
	JetDeepCSV         []float64 `yaml:"jet_deep_csv"`
	JetDeepFlavourB    []float64 `yaml:"jet_deep_flavour_b"`
	JetDeepFlavourBB   []float64 `yaml:"jet_deep_flavour_bb"`
	JetDeepFlavourLepB []float64 `yaml:"jet_deep_flavour_lepb"`
	JetPuID            []uint16  `yaml:"jet_pu_id"`
	JetResolution      []float64 `yaml:"jet_resolution"` // fractional energy resolution
	OtherJetP4         []P4      `yaml:"other_jet_p4"`

	// Fat jets and their subjets. SubJetParent holds the fat-jet position
	// each subjet belongs to.
	FatJetP4           []P4      `yaml:"fat_jet_p4"`
	FatJetSoftDropMass []float64 `yaml:"fat_jet_soft_drop_mass"`
	SubJetP4           []P4      `yaml:"sub_jet_p4"`
	SubJetParent       []int     `yaml:"sub_jet_parent"`

	// Missing transverse energy and its 2x2 covariance.
	METP4    P4      `yaml:"met_p4"`
	METCovXX float64 `yaml:"met_cov_xx"`
	METCovXY float64 `yaml:"met_cov_xy"`
	METCovYY float64 `yaml:"met_cov_yy"`

	// Trigger accept bits and, per candidate pair, leg matching bits.
	TriggerAccepts uint64   `yaml:"trigger_accepts"`
	TriggerMatches []uint64 `yaml:"trigger_matches"`

	// Precomputed kinematic-fit side table keyed by canonical jet-pair index.
	KinFitPairID      []int     `yaml:"kinfit_pair_id"`
	KinFitConvergence []int     `yaml:"kinfit_convergence"`
	KinFitChi2        []float64 `yaml:"kinfit_chi2"`
	KinFitMass        []float64 `yaml:"kinfit_mass"`

	// Decay-product legs per candidate pair, chosen upstream.
	FirstDaughterIndex  []int `yaml:"first_daughter_index"`
	SecondDaughterIndex []int `yaml:"second_daughter_index"`

	// Optional upstream-fitted leg-pair momentum per candidate pair.
	PairFitP4    []P4   `yaml:"pair_fit_p4"`
	PairFitValid []bool `yaml:"pair_fit_valid"`
}

// NJets returns the number of candidate jets in the record.
func (r *EventRecord) NJets() int { return len(r.JetP4) }

// validateJetArrays checks the per-jet parallel arrays the selection and
// ranking code indexes by jet position. The pile-up-id array and the
// discriminator arrays of the requested ordering must have one entry per jet;
// arrays for other orderings may be absent.
func (r *EventRecord) validateJetArrays(ordering JetOrdering) error {
	check := func(name string, have int) error {
		if have != r.NJets() {
			return fmt.Errorf("%w: %s has %d entries for %d jets", ErrMissingPrerequisite, name, have, r.NJets())
		}
		return nil
	}
	if err := check("jet_pu_id", len(r.JetPuID)); err != nil {
		return err
	}
	switch ordering {
	case OrderByCSV:
		return check("jet_csv", len(r.JetCSV))
	case OrderByDeepCSV:
		return check("jet_deep_csv", len(r.JetDeepCSV))
	case OrderByDeepFlavour:
		if err := check("jet_deep_flavour_b", len(r.JetDeepFlavourB)); err != nil {
			return err
		}
		if err := check("jet_deep_flavour_bb", len(r.JetDeepFlavourBB)); err != nil {
			return err
		}
		return check("jet_deep_flavour_lepb", len(r.JetDeepFlavourLepB))
	}
	return nil
}

// NFatJets returns the number of fat jets in the record.
func (r *EventRecord) NFatJets() int { return len(r.FatJetP4) }

// NPairs returns the number of upstream candidate pairs.
func (r *EventRecord) NPairs() int { return len(r.FirstDaughterIndex) }

// Channel labels the data-taking channel of an event.
type Channel int

const (
	ChannelETau Channel = iota
	ChannelMuTau
	ChannelTauTau
	ChannelMuMu
)

var channelNames = map[Channel]string{
	ChannelETau:   "eTau",
	ChannelMuTau:  "muTau",
	ChannelTauTau: "tauTau",
	ChannelMuMu:   "muMu",
}

func (c Channel) String() string {
	if name, ok := channelNames[c]; ok {
		return name
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// RunSummary is the run-level production summary: the trigger patterns
// registered per channel and an optional jet/MET corrector for systematic
// variations.
type RunSummary struct {
	TriggerChannels []int    `yaml:"trigger_channels"`
	TriggerPatterns []string `yaml:"trigger_patterns"`

	// Corrector is the per-source jet-energy-uncertainty collaborator.
	// Nil when the production did not ship uncertainty tables.
	Corrector JetCorrector `yaml:"-"`
}

// SummaryInfo indexes a RunSummary for per-channel lookups.
type SummaryInfo struct {
	summary     *RunSummary
	descriptors map[Channel][]string
}

// NewSummaryInfo builds the per-channel trigger descriptor index.
func NewSummaryInfo(summary *RunSummary) (*SummaryInfo, error) {
	if summary == nil {
		return nil, fmt.Errorf("%w: run summary is nil", ErrMissingPrerequisite)
	}
	if len(summary.TriggerChannels) != len(summary.TriggerPatterns) {
		return nil, fmt.Errorf("trigger channel/pattern length mismatch: %d != %d",
			len(summary.TriggerChannels), len(summary.TriggerPatterns))
	}
	info := &SummaryInfo{
		summary:     summary,
		descriptors: make(map[Channel][]string),
	}
	for n, id := range summary.TriggerChannels {
		ch := Channel(id)
		info.descriptors[ch] = append(info.descriptors[ch], summary.TriggerPatterns[n])
	}
	return info, nil
}

// Summary returns the underlying run summary.
func (s *SummaryInfo) Summary() *RunSummary { return s.summary }

// TriggerDescriptors returns the trigger patterns registered for a channel.
func (s *SummaryInfo) TriggerDescriptors(ch Channel) ([]string, error) {
	patterns, ok := s.descriptors[ch]
	if !ok {
		return nil, fmt.Errorf("%w: no trigger information for channel %s", ErrMissingPrerequisite, ch)
	}
	return patterns, nil
}

// JetUncertainties returns the jet/MET corrector, or ErrMissingPrerequisite
// when the production did not provide one.
func (s *SummaryInfo) JetUncertainties() (JetCorrector, error) {
	if s.summary.Corrector == nil {
		return nil, fmt.Errorf("%w: jet energy uncertainties not stored", ErrMissingPrerequisite)
	}
	return s.summary.Corrector, nil
}
