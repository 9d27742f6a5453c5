// Package ana reconstructs higher-level physics candidates from a flat
// per-event record.
//
// # Reading Guide
//
// Start with these three files to understand the core:
//   - selection.go: the rule-based b-jet / VBF jet pair selection and its
//     multi-stage fallback
//   - eventinfo.go: the per-event lazy, memoized derived-object cache
//   - shift.go: systematic shifts as clone-with-overrides
//
// # Architecture
//
// EventRecord (record.go) is an external, immutable, borrowed collaborator;
// it must outlive every EventInfo built from it. NewEventInfo runs
// SelectSignalJets once at construction; every other derived field (legs,
// jet/fat-jet collections, MET, H->bb, kinematic fit, MT2) populates on
// first access under a single per-instance lock, so concurrent accessors
// observe exactly one computation per field. ApplyShift never mutates the
// source view: it clones the immutable parts and pre-seeds the corrected
// jets and missing energy in a fresh cache.
//
// # External Collaborators
//
// The numerical kinematic fit (FitSolver) and the per-source jet/MET
// correction (JetCorrector) are consumed as opaque pure functions.
package ana
