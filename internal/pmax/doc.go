// Package pmax holds the shared data model for Performance Max campaign
// stewardship: campaign metric snapshots, the closed set of change request
// kinds, and the campaign lifecycle phase enum.
//
// Types in this package are plain values. Evaluation logic lives in the
// guardrail and phase subpackages; persistence lives with the scheduler's
// storage layer.
package pmax
