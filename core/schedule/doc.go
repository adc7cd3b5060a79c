// Package schedule implements the schedule operations: bulk insertion with
// conflict resolution, single-entry edits, cascading catalog changes, and
// the rendered views served to operators.
//
// The stored schedule is an unordered set. Every function that depends on
// chronology sorts its input first.
package schedule
