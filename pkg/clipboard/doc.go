// Package clipboard implements the duplication engine behind copy, cut,
// paste, duplicate and import.
//
// Capture lifts a selection (and every layer nested below it) out of a
// layer repository as a Fragment with original ids. Clone produces a
// self-consistent copy of a Fragment with fresh ids, remapping every
// internal reference in one pass. The Clipboard holds the last captured
// Fragment and whether it came from a cut.
package clipboard
