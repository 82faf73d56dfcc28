// Package command implements undoable graph mutations and the bounded
// history that runs them.
//
// Every Command moves through Created -> Executed <-> Undone. Constructors
// capture the pre-state needed to invert the mutation, so undo never
// recomputes it from a graph that may have changed since.
//
// History admits an undo or redo only after two gates pass: the command's
// layer must be the layer currently viewed (or must no longer exist), and
// the command must not report the step as structurally unsafe.
package command
