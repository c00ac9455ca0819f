// Package trace assembles and persists the execution trace of one
// orchestration run: the ordered planning steps plus the session graph
// derived from delegate transitions. A trace artifact is written once when a
// run reaches a terminal state and never mutated afterwards; CLI and editor
// integrations replay it for display.
package trace
