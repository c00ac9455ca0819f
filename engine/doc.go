// Package engine implements the orchestration loop: it invokes the current
// agent through the provider runtime, parses the output for a planning
// decision, and either finishes the run or delegates to the decided target
// agent. Each run moves through Starting, Planning and Delegating states and
// terminates Done, Failed or Cancelled; the ordered step sequence plus the
// derived session graph is persisted as a trace artifact on every terminal
// state, including failures.
package engine
