// Package agent implements the agent registry: parsing, normalizing and
// rendering per-agent manifest files (markdown with a leading delimited
// metadata block) and providing lookup/routing over the resulting
// descriptors. The registry is the leaf of the runtime's dependency order;
// routing and the orchestration engine consume it, never the other way round.
package agent
