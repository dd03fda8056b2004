// Package engine implements the web map mutation engine.
//
// The engine is the heart of webmapctl - it fetches a web map definition
// from the content store, rewrites layer filters or form defaults in
// memory, persists the whole document back in one call, and (for global
// filter runs) re-fetches it to confirm the change landed.
//
// Operation flow:
//  1. Fetch the item record and reject anything that is not a web map.
//  2. Fetch and decode the definition document.
//  3. Walk the operational layer tree in display order, consulting the
//     remote field schema per candidate layer.
//  4. Mutate matching layers in place on the in-memory document.
//  5. Persist once, unless the request is a simulation.
//
// Every public operation takes an explicit simulate flag; there is no
// process-wide dry-run state. A simulated run performs every in-memory
// step and returns the exact result shape a real run would produce.
//
// The engine is synchronous and single-threaded. One operation works on
// one document at a time; there is no optimistic concurrency control
// beyond what the content store itself provides. Per-layer outcomes are
// accumulated rather than raised, so one unreachable layer never aborts
// the rest of a batch.
package engine
