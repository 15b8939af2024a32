// Package conflict records detected conflicts between workstreams and
// dispatches them to pluggable resolution handlers.
//
// Handlers register a CanHandle predicate over conflict types. Resolution
// moves a conflict detected→resolving and invokes the first matching handler,
// falling back to a built-in default strategy; a handler returning nil,
// erroring or panicking marks the conflict unresolvable without disturbing
// unrelated conflicts. Re-resolving an already-resolved conflict is a no-op
// returning the cached result.
package conflict
