// Package executor runs GraphQL requests against a schema built with the
// schema package, resolving fields through a single per-request batch.
//
// # Overview
//
// A request moves through three phases:
//
//  1. Preparation. The query text is tokenized and parsed, the operation is
//     chosen (by name or by uniqueness when unnamed), and the root object is
//     instantiated for a fresh batch: parallel for queries, sequential for
//     mutations. Fragment spreads are checked for cycles.
//  2. Collection. The root selection set is walked depth first. Each field
//     is validated, its arguments are coerced, and its resolver is invoked.
//     Resolvers do not fetch data; they register deferred operations on the
//     batch and return accessors that read the operation's result later.
//     Object-typed fields recurse into their sub-selection immediately, so
//     the whole tree is known before anything is fetched.
//  3. Assembly. If collection produced no validation errors, the batch is
//     executed once. Every accessor is then read against its parent's value
//     and the values are coerced into an ordered ResultMap.
//
// # Errors
//
// Errors fall into three tiers:
//
//   - Syntax errors and operation selection failures are returned as Go
//     errors. Nothing is resolved.
//   - Validation errors (unknown fields or arguments, incompatible or
//     undefined variables, unused variables, fragment cycles, ambiguous
//     merges) produce a Result with nil Data. The batch never runs.
//   - Resolution errors (argument coercion, resolver failures, result
//     coercion) null the offending field and are reported with its path.
//     Siblings keep their values. A null in a non-null field propagates to
//     the nearest nullable ancestor.
//
// Resolvers may return *gqlerror.Error or gqlerror.List to report
// structured errors verbatim. Any other error, including a recovered panic,
// is passed to the ExceptionFilter. When the filter returns true the request
// fails with that error; otherwise the error is logged and reported as
// "Internal server error".
//
// # Merging
//
// Two selections sharing both response key and field name are not merged.
// FieldSelection.MergeWith reports ErrAmbiguousMerge and the request fails
// validation. Two different fields under one response key fail validation
// as well. Repeated spreads of the same fragment within one selection set
// are collected once.
package executor
