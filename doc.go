// Package subset rewrites the history of a git repository so that every
// commit's tree contains only the paths named by a whitelist, chains the
// rewritten commits together, and moves a branch to the new head.
//
// The entry point for most callers is [Engine.Run]. The individual stages —
// [PatternFilter] (the compiled whitelist), [TreeRewriter], [CommitRewriter],
// and [Walker] — are exported separately for callers that want to drive the
// rewrite themselves, or reuse a stage against a different [ObjectStore].
//
// See [Filter] and [PatternFilter] for how to build a whitelist.
package subset
