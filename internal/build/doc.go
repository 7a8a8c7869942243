// Package build runs build sessions: load the theme, build the content tree,
// render every document, generate feeds, hash the results into artifacts,
// diff them against the previously committed set and commit, publish and
// announce the new set.
//
// A Session performs one build at a time. A Runner sits in front of a
// Session for callers that request builds concurrently (watchers,
// schedulers): it keeps at most one build pending and lets later requests
// share that pending build's report.
package build
