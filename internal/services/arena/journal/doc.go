// Package journal defines the append-only record of a match.
//
// Only accepted transitions are journaled. Each record carries the exact
// witnesses and inputs the pure state machines consumed together with the
// state they produced, so the match can be re-verified from the journal
// alone without access to the authority's trees.
package journal
