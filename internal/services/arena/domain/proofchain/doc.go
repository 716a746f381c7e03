// Package proofchain certifies whole matches one transition at a time.
//
// A match state is the fold of a transition function over ordered inputs
// starting at a declared genesis. A certificate layer adds two predicates on
// top of that fold: Init accepts only the genesis, and Step accepts a claimed
// state only when the prior certificate verifies and re-running the
// transition on the prior state reproduces the claim. The Attestor here is a
// reference backend that signs each step; a succinct-proof backend can
// replace it behind the same Backend interface without touching the fold.
package proofchain
