// Package engine is the match authority. It owns the piece and arena trees,
// builds the witnesses the pure state machines verify and journals every
// accepted transition. Rejected transitions change nothing.
package engine
