// Package integrity makes the match journal tamper evident. Every record
// carries a content hash, a chain hash linking it to its predecessor and an
// HMAC over the chain hash keyed per match from a rotatable root keyring.
package integrity
