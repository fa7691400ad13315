// Package detect selects the noteworthy subset of a day's records by
// comparing them against the previous snapshot and recent history. Detection
// is a pure function so identical inputs always produce an identically
// ordered bundle.
package detect
