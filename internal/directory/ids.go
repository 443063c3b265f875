// Package directory implements ChronoLog's metadata directory: the
// process-wide registry of chronicles and stories, identifier derivation,
// and the acquire/release bookkeeping that gates destruction.
package directory

import "github.com/cespare/xxhash/v2"

// ChronicleID derives a 64-bit identifier from a chronicle name using a
// City-hash-family non-cryptographic hash, per spec §3.
func ChronicleID(chronicleName string) uint64 {
	return xxhash.Sum64String(chronicleName)
}

// StoryID derives a 64-bit identifier for a story from its owning
// chronicle's name and its own name. The two names are concatenated
// without a separator, preserving a documented compatibility hazard: the
// pairs ("ab","cd") and ("abc","d") collide. This behavior is deliberately
// preserved rather than fixed — see DESIGN.md's Open Question resolution.
func StoryID(chronicleName, storyName string) uint64 {
	return xxhash.Sum64String(chronicleName + storyName)
}
