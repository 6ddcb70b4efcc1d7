package common

// StandbyRegistry is the hot-standby collaborator. During archive recovery a
// standby may serve read-only queries; deletions replayed from the log can
// invalidate what those queries see, and the registry is the channel through
// which such conflicts are reported.
type StandbyRegistry interface {
	// InHotStandby reports whether read-only queries may run concurrently
	// with replay.
	InHotStandby() bool

	// ActiveReadOnlyBackends returns the number of currently running
	// read-only sessions. Zero means no conflict is possible.
	ActiveReadOnlyBackends() int

	// ResolveRecoveryConflict cancels or delays sessions whose snapshots
	// still see rows removed up to latestRemoved in the given relation.
	ResolveRecoveryConflict(rel RelFileID, latestRemoved TxnID)
}

// NoStandby is the registry used when replaying without hot standby.
type NoStandby struct{}

func (NoStandby) InHotStandby() bool          { return false }
func (NoStandby) ActiveReadOnlyBackends() int { return 0 }

func (NoStandby) ResolveRecoveryConflict(RelFileID, TxnID) {}
