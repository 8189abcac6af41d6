package tupelo

// RecoveryState is the engine's position in the recovery sequence.
// Transitions are driven externally: EndRecoverSnapshot moves from
// RecoveryInitial to RecoverySnapshotLoaded, EndRecovery moves to
// RecoveryComplete, which is terminal.
type RecoveryState uint8

const (
	// RecoveryInitial: spaces have no populated keys yet; replace only
	// keeps bookkeeping, recover begins building the primary key.
	RecoveryInitial RecoveryState = iota
	// RecoverySnapshotLoaded: the snapshot rows are in; recover builds
	// the primary key from the accumulated tuples, replace maintains
	// the primary key only while xlogs replay.
	RecoverySnapshotLoaded
	// RecoveryComplete: recover builds all secondary keys; replace
	// maintains every index.
	RecoveryComplete
)

var recoveryStateNames = [...]string{
	RecoveryInitial:        "initial",
	RecoverySnapshotLoaded: "snapshot_loaded",
	RecoveryComplete:       "complete",
}

func (s RecoveryState) String() string {
	if int(s) < len(recoveryStateNames) {
		return recoveryStateNames[s]
	}
	return "unknown"
}

// recoveryOps is the behavior of one recovery state. The table below
// makes the transitions total: every state has a defined recover and
// replace.
type recoveryOps struct {
	recover func(sp *Space) error
	replace func(sp *Space, old, new *Tuple, mode DupMode) (*Tuple, error)
}

var recoveryTable = [...]recoveryOps{
	RecoveryInitial: {
		recover: (*Space).beginBuildPrimaryKey,
		replace: (*Space).replaceNoKeys,
	},
	RecoverySnapshotLoaded: {
		recover: (*Space).buildPrimaryKey,
		replace: (*Space).replacePrimaryKey,
	},
	RecoveryComplete: {
		recover: (*Space).buildAllKeys,
		replace: (*Space).replaceAllKeys,
	},
}
