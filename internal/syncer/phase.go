package syncer

// Phase is the orchestrator's progress through a single run.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseAuthenticated
	PhaseBucketReady
	PhaseSyncing
	PhaseWatermarkReconciled
	PhaseDone
)

var phaseNames = [...]string{
	PhaseInit:                "INIT",
	PhaseAuthenticated:       "AUTHENTICATED",
	PhaseBucketReady:         "BUCKET_READY",
	PhaseSyncing:             "SYNCING",
	PhaseWatermarkReconciled: "WATERMARK_RECONCILED",
	PhaseDone:                "DONE",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "UNKNOWN"
	}
	return phaseNames[p]
}
