package domain

import "fmt"

// SleepStage is the tracker's numeric sleep level.
type SleepStage int

const (
	SleepDeep SleepStage = iota
	SleepLight
	SleepREM
	SleepAwake
)

var sleepStageNames = [...]string{
	SleepDeep:  "DEEP",
	SleepLight: "LIGHT",
	SleepREM:   "REM",
	SleepAwake: "AWAKE",
}

// ParseSleepStage resolves a numeric level code. Codes outside 0-3 are rejected.
func ParseSleepStage(code int) (SleepStage, error) {
	if code < 0 || code >= len(sleepStageNames) {
		return 0, fmt.Errorf("unknown sleep stage code %d", code)
	}
	return SleepStage(code), nil
}

// String returns the upper-case stage name used in event titles.
func (s SleepStage) String() string {
	if s < 0 || int(s) >= len(sleepStageNames) {
		return fmt.Sprintf("SleepStage(%d)", int(s))
	}
	return sleepStageNames[s]
}
