package upload

import "encoding/json"

// Phase is the state of an upload attempt.
type Phase int

const (
	Idle Phase = iota
	FileSelected
	Validating
	Uploading
	Recording
	Done
	Failed
)

var phaseNames = [...]string{
	Idle:         "idle",
	FileSelected: "file_selected",
	Validating:   "validating",
	Uploading:    "uploading",
	Recording:    "recording",
	Done:         "done",
	Failed:       "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// InFlight reports whether an attempt in phase p holds the submit control.
func (p Phase) InFlight() bool {
	return p == Validating || p == Uploading || p == Recording
}

// MarshalJSON encodes the phase by name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}
