package domain

// Stage enumerates the observable states of one creation session.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageGeneratingVoice Stage = "generating-voice"
	StageGeneratingVideo Stage = "generating-video"
	StageComplete        Stage = "complete"
	StageError           Stage = "error"
)

// Processing reports whether a remote stage is currently running.
func (s Stage) Processing() bool {
	return s == StageGeneratingVoice || s == StageGeneratingVideo
}

// Terminal reports whether the session requires a reset before another
// generation can start.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageError
}

// MaxScriptLength bounds the script a user may submit for synthesis.
const MaxScriptLength = 500

// CreationSession is one end-to-end attempt to produce a talking-photo
// video. Exactly one session is active per orchestrator; it is replaced
// wholesale on reset.
//
// Invariants: Stage == StageComplete implies VideoURL != "";
// Stage == StageError implies LastError != "".
type CreationSession struct {
	ImageRef  string
	Script    string
	VoiceID   string
	AudioURL  string
	VideoURL  string
	Stage     Stage
	LastError string
}
