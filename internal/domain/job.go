package domain

// JobStatus enumerates the lifecycle states reported by the video
// synthesis provider. The set mirrors Replicate prediction statuses.
type JobStatus string

const (
	JobStatusStarting   JobStatus = "starting"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
)

// Terminal reports whether no further status transitions are expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}

// Known reports whether s is one of the provider statuses this service
// understands. Unknown statuses are treated as non-terminal by callers.
func (s JobStatus) Known() bool {
	switch s {
	case JobStatusStarting, JobStatusProcessing, JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}

// GenerationJob is one snapshot of an in-flight or completed video
// synthesis task. It lives for a single generation attempt and is never
// persisted.
type GenerationJob struct {
	ID           string
	Status       JobStatus
	Progress     int
	Message      string
	ResultURL    string
	ErrorMessage string
}

// ProgressForStatus maps a provider status to the percentage shown to the
// user. The mapping is a fixed contract, not an estimate: the provider does
// not expose finer-grained progress.
func ProgressForStatus(s JobStatus) int {
	switch s {
	case JobStatusStarting:
		return 10
	case JobStatusProcessing:
		return 50
	case JobStatusSucceeded:
		return 100
	default:
		return 0
	}
}

var statusMessages = map[string]map[JobStatus]string{
	"en": {
		JobStatusStarting:   "Starting up GPU...",
		JobStatusProcessing: "Generating lip-sync video...",
		JobStatusSucceeded:  "Video ready!",
		JobStatusFailed:     "Generation failed",
		JobStatusCanceled:   "Generation canceled",
	},
	"id": {
		JobStatusStarting:   "Menyiapkan GPU...",
		JobStatusProcessing: "Membuat video lip-sync...",
		JobStatusSucceeded:  "Video siap!",
		JobStatusFailed:     "Pembuatan video gagal",
		JobStatusCanceled:   "Pembuatan video dibatalkan",
	},
	"es": {
		JobStatusStarting:   "Iniciando GPU...",
		JobStatusProcessing: "Generando video de sincronizacion labial...",
		JobStatusSucceeded:  "Video listo!",
		JobStatusFailed:     "La generacion fallo",
		JobStatusCanceled:   "Generacion cancelada",
	},
}

// MessageForStatus returns the human-readable progress message for a status
// in the given locale, falling back to English.
func MessageForStatus(s JobStatus, locale string) string {
	if msgs, ok := statusMessages[locale]; ok {
		if msg, ok := msgs[s]; ok {
			return msg
		}
	}
	if msg, ok := statusMessages["en"][s]; ok {
		return msg
	}
	return "Processing..."
}
