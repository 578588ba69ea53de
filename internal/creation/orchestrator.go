package creation

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"talkingphoto/internal/domain"
	"talkingphoto/internal/entitlement"
	"talkingphoto/internal/gallery"
	"talkingphoto/internal/infra"
)

// User-displayable messages; the original provider error is logged, not
// shown.
const (
	msgGenericFailure = "Something went wrong while generating your video. Please try again."
	msgTimeout        = "Generation is taking too long. Please try again."
)

// CreateInput is everything one session needs: the photo, the script to
// speak, and the voice to speak it with. OnProgress may be nil.
type CreateInput struct {
	ImageRef    string
	ImageBase64 string
	Script      string
	VoiceID     string
	OnProgress  TickFunc
}

// Orchestrator is the single state machine the UI observes. It sequences
// voice synthesis, video job submission, and polling, and reconciles their
// outcomes into the active CreationSession. One generation runs at a time.
type Orchestrator struct {
	api         API
	poller      *Poller
	entitlement entitlement.Service
	gallery     gallery.Store
	logger      *infra.Logger
	state       *sessionState
}

// OrchestratorOptions carries the optional pieces of an Orchestrator.
type OrchestratorOptions struct {
	Poller *Poller
	Logger *infra.Logger
}

// NewOrchestrator wires the pipeline around injected collaborators.
func NewOrchestrator(api API, ent entitlement.Service, gal gallery.Store, opts OrchestratorOptions) (*Orchestrator, error) {
	if api == nil {
		return nil, errors.New("creation: api client is required")
	}
	if ent == nil {
		return nil, errors.New("creation: entitlement service is required")
	}
	if gal == nil {
		return nil, errors.New("creation: gallery store is required")
	}
	poller := opts.Poller
	if poller == nil {
		poller = NewPoller(api, PollerOptions{Logger: opts.Logger})
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Orchestrator{
		api:         api,
		poller:      poller,
		entitlement: ent,
		gallery:     gal,
		logger:      logger,
		state:       newSessionState(),
	}, nil
}

// Snapshot returns a copy of the current session state.
func (o *Orchestrator) Snapshot() Snapshot {
	return o.state.snapshot()
}

// Reset cancels any in-flight generation and returns the session to idle in
// one atomic update. A stale poll that resolves afterwards cannot mutate
// the new session.
func (o *Orchestrator) Reset() {
	o.state.reset()
}

// SuggestScript asks the script provider to write a script for the image.
// It is a standalone convenience, not a pipeline stage: the session does
// not transition.
func (o *Orchestrator) SuggestScript(ctx context.Context, imageBase64 string) (string, error) {
	if strings.TrimSpace(imageBase64) == "" {
		return "", &domain.ValidationError{Field: "image", Reason: "select an image first"}
	}
	return o.api.GenerateScript(ctx, imageBase64)
}

// Create runs one full generation: voice, then video submission, then
// polling to a terminal state. Precondition violations are returned
// synchronously without transitioning the session. The call blocks until
// the session reaches complete or error; progress arrives via
// in.OnProgress.
func (o *Orchestrator) Create(ctx context.Context, in CreateInput) (Snapshot, error) {
	if err := validateInput(in); err != nil {
		return o.state.snapshot(), err
	}
	allowed, err := o.entitlement.CanCreateVideo(ctx)
	if err != nil {
		return o.state.snapshot(), err
	}
	if !allowed {
		return o.state.snapshot(), domain.ErrQuotaExceeded
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	token, ok := o.state.tryBegin(domain.CreationSession{
		ImageRef: imageRef(in),
		Script:   strings.TrimSpace(in.Script),
		VoiceID:  in.VoiceID,
	}, cancel)
	if !ok {
		cancel()
		return o.state.snapshot(), domain.ErrSessionActive
	}

	o.logger.Info().Str("voice_id", in.VoiceID).Int("script_len", len(in.Script)).Msg("creation: session started")

	audioURL, err := o.api.GenerateVoice(runCtx, strings.TrimSpace(in.Script), in.VoiceID)
	if err != nil {
		return o.fail(token, err)
	}
	if !o.state.advance(token, func(s *domain.CreationSession) {
		s.AudioURL = audioURL
		s.Stage = domain.StageGeneratingVideo
	}) {
		return o.state.snapshot(), context.Canceled
	}

	jobID, err := o.api.SubmitVideoJob(runCtx, imageRef(in), audioURL)
	if err != nil {
		return o.fail(token, err)
	}
	o.logger.Info().Str("job_id", jobID).Msg("creation: video job submitted")

	job, err := o.poller.PollUntilTerminal(runCtx, jobID, func(progress int, message string) {
		if in.OnProgress != nil && o.state.current(token) {
			in.OnProgress(progress, message)
		}
	})
	if err != nil {
		return o.fail(token, err)
	}
	if job.Status != domain.JobStatusSucceeded {
		return o.fail(token, &domain.TerminalFailureError{Status: job.Status, Message: job.ErrorMessage})
	}
	if job.ResultURL == "" {
		return o.fail(token, &domain.RemoteError{Provider: apiProviderName, Message: "no video url in terminal status"})
	}

	return o.complete(runCtx, token, in, job.ResultURL)
}

// complete finishes the session: video URL stored, exactly one gallery
// entry written, usage metered once. Gallery and usage side effects never
// run for a reset session.
func (o *Orchestrator) complete(ctx context.Context, token int, in CreateInput, videoURL string) (Snapshot, error) {
	if !o.state.advance(token, func(s *domain.CreationSession) {
		s.VideoURL = videoURL
		s.Stage = domain.StageComplete
	}) {
		return o.state.snapshot(), context.Canceled
	}

	entry := domain.GalleryEntry{
		ID:           uuid.NewString(),
		VideoURL:     videoURL,
		ThumbnailRef: in.ImageRef,
		Script:       strings.TrimSpace(in.Script),
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.gallery.AddEntry(ctx, entry); err != nil {
		o.logger.Error().Err(err).Msg("creation: gallery write failed")
	}
	if err := o.entitlement.IncrementUsage(ctx); err != nil {
		o.logger.Error().Err(err).Msg("creation: usage increment failed")
	}
	o.logger.Info().Str("video_url", videoURL).Msg("creation: session complete")
	return o.state.snapshot(), nil
}

// fail moves the session to the error stage with a user-displayable
// message. No gallery entry, no usage increment.
func (o *Orchestrator) fail(token int, cause error) (Snapshot, error) {
	message := userMessage(cause)
	o.logger.Error().Err(cause).Msg("creation: session failed")
	if !o.state.advance(token, func(s *domain.CreationSession) {
		s.Stage = domain.StageError
		s.LastError = message
	}) {
		return o.state.snapshot(), context.Canceled
	}
	return o.state.snapshot(), cause
}

func validateInput(in CreateInput) error {
	if strings.TrimSpace(in.ImageRef) == "" && strings.TrimSpace(in.ImageBase64) == "" {
		return &domain.ValidationError{Field: "image", Reason: "select an image first"}
	}
	script := strings.TrimSpace(in.Script)
	if script == "" {
		return &domain.ValidationError{Field: "script", Reason: "enter or generate a script"}
	}
	if len(script) > domain.MaxScriptLength {
		return &domain.ValidationError{Field: "script", Reason: "script is too long"}
	}
	if strings.TrimSpace(in.VoiceID) == "" {
		return &domain.ValidationError{Field: "voiceId", Reason: "pick a voice"}
	}
	return nil
}

// imageRef prefers a direct reference; inline images ride along as a data
// URL, which the backend uploads before submitting the job.
func imageRef(in CreateInput) string {
	if ref := strings.TrimSpace(in.ImageRef); ref != "" {
		return ref
	}
	return "data:image/jpeg;base64," + strings.TrimSpace(in.ImageBase64)
}

// userMessage translates the error taxonomy into what the UI shows.
func userMessage(err error) string {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return validation.Error()
	}
	var terminal *domain.TerminalFailureError
	if errors.As(err, &terminal) {
		return terminal.Error()
	}
	if errors.Is(err, domain.ErrPollTimeout) {
		return msgTimeout
	}
	if errors.Is(err, context.Canceled) {
		return "Generation canceled"
	}
	return msgGenericFailure
}
