package creation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"talkingphoto/internal/domain"
)

// fakeAPI records the order of backend calls and replays scripted outcomes.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	scriptText string
	scriptErr  error

	audioURL string
	voiceErr error

	jobID     string
	submitErr error

	statuses []*domain.GenerationJob
	statusAt int

	voiceStarted  chan struct{}
	voiceProceed  chan struct{}
	lastVoiceText string
	lastVoiceID   string
	lastImageRef  string
	lastAudioRef  string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		scriptText: "Hello from the photo",
		audioURL:   "data:audio/mpeg;base64,AAAA",
		jobID:      "pred-1",
		statuses: []*domain.GenerationJob{
			{Status: domain.JobStatusStarting, Progress: 10, Message: "Starting up GPU..."},
			{Status: domain.JobStatusProcessing, Progress: 50, Message: "Generating lip-sync video..."},
			{Status: domain.JobStatusSucceeded, Progress: 100, Message: "Video ready!", ResultURL: "https://cdn.example/out.mp4"},
		},
	}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) GenerateScript(ctx context.Context, imageBase64 string) (string, error) {
	f.record("script")
	return f.scriptText, f.scriptErr
}

func (f *fakeAPI) GenerateVoice(ctx context.Context, text, voiceID string) (string, error) {
	f.record("voice")
	f.mu.Lock()
	f.lastVoiceText = text
	f.lastVoiceID = voiceID
	f.mu.Unlock()
	if f.voiceStarted != nil {
		close(f.voiceStarted)
		f.voiceStarted = nil
	}
	if f.voiceProceed != nil {
		select {
		case <-f.voiceProceed:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.voiceErr != nil {
		return "", f.voiceErr
	}
	return f.audioURL, nil
}

func (f *fakeAPI) SubmitVideoJob(ctx context.Context, imageRef, audioRef string) (string, error) {
	f.record("submit")
	f.mu.Lock()
	f.lastImageRef = imageRef
	f.lastAudioRef = audioRef
	f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.jobID, nil
}

func (f *fakeAPI) JobStatus(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	f.record("status")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusAt >= len(f.statuses) {
		return f.statuses[len(f.statuses)-1], nil
	}
	job := f.statuses[f.statusAt]
	f.statusAt++
	return job, nil
}

// memEntitlement is an in-memory entitlement.Service.
type memEntitlement struct {
	mu         sync.Mutex
	allowed    bool
	allowErr   error
	increments int
}

func (m *memEntitlement) CanCreateVideo(ctx context.Context) (bool, error) {
	return m.allowed, m.allowErr
}

func (m *memEntitlement) IncrementUsage(ctx context.Context) error {
	m.mu.Lock()
	m.increments++
	m.mu.Unlock()
	return nil
}

func (m *memEntitlement) Remaining(ctx context.Context) (int, error) { return 1, nil }

func (m *memEntitlement) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.increments
}

// memGallery is an in-memory gallery.Store.
type memGallery struct {
	mu      sync.Mutex
	entries []domain.GalleryEntry
}

func (g *memGallery) AddEntry(ctx context.Context, entry domain.GalleryEntry) error {
	g.mu.Lock()
	g.entries = append(g.entries, entry)
	g.mu.Unlock()
	return nil
}

func (g *memGallery) List(ctx context.Context) ([]domain.GalleryEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.GalleryEntry(nil), g.entries...), nil
}

func (g *memGallery) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func newTestOrchestrator(t *testing.T, api *fakeAPI, ent *memEntitlement, gal *memGallery) *Orchestrator {
	t.Helper()
	poller := NewPoller(api, PollerOptions{Interval: time.Millisecond, MaxAttempts: 10})
	orch, err := NewOrchestrator(api, ent, gal, OrchestratorOptions{Poller: poller})
	if err != nil {
		t.Fatalf("NewOrchestrator() error: %v", err)
	}
	return orch
}

func validInput() CreateInput {
	return CreateInput{
		ImageBase64: "aGVsbG8=",
		Script:      "Hello there!",
		VoiceID:     domain.DefaultVoiceID,
	}
}

func TestCreateSuccess(t *testing.T) {
	api := newFakeAPI()
	ent := &memEntitlement{allowed: true}
	gal := &memGallery{}
	orch := newTestOrchestrator(t, api, ent, gal)

	var progress []int
	in := validInput()
	in.OnProgress = func(p int, message string) { progress = append(progress, p) }

	snap, err := orch.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if snap.Stage != domain.StageComplete {
		t.Fatalf("stage = %q, want complete", snap.Stage)
	}
	if snap.VideoURL != "https://cdn.example/out.mp4" {
		t.Fatalf("video url = %q", snap.VideoURL)
	}
	if snap.IsProcessing {
		t.Fatal("completed session must not report processing")
	}

	order := api.callOrder()
	if len(order) < 3 || order[0] != "voice" || order[1] != "submit" || order[2] != "status" {
		t.Fatalf("call order = %v, want voice, submit, status...", order)
	}
	if api.lastVoiceText != "Hello there!" || api.lastVoiceID != domain.DefaultVoiceID {
		t.Fatalf("voice call got (%q, %q)", api.lastVoiceText, api.lastVoiceID)
	}
	if api.lastAudioRef != api.audioURL {
		t.Fatalf("submit audio ref = %q, want %q", api.lastAudioRef, api.audioURL)
	}

	if gal.count() != 1 {
		t.Fatalf("gallery entries = %d, want 1", gal.count())
	}
	entries, _ := gal.List(context.Background())
	if entries[0].Script != "Hello there!" || entries[0].VideoURL != snap.VideoURL {
		t.Fatalf("gallery entry = %+v", entries[0])
	}
	if entries[0].ID == "" {
		t.Fatal("gallery entry id must be set")
	}
	if ent.count() != 1 {
		t.Fatalf("usage increments = %d, want 1", ent.count())
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Fatalf("progress = %v, want final 100", progress)
	}
}

func TestCreateQuotaExceeded(t *testing.T) {
	api := newFakeAPI()
	ent := &memEntitlement{allowed: false}
	gal := &memGallery{}
	orch := newTestOrchestrator(t, api, ent, gal)

	_, err := orch.Create(context.Background(), validInput())
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("error = %v, want ErrQuotaExceeded", err)
	}
	if len(api.callOrder()) != 0 {
		t.Fatalf("no backend call expected, got %v", api.callOrder())
	}
	if snap := orch.Snapshot(); snap.Stage != domain.StageIdle {
		t.Fatalf("stage = %q, want idle", snap.Stage)
	}
}

func TestCreateValidation(t *testing.T) {
	api := newFakeAPI()
	orch := newTestOrchestrator(t, api, &memEntitlement{allowed: true}, &memGallery{})

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing image", func(in *CreateInput) { in.ImageBase64 = ""; in.ImageRef = "" }},
		{"missing script", func(in *CreateInput) { in.Script = "   " }},
		{"script too long", func(in *CreateInput) {
			long := make([]byte, domain.MaxScriptLength+1)
			for i := range long {
				long[i] = 'a'
			}
			in.Script = string(long)
		}},
		{"missing voice", func(in *CreateInput) { in.VoiceID = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := orch.Create(context.Background(), in)
			var validation *domain.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}
	if len(api.callOrder()) != 0 {
		t.Fatalf("no backend call expected, got %v", api.callOrder())
	}
}

func TestCreateProviderFailure(t *testing.T) {
	api := newFakeAPI()
	api.statuses = []*domain.GenerationJob{
		{Status: domain.JobStatusStarting, Progress: 10},
		{Status: domain.JobStatusFailed, ErrorMessage: "CUDA out of memory"},
	}
	ent := &memEntitlement{allowed: true}
	gal := &memGallery{}
	orch := newTestOrchestrator(t, api, ent, gal)

	snap, err := orch.Create(context.Background(), validInput())
	var terminal *domain.TerminalFailureError
	if !errors.As(err, &terminal) {
		t.Fatalf("error = %v, want TerminalFailureError", err)
	}
	if snap.Stage != domain.StageError {
		t.Fatalf("stage = %q, want error", snap.Stage)
	}
	if snap.LastError != "CUDA out of memory" {
		t.Fatalf("last error = %q", snap.LastError)
	}
	if gal.count() != 0 {
		t.Fatal("failed session must not write a gallery entry")
	}
	if ent.count() != 0 {
		t.Fatal("failed session must not be metered")
	}
}

func TestCreatePollTimeout(t *testing.T) {
	api := newFakeAPI()
	api.statuses = []*domain.GenerationJob{
		{Status: domain.JobStatusProcessing, Progress: 50},
	}
	ent := &memEntitlement{allowed: true}
	gal := &memGallery{}
	poller := NewPoller(api, PollerOptions{Interval: time.Millisecond, MaxAttempts: 2})
	orch, err := NewOrchestrator(api, ent, gal, OrchestratorOptions{Poller: poller})
	if err != nil {
		t.Fatalf("NewOrchestrator() error: %v", err)
	}

	snap, err := orch.Create(context.Background(), validInput())
	if !errors.Is(err, domain.ErrPollTimeout) {
		t.Fatalf("error = %v, want ErrPollTimeout", err)
	}
	if snap.Stage != domain.StageError {
		t.Fatalf("stage = %q, want error", snap.Stage)
	}
	if snap.LastError != msgTimeout {
		t.Fatalf("last error = %q, want %q", snap.LastError, msgTimeout)
	}
	if gal.count() != 0 || ent.count() != 0 {
		t.Fatal("timed-out session must not write gallery or usage")
	}
}

func TestCreateRejectsConcurrentSession(t *testing.T) {
	api := newFakeAPI()
	api.voiceStarted = make(chan struct{})
	proceed := make(chan struct{})
	api.voiceProceed = proceed
	started := api.voiceStarted

	orch := newTestOrchestrator(t, api, &memEntitlement{allowed: true}, &memGallery{})

	done := make(chan error, 1)
	go func() {
		_, err := orch.Create(context.Background(), validInput())
		done <- err
	}()
	<-started

	if snap := orch.Snapshot(); !snap.IsProcessing {
		t.Fatal("session should be processing while voice synthesis runs")
	}
	_, err := orch.Create(context.Background(), validInput())
	if !errors.Is(err, domain.ErrSessionActive) {
		t.Fatalf("error = %v, want ErrSessionActive", err)
	}

	close(proceed)
	if err := <-done; err != nil {
		t.Fatalf("first Create() error: %v", err)
	}
}

func TestResetDiscardsStalePipeline(t *testing.T) {
	api := newFakeAPI()
	api.voiceStarted = make(chan struct{})
	proceed := make(chan struct{})
	api.voiceProceed = proceed
	started := api.voiceStarted

	ent := &memEntitlement{allowed: true}
	gal := &memGallery{}
	orch := newTestOrchestrator(t, api, ent, gal)

	done := make(chan error, 1)
	go func() {
		_, err := orch.Create(context.Background(), validInput())
		done <- err
	}()
	<-started

	orch.Reset()

	snap := orch.Snapshot()
	if snap.Stage != domain.StageIdle {
		t.Fatalf("stage after reset = %q, want idle", snap.Stage)
	}
	if snap.IsProcessing {
		t.Fatal("reset session must not report processing")
	}

	close(proceed)
	if err := <-done; err == nil {
		t.Fatal("stale pipeline should not complete after reset")
	}

	// The stale run must not have touched the fresh session or side effects.
	if snap := orch.Snapshot(); snap.Stage != domain.StageIdle || snap.VideoURL != "" {
		t.Fatalf("stale run mutated session: %+v", snap)
	}
	if gal.count() != 0 || ent.count() != 0 {
		t.Fatal("stale run must not write gallery or usage")
	}
}

func TestCreateVoiceFailure(t *testing.T) {
	api := newFakeAPI()
	api.voiceErr = &domain.RemoteError{Provider: "api", StatusCode: 502, Message: "TTS unavailable"}
	ent := &memEntitlement{allowed: true}
	gal := &memGallery{}
	orch := newTestOrchestrator(t, api, ent, gal)

	snap, err := orch.Create(context.Background(), validInput())
	var remote *domain.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("error = %v, want RemoteError", err)
	}
	if snap.Stage != domain.StageError {
		t.Fatalf("stage = %q, want error", snap.Stage)
	}
	if snap.LastError != msgGenericFailure {
		t.Fatalf("last error = %q, want generic message", snap.LastError)
	}

	// A failed session is not processing, so a new one may start.
	api.voiceErr = nil
	if _, err := orch.Create(context.Background(), validInput()); err != nil {
		t.Fatalf("retry Create() error: %v", err)
	}
}

func TestSuggestScript(t *testing.T) {
	api := newFakeAPI()
	orch := newTestOrchestrator(t, api, &memEntitlement{allowed: true}, &memGallery{})

	script, err := orch.SuggestScript(context.Background(), "aGVsbG8=")
	if err != nil {
		t.Fatalf("SuggestScript() error: %v", err)
	}
	if script != "Hello from the photo" {
		t.Fatalf("script = %q", script)
	}
	// The session does not transition.
	if snap := orch.Snapshot(); snap.Stage != domain.StageIdle {
		t.Fatalf("stage = %q, want idle", snap.Stage)
	}

	if _, err := orch.SuggestScript(context.Background(), "   "); err == nil {
		t.Fatal("SuggestScript() without image expected error")
	}
}
