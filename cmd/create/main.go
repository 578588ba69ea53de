package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"talkingphoto/internal/creation"
	"talkingphoto/internal/domain"
	"talkingphoto/internal/entitlement"
	"talkingphoto/internal/gallery"
	"talkingphoto/internal/infra"
	"talkingphoto/internal/kvstore"
)

func main() {
	var (
		apiFlag     string
		imageFlag   string
		scriptFlag  string
		voiceFlag   string
		localeFlag  string
		dataFlag    string
		limitFlag   int
		suggestFlag bool
		galleryFlag bool
		premiumFlag bool
		timeoutFlag time.Duration
	)

	flag.StringVar(&apiFlag, "api", "http://localhost:8080", "backend base URL")
	flag.StringVar(&imageFlag, "image", "", "path to the photo (jpeg or png)")
	flag.StringVar(&scriptFlag, "script", "", "script to speak (omit with -suggest to let the backend write one)")
	flag.StringVar(&voiceFlag, "voice", domain.DefaultVoiceID, "voice id")
	flag.StringVar(&localeFlag, "locale", "", "locale for progress messages (en, id, es)")
	flag.StringVar(&dataFlag, "data", defaultDataDir(), "directory for local state (usage counter, gallery)")
	flag.IntVar(&limitFlag, "free-limit", 1, "free-tier video limit")
	flag.BoolVar(&suggestFlag, "suggest", false, "generate the script from the photo when -script is empty")
	flag.BoolVar(&galleryFlag, "gallery", false, "list saved videos and exit")
	flag.BoolVar(&premiumFlag, "premium", false, "mark this install as premium and exit")
	flag.DurationVar(&timeoutFlag, "timeout", 10*time.Minute, "overall session timeout")
	flag.Parse()

	_ = godotenv.Load()
	logger := infra.NewLogger("cli").With().Str("cmd", "create").Logger()

	store, err := kvstore.NewStore(dataFlag)
	if err != nil {
		exitWithError(err)
	}
	ent, err := entitlement.NewKVService(store, limitFlag)
	if err != nil {
		exitWithError(err)
	}
	gal, err := gallery.NewKVStore(store)
	if err != nil {
		exitWithError(err)
	}

	if premiumFlag {
		if err := ent.SetPremium(true); err != nil {
			exitWithError(err)
		}
		fmt.Println("premium enabled")
		return
	}
	if galleryFlag {
		listGallery(gal)
		return
	}

	if strings.TrimSpace(imageFlag) == "" {
		exitWithError(errors.New("-image is required"))
	}
	raw, err := os.ReadFile(imageFlag)
	if err != nil {
		exitWithError(fmt.Errorf("read image: %w", err))
	}
	imageBase64 := base64.StdEncoding.EncodeToString(raw)

	api, err := creation.NewClient(creation.ClientOptions{BaseURL: apiFlag, Locale: localeFlag})
	if err != nil {
		exitWithError(err)
	}
	orch, err := creation.NewOrchestrator(api, ent, gal, creation.OrchestratorOptions{Logger: &logger})
	if err != nil {
		exitWithError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeoutFlag)
	defer cancel()

	script := strings.TrimSpace(scriptFlag)
	if script == "" {
		if !suggestFlag {
			exitWithError(errors.New("either -script or -suggest must be provided"))
		}
		script, err = orch.SuggestScript(ctx, imageBase64)
		if err != nil {
			exitWithError(fmt.Errorf("suggest script: %w", err))
		}
		if script == "" {
			exitWithError(errors.New("backend returned an empty script, pass -script instead"))
		}
		fmt.Printf("script: %s\n", script)
	}

	remaining, err := ent.Remaining(ctx)
	if err == nil {
		fmt.Printf("videos remaining: %d\n", remaining)
	}

	snap, err := orch.Create(ctx, creation.CreateInput{
		ImageBase64: imageBase64,
		Script:      script,
		VoiceID:     voiceFlag,
		OnProgress: func(progress int, message string) {
			fmt.Printf("[%3d%%] %s\n", progress, message)
		},
	})
	if err != nil {
		if snap.LastError != "" {
			fmt.Fprintln(os.Stderr, snap.LastError)
		}
		exitWithError(err)
	}

	fmt.Printf("video ready: %s\n", snap.VideoURL)
}

func listGallery(gal *gallery.KVStore) {
	entries, err := gal.List(context.Background())
	if err != nil {
		exitWithError(err)
	}
	if len(entries) == 0 {
		fmt.Println("no videos yet")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %s\n", e.CreatedAt.Format(time.RFC3339), e.ID, e.VideoURL)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".talkingphoto"
	}
	return filepath.Join(home, ".talkingphoto")
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
