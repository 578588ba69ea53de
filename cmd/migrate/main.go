package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Schema statements are idempotent so the command can run on every deploy.
var statements = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS usage_events (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		request_id  TEXT NOT NULL DEFAULT '',
		event_type  TEXT NOT NULL,
		provider    TEXT NOT NULL DEFAULT '',
		success     BOOLEAN NOT NULL,
		latency_ms  INTEGER NOT NULL DEFAULT 0,
		locale      TEXT NOT NULL DEFAULT '',
		country     TEXT NOT NULL DEFAULT '',
		properties  JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_events_created_at ON usage_events (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_events_event_type ON usage_events (event_type)`,
	`CREATE TABLE IF NOT EXISTS gallery_entries (
		id             UUID PRIMARY KEY,
		video_url      TEXT NOT NULL,
		thumbnail_ref  TEXT NOT NULL DEFAULT '',
		script         TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gallery_entries_created_at ON gallery_entries (created_at DESC)`,
}

func main() {
	var dropFlag bool
	flag.BoolVar(&dropFlag, "drop", false, "drop all tables before creating them")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		exitWithError(fmt.Errorf("ping database: %w", err))
	}

	if dropFlag {
		for _, table := range []string{"usage_events", "gallery_entries"} {
			if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				exitWithError(fmt.Errorf("drop %s: %w", table, err))
			}
		}
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			exitWithError(fmt.Errorf("apply schema: %w", err))
		}
	}

	fmt.Println("schema up to date")
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
