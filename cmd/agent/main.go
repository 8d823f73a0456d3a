package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/backend"
	"github.com/stemsi/exstem-agent/internal/bridge"
	"github.com/stemsi/exstem-agent/internal/config"
	"github.com/stemsi/exstem-agent/internal/journal"
	"github.com/stemsi/exstem-agent/internal/logger"
	"github.com/stemsi/exstem-agent/internal/model"
	"github.com/stemsi/exstem-agent/internal/session"
	"github.com/stemsi/exstem-agent/internal/validator"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("backend", cfg.BackendURL).
		Str("bridge", cfg.BridgeAddr).
		Msg("Starting ExStem Lockdown Agent")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	if cfg.ExamID == "" || cfg.SessionToken == "" {
		log.Fatal().Msg("EXAM_ID and SESSION_TOKEN are required")
	}

	examID, err := uuid.Parse(cfg.ExamID)
	if err != nil {
		log.Fatal().Err(err).Msg("EXAM_ID is not a valid UUID")
	}

	claims, err := backend.ParseSessionToken(cfg.SessionToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid session token")
	}
	if claims.ExpiresWithin(0) {
		log.Fatal().Msg("Session token has expired, log in again")
	}
	if claims.ExpiresWithin(time.Hour) {
		log.Warn().Msg("Session token expires within the hour")
	}
	log.Info().Int("student_id", claims.UserID).Str("name", claims.Name).Msg("Candidate identified")

	entryToken := cfg.EntryToken
	if entryToken == "" {
		entryToken = promptEntryToken()
		if entryToken == "" {
			log.Fatal().Msg("Entry token is required")
		}
	}

	ctx := context.Background()

	// ─── Join Exam & Load Paper ────────────────────────────────────────
	client := backend.NewClient(cfg.BackendURL, examID, cfg.SessionToken, log)

	info, err := client.JoinExam(ctx, entryToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to join exam")
	}

	paper, err := client.GetExamPaper(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch exam paper")
	}

	state, err := client.GetExamState(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch exam state")
	}

	sess := model.NewExamSession(info.ID, examID, paper.Questions, int(state.RemainingTime), cfg.MaxWarnings)
	if skipped := sess.SeedAnswers(state.AutosavedAnswers); len(skipped) > 0 {
		log.Warn().Strs("question_ids", skipped).Msg("Skipped unrecognized autosaved answers")
	}
	log.Info().
		Str("exam", paper.Title).
		Int("questions", sess.QuestionCount()).
		Int("time_left", sess.TimeLeft()).
		Msg("Session loaded")

	// ─── Open Audit Journal ────────────────────────────────────────────
	var recorder session.Recorder = session.NopRecorder{}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Warn().Err(err).Msg("Cannot create data dir, audit journal disabled")
	} else {
		j, err := journal.Open(filepath.Join(cfg.DataDir, "journal.db"), log)
		if err != nil {
			log.Warn().Err(err).Msg("Audit journal unavailable")
		} else {
			defer j.Close()
			recorder = j.Recorder(info.ID)
		}
	}

	// ─── Start Bridge ──────────────────────────────────────────────────
	hub := bridge.NewSurfaceHub(log)

	mon := session.New(session.Config{}, session.Deps{
		Session:      sess,
		Surface:      hub,
		Reporter:     client,
		Submitter:    client,
		Checkpointer: client,
		Recorder:     recorder,
		Logger:       log,
	})

	srv := bridge.NewServer(cfg, mon, hub, log)
	bridgeErr := make(chan error, 1)
	srv.Start(bridgeErr)

	log.Info().
		Str("stream", fmt.Sprintf("ws://%s/ws/v1/session/stream?token=%s", cfg.BridgeAddr, srv.Token())).
		Msg("Waiting for exam surface")

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Duration(cfg.SurfaceWaitSeconds)*time.Second)
	if err := hub.WaitConnected(waitCtx); err != nil {
		// The session starts regardless; an absent surface shows up as
		// lockdown violations, which is the point.
		log.Warn().Msg("No surface connected yet, starting session anyway")
	}
	waitCancel()

	// ─── Run Session Monitor ───────────────────────────────────────────
	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()

	if err := mon.Start(sessionCtx); err != nil {
		if errors.Is(err, session.ErrNoQuestions) {
			log.Error().Msg("Exam has no questions, nothing to monitor")
			shutdown(srv, log)
			return
		}
		log.Fatal().Err(err).Msg("Failed to start session monitor")
	}

	// ─── Wait for Completion or Signal ─────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down, abandoning session")
		cancelSession()
		<-mon.Done()
	case <-mon.Done():
		log.Info().Str("status", string(sess.Status())).Msg("Session finished")
		// Give the surface a moment to render the redirect before the
		// bridge goes away.
		time.Sleep(2 * time.Second)
	case err := <-bridgeErr:
		log.Error().Err(err).Msg("Bridge server failed")
		cancelSession()
		<-mon.Done()
	}

	shutdown(srv, log)
	log.Info().Msg("Shutdown complete")
}

func shutdown(srv *bridge.Server, log zerolog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Bridge shutdown error")
	}
}

// promptEntryToken reads the exam entry token without echoing it.
func promptEntryToken() string {
	fmt.Print("Enter Exam Entry Token: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
