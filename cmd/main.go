package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/complaintdesk/intake-engine/internal/classify"
	"github.com/complaintdesk/intake-engine/internal/complaint"
	"github.com/complaintdesk/intake-engine/internal/config"
	"github.com/complaintdesk/intake-engine/internal/fieldspec"
	"github.com/complaintdesk/intake-engine/internal/intake"
	"github.com/complaintdesk/intake-engine/internal/language"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("configuration error")
	}

	// --- Logging ---
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("bad LOG_LEVEL")
	}
	logrus.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	store, err := complaint.OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("store open error")
	}
	defer store.Close()

	// --- Field requirement table ---
	specs, err := fieldspec.Load(cfg.FieldSpecPath)
	if err != nil {
		logrus.WithError(err).Fatal("fieldspec load error")
	}
	logrus.WithField("pairs", len(specs.Pairs())).Info("field requirement table loaded")

	// --- Classifier ---
	var classifier classify.Classifier
	if cfg.ModelPath != "" {
		art, err := classify.LoadArtifact(cfg.ModelPath)
		if err != nil {
			logrus.WithError(err).Fatal("model artifact error")
		}
		classifier = classify.NewLinear(art, cfg.TopK)
		logrus.WithField("path", cfg.ModelPath).Info("trained classifier loaded")
	} else {
		classifier = classify.NewStatic(cfg.TopK)
		logrus.Warn("MODEL_ARTIFACT_PATH not set, using keyword classifier")
	}

	// --- Translator ---
	var translator language.Translator
	if cfg.OpenAIKey != "" {
		translator = language.NewOpenAITranslator(cfg.OpenAIKey, cfg.OpenAIModel)
	} else {
		translator = language.Static{}
		logrus.Warn("OPENAI_API_KEY not set, translation is pass-through")
	}
	normalizer := language.NewNormalizer(translator, cfg.CanonicalLang)

	// --- Intake module wiring ---
	finalizer := complaint.NewFinalizer(store, specs)
	svc := intake.NewService(specs, classifier, normalizer, finalizer, cfg.Threshold)
	handler := intake.NewHandler(svc, store)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	intake.RegisterRoutes(r, handler)

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.WithField("port", cfg.Port).Info("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// idle sessions time out cooperatively; the sweep interval just bounds
	// how late the expiry can fire
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SessionTimeout / 4)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				svc.ExpireIdle(cfg.SessionTimeout)
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Fatal("server error")
	}
	logrus.Info("stopped")
}
