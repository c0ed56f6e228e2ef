package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/amika-agent/internal/adapters/auth"
	httpadapter "github.com/PabloGalante/amika-agent/internal/adapters/http"
	"github.com/PabloGalante/amika-agent/internal/adapters/llm"
	"github.com/PabloGalante/amika-agent/internal/adapters/mail"
	firestorestore "github.com/PabloGalante/amika-agent/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/amika-agent/internal/adapters/storage/memory"
	sqlitestore "github.com/PabloGalante/amika-agent/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/amika-agent/internal/app/agentflow"
	"github.com/PabloGalante/amika-agent/internal/app/conversation"
	"github.com/PabloGalante/amika-agent/internal/app/relations"
	"github.com/PabloGalante/amika-agent/internal/app/reminders"
	"github.com/PabloGalante/amika-agent/internal/app/tools"
	"github.com/PabloGalante/amika-agent/internal/app/watcher"
	"github.com/PabloGalante/amika-agent/internal/concurrency"
	"github.com/PabloGalante/amika-agent/internal/config"
	"github.com/PabloGalante/amika-agent/internal/domain"
	"github.com/PabloGalante/amika-agent/internal/observability"
)

// store is what every storage backend provides.
type store interface {
	domain.UserStore
	domain.ChangeFeed
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	log := observability.Logger()
	if err := run(); err != nil {
		log.Error("amika-api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := observability.Logger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Mode == config.ModeProd {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics := observability.DefaultMetrics()

	// Storage: memory, SQLite or Firestore
	var users store
	switch cfg.StorageBackend {
	case "firestore":
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return err
		}
		defer closeQuietly(fs)
		users = fs
	case "sqlite":
		log.Info("using sqlite storage", "path", cfg.SQLitePath)
		db, err := sqlitestore.NewStore(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer closeQuietly(db)
		users = db
	default:
		log.Info("using in-memory storage")
		users = memstore.NewUserStore()
	}

	// Agents and notification content: mock, OpenAI or Vertex
	var (
		provider domain.AssistantProvider
		content  domain.ContentGenerator
	)
	if cfg.UseMockLLM {
		log.Info("using mock assistants and content")
		provider = llm.NewMockAssistants(nil)
		content = llm.NewMockContent()
	} else {
		log.Info("using openai assistants", "model", cfg.AssistantModel)
		provider = llm.NewOpenAIAssistants(cfg.OpenAIAPIKey, cfg.AssistantModel)
		switch cfg.ContentBackend {
		case "vertex":
			log.Info("using vertex content", "project", cfg.GCPProjectID, "location", cfg.GCPLocation)
			content, err = llm.NewVertexContent(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ContentModel)
			if err != nil {
				return err
			}
		default:
			content = llm.NewOpenAIContent(cfg.OpenAIAPIKey, cfg.ContentModel)
		}
	}

	var mailer domain.Mailer
	switch cfg.MailBackend {
	case "smtp":
		mailer, err = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			return err
		}
	default:
		log.Info("reminder emails go to the in-memory outbox")
		mailer = memstore.NewOutbox()
	}

	links, err := auth.NewJWTIssuer(cfg.JWTSecret)
	if err != nil {
		return err
	}

	// Every writer of user documents shares this lock.
	writes := concurrency.NewKeyedMutex()

	sessions, err := agentflow.NewSessions(users, provider, cfg.SessionCacheSize, writes)
	if err != nil {
		return err
	}
	runner := agentflow.NewRunner(provider, agentflow.PollPolicy{
		MaxInterval: cfg.PollMaxInterval,
		Timeout:     cfg.RunTimeout,
	}, metrics)
	relationSvc := relations.NewService(users, writes, cfg.Timezone, metrics)
	orchestrator := agentflow.NewOrchestrator(
		agentflow.NewRespondent(sessions, runner),
		agentflow.NewClassifier(sessions, runner),
		tools.NewRelationTool(relationSvc),
		metrics,
		cfg.MutationTimeout,
	)
	convSvc := conversation.NewService(orchestrator, sessions)

	dispatcher := reminders.NewDispatcher(users, content, links, mailer, cfg.LinkBaseURL, cfg.LinkTTL, metrics)
	scheduler := reminders.NewScheduler(dispatcher, cfg.Timezone, cfg.DispatchTimeout, metrics)
	w := watcher.New(users, users, sessions, scheduler, metrics)

	handler := httpadapter.NewServer(httpadapter.Deps{
		Conversation: convSvc,
		Relations:    relationSvc,
		Links:        links,
		Metrics:      promhttp.Handler(),
		CORSOrigins:  cfg.CORSOrigins,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler.Start(ctx)
	if err := w.Start(ctx); err != nil {
		scheduler.Stop()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("amika api listening", "port", cfg.Port, "mode", cfg.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		w.Stop()
		scheduler.Stop()
		convSvc.Wait()
		return err
	})
	return g.Wait()
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		observability.Logger().Warn("close failed", "error", err)
	}
}
