package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	"github.com/0x0BSoD/constellation/internal/config"
	"github.com/0x0BSoD/constellation/internal/importer"
	"github.com/0x0BSoD/constellation/internal/reporter"
	"github.com/0x0BSoD/constellation/internal/source"
	"github.com/0x0BSoD/constellation/internal/storage"
	"github.com/0x0BSoD/constellation/internal/summary"
)

// openDB connects to the configured database and brings its schema up to
// date.
func openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	if db.DriverName() == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	if err := storage.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func newSummarizer(cfg config.Config) (importer.Summarizer, error) {
	switch cfg.AIType {
	case "":
		return nil, nil
	case "openai":
		if cfg.AIKey == "" {
			return nil, errors.New(`ai_key is required when ai_type is "openai"`)
		}
		log.Printf("[INFO] using OpenAI-compatible summarizer (model: %s)", cfg.AIModel)
		return summary.NewOpenAISummarizer(cfg.AIBaseURL, cfg.AIKey, cfg.AIPrompt, cfg.AIModel, cfg.AITimeout), nil
	case "ollama":
		if cfg.AIBaseURL == "" {
			return nil, errors.New(`ai_base_url is required when ai_type is "ollama"`)
		}
		log.Printf("[INFO] using Ollama summarizer (model: %s)", cfg.AIModel)
		return summary.NewOllamaSummarizer(cfg.AIBaseURL, cfg.AIPrompt, cfg.AIModel, cfg.AITimeout), nil
	default:
		return nil, fmt.Errorf("unknown ai_type %q", cfg.AIType)
	}
}

// newReporter returns nil when no bot token is configured. A nil reporter
// is safe to use.
func newReporter(cfg config.Config) (*reporter.Reporter, error) {
	if cfg.TelegramBotToken == "" {
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return reporter.New(botAPI, cfg.TelegramChannelID, cfg.TelegramAdminChatID, cfg.SiteURL), nil
}

func newImporter(cfg config.Config, db *sqlx.DB, rep *reporter.Reporter) (*importer.Importer, error) {
	summarizer, err := newSummarizer(cfg)
	if err != nil {
		return nil, err
	}

	sources := lo.Map(cfg.ImportFeeds, func(url string, _ int) importer.Source {
		return source.NewRSSSource(url)
	})

	return importer.New(
		storage.NewPostStorage(db),
		sources,
		summarizer,
		rep,
		cfg.ImportInterval,
		cfg.ImportSkipKeywords,
	), nil
}
