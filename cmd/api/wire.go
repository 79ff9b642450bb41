package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/adventure-chat/backend/internal/config"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/background"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/chat"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/game"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/narrator"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/session"
	"github.com/zhouzirui/adventure-chat/backend/web"
)

func chatConfig(cfg config.ChatConfig) chat.Config {
	return chat.Config{SnapshotKey: cfg.SnapshotKey}
}

// buildConnectivity probes the configured game URL, "off" disables the check,
// and an empty URL falls back to the bundled response.json.
func buildConnectivity(cfg config.GameConfig) session.Connectivity {
	url := strings.TrimSpace(cfg.ProbeURL)
	switch {
	case url == "":
		return game.FileChecker{FS: web.FS(), Name: web.StatusName}
	case strings.EqualFold(url, "off"):
		return game.Checker{}
	default:
		return game.Checker{
			Client: &http.Client{Timeout: cfg.ProbeTimeout},
			URL:    url,
		}
	}
}

// buildDocumentSource picks the fallback document: a URL, a file on disk,
// or the bundled chatData.json.
func buildDocumentSource(cfg config.ChatConfig) chat.DocumentSource {
	location := strings.TrimSpace(cfg.FallbackDocument)
	switch {
	case location == "":
		return chat.FSDocumentSource{FS: web.FS(), Name: web.DocumentName}
	case strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://"):
		return chat.HTTPDocumentSource{Client: &http.Client{Timeout: cfg.FetchTimeout}, URL: location}
	default:
		return chat.FSDocumentSource{FS: os.DirFS(filepath.Dir(location)), Name: filepath.Base(location)}
	}
}

// buildProber picks where background images are probed: a remote base URL,
// a local directory, or the bundled page assets.
func buildProber(cfg config.BackgroundConfig) background.Prober {
	switch {
	case cfg.AssetBaseURL != "":
		return background.HTTPProber{Client: &http.Client{Timeout: cfg.ProbeTimeout}, BaseURL: cfg.AssetBaseURL}
	case cfg.AssetDir != "":
		return background.FSProber{FS: os.DirFS(cfg.AssetDir)}
	default:
		return background.FSProber{FS: web.FS()}
	}
}

// buildResponder uses the narrator when it is enabled and the model is
// configured, and the echo placeholder otherwise.
func buildResponder(ctx context.Context, cfg *config.Config) chat.Responder {
	echo := chat.EchoResponder{Delay: cfg.Chat.EchoDelay}
	if !cfg.AI.Narrator {
		return echo
	}
	if !cfg.AI.Enabled() {
		log.Warn().Msg("narrator requested but ark credentials are missing, using echo replies")
		return echo
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create chat model, using echo replies")
		return echo
	}

	svc, err := narrator.NewService(ctx, chatModel, narrator.Config{
		SystemPrompt: cfg.AI.SystemPrompt,
		HistoryLimit: cfg.AI.HistoryLimit,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize narrator, using echo replies")
		return echo
	}

	log.Info().Str("model", cfg.AI.Model).Msg("narrator initialized")
	return svc
}
