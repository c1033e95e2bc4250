package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"chatwidget-cli/cmd/config"
	"chatwidget-cli/cmd/utils"
	"chatwidget-cli/internal/chat"

	"go.uber.org/zap"
)

// ChatSessionContext encapsulates CLI session and connection state.
type ChatSessionContext struct {
	Config     *config.ChatWidgetConfig
	ConfigPath string
	HTTPClient utils.HTTPClient
}

// resolveSessionContext loads the effective configuration for the current
// working directory and applies command-line overrides on top of it.
func resolveSessionContext() (*ChatSessionContext, error) {
	cfg, path, err := config.Resolve(utils.GetEffectiveCWD(), configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg); err != nil {
		return nil, err
	}
	return &ChatSessionContext{
		Config:     cfg,
		ConfigPath: path,
		HTTPClient: utils.NewHTTPClient(cfg.RequestTimeout.Std()),
	}, nil
}

// applyFlagOverrides lets persistent flags win over file and environment.
func applyFlagOverrides(cfg *config.ChatWidgetConfig) error {
	if s := strings.TrimSpace(serverURL); s != "" {
		cfg.ServerURL = s
	}
	return cfg.Validate()
}

// buildChatAPIURL returns the endpoint the widget posts to.
func buildChatAPIURL(ctx *ChatSessionContext) (string, error) {
	if ctx == nil || ctx.Config == nil {
		return "", fmt.Errorf("chat session context is not initialized")
	}
	if strings.TrimSpace(ctx.Config.ServerURL) == "" {
		return "", fmt.Errorf("server url is required to build chat API URL")
	}
	return ctx.Config.EndpointURL(), nil
}

// newChatPipeline builds the send pipeline described by ctx.
func newChatPipeline(ctx *ChatSessionContext, logger *zap.Logger) (*chat.Pipeline, error) {
	endpoint, err := buildChatAPIURL(ctx)
	if err != nil {
		return nil, err
	}
	cfg := ctx.Config
	client := chat.NewHTTPClient(endpoint, ctx.HTTPClient)
	return chat.NewPipeline(client,
		chat.WithMaxRetries(cfg.MaxRetries),
		chat.WithBaseDelay(cfg.BaseDelay.Std()),
		chat.WithErrorMessage(cfg.ErrorMessage),
		chat.WithLogger(logger),
	), nil
}

// buildChatCurl renders the request the pipeline would send as a curl command.
func buildChatCurl(text string, ctx *ChatSessionContext) (string, error) {
	endpoint, err := buildChatAPIURL(ctx)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(chat.ChatRequest{Message: text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	return fmt.Sprintf("curl -X POST %s \\\n  -H %s \\\n  -d %s",
		shellQuote(endpoint),
		shellQuote("Content-Type: application/json"),
		shellQuote(string(body)),
	), nil
}

// shellQuote wraps s in single quotes for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
