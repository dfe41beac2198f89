package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/quailyquaily/wingmate/coach"
	"github.com/quailyquaily/wingmate/internal/logutil"
	"github.com/quailyquaily/wingmate/internal/statepaths"
	"github.com/quailyquaily/wingmate/providers/openai"
)

// buildService wires the standard stack: logger from viper, the file
// repository under the state dir, persona.yaml and the OpenAI client.
func buildService(ctx context.Context) (*coach.Service, *slog.Logger, error) {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	repo := coach.NewFileRepository(statepaths.UsersPath(), logger)
	if err := repo.Ensure(ctx); err != nil {
		return nil, nil, err
	}

	persona, err := coach.LoadPersona(statepaths.PersonaPath())
	if err != nil {
		logger.Warn("persona load failed, using defaults", "error", err)
	}

	client := openai.New(
		strings.TrimSpace(viper.GetString("llm.endpoint")),
		strings.TrimSpace(viper.GetString("llm.api_key")),
	)

	svc := coach.NewService(repo, client, coach.ServiceOptions{
		Model:   strings.TrimSpace(viper.GetString("llm.model")),
		Persona: persona,
		Logger:  logger,
	})
	return svc, logger, nil
}
