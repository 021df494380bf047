package llm

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
	"github.com/ternarybob/vacans/internal/interfaces"
)

// Service adapts the provider factory to the narrow LLMService interface the
// normalizer consumes. The model is fixed at construction; callers only pass
// messages.
type Service struct {
	factory *ProviderFactory
	model   string
	logger  arbor.ILogger
}

// NewService creates an LLM service bound to the configured default provider
// and model.
func NewService(config *common.Config, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) interfaces.LLMService {
	factory := NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, kvStorage, logger)
	model := factory.GetDefaultModel(ProviderType(config.LLM.DefaultProvider))

	return &Service{
		factory: factory,
		model:   model,
		logger:  logger,
	}
}

// Chat sends messages to the configured model and returns the text response
func (s *Service) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	resp, err := s.factory.GenerateContent(ctx, &ContentRequest{
		Messages: messages,
		Model:    s.model,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Close releases provider clients
func (s *Service) Close() error {
	return s.factory.Close()
}
