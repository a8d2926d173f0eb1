package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-analyst/pkg/config"
	"github.com/ekaya-inc/ekaya-analyst/pkg/logging"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

const maxLoggedQuestion = 200

// Reply is the full outcome of one question.
type Reply struct {
	RequestID uuid.UUID          `json:"request_id"`
	Intent    models.Intent      `json:"intent"`
	Params    models.Params      `json:"params"`
	Result    models.QueryResult `json:"result,omitempty"`
	Text      string             `json:"reply"`
}

// Assistant answers free-text questions about sales and inventory.
type Assistant interface {
	// Ask runs the whole pipeline. Failures are rendered into Reply.Text.
	Ask(ctx context.Context, text string) Reply

	// Answer returns only the reply text.
	Answer(ctx context.Context, text string) string
}

type assistant struct {
	classifier  IntentClassifier
	synthesizer QuerySynthesizer
	generator   ResponseGenerator
	timeout     time.Duration
	logger      *zap.Logger
}

// NewAssistant wires the pipeline stages together.
func NewAssistant(
	classifier IntentClassifier,
	synthesizer QuerySynthesizer,
	generator ResponseGenerator,
	cfg config.AssistantConfig,
	logger *zap.Logger,
) Assistant {
	return &assistant{
		classifier:  classifier,
		synthesizer: synthesizer,
		generator:   generator,
		timeout:     cfg.RequestTimeout,
		logger:      logger.Named("assistant"),
	}
}

var _ Assistant = (*assistant)(nil)

func (a *assistant) Answer(ctx context.Context, text string) string {
	return a.Ask(ctx, text).Text
}

func (a *assistant) Ask(ctx context.Context, text string) Reply {
	start := time.Now()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	reply := Reply{RequestID: uuid.New()}
	logger := a.logger.With(zap.String("request_id", reply.RequestID.String()))

	reply.Intent, reply.Params = a.classifier.Classify(ctx, text)
	logger.Debug("Question classified",
		zap.String("question", logging.TruncateString(logging.SanitizeUserText(text), maxLoggedQuestion)),
		zap.String("intent", reply.Intent.String()))

	result, err := a.synthesizer.Execute(ctx, reply.Intent, reply.Params)
	if err != nil {
		a.logFailure(logger, reply.Intent, err)
		reply.Text = a.generator.RenderError(reply.Intent, err)
		return reply
	}

	reply.Result = result
	reply.Text = a.generator.Render(reply.Intent, reply.Params, result)
	logger.Info("Question answered",
		zap.String("intent", reply.Intent.String()),
		zap.Duration("elapsed", time.Since(start)))
	return reply
}

func (a *assistant) logFailure(logger *zap.Logger, intent models.Intent, err error) {
	fields := []zap.Field{
		zap.String("intent", intent.String()),
		zap.String("error", logging.SanitizeError(err)),
	}
	var rerr *apperrors.ResolutionError
	switch {
	case errors.As(err, &rerr):
		logger.Warn("Schema could not answer the question", append(fields, zap.Strings("suggestions", rerr.Suggestions))...)
	case errors.Is(err, apperrors.ErrMissingComparison):
		logger.Info("Comparison without two sides", fields...)
	default:
		logger.Error("Failed to answer question", fields...)
	}
}
