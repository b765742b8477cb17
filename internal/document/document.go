// Package document is a placeholder for document generation. Nothing is
// generated: every request gets the same example URL back.
package document

import (
	"context"
	"encoding/json"

	"github.com/suPer8Hu/chat-relay/internal/logging"
	"go.uber.org/zap"
)

// PlaceholderURL is returned for every request until a real generator exists.
const PlaceholderURL = "https://www.spanishdict.com/translate/ejemplo"

const inputPreviewChars = 200

type Generator interface {
	Generate(ctx context.Context, inputs json.RawMessage) (string, error)
}

type PlaceholderGenerator struct {
	log *zap.Logger
}

func NewPlaceholderGenerator(log *zap.Logger) *PlaceholderGenerator {
	return &PlaceholderGenerator{log: logging.OrNop(log)}
}

// Generate ignores inputs apart from logging a preview of them.
func (g *PlaceholderGenerator) Generate(_ context.Context, inputs json.RawMessage) (string, error) {
	fields := []zap.Field{zap.String("document_url", PlaceholderURL)}
	if len(inputs) > 0 {
		fields = append(fields, zap.String("inputs_preview", logging.Preview(string(inputs), inputPreviewChars)))
	}
	g.log.Info("placeholder document returned", fields...)
	return PlaceholderURL, nil
}
