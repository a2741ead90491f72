// Package pipeline wires the Harmony tokenizer, strict parser, renderer and
// streaming extractor to configuration, structured logging and metrics.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"harmony-kit/config"
	"harmony-kit/encoding"
	"harmony-kit/harmony"
	"harmony-kit/logger"
	"harmony-kit/metrics"
	"harmony-kit/parser"
	"harmony-kit/types"
)

// Pipeline runs the batch and live paths with instrumentation
type Pipeline struct {
	cfg     *config.Config
	enc     *encoding.Encoding
	log     *logger.ObservabilityLogger
	metrics *metrics.Recorder
}

// New creates a Pipeline. A nil logger discards logs and a nil recorder gets
// a private one.
func New(cfg *config.Config, log *logger.ObservabilityLogger, rec *metrics.Recorder) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	enc, err := encoding.LoadEncoding(cfg.EncodingName(), cfg.Delimiters)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	if rec == nil {
		rec = metrics.NewRecorder()
	}
	return &Pipeline{cfg: cfg, enc: enc, log: log, metrics: rec}, nil
}

// Delimiters returns the configured delimiter set
func (p *Pipeline) Delimiters() parser.Delimiters {
	return p.enc.Delimiters()
}

// Metrics returns the metrics recorder
func (p *Pipeline) Metrics() *metrics.Recorder {
	return p.metrics
}

// Tokenize splits raw text into tokens.
func (p *Pipeline) Tokenize(ctx context.Context, raw string) []string {
	tokens := parser.Tokenize(raw, p.Delimiters())
	p.log.Debug(ctx, logger.ComponentTokenizer, logger.CategoryParse, "Tokenized completion", map[string]interface{}{
		"bytes":  len(raw),
		"tokens": len(tokens),
	})
	return tokens
}

// ParseCompletion tokenizes raw text and strictly parses the result.
func (p *Pipeline) ParseCompletion(ctx context.Context, raw string) (types.Conversation, error) {
	return p.ParseTokens(ctx, p.Tokenize(ctx, raw))
}

// ParseTokens strictly parses tokens with the configured encoding.
func (p *Pipeline) ParseTokens(ctx context.Context, tokens []string) (types.Conversation, error) {
	conv, err := p.enc.Parse(tokens)
	if err != nil {
		var pe *parser.ParseError
		if errors.As(err, &pe) {
			p.metrics.ObserveParse(len(tokens), string(pe.Kind))
			p.log.ParseFailure(ctx, string(pe.Kind), pe.Token, pe.Position, err)
		} else {
			p.metrics.ObserveParse(len(tokens), "unknown")
			p.log.Error(ctx, logger.ComponentStrictParser, logger.CategoryError, "Parse failed", map[string]interface{}{"error": err.Error()})
		}
		return types.Conversation{}, err
	}

	p.metrics.ObserveParse(len(tokens), "")
	p.log.Info(ctx, logger.ComponentStrictParser, logger.CategoryParse, "Parsed conversation", map[string]interface{}{
		"tokens":   len(tokens),
		"messages": conv.Len(),
	})
	return conv, nil
}

// Render renders conv to a single Harmony string.
func (p *Pipeline) Render(ctx context.Context, conv types.Conversation) (string, error) {
	out, err := p.enc.RenderString(conv)
	p.metrics.ObserveRender(err)
	if err != nil {
		p.log.Warn(ctx, logger.ComponentRenderer, logger.CategoryRender, "Render failed", map[string]interface{}{"error": err.Error()})
		return "", err
	}
	p.log.Info(ctx, logger.ComponentRenderer, logger.CategoryRender, "Rendered conversation", map[string]interface{}{
		"messages": conv.Len(),
		"bytes":    len(out),
	})
	return out, nil
}

// Detect reports whether value looks like Harmony text.
func (p *Pipeline) Detect(ctx context.Context, value any) bool {
	ok := parser.IsHarmonyFormat(value, p.Delimiters())
	p.metrics.ObserveDetect(ok)
	p.log.Debug(ctx, logger.ComponentPipeline, logger.CategoryValidation, "Format detection", map[string]interface{}{"harmony": ok})
	return ok
}

// FinalContent returns the user-facing text of raw output.
func (p *Pipeline) FinalContent(ctx context.Context, raw string) string {
	final := harmony.ExtractFinalContent(raw, p.Delimiters())
	p.log.Debug(ctx, logger.ComponentStreamExtractor, logger.CategoryStream, "Extracted final content", map[string]interface{}{
		"bytes":       len(raw),
		"final_bytes": len(final),
	})
	return final
}

// NewExtractor returns an extractor bound to the configured delimiters.
func (p *Pipeline) NewExtractor() *harmony.Extractor {
	return harmony.NewExtractor(p.Delimiters())
}
