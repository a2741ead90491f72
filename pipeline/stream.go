package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"harmony-kit/harmony"
	"harmony-kit/logger"
)

// Format selects how Stream splits its input into chunks.
type Format string

const (
	// FormatSSE reads server-sent event lines; each "data:" payload is one
	// chunk and "[DONE]" ends the stream.
	FormatSSE Format = "sse"
	// FormatRaw reads fixed-size byte chunks.
	FormatRaw Format = "raw"
)

const defaultRawChunkSize = 64

// deltaPaths are tried in order on JSON data payloads.
var deltaPaths = []string{"choices.0.delta.content", "delta.content", "content", "text"}

// StreamOptions controls Stream
type StreamOptions struct {
	Format    Format
	ChunkSize int // FormatRaw only, defaults to 64 bytes
}

// EmitFunc receives every snapshot. Returning an error stops the stream.
type EmitFunc func(harmony.Snapshot) error

// Stream feeds r chunk by chunk into a fresh extractor, calling emit after
// every addition, and returns the last snapshot. The configured buffer cap
// and reset-on-complete policy are applied between chunks.
func (p *Pipeline) Stream(ctx context.Context, r io.Reader, opts StreamOptions, emit EmitFunc) (harmony.Snapshot, error) {
	ex := p.NewExtractor()
	var last harmony.Snapshot
	updates := 0

	add := func(chunk string) error {
		if limit := p.cfg.Stream.MaxBufferBytes; limit > 0 && len(ex.Buffer())+len(chunk) > limit {
			p.log.Warn(ctx, logger.ComponentStreamExtractor, logger.CategoryStream, "Buffer cap reached, resetting extractor", map[string]interface{}{
				"buffer_bytes": len(ex.Buffer()),
				"chunk_bytes":  len(chunk),
				"max_bytes":    limit,
			})
			p.metrics.ObserveStreamReset("buffer_cap")
			ex.Reset()
		}

		last = ex.Add(chunk)
		updates++
		p.metrics.ObserveStreamUpdate(len(chunk), len(last.Raw), last.Complete)
		p.log.StreamSnapshot(ctx, last.Channel, last.Complete, len(last.Raw))

		if emit != nil {
			if err := emit(last); err != nil {
				return err
			}
		}
		if last.Complete && p.cfg.Stream.ResetOnComplete {
			p.metrics.ObserveStreamReset("complete")
			ex.Reset()
		}
		return nil
	}

	var err error
	switch opts.Format {
	case FormatRaw:
		err = readRaw(ctx, r, opts.ChunkSize, add)
	case FormatSSE, "":
		err = readSSE(ctx, r, add)
	default:
		err = fmt.Errorf("unknown stream format %q", opts.Format)
	}
	if err != nil {
		p.log.Error(ctx, logger.ComponentPipeline, logger.CategoryError, "Stream failed", map[string]interface{}{
			"error":   err.Error(),
			"updates": updates,
		})
		return last, err
	}

	p.log.Info(ctx, logger.ComponentPipeline, logger.CategoryStream, "Stream finished", map[string]interface{}{
		"updates":  updates,
		"complete": last.Complete,
		"channel":  last.Channel,
	})
	return last, nil
}

func readSSE(ctx context.Context, r io.Reader, add func(string) error) error {
	scanner := bufio.NewScanner(r)
	// Tool call deltas can be long
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
		if payload == "[DONE]" {
			break
		}

		chunk, ok := decodeDelta(payload)
		if !ok {
			continue
		}
		if err := add(chunk); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}

// decodeDelta extracts the text carried by one SSE payload. JSON strings and
// OpenAI-style chunk objects are decoded; anything that is not JSON is taken
// literally. ok is false for JSON payloads with no text.
func decodeDelta(payload string) (string, bool) {
	if !gjson.Valid(payload) {
		return payload, payload != ""
	}
	parsed := gjson.Parse(payload)
	if parsed.Type == gjson.String {
		return parsed.String(), true
	}
	for _, path := range deltaPaths {
		if v := parsed.Get(path); v.Exists() && v.Type == gjson.String {
			return v.String(), v.String() != ""
		}
	}
	return "", false
}

func readRaw(ctx context.Context, r io.Reader, size int, add func(string) error) error {
	if size <= 0 {
		size = defaultRawChunkSize
	}
	reader := bufio.NewReader(r)
	buf := make([]byte, size)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(reader, buf)
		if n > 0 {
			if addErr := add(string(buf[:n])); addErr != nil {
				return addErr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading stream: %w", err)
		}
	}
}
