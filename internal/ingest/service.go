// Package ingest ties message intake together: dedup, signal extraction,
// and handoff to the batcher or straight to the mention ledger.
package ingest

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/token-pulse/internal/batch"
	"github.com/token-pulse/internal/extract"
	"github.com/token-pulse/internal/ledger"
	"github.com/token-pulse/internal/logging"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/types"
)

// maxMessageBytes caps the text handed to the extractor
const maxMessageBytes = 16 * 1024

// Service ingests channel messages
type Service struct {
	store     storage.Store
	extractor *extract.Extractor
	ledger    *ledger.Ledger
	batcher   *batch.Batcher
}

// NewService creates an ingestion service. With a non-nil batcher the
// ledger write is deferred to the next flush; otherwise it happens inline.
func NewService(store storage.Store, extractor *extract.Extractor, ledg *ledger.Ledger, batcher *batch.Batcher) *Service {
	return &Service{
		store:     store,
		extractor: extractor,
		ledger:    ledg,
		batcher:   batcher,
	}
}

// IngestMessage processes one channel message. Messages already seen are
// skipped before extraction so replays cost one indexed lookup.
func (s *Service) IngestMessage(ctx context.Context, msg *types.Message, chainHint types.Chain) (*types.IngestResult, error) {
	logger := logging.FromContext(ctx).WithComponent("ingest").WithFields(map[string]interface{}{
		"channel_id": msg.ChannelID,
		"message_id": msg.MessageID,
	})

	seen, err := s.store.MessageExists(ctx, msg.ChannelID, msg.MessageID)
	if err != nil {
		return nil, err
	}
	if seen {
		logger.Debug("message already ingested")
		return &types.IngestResult{Duplicate: true}, nil
	}

	text := truncateUTF8(msg.Text, maxMessageBytes)
	if strings.TrimSpace(text) == "" {
		if err := s.store.InsertMessages(ctx, []*types.Message{msg}); err != nil {
			return nil, err
		}
		return &types.IngestResult{}, nil
	}

	signal := s.extractor.Extract(text, msg.SentAt, chainHint)

	if s.batcher != nil {
		if err := s.batcher.Enqueue(ctx, batch.Envelope{Message: msg, Signal: signal}); err != nil {
			return nil, err
		}
		return &types.IngestResult{SignalFound: signal != nil}, nil
	}

	if err := s.store.InsertMessages(ctx, []*types.Message{msg}); err != nil {
		return nil, err
	}
	if signal == nil {
		return &types.IngestResult{}, nil
	}

	return s.ledger.Record(ctx, signal, msg.ChannelID, msg.MessageID)
}

// truncateUTF8 caps text at max bytes without splitting a multi-byte rune
func truncateUTF8(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
