package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/token-pulse/internal/extract"
	"github.com/token-pulse/internal/ingest"
	"github.com/token-pulse/internal/ledger"
	"github.com/token-pulse/internal/logging"
	"github.com/token-pulse/internal/sentiment"
	"github.com/token-pulse/internal/storage"
	"github.com/token-pulse/internal/types"
)

type storeDirectory struct {
	store storage.Store
}

func (d storeDirectory) GetMemberCount(ctx context.Context, channelID int64) (int64, error) {
	ch, err := d.store.GetChannel(ctx, channelID)
	if err != nil || ch == nil {
		return 0, err
	}
	return ch.MemberCount, nil
}

func (d storeDirectory) IsActive(ctx context.Context, channelID int64) (bool, error) {
	ch, err := d.store.GetChannel(ctx, channelID)
	if err != nil || ch == nil {
		return false, err
	}
	return ch.IsActive, nil
}

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	ledg := ledger.NewLedger(store, storeDirectory{store: store})
	svc := ingest.NewService(store, extract.NewExtractor(sentiment.NewScorer(nil)), ledg, nil)
	logger := logging.NewLogger(logging.LevelError, logging.FormatJSON)
	return NewServer(DefaultServerConfig("127.0.0.1", "0"), svc, store, logger), store
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestMessageEndpoint(t *testing.T) {
	server, store := newTestServer(t)

	// Register the broadcasting channel first so reach can be computed
	rec := doJSON(t, server, http.MethodPost, "/api/v1/channels", UpsertChannelRequest{
		ChannelID:   100,
		Title:       "degen signals",
		MemberCount: 2500,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/messages", IngestMessageRequest{
		ChannelID: 100,
		MessageID: 1,
		Text:      "🪙 Token: MOON\n📝 0xdAC17F958D2ee523a2206206994597C13D831ec7\n💰 市值: 500K\nETH gem",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var result types.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.SignalFound)
	assert.True(t, result.MentionCreated)
	require.NotNil(t, result.TokenKey)

	token, err := store.GetToken(context.Background(), *result.TokenKey)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "MOON", token.Symbol)
	assert.Equal(t, int64(2500), token.CommunityReach)
}

func TestIngestMessageDuplicateReturns200(t *testing.T) {
	server, _ := newTestServer(t)

	body := IngestMessageRequest{ChannelID: 100, MessageID: 7, Text: "hello"}
	rec := doJSON(t, server, http.MethodPost, "/api/v1/messages", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/messages", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	var result types.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Duplicate)
}

func TestIngestMessageValidation(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/messages", IngestMessageRequest{MessageID: 1, Text: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/messages", map[string]interface{}{
		"channelId": 1, "messageId": 2, "bogusField": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertChannelValidation(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/channels", UpsertChannelRequest{MemberCount: 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/channels", UpsertChannelRequest{ChannelID: 5, MemberCount: -2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTokenEndpoint(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()

	contract := "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	_, err := store.EnsureToken(ctx, &types.Token{
		Chain:    types.ChainETH,
		Contract: contract,
		Symbol:   "MOON",
	})
	require.NoError(t, err)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/tokens/eth/"+contract, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var token types.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	assert.Equal(t, "MOON", token.Symbol)
	assert.Equal(t, types.ChainETH, token.Chain)
}

func TestGetTokenNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/v1/tokens/eth/0x0000000000000000000000000000000000000001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTokenUnknownChain(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/v1/tokens/dogecoin/0x0000000000000000000000000000000000000001", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTokensEndpoint(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		contract := fmt.Sprintf("0x%040d", i+1)
		_, err := store.EnsureToken(ctx, &types.Token{
			Chain:    types.ChainETH,
			Contract: contract,
		})
		require.NoError(t, err)
	}

	rec := doJSON(t, server, http.MethodGet, "/api/v1/tokens?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tokens []*types.Token `json:"tokens"`
		Limit  int            `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Tokens, 2)
	assert.Equal(t, 2, body.Limit)
}

type fakeSweepRunner struct {
	runs   int
	report *types.SweepReport
}

func (f *fakeSweepRunner) Run(ctx context.Context) (*types.SweepReport, error) {
	f.runs++
	return f.report, nil
}

func TestTriggerSweepUnconfigured(t *testing.T) {
	server, _ := newTestServer(t)
	rec := doJSON(t, server, http.MethodPost, "/api/v1/sweeps", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTriggerSweepEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	runner := &fakeSweepRunner{report: &types.SweepReport{Total: 5, Reconciled: 4, NotFound: 1}}
	server.SetSweepRunner(runner)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/sweeps", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.runs)

	var report types.SweepReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 4, report.Reconciled)
}

func TestListMentionsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	text := "CA: 0xdAC17F958D2ee523a2206206994597C13D831ec7 ETH"
	for id := int64(1); id <= 2; id++ {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/messages", IngestMessageRequest{
			ChannelID: 100 + id,
			MessageID: id,
			Text:      text,
		})
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := doJSON(t, server, http.MethodGet, "/api/v1/tokens/eth/0xdAC17F958D2ee523a2206206994597C13D831ec7/mentions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Mentions []*types.Mention `json:"mentions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Mentions, 2)
}
