package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/token-pulse/internal/types"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// IngestMessageRequest is the body of POST /api/v1/messages
type IngestMessageRequest struct {
	ChannelID int64     `json:"channelId"`
	MessageID int64     `json:"messageId"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sentAt"`
	ChainHint string    `json:"chainHint,omitempty"`
}

// handleIngestMessage accepts one channel message for ingestion
func (s *Server) handleIngestMessage(w http.ResponseWriter, r *http.Request) {
	var req IngestMessageRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.ChannelID == 0 || req.MessageID == 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "channelId and messageId are required", nil)
		return
	}
	if req.SentAt.IsZero() {
		req.SentAt = time.Now().UTC()
	}

	msg := &types.Message{
		ChannelID: req.ChannelID,
		MessageID: req.MessageID,
		Text:      req.Text,
		SentAt:    req.SentAt,
	}

	result, err := s.ingestService.IngestMessage(r.Context(), msg, types.Chain(strings.ToUpper(req.ChainHint)))
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

// UpsertChannelRequest is the body of POST /api/v1/channels
type UpsertChannelRequest struct {
	ChannelID   int64  `json:"channelId"`
	Title       string `json:"title,omitempty"`
	MemberCount int64  `json:"memberCount"`
	IsActive    *bool  `json:"isActive,omitempty"`
}

// handleUpsertChannel stores or refreshes channel metadata
func (s *Server) handleUpsertChannel(w http.ResponseWriter, r *http.Request) {
	var req UpsertChannelRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.ChannelID == 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "channelId is required", nil)
		return
	}
	if req.MemberCount < 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "memberCount cannot be negative", nil)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	ch := &types.Channel{
		ChannelID:   req.ChannelID,
		Title:       req.Title,
		MemberCount: req.MemberCount,
		IsActive:    active,
	}
	if err := s.store.UpsertChannel(r.Context(), ch); err != nil {
		respondCategorizedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ch)
}

// handleListTokens lists tracked tokens, most recently updated first
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	tokens, err := s.store.ListTokens(r.Context(), limit, offset)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": tokens,
		"limit":  limit,
		"offset": offset,
	})
}

// handleGetToken returns one token aggregate
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	key, ok := tokenKeyFromRequest(w, r)
	if !ok {
		return
	}

	token, err := s.store.GetToken(r.Context(), key)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}
	if token == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Token not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, token)
}

// handleListMentions returns the most recent mentions of a token
func (s *Server) handleListMentions(w http.ResponseWriter, r *http.Request) {
	key, ok := tokenKeyFromRequest(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	mentions, err := s.store.ListMentions(r.Context(), key, limit)
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"mentions": mentions,
		"limit":    limit,
	})
}

// handleTriggerSweep runs one market sweep synchronously. Sweeps never
// overlap: a second trigger while one runs is rejected.
func (s *Server) handleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	if s.sweeper == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Sweeping is not configured on this instance", nil)
		return
	}
	if !s.sweeping.CompareAndSwap(false, true) {
		respondError(w, http.StatusConflict, ErrCodeInvalidInput, "A sweep is already running", nil)
		return
	}
	defer s.sweeping.Store(false)

	report, err := s.sweeper.Run(r.Context())
	if err != nil {
		respondCategorizedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func tokenKeyFromRequest(w http.ResponseWriter, r *http.Request) (types.TokenKey, bool) {
	vars := mux.Vars(r)
	chain := types.Chain(strings.ToUpper(vars["chain"]))
	contract := vars["contract"]

	if !chain.IsResolved() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unknown chain", map[string]interface{}{
			"chain": vars["chain"],
		})
		return types.TokenKey{}, false
	}
	if contract == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Contract address is required", nil)
		return types.TokenKey{}, false
	}

	return types.TokenKey{Chain: chain, Contract: contract}, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
