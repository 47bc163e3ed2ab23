package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/mastowatch/mastowatch/automod/flagstore"
	"github.com/mastowatch/mastowatch/mastodon"

	"github.com/labstack/echo/v4"
)

func (s *Server) registerRoutes(e *echo.Echo) {
	e.GET("/healthz", s.handleHealthz)
	e.POST("/webhook", s.handleWebhook)

	admin := e.Group("/admin")
	admin.GET("/flags", s.handleGetFlags)
	admin.PUT("/flags/:name", s.handleSetFlag)
	admin.POST("/rules/invalidate", s.handleInvalidateRules)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// webhookEvent is the envelope Mastodon delivers to webhook endpoints.
type webhookEvent struct {
	Event  string          `json:"event"`
	Object json.RawMessage `json:"object"`
}

// handleWebhook ingests single-subject events. Subjects delivered here
// skip pagination but go through exactly the same evaluation, dedupe,
// safety-gate, and audit path as polled subjects.
func (s *Server) handleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if !s.verifySignature(c.Request().Header.Get("X-Hub-Signature-256"), body) {
		return c.NoContent(http.StatusUnauthorized)
	}

	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	switch evt.Event {
	case "account.created", "account.updated", "account.approved":
	default:
		// acknowledged but not scanned
		return c.NoContent(http.StatusAccepted)
	}

	var account mastodon.AdminAccount
	if err := json.Unmarshal(evt.Object, &account); err != nil || account.ID == "" {
		return c.NoContent(http.StatusBadRequest)
	}

	ctx := c.Request().Context()
	safety := s.engine.ReadSafety(ctx)
	if safety.PanicStop {
		s.logger.Warn("panic-stop engaged, dropping webhook event", "event", evt.Event, "account", account.ID)
		return c.NoContent(http.StatusServiceUnavailable)
	}

	if evt.Event == "account.updated" {
		// the edit that triggered this event must not be served stale
		if err := s.client.PurgeStatusCache(ctx, account.ID); err != nil {
			s.logger.Warn("status cache purge failed", "account", account.ID, "err", err)
		}
	}
	statuses, err := s.client.AccountStatuses(ctx, account.ID)
	if err != nil {
		s.logger.Warn("status hydration failed for webhook subject", "account", account.ID, "err", err)
	}
	out, err := s.engine.ProcessSubject(ctx, account.Subject(statuses), safety)
	if err != nil {
		s.logger.Error("webhook subject evaluation failed", "account", account.ID, "err", err)
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"subject":    out.SubjectID,
		"score":      out.Score,
		"action":     out.ActionType,
		"suppressed": out.Suppressed,
	})
}

// verifySignature checks the X-Hub-Signature-256 HMAC over the raw body.
// An empty configured secret disables verification (local development).
func (s *Server) verifySignature(header string, body []byte) bool {
	if s.webhookSecret == "" {
		return true
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}

func (s *Server) handleGetFlags(c echo.Context) error {
	ctx := c.Request().Context()
	safety := s.engine.ReadSafety(ctx)
	return c.JSON(http.StatusOK, map[string]bool{
		flagstore.FlagDryRun:    safety.DryRun,
		flagstore.FlagPanicStop: safety.PanicStop,
	})
}

type setFlagRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetFlag(c echo.Context) error {
	name := c.Param("name")
	if name != flagstore.FlagDryRun && name != flagstore.FlagPanicStop {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown flag"})
	}
	var req setFlagRequest
	if err := c.Bind(&req); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if err := s.engine.SetFlag(c.Request().Context(), name, req.Enabled); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"flag": name, "enabled": req.Enabled})
}

// handleInvalidateRules is the invalidation hook for the external
// rule-management collaborator; the next evaluation re-reads the rules.
func (s *Server) handleInvalidateRules(c echo.Context) error {
	s.ruleCache.Invalidate()
	return c.NoContent(http.StatusNoContent)
}
