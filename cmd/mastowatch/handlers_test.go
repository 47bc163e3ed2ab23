package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/mastowatch/mastowatch/automod/engine"
	"github.com/mastowatch/mastowatch/automod/event"
	"github.com/mastowatch/mastowatch/automod/flagstore"
	"github.com/mastowatch/mastowatch/automod/rules"
	"github.com/mastowatch/mastowatch/mastodon"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, ruleSet []rules.Rule) *Server {
	// status hydration endpoint; webhook subjects evaluate on profile
	// fields here so an empty listing is enough
	statuses := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	t.Cleanup(statuses.Close)

	s := &Server{
		logger:        slog.New(slog.NewTextHandler(os.Stderr, nil)),
		engine:        engine.EngineTestFixture(ruleSet),
		client:        mastodon.NewClient(statuses.URL, "test-token"),
		webhookSecret: "s3cret",
	}
	e := echo.New()
	s.registerRoutes(e)
	s.echo = e
	return s
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(s *Server, body []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("X-Hub-Signature-256", sig)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func spamAccountEvent(eventType string) []byte {
	return []byte(`{"event":"` + eventType + `","object":{"id":"7","account":{"id":"7","username":"baduser","acct":"baduser@evil.example","note":"contact me for spam deals"}}}`)
}

func webhookRule() rules.Rule {
	return rules.Rule{
		ID:               1,
		Name:             "bio-spam",
		Enabled:          true,
		DetectorType:     rules.DetectorKeyword,
		Pattern:          "spam,scam",
		TargetFields:     []string{event.FieldBio},
		MatchOptions:     rules.MatchOptions{WordBoundaries: true},
		Weight:           2.0,
		TriggerThreshold: 1.5,
		ActionType:       rules.ActionReport,
	}
}

func TestWebhookScansAccount(t *testing.T) {
	assert := assert.New(t)
	s := testServer(t, []rules.Rule{webhookRule()})
	platform := s.engine.Platform.(*engine.FakePlatform)

	body := spamAccountEvent("account.created")
	rec := postWebhook(s, body, signBody("s3cret", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal("7", out["subject"])
	assert.Equal(2.0, out["score"])
	assert.Equal(rules.ActionReport, out["action"])
	assert.Empty(out["suppressed"])

	require.Len(t, platform.Applied(), 1)
	assert.Equal("7", platform.Applied()[0].SubjectID)
}

func TestWebhookBadSignature(t *testing.T) {
	s := testServer(t, []rules.Rule{webhookRule()})
	platform := s.engine.Platform.(*engine.FakePlatform)

	body := spamAccountEvent("account.created")
	rec := postWebhook(s, body, "sha256=deadbeef")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(s, body, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, platform.Applied())
}

func TestWebhookPanicStop(t *testing.T) {
	s := testServer(t, []rules.Rule{webhookRule()})
	platform := s.engine.Platform.(*engine.FakePlatform)
	require.NoError(t, s.engine.Flags.Set(context.Background(), flagstore.FlagPanicStop, true))

	body := spamAccountEvent("account.created")
	rec := postWebhook(s, body, signBody("s3cret", body))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Empty(t, platform.Applied())
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	s := testServer(t, []rules.Rule{webhookRule()})
	platform := s.engine.Platform.(*engine.FakePlatform)

	body := []byte(`{"event":"status.created","object":{}}`)
	rec := postWebhook(s, body, signBody("s3cret", body))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Empty(t, platform.Applied())
}

func TestVerifySignature(t *testing.T) {
	assert := assert.New(t)
	s := &Server{webhookSecret: "s3cret"}
	body := []byte(`{"event":"account.created"}`)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	good := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	assert.True(s.verifySignature(good, body))
	assert.False(s.verifySignature("sha256=deadbeef", body))
	assert.False(s.verifySignature("", body))
	assert.False(s.verifySignature(good, []byte("tampered")))

	// verification disabled without a configured secret
	open := &Server{}
	assert.True(open.verifySignature("", body))
}
