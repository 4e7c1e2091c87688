package handler

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"
)

type stubLex struct {
	replies []string
	err     error

	calls         int
	lastSessionID string
	lastText      string
}

func (s *stubLex) RecognizeText(_ context.Context, sessionID, text string) ([]string, error) {
	s.calls++
	s.lastSessionID = sessionID
	s.lastText = text
	return s.replies, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/chatbot",
		Headers:    map[string]string{"Content-Type": "application/json", "User-Agent": "test-agent"},
		Body:       body,
		RequestContext: events.APIGatewayProxyRequestContext{
			Identity: events.APIGatewayRequestIdentity{SourceIP: "203.0.113.9"},
		},
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func mustNewHandler(t *testing.T, lex LexRuntime) *Handler {
	t.Helper()
	h, err := NewHandler(lex)
	require.NoError(t, err)
	return h
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	restore := nowUTC
	nowUTC = func() time.Time { return at }
	t.Cleanup(func() { nowUTC = restore })
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_PreflightReturns204WithCORS(t *testing.T) {
	h := mustNewHandler(t, &stubLex{})
	event := makeEvent("")
	event.HTTPMethod = http.MethodOptions

	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	require.Equal(t, "OPTIONS,POST", resp.Headers["Access-Control-Allow-Methods"])
	require.Empty(t, resp.Body)
}

func TestHandle_HappyPath(t *testing.T) {
	lex := &stubLex{replies: []string{"Hi there, how can I help?"}}
	h := mustNewHandler(t, lex)

	resp, err := h.Handle(context.Background(), makeEvent(
		`{"sessionId":"sess-9","messages":[{"type":"unstructured","unstructured":{"text":"hello"}}]}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])

	require.Equal(t, "hello", lex.lastText)
	require.Equal(t, "sess-9", lex.lastSessionID)

	out := parseBody[botResponse](t, resp.Body)
	require.Len(t, out.Messages, 1)
	require.Equal(t, "unstructured", out.Messages[0].Type)
	require.Equal(t, "Hi there, how can I help?", out.Messages[0].Unstructured.Text)
	require.NotEmpty(t, out.Messages[0].Unstructured.ID)

	_, perr := time.Parse(time.RFC3339, out.Messages[0].Unstructured.Timestamp)
	require.NoError(t, perr)
}

func TestHandle_InvalidJSONBody(t *testing.T) {
	lex := &stubLex{}
	h := mustNewHandler(t, lex)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, http.StatusBadRequest, out.Code)
	require.Equal(t, "Invalid JSON body", out.Message)
	require.Zero(t, lex.calls)
}

func TestHandle_MissingMessageText(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "empty object", body: `{}`},
		{name: "no messages", body: `{"messages":[]}`},
		{name: "blank text", body: `{"messages":[{"type":"unstructured","unstructured":{"text":"   "}}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := mustNewHandler(t, &stubLex{})
			resp, err := h.Handle(context.Background(), makeEvent(tc.body))
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, "Missing message text in BotRequest", out.Message)
		})
	}
}

func TestHandle_DerivesSessionIDWhenAbsent(t *testing.T) {
	freezeClock(t, time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	lex := &stubLex{replies: []string{"ok"}}
	h := mustNewHandler(t, lex)

	_, err := h.Handle(context.Background(), makeEvent(
		`{"messages":[{"type":"unstructured","unstructured":{"text":"hello"}}]}`))
	require.NoError(t, err)

	sum := sha1.Sum([]byte("203.0.113.9|test-agent|20260825"))
	require.Equal(t, hex.EncodeToString(sum[:]), lex.lastSessionID)
}

func TestHandle_ClampsLongSessionIDs(t *testing.T) {
	lex := &stubLex{replies: []string{"ok"}}
	h := mustNewHandler(t, lex)

	long := strings.Repeat("s", 150)
	_, err := h.Handle(context.Background(), makeEvent(
		`{"sessionId":"`+long+`","messages":[{"type":"unstructured","unstructured":{"text":"hello"}}]}`))
	require.NoError(t, err)
	require.Len(t, lex.lastSessionID, 100)
}

func TestHandle_LexErrorReturns502(t *testing.T) {
	lex := &stubLex{err: errors.New("bot unavailable")}
	h := mustNewHandler(t, lex)

	resp, err := h.Handle(context.Background(), makeEvent(
		`{"messages":[{"type":"unstructured","unstructured":{"text":"hello"}}]}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Contains(t, out.Message, "Lex error:")
	require.Contains(t, out.Message, "bot unavailable")
}

func TestHandle_PlaceholderWhenBotReturnsNothing(t *testing.T) {
	lex := &stubLex{}
	h := mustNewHandler(t, lex)

	resp, err := h.Handle(context.Background(), makeEvent(
		`{"messages":[{"type":"unstructured","unstructured":{"text":"hello"}}]}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[botResponse](t, resp.Body)
	require.Len(t, out.Messages, 1)
	require.Equal(t, "…", out.Messages[0].Unstructured.Text)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	lex := &stubLex{replies: []string{"ok"}}
	h := mustNewHandler(t, lex)

	event := makeEvent(`{"messages":[{"type":"unstructured","unstructured":{"text":"hello"}}]}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}
