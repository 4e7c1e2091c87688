package handler

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

const maxSessionIDLen = 100

// corsHeaders go on every response so the static web client can call the
// API cross-origin.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type",
	"Access-Control-Allow-Methods": "OPTIONS,POST",
}

// LexRuntime sends one utterance to the bot and returns its reply texts.
// *lexbot.Client satisfies this interface.
type LexRuntime interface {
	RecognizeText(ctx context.Context, sessionID, text string) ([]string, error)
}

// Handler is the chat front door: it unwraps a BotRequest, forwards the
// user text to the bot runtime, and wraps the replies as a BotResponse.
type Handler struct {
	lex LexRuntime
}

func NewHandler(lex LexRuntime) (*Handler, error) {
	if lex == nil {
		return nil, errors.New("handler: lex runtime must not be nil")
	}
	return &Handler{lex: lex}, nil
}

type botRequest struct {
	SessionID string       `json:"sessionId"`
	Messages  []botMessage `json:"messages"`
}

type botResponse struct {
	Messages []botMessage `json:"messages"`
}

type botMessage struct {
	Type         string           `json:"type"`
	Unstructured unstructuredText `json:"unstructured"`
}

type unstructuredText struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if event.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent, Headers: copyCORS()}, nil
	}

	resp := h.handleChat(ctx, event)
	resp.Headers["X-Correlation-Id"] = correlationID(event.Headers)
	return resp, nil
}

func (h *Handler) handleChat(ctx context.Context, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var req botRequest
	if body := strings.TrimSpace(event.Body); body != "" {
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return errJSON(http.StatusBadRequest, "Invalid JSON body")
		}
	}

	var text string
	if len(req.Messages) > 0 {
		text = strings.TrimSpace(req.Messages[0].Unstructured.Text)
	}
	if text == "" {
		return errJSON(http.StatusBadRequest, "Missing message text in BotRequest")
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = deriveSessionID(event)
	}
	if len(sessionID) > maxSessionIDLen {
		sessionID = sessionID[:maxSessionIDLen]
	}

	replies, err := h.lex.RecognizeText(ctx, sessionID, text)
	if err != nil {
		return errJSON(http.StatusBadGateway, fmt.Sprintf("Lex error: %v", err))
	}

	now := nowUTC().Format(time.RFC3339)
	messages := make([]botMessage, 0, len(replies))
	for _, reply := range replies {
		messages = append(messages, botMessage{
			Type:         "unstructured",
			Unstructured: unstructuredText{ID: newUUID(), Text: reply, Timestamp: now},
		})
	}
	// The bot may close a turn without any message; the web client still
	// expects one entry to render.
	if len(messages) == 0 {
		messages = append(messages, botMessage{
			Type:         "unstructured",
			Unstructured: unstructuredText{ID: newUUID(), Text: "…", Timestamp: now},
		})
	}

	return okJSON(botResponse{Messages: messages})
}

// deriveSessionID builds a stable per-client, per-day session key so a
// browser that sends no session id still continues its conversation
// across turns.
func deriveSessionID(event events.APIGatewayProxyRequest) string {
	ip := event.RequestContext.Identity.SourceIP
	if ip == "" {
		ip = "0.0.0.0"
	}
	ua := event.Headers["User-Agent"]
	if ua == "" {
		ua = event.Headers["user-agent"]
	}
	if ua == "" {
		ua = "unknown"
	}
	day := nowUTC().Format("20060102")
	sum := sha1.Sum([]byte(ip + "|" + ua + "|" + day))
	return hex.EncodeToString(sum[:])
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "X-Correlation-Id") && v != "" {
			return v
		}
	}
	return newUUID()
}

func okJSON(body any) events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusOK, body)
}

func errJSON(status int, message string) events.APIGatewayProxyResponse {
	return jsonResponse(status, errorResponse{Code: status, Message: message})
}

func jsonResponse(status int, body any) events.APIGatewayProxyResponse {
	buf, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		buf = []byte(`{"code":500,"message":"internal error"}`)
	}
	headers := copyCORS()
	headers["Content-Type"] = "application/json"
	return events.APIGatewayProxyResponse{StatusCode: status, Headers: headers, Body: string(buf)}
}

func copyCORS() map[string]string {
	headers := make(map[string]string, len(corsHeaders)+2)
	for k, v := range corsHeaders {
		headers[k] = v
	}
	return headers
}

var newUUID = func() string {
	return uuid.NewString()
}

var nowUTC = func() time.Time {
	return time.Now().UTC()
}
