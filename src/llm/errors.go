package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"copytoask/src/apperrors"
)

// TransportError is a non-2xx response. Body holds at most the first
// 32,000 bytes of the response.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// StreamProtocolError is an error event sent inside an otherwise healthy stream.
type StreamProtocolError struct {
	Message string
}

func (e *StreamProtocolError) Error() string {
	return "stream error: " + e.Message
}

func readTransportError(resp *http.Response) *TransportError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &TransportError{StatusCode: resp.StatusCode, Body: string(data)}
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// detail is the server's error message when the body is the usual JSON
// envelope, otherwise a short prefix of the raw body.
func (e *TransportError) detail() string {
	var env errorEnvelope
	if err := json.Unmarshal([]byte(e.Body), &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		cut := 200
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	if body == "" {
		return http.StatusText(e.StatusCode)
	}
	return body
}

func classifyTransportError(e *TransportError) error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return apperrors.New(apperrors.KindRateLimit,
			"Model API rate limit exceeded (429): please try again later.", e)
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return apperrors.New(apperrors.KindAuth,
			fmt.Sprintf("Model API authentication failed (%d): please verify your API key.", e.StatusCode), e)
	case e.StatusCode >= 500:
		return apperrors.New(apperrors.KindTransient,
			fmt.Sprintf("Model API server error (%d): please try again later.", e.StatusCode), e)
	default:
		return apperrors.New(apperrors.KindBadRequest,
			fmt.Sprintf("Model API error (%d): %s", e.StatusCode, e.detail()), e)
	}
}

func protocolError(message string) error {
	if strings.TrimSpace(message) == "" {
		message = "unknown error"
	}
	return apperrors.New(apperrors.KindProtocol, "Model API error: "+message, &StreamProtocolError{Message: message})
}
