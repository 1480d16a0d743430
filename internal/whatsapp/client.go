package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

// Graph API error codes that mean the access token is no longer usable.
var authErrorCodes = map[int]bool{
	190: true, // access token expired/invalidated
	10:  true, // permission revoked
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "graph-api",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// SendError is a typed provider failure. Auth-class errors are recognized by
// code so the caller can mark the credential unhealthy.
type SendError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("graph api error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

func (e *SendError) IsAuth() bool {
	return authErrorCodes[e.Code] || e.StatusCode == http.StatusUnauthorized
}

type sendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type templateBody struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *graphError `json:"error"`
}

type graphError struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SendText sends a free-form text message. The messaging-window check is the
// caller's responsibility.
func (c *Client) SendText(ctx context.Context, cred *model.ChannelCredential, to, body string) (string, error) {
	return c.send(ctx, cred, sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendTemplate sends a pre-approved template message; legal outside the
// messaging window.
func (c *Client) SendTemplate(ctx context.Context, cred *model.ChannelCredential, to, name, language string, params []string) (string, error) {
	tmpl := &templateBody{
		Name:     name,
		Language: templateLanguage{Code: language},
	}
	if len(params) > 0 {
		component := templateComponent{Type: "body"}
		for _, p := range params {
			component.Parameters = append(component.Parameters, templateParameter{Type: "text", Text: p})
		}
		tmpl.Components = []templateComponent{component}
	}

	return c.send(ctx, cred, sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template:         tmpl,
	})
}

func (c *Client) send(ctx context.Context, cred *model.ChannelCredential, payload sendRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, cred.PhoneNumberID)

	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)

		var parsed sendResponse
		_ = json.Unmarshal(respBody, &parsed)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			sendErr := &SendError{StatusCode: resp.StatusCode}
			if parsed.Error != nil {
				sendErr.Code = parsed.Error.Code
				sendErr.Message = parsed.Error.Message
			} else {
				sendErr.Message = string(respBody)
			}
			return nil, sendErr
		}

		if len(parsed.Messages) == 0 {
			return "", nil
		}
		return parsed.Messages[0].ID, nil
	})
	elapsed := time.Since(start)

	if err != nil {
		log.Warn().
			Err(err).
			Str("phoneNumberId", cred.PhoneNumberID).
			Dur("elapsed", elapsed).
			Msg("graph api send failed")
		return "", err
	}

	log.Debug().
		Str("phoneNumberId", cred.PhoneNumberID).
		Dur("elapsed", elapsed).
		Msg("graph api send ok")

	return result.(string), nil
}
