package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"

	"github.com/OFFIS-RIT/outreach/pkg/dispatch"
)

const DefaultBaseURL = "https://api.resend.com"

// Message is a plain text e-mail.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Client sends e-mails through the Resend REST API.
type Client struct {
	http    *resty.Client
	from    string
	limiter *rate.Limiter
}

// NewClientParams contains configuration for creating a Client.
type NewClientParams struct {
	APIKey  string
	BaseURL string
	From    string
	Timeout time.Duration
	// RatePerSecond caps outgoing requests. Zero disables the limit.
	RatePerSecond float64
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// APIError is returned when Resend rejects a request.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("resend: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("resend: status %d: %s: %s", e.StatusCode, e.Name, e.Message)
}

func NewClient(params NewClientParams) (*Client, error) {
	if params.APIKey == "" {
		return nil, errors.New("resend api key is empty")
	}
	if params.From == "" {
		return nil, errors.New("sender address is empty")
	}
	baseURL := params.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetAuthToken(params.APIKey).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	c := &Client{
		http: httpClient,
		from: params.From,
	}
	if params.RatePerSecond > 0 {
		burst := int(params.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(params.RatePerSecond), burst)
	}
	return c, nil
}

// Send transmits msg and returns the id Resend assigned to it.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", errors.New("recipient is empty")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	result := new(sendResponse)
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			From:    c.from,
			To:      []string{msg.To},
			Subject: msg.Subject,
			Text:    msg.Text,
		}).
		SetResult(result).
		Post("/emails")
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if res.IsError() {
		body := strings.TrimSpace(res.String())
		apiErr := new(errorResponse)
		if err := json.Unmarshal([]byte(body), apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = body
		}
		return "", &APIError{
			StatusCode: res.StatusCode(),
			Name:       apiErr.Name,
			Message:    apiErr.Message,
		}
	}

	return result.ID, nil
}

// SendItem adapts Send to dispatch.SendFunc. The item payload becomes the
// mail body.
func (c *Client) SendItem(ctx context.Context, item dispatch.Item) (string, error) {
	return c.Send(ctx, Message{
		To:      item.Recipient,
		Subject: item.Subject,
		Text:    item.Payload,
	})
}
