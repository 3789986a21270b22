package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/whatsapp-inbox/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrMissingCredentials = errors.New("access token and phone number id are required")
	ErrProviderRejected   = errors.New("provider rejected the message")
)

type Config struct {
	// BaseURL is the Graph API root, e.g. https://graph.facebook.com/v18.0
	BaseURL       string
	PhoneNumberID string
	AccessToken   string

	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

// Client talks to the WhatsApp Cloud API send endpoint.
type Client struct {
	config *Config
	client *fasthttp.Client
}

type sendPayload struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textPayload `json:"text"`
}

type textPayload struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.AccessToken == "" || config.PhoneNumberID == "" {
		return nil, ErrMissingCredentials
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}

	client := &Client{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		},
	}

	logger.Info("WhatsApp client initialized",
		"base_url", config.BaseURL,
		"phone_number_id", config.PhoneNumberID,
		"timeout", config.Timeout)

	return client, nil
}

// SendText sends a plain text message and returns the provider-assigned
// message id. Transient transport errors are retried; a 4xx rejection from
// the API is terminal.
func (c *Client) SendText(ctx context.Context, to, text string) (string, error) {
	payload := sendPayload{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(to, "+"),
		Type:             "text",
		Text:             textPayload{Body: text},
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	path := fmt.Sprintf("/%s/messages", c.config.PhoneNumberID)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		startTime := time.Now()
		response, retryable, err := c.doRequest(ctx, path, reqBody)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			lastErr = err
			if !retryable {
				return "", err
			}
			logger.Warn("Send request failed, retrying", "error", err, "attempt", attempt+1)
			continue
		}

		var resp sendResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return "", fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if len(resp.Messages) == 0 {
			return "", fmt.Errorf("%w: response carried no message id", ErrProviderRejected)
		}

		logger.Info("Message sent to provider",
			"provider_message_id", resp.Messages[0].ID,
			"to", to,
			"latency_ms", latency)

		return resp.Messages[0].ID, nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// doRequest performs one HTTP round trip. The retryable flag tells the
// caller whether the failure can improve on a later attempt.
func (c *Client) doRequest(ctx context.Context, path string, body []byte) ([]byte, bool, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	switch {
	case statusCode == fasthttp.StatusOK || statusCode == fasthttp.StatusCreated:
		// fallthrough to body copy
	case statusCode >= 500 || statusCode == fasthttp.StatusTooManyRequests:
		return nil, true, fmt.Errorf("provider returned %d: %s", statusCode, resp.Body())
	default:
		return nil, false, fmt.Errorf("%w: status %d: %s", ErrProviderRejected, statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, true, nil
}
