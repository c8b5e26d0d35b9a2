package otpgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultSendPath   = "/send"
	defaultVerifyPath = "/verify"
	defaultTimeout    = 10 * time.Second
	maxResponseBytes  = 64 << 10
)

// ErrUnavailable marks transport failures, non-2xx answers and unreadable
// payloads. Callers should treat it as retryable.
var ErrUnavailable = errors.New("otp gateway unavailable")

// negations that turn a "verified" message into a failure.
var negations = []string{"not verified", "unverified", "not_verified", "invalid", "expired", "fail", "wrong", "mismatch"}

// Config describes how to reach the WhatsApp OTP provider.
type Config struct {
	BaseURL     string
	SendPath    string
	VerifyPath  string
	IDHeader    string
	ID          string
	KeyHeader   string
	Key         string
	Template    string
	Language    string
	CallbackURL string
	OTPLength   int
	Timeout     time.Duration
}

// Client calls the provider's send and verify endpoints.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient validates cfg and returns a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("otp gateway base url is required")
	}
	if cfg.IDHeader == "" || cfg.KeyHeader == "" {
		return nil, errors.New("otp gateway auth header names are required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.SendPath == "" {
		cfg.SendPath = defaultSendPath
	}
	if cfg.VerifyPath == "" {
		cfg.VerifyPath = defaultVerifyPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

type request struct {
	MSISDN       string `json:"msisdn"`
	OTP          string `json:"otp,omitempty"`
	LangCode     string `json:"lang_code,omitempty"`
	TemplateName string `json:"template_name,omitempty"`
	CallbackURL  string `json:"callback_url,omitempty"`
	OTPLength    int    `json:"otp_length,omitempty"`
}

type response struct {
	Message string `json:"message"`
}

// SendResult is the provider's acknowledgement of a send request.
type SendResult struct {
	Message string
}

// VerifyResult reports whether the provider accepted the OTP.
type VerifyResult struct {
	Verified bool
	Message  string
}

// Send asks the provider to deliver a fresh OTP to msisdn using the configured template.
func (c *Client) Send(ctx context.Context, msisdn string) (SendResult, error) {
	resp, err := c.do(ctx, c.cfg.SendPath, request{
		MSISDN:       msisdn,
		LangCode:     c.cfg.Language,
		TemplateName: c.cfg.Template,
		CallbackURL:  c.cfg.CallbackURL,
		OTPLength:    c.cfg.OTPLength,
	})
	if err != nil {
		return SendResult{}, err
	}
	return SendResult{Message: resp.Message}, nil
}

// Verify checks otp for msisdn. A well-formed "not verified" answer is not an error.
func (c *Client) Verify(ctx context.Context, msisdn, otp string) (VerifyResult, error) {
	resp, err := c.do(ctx, c.cfg.VerifyPath, request{MSISDN: msisdn, OTP: otp})
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Verified: IsVerifiedMessage(resp.Message), Message: resp.Message}, nil
}

// IsVerifiedMessage reports whether a provider message affirmatively says "verified".
func IsVerifiedMessage(msg string) bool {
	msg = strings.ToLower(strings.TrimSpace(msg))
	if !strings.Contains(msg, "verified") {
		return false
	}
	for _, n := range negations {
		if strings.Contains(msg, n) {
			return false
		}
	}
	return true
}

func (c *Client) do(ctx context.Context, path string, body request) (response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return response{}, fmt.Errorf("encode otp request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return response{}, fmt.Errorf("build otp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(c.cfg.IDHeader, c.cfg.ID)
	req.Header.Set(c.cfg.KeyHeader, c.cfg.Key)

	res, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return response{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return response{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		return response{}, fmt.Errorf("%w: decode body: %v", ErrUnavailable, err)
	}
	return out, nil
}
