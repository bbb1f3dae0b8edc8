package identity

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

	"recruiting-pipeline/internal/domain"
)

// SupabaseClient creates and deletes accounts through the GoTrue admin API.
type SupabaseClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewSupabaseClient expects the project URL (https://xyz.supabase.co) and the service role key.
func NewSupabaseClient(baseURL, serviceKey string) *SupabaseClient {
	return &SupabaseClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (s *SupabaseClient) WithHTTPClient(c *http.Client) *SupabaseClient {
	s.httpClient = c
	return s
}

type createUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	EmailConfirm bool   `json:"email_confirm"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// errorResponse covers both the current (error_code/msg) and legacy (error/error_description) shapes.
type errorResponse struct {
	Code             interface{} `json:"code"`
	ErrorCode        string      `json:"error_code"`
	Msg              string      `json:"msg"`
	Message          string      `json:"message"`
	Error            string      `json:"error"`
	ErrorDescription string      `json:"error_description"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// CreateAccount registers a confirmed user and returns its id.
func (s *SupabaseClient) CreateAccount(ctx context.Context, email, password, idempotencyKey string) (string, error) {
	body, err := json.Marshal(createUserRequest{Email: email, Password: password, EmailConfirm: true})
	if err != nil {
		return "", fmt.Errorf("identity: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/v1/admin/users", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("identity: build request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity: create account: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", classify(resp.StatusCode, raw)
	}

	var user userResponse
	if err := json.Unmarshal(raw, &user); err != nil {
		return "", fmt.Errorf("identity: decode response: %w", err)
	}
	if user.ID == "" {
		return "", errors.New("identity: response did not include a user id")
	}
	return user.ID, nil
}

// DeleteAccount removes an account. A missing account counts as deleted.
func (s *SupabaseClient) DeleteAccount(ctx context.Context, accountID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/auth/v1/admin/users/"+accountID, nil)
	if err != nil {
		return fmt.Errorf("identity: build request: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity: delete account: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return fmt.Errorf("identity: delete account failed with status %d: %s", resp.StatusCode, string(raw))
}

func (s *SupabaseClient) authorize(req *http.Request) {
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
}

// classify maps GoTrue failures onto the domain identity errors.
func classify(status int, raw []byte) error {
	var body errorResponse
	_ = json.Unmarshal(raw, &body)
	text := body.text()
	lower := strings.ToLower(text)

	switch {
	case body.ErrorCode == "email_exists" || body.ErrorCode == "user_already_exists" ||
		strings.Contains(lower, "already been registered") || strings.Contains(lower, "already registered"):
		return fmt.Errorf("%w: %s", domain.ErrDuplicateEmail, text)
	case body.ErrorCode == "weak_password" || strings.Contains(lower, "password should be") ||
		strings.Contains(lower, "weak password"):
		return fmt.Errorf("%w: %s", domain.ErrWeakPassword, text)
	case body.ErrorCode == "email_address_invalid" || strings.Contains(lower, "unable to validate email") ||
		strings.Contains(lower, "invalid email"):
		return fmt.Errorf("%w: %s", domain.ErrInvalidEmail, text)
	}
	return fmt.Errorf("identity: create account failed with status %d: %s", status, text)
}
