// Package backend implements the typed HTTP client for the administrative
// backend REST API. The session token is treated as an opaque bearer
// credential throughout; the client never inspects it.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smolnikov/adminpanel/internal/entities"
)

const defaultTimeout = 30 * time.Second

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given base URL. A non-positive timeout
// falls back to 30 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Registration holds the signup form fields.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupResponse is the full payload returned by a successful signup.
type SignupResponse struct {
	User    *entities.User `json:"user"`
	Token   string         `json:"token"`
	Message string         `json:"message,omitempty"`
}

// ProfileUpdate holds the fields of a partial profile update. Empty fields
// are omitted from the request body.
type ProfileUpdate struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type profileResponse struct {
	User *entities.User `json:"user"`
}

type errorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Msg string `json:"msg"`
	} `json:"errors"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	status, payload, err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	if !ok(status) {
		return "", &AuthError{Message: errorMessage(payload, "Login failed"), StatusCode: status}
	}

	var lr loginResponse
	if err := json.Unmarshal(payload, &lr); err != nil {
		return "", &AuthError{Message: "Login failed", StatusCode: status, Err: err}
	}
	if lr.Token == "" {
		return "", &AuthError{Message: "No token received from server", Err: ErrMalformedResponse}
	}
	return lr.Token, nil
}

// Signup registers a new account and returns the full response payload.
// The error message of a rejected signup prefers the first structured
// validation error, then the top-level message, then a generic fallback.
func (c *Client) Signup(ctx context.Context, reg Registration) (*SignupResponse, error) {
	status, payload, err := c.do(ctx, http.MethodPost, "/auth/signup", "", reg)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, &AuthError{Message: signupErrorMessage(payload), StatusCode: status}
	}

	var sr SignupResponse
	if err := json.Unmarshal(payload, &sr); err != nil {
		return nil, &AuthError{Message: "Signup failed", StatusCode: status, Err: err}
	}
	if sr.User == nil || sr.Token == "" {
		return nil, &AuthError{Message: "Signup failed", Err: ErrMalformedResponse}
	}
	return &sr, nil
}

// Profile fetches the account record for the given token.
func (c *Client) Profile(ctx context.Context, token string) (*entities.User, error) {
	status, payload, err := c.do(ctx, http.MethodGet, "/auth/profile", token, nil)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, &AuthError{Message: "Failed to fetch user profile", StatusCode: status}
	}

	var pr profileResponse
	if err := json.Unmarshal(payload, &pr); err != nil {
		return nil, &AuthError{Message: "Invalid user data received", StatusCode: status, Err: err}
	}
	if pr.User == nil {
		return nil, &AuthError{Message: "Invalid user data received", Err: ErrMalformedResponse}
	}
	return pr.User, nil
}

// Roles lists all role records.
func (c *Client) Roles(ctx context.Context, token string) ([]entities.Role, error) {
	status, payload, err := c.do(ctx, http.MethodGet, "/roles", token, nil)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, &AuthError{Message: errorMessage(payload, "Failed to fetch roles"), StatusCode: status}
	}

	var roles []entities.Role
	if err := json.Unmarshal(payload, &roles); err != nil {
		return nil, &AuthError{Message: "Failed to fetch roles", StatusCode: status, Err: err}
	}
	return roles, nil
}

// Users lists all user records. Requires an admin token.
func (c *Client) Users(ctx context.Context, token string) ([]entities.User, error) {
	status, payload, err := c.do(ctx, http.MethodGet, "/users", token, nil)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, &AuthError{Message: errorMessage(payload, "Failed to fetch users"), StatusCode: status}
	}

	var users []entities.User
	if err := json.Unmarshal(payload, &users); err != nil {
		return nil, &AuthError{Message: "Failed to fetch users", StatusCode: status, Err: err}
	}
	return users, nil
}

// UpdateProfile applies a partial update and returns the stored user.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*entities.User, error) {
	status, payload, err := c.do(ctx, http.MethodPut, "/users/profile", token, update)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, &AuthError{Message: errorMessage(payload, "Failed to update profile"), StatusCode: status}
	}

	var user entities.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, &AuthError{Message: "Invalid user data received", StatusCode: status, Err: err}
	}
	return &user, nil
}

// do issues one request and reads the whole body. Transport-level failures
// come back as wrapped plain errors, distinct from AuthError.
func (c *Client) do(ctx context.Context, method, path, token string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, payload, nil
}

func ok(status int) bool {
	return status >= 200 && status <= 299
}

func errorMessage(payload []byte, fallback string) string {
	var er errorResponse
	if err := json.Unmarshal(payload, &er); err == nil && er.Message != "" {
		return er.Message
	}
	return fallback
}

func signupErrorMessage(payload []byte) string {
	var er errorResponse
	if err := json.Unmarshal(payload, &er); err == nil {
		if len(er.Errors) > 0 && er.Errors[0].Msg != "" {
			return er.Errors[0].Msg
		}
		if er.Message != "" {
			return er.Message
		}
	}
	return "Signup failed"
}
