package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"debatelive/internal/domain"
	apperrors "debatelive/pkg/errors"
	"debatelive/pkg/logger"
)

type sessionContextKey struct{}

// WithSession returns a context carrying the caller's session cookie value.
// Requests made with this context forward the cookie to the backend.
func WithSession(ctx context.Context, cookieValue string) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, cookieValue)
}

// SessionFromContext extracts the session cookie value, if any
func SessionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionContextKey{}).(string); ok {
		return v
	}
	return ""
}

// Client talks to the remote debate REST backend. It owns no records: all
// reads are pass-through and all writes are forwarded with the caller's
// session cookie.
type Client struct {
	baseURL    string
	cookieName string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new backend gateway client
func NewClient(baseURL, cookieName string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		cookieName: cookieName,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// ListDebates fetches all debates
func (c *Client) ListDebates(ctx context.Context) ([]domain.Debate, error) {
	var out struct {
		Debates []domain.Debate `json:"debates"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/debates", nil, &out); err != nil {
		return nil, err
	}
	return out.Debates, nil
}

// GetDebate fetches a single debate by id
func (c *Client) GetDebate(ctx context.Context, debateID string) (*domain.Debate, error) {
	var out struct {
		Debate domain.Debate `json:"debate"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/debates/"+debateID, nil, &out); err != nil {
		return nil, err
	}
	return &out.Debate, nil
}

// ListArguments fetches the argument feed for a debate in creation order
func (c *Client) ListArguments(ctx context.Context, debateID string) ([]domain.Argument, error) {
	var out struct {
		Arguments []domain.Argument `json:"arguments"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/debates/"+debateID+"/arguments", nil, &out); err != nil {
		return nil, err
	}
	return out.Arguments, nil
}

// PostArgument appends an argument to a debate's discussion
func (c *Client) PostArgument(ctx context.Context, debateID, text string) (*domain.Argument, error) {
	var out struct {
		Argument domain.Argument `json:"argument"`
	}
	body := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, "/api/debates/"+debateID+"/arguments", body, &out); err != nil {
		return nil, err
	}
	return &out.Argument, nil
}

// SubmitVote casts an audience vote for one side and returns the debate with
// the authoritative updated scores
func (c *Client) SubmitVote(ctx context.Context, debateID string, side domain.VoteSide) (*domain.Debate, error) {
	var out struct {
		Debate domain.Debate `json:"debate"`
	}
	path := fmt.Sprintf("/api/debates/%s/vote/%s", debateID, side)
	if err := c.do(ctx, http.MethodPatch, path, map[string]string{}, &out); err != nil {
		return nil, err
	}
	return &out.Debate, nil
}

// GetVotes fetches the current raw scores for a debate
func (c *Client) GetVotes(ctx context.Context, debateID string) (*domain.VoteScores, error) {
	var out struct {
		Scores domain.VoteScores `json:"scores"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/debates/"+debateID+"/votes", nil, &out); err != nil {
		return nil, err
	}
	return &out.Scores, nil
}

// FinishDebate moves a debate to finished. The backend treats a finish call
// on an already-finished debate as a no-op; a conflict response is therefore
// mapped to success here as well.
func (c *Client) FinishDebate(ctx context.Context, debateID string) (*domain.Debate, error) {
	var out struct {
		Debate domain.Debate `json:"debate"`
	}
	err := c.do(ctx, http.MethodPost, "/api/debates/"+debateID+"/finish", map[string]string{}, &out)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.StatusCode == http.StatusConflict {
			c.log.WithField("debate_id", debateID).Debug("Finish on already-finished debate treated as no-op")
			return c.GetDebate(ctx, debateID)
		}
		return nil, err
	}
	return &out.Debate, nil
}

// GetUser fetches a single user record
func (c *Client) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/"+userID, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListUsers fetches all user records
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out struct {
		Users []domain.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// do builds, sends and decodes one backend request, normalizing failures
// into the typed error taxonomy
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session := SessionFromContext(ctx); session != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: session})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithFields(map[string]interface{}{
			"method": method,
			"path":   path,
		}).WithError(err).Warn("Backend request failed before a response")
		return apperrors.NewNetworkError("debate backend is unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewNetworkError("failed to read backend response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := extractErrorMessage(respBody)
		if message == "" {
			message = fmt.Sprintf("backend returned status %d", resp.StatusCode)
		}
		c.log.WithFields(map[string]interface{}{
			"method":      method,
			"path":        path,
			"status_code": resp.StatusCode,
		}).Debug("Backend returned an error response")
		return apperrors.FromStatusCode(resp.StatusCode, message)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			c.log.WithFields(map[string]interface{}{
				"path":          path,
				"response_body": string(respBody),
			}).Error("Failed to parse backend response")
			return apperrors.NewServerError("failed to parse backend response", err)
		}
	}

	return nil
}

// extractErrorMessage pulls a human-readable message out of the error body
// shapes the backend is known to produce
func extractErrorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &flat); err == nil {
		if flat.Error != "" {
			return flat.Error
		}
		if flat.Message != "" {
			return flat.Message
		}
	}
	return ""
}
