package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Wyydra/safemeet/internal/core/domain"
)

// Meeting is the lifecycle API representation of a meeting.
type Meeting struct {
	ID              string        `json:"id"`
	MeetCode        string        `json:"meetCode"`
	CreatedByUserID string        `json:"createdByUserId"`
	CreatedByName   string        `json:"createdByName"`
	Status          string        `json:"status"`
	Participants    []Participant `json:"participants"`
	CreatedAt       time.Time     `json:"createdAt"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
}

type Participant struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// APIError is a non-2xx lifecycle response. It unwraps to the matching
// domain error when there is one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Message == domain.ErrMeetingFull.Error():
		return domain.ErrMeetingFull
	case e.Message == domain.ErrMeetingEnded.Error():
		return domain.ErrMeetingEnded
	}
	return nil
}

// LifecycleClient calls the meeting lifecycle endpoints.
type LifecycleClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewLifecycleClient(baseURL string) *LifecycleClient {
	return &LifecycleClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// RelayURL is the websocket endpoint next to the lifecycle API.
func (c *LifecycleClient) RelayURL() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *LifecycleClient) do(ctx context.Context, method, path string, body any) (Meeting, error) {
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return Meeting{}, err
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return Meeting{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Meeting{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = resp.Status
		}
		return Meeting{}, &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	var m Meeting
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return Meeting{}, fmt.Errorf("decode meeting: %w", err)
	}
	return m, nil
}

func (c *LifecycleClient) Create(ctx context.Context, userID, userName string) (Meeting, error) {
	return c.do(ctx, http.MethodPost, "/meets", map[string]string{
		"createdByUserId": userID,
		"createdByName":   userName,
	})
}

func (c *LifecycleClient) Get(ctx context.Context, code string) (Meeting, error) {
	return c.do(ctx, http.MethodGet, "/meets/"+url.PathEscape(code), nil)
}

func (c *LifecycleClient) Join(ctx context.Context, code, userID, userName string) (Meeting, error) {
	return c.do(ctx, http.MethodPost, "/meets/"+url.PathEscape(code)+"/join", map[string]string{
		"userId":   userID,
		"userName": userName,
	})
}

func (c *LifecycleClient) End(ctx context.Context, id string) (Meeting, error) {
	return c.do(ctx, http.MethodPatch, "/meets/"+url.PathEscape(id)+"/end", nil)
}

// IsCapacity reports whether err means the meeting cannot take another
// participant.
func IsCapacity(err error) bool {
	return errors.Is(err, domain.ErrMeetingFull)
}
