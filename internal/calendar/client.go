package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dentflow/clinic/internal/domain/scheduling"
	"github.com/dentflow/clinic/internal/platform/auth"
	"github.com/dentflow/clinic/internal/platform/db"
)

// APIError is a non-2xx response from the clinic server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap lets callers test 404 and 400 responses with errors.Is against the
// scheduling sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return scheduling.ErrNotFound
	case http.StatusBadRequest:
		if e.Message == scheduling.ErrIDMismatch.Error() {
			return scheduling.ErrIDMismatch
		}
		return scheduling.ErrInvalid
	}
	return nil
}

// Client talks to the clinic server's /api endpoints.
type Client struct {
	BaseURL string
	Clinic  string
	HTTP    *http.Client
}

func NewClient(baseURL, clinic string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Clinic:  clinic,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var sess auth.Session
	if err := c.do(ctx, "", http.MethodPost, "/api/auth/login", body, &sess); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &sess, nil
}

// Logout revokes sess on the server.
func (c *Client) Logout(ctx context.Context, sess *auth.Session) error {
	if sess == nil {
		return nil
	}
	if err := c.do(ctx, sess.Token, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// For returns a Source that acts as sess.
func (c *Client) For(sess *auth.Session) Source {
	token := ""
	if sess != nil {
		token = sess.Token
	}
	return &sessionSource{client: c, token: token}
}

type sessionSource struct {
	client *Client
	token  string
}

func (s *sessionSource) ListAppointments(ctx context.Context) ([]*scheduling.AppointmentView, error) {
	var items []*scheduling.AppointmentView
	if err := s.client.do(ctx, s.token, http.MethodGet, "/api/appointments", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *sessionSource) CreateAppointment(ctx context.Context, a *scheduling.Appointment) (*scheduling.AppointmentView, error) {
	var v scheduling.AppointmentView
	if err := s.client.do(ctx, s.token, http.MethodPost, "/api/appointments", a, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *sessionSource) UpdateAppointment(ctx context.Context, a *scheduling.Appointment) error {
	return s.client.do(ctx, s.token, http.MethodPut, "/api/appointments/"+url.PathEscape(a.ID), a, nil)
}

func (s *sessionSource) DeleteAppointment(ctx context.Context, id string) error {
	return s.client.do(ctx, s.token, http.MethodDelete, "/api/appointments/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, token, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.Clinic != "" {
		req.Header.Set(db.HeaderClinicID, c.Clinic)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &msg) == nil {
			apiErr.Message = msg.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
