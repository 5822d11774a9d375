package syncqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// PushResult is the server's answer to one batch.
type PushResult struct {
	AcceptedCount      int              `json:"accepted_count"`
	ConfirmedClientIDs []string         `json:"confirmed_client_ids"`
	Aggregates         []domain.Balance `json:"aggregates"`
}

// Transport talks to the sync API.
type Transport interface {
	Push(ctx context.Context, sessionID, participantID string, batch []Movement) (*PushResult, error)
	Aggregates(ctx context.Context, sessionID, participantID string) ([]domain.Balance, error)
}

// HTTPTransport is the JSON-over-HTTP Transport.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport targets the API at baseURL. A nil client uses http.DefaultClient.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type pushRequest struct {
	ParticipantID string     `json:"participant_id"`
	Movements     []Movement `json:"movements"`
}

type aggregatesPayload struct {
	Aggregates []domain.Balance `json:"aggregates"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func (t *HTTPTransport) Push(ctx context.Context, sessionID, participantID string, batch []Movement) (*PushResult, error) {
	body, err := json.Marshal(pushRequest{ParticipantID: participantID, Movements: batch})
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/sessions/%s/movements", t.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out PushResult
	if err := t.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) Aggregates(ctx context.Context, sessionID, participantID string) ([]domain.Balance, error) {
	endpoint := fmt.Sprintf("%s/v1/sessions/%s/aggregates?participant_id=%s",
		t.baseURL, url.PathEscape(sessionID), url.QueryEscape(participantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var out aggregatesPayload
	if err := t.do(req, &out); err != nil {
		return nil, err
	}
	return out.Aggregates, nil
}

// do maps the API's status codes onto the queue's error set.
func (t *HTTPTransport) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	msg := readError(resp.Body)
	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrSessionClosed
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	default:
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
}

func readError(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	var p errorPayload
	if err := json.Unmarshal(raw, &p); err == nil && p.Error != "" {
		return p.Error
	}
	return strings.TrimSpace(string(raw))
}

type joinRequest struct {
	AccessCode      string `json:"access_code"`
	ParticipantName string `json:"participant_name"`
}

// JoinResult carries the ids a queue needs after joining by access code.
type JoinResult struct {
	SessionID     string
	ParticipantID string
	Rejoined      bool
}

type joinPayload struct {
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
	Participant struct {
		ID string `json:"id"`
	} `json:"participant"`
	Rejoined bool `json:"rejoined"`
}

// Join enters a session by access code. Joining again with the same name
// returns the same participant, so counts made before a restart stay attributed.
func (t *HTTPTransport) Join(ctx context.Context, accessCode, name string) (*JoinResult, error) {
	body, err := json.Marshal(joinRequest{AccessCode: accessCode, ParticipantName: name})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/join", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out joinPayload
	if err := t.do(req, &out); err != nil {
		return nil, err
	}
	return &JoinResult{
		SessionID:     out.Session.ID,
		ParticipantID: out.Participant.ID,
		Rejoined:      out.Rejoined,
	}, nil
}
