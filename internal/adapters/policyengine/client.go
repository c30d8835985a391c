package policyengine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const evaluatePath = "/api/v1/policy-evaluation/evaluate"

// Client calls a remote policy evaluation service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type evaluateRequest struct {
	TravelData domain.TravelData `json:"travel_data"`
	OrgID      uuid.UUID         `json:"org_id"`
	UserID     uuid.UUID         `json:"user_id"`
}

func (c *Client) Evaluate(ctx context.Context, td domain.TravelData, orgID, userID uuid.UUID) (domain.PolicyVerdict, error) {
	data, err := json.Marshal(evaluateRequest{TravelData: td, OrgID: orgID, UserID: userID})
	if err != nil {
		return domain.PolicyVerdict{}, errors.Wrap(err, "marshal evaluation request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+evaluatePath, bytes.NewReader(data))
	if err != nil {
		return domain.PolicyVerdict{}, errors.Wrap(err, "build evaluation request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.PolicyVerdict{}, errors.Mark(errors.Wrap(err, "policy engine request"), domain.ErrPolicyUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PolicyVerdict{}, errors.Wrap(err, "read evaluation response")
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PolicyVerdict{}, errors.Mark(
			errors.Newf("policy engine returned %d: %s", resp.StatusCode, string(body)),
			domain.ErrPolicyUnavailable,
		)
	}

	var verdict domain.PolicyVerdict
	if err := json.Unmarshal(body, &verdict); err != nil {
		return domain.PolicyVerdict{}, errors.Wrap(err, "decode evaluation response")
	}
	if !verdict.Result.Valid() {
		return domain.PolicyVerdict{}, errors.Newf("policy engine returned unknown result %q", verdict.Result)
	}
	return verdict, nil
}
