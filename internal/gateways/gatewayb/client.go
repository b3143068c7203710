package gatewayb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/karimndoye/sunumarket-backend/internal/gateways"
	"github.com/karimndoye/sunumarket-backend/pkg/enums"
	"github.com/karimndoye/sunumarket-backend/pkg/errors"
)

// Client polls gateway B's payment status endpoint. Gateway B is the only
// gateway exposing a status API, so it backs the poll sweeper.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type ClientParams struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func NewClient(params ClientParams) (*Client, error) {
	if strings.TrimSpace(params.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(params.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(params.BaseURL, "/"),
		apiKey:     params.APIKey,
	}, nil
}

func (c *Client) Gateway() enums.Gateway {
	return enums.GatewayB
}

// statusResponse is the API's envelope for a status lookup.
type statusResponse struct {
	Data struct {
		TokenPay string `json:"tokenPay"`
		Status   string `json:"status"`
		Montant  int64  `json:"Montant"`
		Currency string `json:"currency"`
	} `json:"data"`
}

// QueryStatus fetches the current state of a transaction from gateway B.
func (c *Client) QueryStatus(ctx context.Context, gatewayTransactionID string) (*gateways.PaymentOutcome, error) {
	endpoint := fmt.Sprintf("%s/payments/%s", c.baseURL, url.PathEscape(gatewayTransactionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "building gateway B status request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "calling gateway B status endpoint")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "reading gateway B response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.New(errors.CodeNotFound, "transaction unknown to gateway B")
	case resp.StatusCode != http.StatusOK:
		return nil, errors.New(errors.CodeDependency,
			fmt.Sprintf("gateway B status endpoint returned %d", resp.StatusCode))
	}

	var parsed statusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "decoding gateway B response")
	}

	return &gateways.PaymentOutcome{
		Gateway:              enums.GatewayB,
		GatewayTransactionID: gatewayTransactionID,
		Status:               mapPolledStatus(parsed.Data.Status),
		AmountCents:          parsed.Data.Montant,
		Currency:             parsed.Data.Currency,
		RawPayload:           json.RawMessage(body),
	}, nil
}

func mapPolledStatus(native string) enums.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "completed", "paid", "success":
		return enums.TransactionStatusPaid
	case "cancelled", "canceled":
		return enums.TransactionStatusCancelled
	case "failed":
		return enums.TransactionStatusFailed
	default:
		return enums.TransactionStatusPending
	}
}
