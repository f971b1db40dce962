package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/inklet/inklet"
)

const (
	defaultTimeout = 3 * time.Second
)

// Client talks to the external append-only commit service. It is only used
// by the ledger gateway; the hot read path never touches it.
type Client struct {
	client   *http.Client
	endpoint string
}

func New(endpoint string) *Client {
	httpClient := &http.Client{
		Timeout: defaultTimeout,
	}

	return &Client{
		client:   httpClient,
		endpoint: endpoint,
	}
}

// Commit submits a record and returns the service-issued transaction id.
func (c *Client) Commit(ctx context.Context, rec inklet.LedgerRecord) (string, error) {

	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %v", err)
	}

	url := c.endpoint + "/commit"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var receipt inklet.CommitReceipt
	err = json.NewDecoder(resp.Body).Decode(&receipt)
	if err != nil {
		return "", fmt.Errorf("failed to decode receipt: %v", err)
	}

	return receipt.TransactionID, nil
}
