package balances

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RaghavSood/monswap/tokens"
)

// Client fetches balances from the balance service at {baseURL}/{wallet}.
type Client struct {
	baseURL    string
	httpClient *http.Client
	known      tokens.List
}

func NewClient(baseURL string, httpClient *http.Client, known tokens.List) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		known:      known,
	}
}

func (c *Client) Balances(ctx context.Context, wallet common.Address) ([]tokens.Token, error) {
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, wallet.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting balances: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("balance API returned %d: %s", resp.StatusCode, string(body))
	}

	return Normalize(body, c.known)
}
