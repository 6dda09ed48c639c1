package pinot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reduction.dev/pinot/connectors"
	"reduction.dev/pinot/util/httpu"
)

// BrokerClient sends a generated query to a broker and returns the raw
// response document.
type BrokerClient interface {
	QueryBroker(ctx context.Context, query *GeneratedQuery) ([]byte, error)
}

// SegmentClient runs a query against segments hosted on one server and returns
// the raw response.
type SegmentClient interface {
	QuerySegments(ctx context.Context, host string, query string, segments []string) ([]byte, error)
}

// HTTPBrokerClient posts PQL to the broker's /query endpoint.
type HTTPBrokerClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPBrokerClient(baseURL string, timeout time.Duration) *HTTPBrokerClient {
	return &HTTPBrokerClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httpu.NewClient("pinot-broker", timeout),
	}
}

type brokerResponse struct {
	Exceptions []struct {
		ErrorCode int    `json:"errorCode"`
		Message   string `json:"message"`
	} `json:"exceptions"`
}

// QueryBroker returns retryable errors for transport failures and 5xx
// responses. Rejected queries are terminal.
func (c *HTTPBrokerClient) QueryBroker(ctx context.Context, query *GeneratedQuery) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"pql": query.Query()})
	if err != nil {
		return nil, connectors.NewTerminalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, connectors.NewTerminalError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, connectors.NewRetryableError(fmt.Errorf("pinot broker request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connectors.NewRetryableError(fmt.Errorf("read pinot broker response: %w", err))
	}

	if resp.StatusCode >= 500 {
		return nil, connectors.NewRetryableError(fmt.Errorf("pinot broker returned %d: %s", resp.StatusCode, data))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, connectors.NewTerminalError(fmt.Errorf("pinot broker returned %d: %s", resp.StatusCode, data))
	}

	var parsed brokerResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, connectors.NewTerminalError(fmt.Errorf("invalid pinot broker response: %w", err))
	}
	if len(parsed.Exceptions) > 0 {
		e := parsed.Exceptions[0]
		return nil, connectors.NewTerminalError(fmt.Errorf("pinot broker query for table %s failed with code %d: %s", query.Table(), e.ErrorCode, e.Message))
	}

	return data, nil
}

var _ BrokerClient = (*HTTPBrokerClient)(nil)
