package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/waypost-systems/waypost/internal/journal"
)

// WarehouseConfig configures the OpenSearch warehouse staging sink.
type WarehouseConfig struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	Index         string
}

// WarehouseSink stages normalized records in an OpenSearch index for the
// external batch loader. Document id = idempotency key, so a retried
// delivery re-indexes the same document instead of duplicating it.
type WarehouseSink struct {
	client *opensearch.Client
	index  string
}

func NewWarehouseSink(cfg WarehouseConfig) (*WarehouseSink, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()
	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &WarehouseSink{client: client, index: cfg.Index}, nil
}

func (s *WarehouseSink) Name() string { return "warehouse" }

func (s *WarehouseSink) Deliver(ctx context.Context, entry *journal.Entry) error {
	doc := map[string]any{
		"idempotency_key": entry.Key,
		"record":          entry.Record,
		"received_at":     entry.Raw.ReceivedAt.UTC().Format(time.RFC3339Nano),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal warehouse document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      s.index,
		DocumentID: entry.Key,
		Body:       bytes.NewReader(data),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index warehouse document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch index returned %s", res.Status())
	}
	return nil
}
