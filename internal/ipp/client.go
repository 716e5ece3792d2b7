package ipp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Client submits IPP requests to a print server over HTTP.
type Client struct {
	endpoint  string
	http      *http.Client
	requestID atomic.Uint32
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// PrintJob submits document to the named destination. Transport and
// print-server failures are returned verbatim; the caller decides whether
// they are worth retrying.
func (c *Client) PrintJob(ctx context.Context, destination, user, jobName string, document []byte) error {
	destination = SanitizeDestination(destination)
	if destination == "" {
		return fmt.Errorf("print destination is empty after sanitization")
	}

	printerURL := fmt.Sprintf("%s/printers/%s", c.endpoint, destination)

	payload := Request{
		RequestID:  c.requestID.Add(1),
		PrinterURI: printerURL,
		User:       user,
		JobName:    jobName,
		Document:   document,
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, printerURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/ipp")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("print submission failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("print server returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
