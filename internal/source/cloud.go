package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zombor/invoice-checker/internal/lottery"
)

const (
	// DefaultCloudURL serves the published winning-number file
	DefaultCloudURL = "https://raw.githubusercontent.com/up2you/lottery/main/public/lottery-data.json"
	defaultTimeout  = 15 * time.Second
)

// CloudClient fetches the pre-built winning-number list, most recent period first
type CloudClient struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewCloudClient creates a CloudClient for the given data file URL
func NewCloudClient(dataURL string) *CloudClient {
	if dataURL == "" {
		dataURL = DefaultCloudURL
	}
	return &CloudClient{
		url:    dataURL,
		client: &http.Client{Timeout: defaultTimeout},
		now:    time.Now,
	}
}

// Fetch downloads and validates the winning-number list
func (c *CloudClient) Fetch(ctx context.Context) ([]lottery.WinningNumberSet, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("parsing cloud url: %w", err)
	}
	// Cache buster, the file is served from a CDN
	q := u.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching cloud data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("cloud data unavailable (status %d): %s", resp.StatusCode, string(body))
	}

	var sets []lottery.WinningNumberSet
	if err := json.NewDecoder(resp.Body).Decode(&sets); err != nil {
		return nil, fmt.Errorf("decoding cloud data: %w", err)
	}

	return validSets(sets)
}

// validSets drops malformed records; an empty result or a first record without a period is an error
func validSets(sets []lottery.WinningNumberSet) ([]lottery.WinningNumberSet, error) {
	if len(sets) == 0 || sets[0].Period == "" {
		return nil, fmt.Errorf("invalid data format")
	}

	valid := make([]lottery.WinningNumberSet, 0, len(sets))
	for _, s := range sets {
		if err := s.Validate(); err != nil {
			slog.Warn("Skipping invalid winning numbers", "period", s.Period, "error", err)
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid periods in data")
	}
	return valid, nil
}
