package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/zombor/invoice-checker/internal/lottery"
)

// DefaultEInvoiceURL is the Ministry of Finance winning-number endpoint
const DefaultEInvoiceURL = "https://api.einvoice.nat.gov.tw/PB2CAPIVAN/invapp/InvApp"

// EInvoiceClient queries the official e-invoice API for a single term
type EInvoiceClient struct {
	baseURL string
	appID   string
	client  *http.Client
}

// NewEInvoiceClient creates an EInvoiceClient; appID is issued by the e-invoice platform
func NewEInvoiceClient(baseURL, appID string) (*EInvoiceClient, error) {
	if appID == "" {
		return nil, fmt.Errorf("e-invoice app id is required")
	}
	if baseURL == "" {
		baseURL = DefaultEInvoiceURL
	}
	return &EInvoiceClient{
		baseURL: baseURL,
		appID:   appID,
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

// einvoiceResponse is the subset of the API payload we consume
type einvoiceResponse struct {
	Code          string `json:"code"`
	Msg           string `json:"msg"`
	InvoYm        string `json:"invoYm"`
	SuperPrizeNo  string `json:"superPrizeNo"`
	SpcPrizeNo    string `json:"spcPrizeNo"`
	FirstPrizeNo1 string `json:"firstPrizeNo1"`
	FirstPrizeNo2 string `json:"firstPrizeNo2"`
	FirstPrizeNo3 string `json:"firstPrizeNo3"`
	SixthPrizeNo1 string `json:"sixthPrizeNo1"`
	SixthPrizeNo2 string `json:"sixthPrizeNo2"`
	SixthPrizeNo3 string `json:"sixthPrizeNo3"`
}

// FetchTerm retrieves the winning numbers of a term such as "11310"
func (c *EInvoiceClient) FetchTerm(ctx context.Context, term string) (*lottery.WinningNumberSet, error) {
	q := url.Values{}
	q.Set("version", "0.5")
	q.Set("type", "HP")
	q.Set("invTerm", term)
	q.Set("appID", c.appID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling e-invoice API: %w", err)
	}
	defer resp.Body.Close()

	var body einvoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding e-invoice response (status %d): %w", resp.StatusCode, err)
	}
	if body.Code != "200" {
		msg := body.Msg
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("e-invoice API error %s: %s", body.Code, msg)
	}

	ym := body.InvoYm
	if ym == "" {
		ym = term
	}
	period, err := lottery.PeriodFromTerm(ym)
	if err != nil {
		return nil, fmt.Errorf("parsing term: %w", err)
	}

	set := &lottery.WinningNumberSet{
		Period:               period,
		SpecialPrize:         body.SuperPrizeNo,
		GrandPrize:           body.SpcPrizeNo,
		FirstPrizeGroup:      nonEmpty(body.FirstPrizeNo1, body.FirstPrizeNo2, body.FirstPrizeNo3),
		AdditionalSixthPrize: nonEmpty(body.SixthPrizeNo1, body.SixthPrizeNo2, body.SixthPrizeNo3),
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("validating term %s: %w", term, err)
	}
	return set, nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
