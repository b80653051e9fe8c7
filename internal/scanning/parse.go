package scanning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	nonDigits  = regexp.MustCompile(`\D`)
	spacedYear = regexp.MustCompile(`^(\d+)年\s*(\d{1,2})-(\d{1,2})月$`)
	qrNumber   = regexp.MustCompile(`[A-Z]{2}(\d{8})`)
)

// invoiceJSON mirrors the JSON object the models are prompted to return
type invoiceJSON struct {
	InvoiceNumber string  `json:"invoiceNumber"`
	Period        *string `json:"period"`
}

// parseInvoiceJSON parses a model response into InvoiceData
func parseInvoiceJSON(text string) (*InvoiceData, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var raw invoiceJSON
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	digits := nonDigits.ReplaceAllString(raw.InvoiceNumber, "")
	if len(digits) < 8 {
		return nil, fmt.Errorf("invoice number not recognized: %q", raw.InvoiceNumber)
	}

	data := &InvoiceData{
		// Longer digit runs pick up neighbouring text; the number is the tail
		Number: digits[len(digits)-8:],
	}
	if raw.Period != nil {
		data.Period = normalizePeriod(*raw.Period)
	}
	return data, nil
}

// normalizePeriod rewrites "113年01-02月" into the canonical "113年 01-02月"
func normalizePeriod(period string) string {
	period = strings.TrimSpace(period)
	m := spacedYear.FindStringSubmatch(period)
	if m == nil {
		return period
	}
	start, _ := strconv.Atoi(m[2])
	end, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%s年 %02d-%02d月", m[1], start, end)
}

// ParseQRPayload extracts the invoice number from the text of an e-invoice QR code.
// The left code starts with the two track letters followed by the 8 digits.
func ParseQRPayload(payload string) (string, bool) {
	if m := qrNumber.FindStringSubmatch(payload); m != nil {
		return m[1], true
	}
	digits := nonDigits.ReplaceAllString(payload, "")
	if len(digits) == 8 {
		return digits, true
	}
	return "", false
}
