package scanning

// InvoiceData contains what a vision model read off an invoice
type InvoiceData struct {
	Number string `json:"invoiceNumber"`    // 8 digits
	Period string `json:"period,omitempty"` // e.g. "113年 09-10月", empty if not visible
}

// Scanner defines the interface for invoice OCR
type Scanner interface {
	// ScanInvoice analyzes an invoice image/PDF and extracts its number
	ScanInvoice(imageData []byte, contentType string) (*InvoiceData, error)
	// Close closes the scanner and releases resources
	Close() error
}
