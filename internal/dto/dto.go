package dto

type WebhookAccepted struct {
	Status  string `json:"status"`
	EntryID string `json:"entry_id,omitempty"`
}

type ReprocessResponse struct {
	EntryID string  `json:"entry_id"`
	RetryOf *string `json:"retry_of,omitempty"`
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Invoice string  `json:"invoice,omitempty"`
}

type InvoiceResponse struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Items      int    `json:"items"`
	GrandTotal string `json:"grand_total"`
}

type BulkSubmitRequest struct {
	Invoices []string `json:"invoices"`
}

type RecheckRequest struct {
	Limit int `json:"limit"`
}
