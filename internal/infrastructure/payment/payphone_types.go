package payment

type payphonePrepareRequest struct {
	Amount              int64  `json:"amount"`
	AmountWithoutTax    int64  `json:"amountWithoutTax"`
	AmountWithTax       int64  `json:"amountWithTax"`
	Tax                 int64  `json:"tax"`
	Currency            string `json:"currency"`
	ClientTransactionID string `json:"clientTransactionId"`
	StoreID             string `json:"storeId,omitempty"`
	Reference           string `json:"reference,omitempty"`
	Email               string `json:"email,omitempty"`
	ResponseURL         string `json:"responseUrl,omitempty"`
	CancellationURL     string `json:"cancellationUrl,omitempty"`
}

type payphonePrepareResponse struct {
	PaymentID       string `json:"paymentId"`
	PayWithCard     string `json:"payWithCard"`
	PayWithPayPhone string `json:"payWithPayPhone"`
}

type payphoneConfirmRequest struct {
	ID         string `json:"id"`
	ClientTxID string `json:"clientTxId"`
}

type payphoneConfirmResponse struct {
	TransactionID       int64  `json:"transactionId"`
	ClientTransactionID string `json:"clientTransactionId"`
	StatusCode          int    `json:"statusCode"`
	TransactionStatus   string `json:"transactionStatus"`
	Amount              int64  `json:"amount"`
	Currency            string `json:"currency"`
	Date                string `json:"date"`
	Message             string `json:"message"`
	MessageCode         int    `json:"messageCode"`
}

type payphoneReverseRequest struct {
	ID string `json:"id"`
}

type payphoneCallback struct {
	ID                  jsonID `json:"id"`
	ClientTransactionID string `json:"clientTransactionId"`
}
