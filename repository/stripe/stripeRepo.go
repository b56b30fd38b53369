package striperepo

type CreateSessionReq struct {
	BookingID     int64
	AmountAed     float64
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID  string
	URL string
}

type Repo interface {
	CreateCheckoutSession(req CreateSessionReq) (*Session, error)
	VerifyWebhookSignature(sigHeader string, rawBody []byte) error
}
