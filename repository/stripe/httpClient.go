package striperepo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Zazh/foxapp/util/httpx"
)

type httpRepo struct {
	secretKey     string
	webhookSecret string
	client        *http.Client
}

func NewHTTP(secretKey, webhookSecret string) Repo {
	return &httpRepo{secretKey: secretKey, webhookSecret: webhookSecret, client: httpx.Client()}
}

// Configured reports whether a usable secret key is present. Without
// one the booking flow falls back to the mock payment page.
func Configured(secretKey string) bool {
	return strings.HasPrefix(secretKey, "sk_") && len(secretKey) > 10
}

func (r *httpRepo) CreateCheckoutSession(req CreateSessionReq) (*Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price_data][currency]", "aed")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(int64(req.AmountAed*100), 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	form.Set("line_items[0][quantity]", "1")
	form.Set("client_reference_id", strconv.FormatInt(req.BookingID, 10))
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)

	httpReq, err := http.NewRequest("POST", "https://api.stripe.com/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(r.secretKey, "")
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe create session failed: %s", resp.Status)
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("stripe: empty session id")
	}
	return &Session{ID: out.ID, URL: out.URL}, nil
}

// VerifyWebhookSignature checks the Stripe-Signature header
// (t=<ts>,v1=<hmac>) against the raw payload. An empty webhook secret
// skips verification for local development.
func (r *httpRepo) VerifyWebhookSignature(sigHeader string, rawBody []byte) error {
	if r.webhookSecret == "" {
		return nil
	}
	var ts, sig string
	for _, part := range strings.Split(sigHeader, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return errors.New("stripe: malformed signature header")
	}

	mac := hmac.New(sha256.New, []byte(r.webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return errors.New("stripe: signature mismatch")
	}
	return nil
}
