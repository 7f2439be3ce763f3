package gateway

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

// ErrMalformedCallback is returned for webhook bodies that cannot be applied
var ErrMalformedCallback = errors.New("malformed payment callback")

// Timestamp layout used by the provider for request timestamps and transaction dates
const timestampLayout = "20060102150405"

// ResultCode decodes the provider result code, which arrives as a number or a string
type ResultCode struct {
	Value int
	Set   bool
}

func (c *ResultCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ResultCode{}
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*c = ResultCode{}
			return nil
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid result code %q: %w", s, err)
	}
	*c = ResultCode{Value: v, Set: true}
	return nil
}

// Ptr returns the code as a pointer, nil when absent
func (c ResultCode) Ptr() *int {
	if !c.Set {
		return nil
	}
	v := c.Value
	return &v
}

// CallbackEnvelope is the webhook body
type CallbackEnvelope struct {
	Body struct {
		StkCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback is the result of one push payment
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        ResultCode        `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata lists the details of a successful payment
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem is one name/value pair; values are strings or numbers
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

func (i CallbackItem) String() string {
	raw := bytes.TrimSpace(i.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// CallbackResult is a parsed webhook
type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	Status            domain.PaymentStatus
	ResultCode        *int
	ResultDesc        string
	Receipt           string
	TransactionTime   time.Time
	Raw               json.RawMessage
}

// ParseCallback extracts the payment result from a webhook body.
// A transaction date that does not parse in loc falls back to now.
func ParseCallback(raw []byte, loc *time.Location, now time.Time) (*CallbackResult, error) {
	var env CallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := env.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformedCallback)
	}
	if !cb.ResultCode.Set {
		return nil, fmt.Errorf("%w: missing ResultCode", ErrMalformedCallback)
	}
	if loc == nil {
		loc = time.UTC
	}

	res := &CallbackResult{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		Status:            domain.PaymentStatusFailed,
		ResultCode:        cb.ResultCode.Ptr(),
		ResultDesc:        cb.ResultDesc,
		TransactionTime:   now,
		Raw:               append(json.RawMessage(nil), raw...),
	}
	if cb.ResultCode.Value == 0 {
		res.Status = domain.PaymentStatusSuccessful
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			switch item.Name {
			case "MpesaReceiptNumber":
				res.Receipt = item.String()
			case "TransactionDate":
				if t, err := time.ParseInLocation(timestampLayout, item.String(), loc); err == nil {
					res.TransactionTime = t
				}
			}
		}
	}
	return res, nil
}

// VerifyCallbackToken compares the token presented by a webhook with the
// configured secret. An empty secret disables the check.
func VerifyCallbackToken(secret, presented string) bool {
	if secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(presented)) == 1
}
