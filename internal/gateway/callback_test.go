package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeffmuturi45/EVENTIFY/internal/domain"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1000.00},
          {"Name": "MpesaReceiptNumber", "Value": "ABC123"},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

const cancelledCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": "1032",
      "ResultDesc": "Request cancelled by user"
    }
  }
}`

func TestParseCallback_Success(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	res, err := ParseCallback([]byte(successCallback), nairobi, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", res.MerchantRequestID)
	assert.Equal(t, domain.PaymentStatusSuccessful, res.Status)
	assert.Equal(t, "ABC123", res.Receipt)
	require.NotNil(t, res.ResultCode)
	assert.Equal(t, 0, *res.ResultCode)
	assert.True(t, res.TransactionTime.Equal(time.Date(2019, 12, 19, 10, 21, 15, 0, nairobi)))
	assert.JSONEq(t, successCallback, string(res.Raw))
}

func TestParseCallback_Failure(t *testing.T) {
	res, err := ParseCallback([]byte(cancelledCallback), time.UTC, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentStatusFailed, res.Status)
	require.NotNil(t, res.ResultCode)
	assert.Equal(t, 1032, *res.ResultCode)
	assert.Equal(t, "Request cancelled by user", res.ResultDesc)
	assert.Empty(t, res.Receipt)
	assert.Equal(t, fixedNow, res.TransactionTime)
}

func TestParseCallback_BadTransactionDateUsesNow(t *testing.T) {
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1","ResultCode":0,"CallbackMetadata":{"Item":[{"Name":"TransactionDate","Value":"yesterday"}]}}}}`
	res, err := ParseCallback([]byte(body), nil, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, res.TransactionTime)
	assert.Empty(t, res.Receipt)
}

func TestParseCallback_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"missing checkout id", `{"Body":{"stkCallback":{"ResultCode":0}}}`},
		{"missing result code", `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1"}}}`},
		{"garbage result code", `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_1","ResultCode":"abc"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCallback([]byte(tt.body), time.UTC, fixedNow)
			assert.ErrorIs(t, err, ErrMalformedCallback)
		})
	}
}

func TestResultCode_Unmarshal(t *testing.T) {
	tests := []struct {
		in      string
		wantSet bool
		want    int
	}{
		{`0`, true, 0},
		{`"0"`, true, 0},
		{`1032`, true, 1032},
		{`" 1 "`, true, 1},
		{`null`, false, 0},
		{`""`, false, 0},
	}
	for _, tt := range tests {
		var rc ResultCode
		require.NoError(t, json.Unmarshal([]byte(tt.in), &rc), tt.in)
		assert.Equal(t, tt.wantSet, rc.Set, tt.in)
		assert.Equal(t, tt.want, rc.Value, tt.in)
	}
}

func TestVerifyCallbackToken(t *testing.T) {
	assert.True(t, VerifyCallbackToken("", "anything"))
	assert.True(t, VerifyCallbackToken("s3cret", "s3cret"))
	assert.False(t, VerifyCallbackToken("s3cret", ""))
	assert.False(t, VerifyCallbackToken("s3cret", "s3cre"))
}
