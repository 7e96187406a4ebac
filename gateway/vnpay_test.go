package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"restaurant_order/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVNPay(apiURL string) *VNPay {
	v := NewVNPay(VNPayConfig{
		TmnCode:    "TESTTMN1",
		HashSecret: "SECRETKEY",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ApiURL:     apiURL,
		ReturnURL:  "https://order.example.com/payments/return",
		Location:   time.UTC,
	})
	v.now = func() time.Time { return time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC) }
	return v
}

func TestVNPayCreatePaymentSignsRedirect(t *testing.T) {
	v := newTestVNPay("")

	intent, err := v.CreatePayment(context.Background(), PaymentRequest{
		OrderId:     "o1",
		Amount:      decimal.RequireFromString("235000"),
		Description: "Order #0001",
		ClientIP:    "10.0.0.8",
	})
	require.NoError(t, err)
	require.NotNil(t, intent.RedirectUrl)
	assert.True(t, strings.HasPrefix(intent.ID, "20260314183000"))

	u, err := url.Parse(*intent.RedirectUrl)
	require.NoError(t, err)
	query := u.Query()
	assert.Equal(t, "23500000", query.Get("vnp_Amount"))
	assert.Equal(t, intent.ID, query.Get("vnp_TxnRef"))

	txnRef, err := v.VerifyCallback(query)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, txnRef)
}

func TestVNPayVerifyCallbackRejectsTampering(t *testing.T) {
	v := newTestVNPay("")
	query := url.Values{}
	query.Set("vnp_TxnRef", "20260314183000abc")
	query.Set("vnp_Amount", "100")
	query.Set("vnp_SecureHash", v.sign(query.Encode()))

	_, err := v.VerifyCallback(query)
	require.NoError(t, err)

	query.Set("vnp_Amount", "1")
	_, err = v.VerifyCallback(query)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func vnpAPI(t *testing.T, response map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["vnp_SecureHash"])
		assert.Equal(t, "20260314183000", body["vnp_TransactionDate"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVNPayGetPaymentStatus(t *testing.T) {
	cases := []struct {
		name     string
		response map[string]string
		want     model.PaymentStatus
	}{
		{"paid", map[string]string{"vnp_ResponseCode": "00", "vnp_TransactionStatus": "00"}, model.PaymentPaid},
		{"pending", map[string]string{"vnp_ResponseCode": "00", "vnp_TransactionStatus": "01"}, model.PaymentPending},
		{"failed", map[string]string{"vnp_ResponseCode": "00", "vnp_TransactionStatus": "02"}, model.PaymentFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestVNPay(vnpAPI(t, tc.response).URL)

			status, err := v.GetPaymentStatus(context.Background(), "20260314183000abcdef1234")

			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestVNPayGetPaymentStatusUnknownTransaction(t *testing.T) {
	v := newTestVNPay(vnpAPI(t, map[string]string{"vnp_ResponseCode": "91"}).URL)

	_, err := v.GetPaymentStatus(context.Background(), "20260314183000abcdef1234")

	assert.ErrorIs(t, err, ErrUnknownPayment)
}

func TestVNPayGetPaymentStatusRejectsMalformedReference(t *testing.T) {
	v := newTestVNPay("http://127.0.0.1:1")

	_, err := v.GetPaymentStatus(context.Background(), "pi_123")

	assert.Error(t, err)
}

func TestVNPayRefund(t *testing.T) {
	v := newTestVNPay(vnpAPI(t, map[string]string{"vnp_ResponseCode": "00", "vnp_TransactionNo": "14226112"}).URL)

	refundID, err := v.Refund(context.Background(), RefundRequest{
		GatewayPaymentId: "20260314183000abcdef1234",
		Amount:           decimal.RequireFromString("235000"),
	})

	require.NoError(t, err)
	assert.Equal(t, "14226112", refundID)
}
