package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"restaurant_order/model"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	vnpVersion    = "2.1.0"
	vnpDateLayout = "20060102150405"
	vnpTimeout    = 15 * time.Second
)

var ErrInvalidSignature = errors.New("invalid vnpay signature")

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ApiURL     string
	ReturnURL  string
	Location   *time.Location
}

type VNPay struct {
	config VNPayConfig
	now    func() time.Time
}

func NewVNPay(config VNPayConfig) *VNPay {
	if config.Location == nil {
		loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
		if err != nil {
			loc = time.FixedZone("ICT", 7*60*60)
		}
		config.Location = loc
	}
	return &VNPay{config: config, now: time.Now}
}

func (v *VNPay) Name() string { return "vnpay" }

// CreatePayment builds the signed redirect URL. The transaction reference
// starts with the create date so later API calls can recover it.
func (v *VNPay) CreatePayment(_ context.Context, req PaymentRequest) (*PaymentIntent, error) {
	now := v.now().In(v.config.Location)
	createDate := now.Format(vnpDateLayout)
	txnRef := createDate + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]

	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}

	params := url.Values{}
	params.Add("vnp_Version", vnpVersion)
	params.Add("vnp_Command", "pay")
	params.Add("vnp_TmnCode", v.config.TmnCode)
	params.Add("vnp_Amount", vnpAmount(req))
	params.Add("vnp_CreateDate", createDate)
	params.Add("vnp_CurrCode", "VND")
	params.Add("vnp_IpAddr", ip)
	params.Add("vnp_Locale", "vn")
	params.Add("vnp_OrderInfo", req.Description)
	params.Add("vnp_OrderType", "other")
	params.Add("vnp_ReturnUrl", v.config.ReturnURL)
	params.Add("vnp_TxnRef", txnRef)
	params.Add("vnp_ExpireDate", now.Add(15*time.Minute).Format(vnpDateLayout))

	query := params.Encode()
	redirect := v.config.PayURL + "?" + query + "&vnp_SecureHash=" + v.sign(query)
	return &PaymentIntent{ID: txnRef, RedirectUrl: &redirect}, nil
}

func vnpAmount(req PaymentRequest) string {
	return strconv.FormatInt(req.Amount.Shift(2).IntPart(), 10)
}

// VerifyCallback checks the signature of an IPN or return URL query and
// returns the transaction reference it reports on.
func (v *VNPay) VerifyCallback(query url.Values) (string, error) {
	values := url.Values{}
	for k, vs := range query {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		values[k] = vs
	}
	expected := v.sign(values.Encode())
	if !hmac.Equal([]byte(strings.ToLower(query.Get("vnp_SecureHash"))), []byte(expected)) {
		return "", ErrInvalidSignature
	}
	txnRef := query.Get("vnp_TxnRef")
	if txnRef == "" {
		return "", errors.New("missing vnp_TxnRef")
	}
	return txnRef, nil
}

type vnpQueryResponse struct {
	ResponseId        string `json:"vnp_ResponseId"`
	ResponseCode      string `json:"vnp_ResponseCode"`
	Message           string `json:"vnp_Message"`
	TransactionNo     string `json:"vnp_TransactionNo"`
	TransactionStatus string `json:"vnp_TransactionStatus"`
}

func (v *VNPay) GetPaymentStatus(_ context.Context, gatewayPaymentID string) (model.PaymentStatus, error) {
	txnDate, err := transactionDate(gatewayPaymentID)
	if err != nil {
		return "", err
	}
	requestID, createDate := v.requestMeta()
	orderInfo := "Query " + gatewayPaymentID
	ip := "127.0.0.1"

	body := map[string]string{
		"vnp_RequestId":       requestID,
		"vnp_Version":         vnpVersion,
		"vnp_Command":         "querydr",
		"vnp_TmnCode":         v.config.TmnCode,
		"vnp_TxnRef":          gatewayPaymentID,
		"vnp_OrderInfo":       orderInfo,
		"vnp_TransactionDate": txnDate,
		"vnp_CreateDate":      createDate,
		"vnp_IpAddr":          ip,
	}
	body["vnp_SecureHash"] = v.sign(strings.Join([]string{
		requestID, vnpVersion, "querydr", v.config.TmnCode, gatewayPaymentID,
		txnDate, createDate, ip, orderInfo,
	}, "|"))

	var resp vnpQueryResponse
	if err := v.post(body, &resp); err != nil {
		return "", err
	}

	switch resp.ResponseCode {
	case "00":
	case "91":
		return "", ErrUnknownPayment
	default:
		return "", fmt.Errorf("vnpay querydr: %s %s", resp.ResponseCode, resp.Message)
	}
	switch resp.TransactionStatus {
	case "00":
		return model.PaymentPaid, nil
	case "01", "":
		return model.PaymentPending, nil
	default:
		return model.PaymentFailed, nil
	}
}

func (v *VNPay) Refund(_ context.Context, req RefundRequest) (string, error) {
	txnDate, err := transactionDate(req.GatewayPaymentId)
	if err != nil {
		return "", err
	}
	requestID, createDate := v.requestMeta()
	amount := strconv.FormatInt(req.Amount.Shift(2).IntPart(), 10)
	orderInfo := req.Description
	if orderInfo == "" {
		orderInfo = "Refund " + req.GatewayPaymentId
	}
	const (
		transactionType = "02"
		createBy        = "restaurant_order"
		ip              = "127.0.0.1"
	)

	body := map[string]string{
		"vnp_RequestId":       requestID,
		"vnp_Version":         vnpVersion,
		"vnp_Command":         "refund",
		"vnp_TmnCode":         v.config.TmnCode,
		"vnp_TransactionType": transactionType,
		"vnp_TxnRef":          req.GatewayPaymentId,
		"vnp_Amount":          amount,
		"vnp_OrderInfo":       orderInfo,
		"vnp_TransactionNo":   "",
		"vnp_TransactionDate": txnDate,
		"vnp_CreateBy":        createBy,
		"vnp_CreateDate":      createDate,
		"vnp_IpAddr":          ip,
	}
	body["vnp_SecureHash"] = v.sign(strings.Join([]string{
		requestID, vnpVersion, "refund", v.config.TmnCode, transactionType, req.GatewayPaymentId,
		amount, "", txnDate, createBy, createDate, ip, orderInfo,
	}, "|"))

	var resp vnpQueryResponse
	if err := v.post(body, &resp); err != nil {
		return "", err
	}
	if resp.ResponseCode != "00" {
		return "", fmt.Errorf("vnpay refund: %s %s", resp.ResponseCode, resp.Message)
	}
	if resp.TransactionNo != "" {
		return resp.TransactionNo, nil
	}
	return resp.ResponseId, nil
}

func (v *VNPay) post(body map[string]string, out any) error {
	agent := fiber.Post(v.config.ApiURL).Timeout(vnpTimeout).JSON(body)
	code, respBody, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("vnpay api: %w", errors.Join(errs...))
	}
	if code >= fiber.StatusInternalServerError {
		return fmt.Errorf("vnpay api: status %d", code)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("vnpay api: decode response: %w", err)
	}
	return nil
}

func (v *VNPay) requestMeta() (string, string) {
	now := v.now().In(v.config.Location)
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20], now.Format(vnpDateLayout)
}

func (v *VNPay) sign(data string) string {
	h := hmac.New(sha512.New, []byte(v.config.HashSecret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func transactionDate(txnRef string) (string, error) {
	if len(txnRef) < len(vnpDateLayout) {
		return "", fmt.Errorf("malformed vnpay reference %q", txnRef)
	}
	date := txnRef[:len(vnpDateLayout)]
	if _, err := time.Parse(vnpDateLayout, date); err != nil {
		return "", fmt.Errorf("malformed vnpay reference %q", txnRef)
	}
	return date, nil
}
