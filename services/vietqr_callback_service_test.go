package services

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aims-group3/aims-payment/config"
	"github.com/aims-group3/aims-payment/models"
	"github.com/aims-group3/aims-payment/utils"
)

var testDBCounter int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	utils.InitLogger()

	dsn := fmt.Sprintf("file:payments_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBCounter, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.Payment{}))
	return db
}

func newCallbackService(db *gorm.DB) *VietQRCallbackService {
	return NewVietQRCallbackService(db, &config.VietQRConfig{UsdToVndRate: 25000})
}

func seedOrder(t *testing.T, db *gorm.DB) models.Order {
	t.Helper()
	order := models.Order{
		CustomerName: "Nguyen Van A",
		AddressLine:  "123 Le Loi, Hanoi",
		Price:        10.00,
		ShippingFee:  0,
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func seedPayment(t *testing.T, db *gorm.DB, payment *models.Payment) *models.Payment {
	t.Helper()
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func reloadPayment(t *testing.T, db *gorm.DB, id uint) models.Payment {
	t.Helper()
	var payment models.Payment
	require.NoError(t, db.First(&payment, id).Error)
	return payment
}

func TestProcessCallbackCompletesPendingPayment(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	payment := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-AAAA1111",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "ORDER123 subscription fee",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		BankAccount: "0123456789",
		Amount:      250000,
		TransType:   "C",
		Content:     "VQR00000000000000 subscription fee",
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackCompleted, outcome)
	assert.True(t, outcome.Success())

	got := reloadPayment(t, db, payment.ID)
	assert.Equal(t, models.PaymentStatusCompleted, got.Status)
	require.NotNil(t, got.PaidAt)
}

func TestProcessCallbackIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	payment := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-BBBB2222",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "ORDER123 subscription fee",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	req := &VietQRCallbackRequest{
		Amount:    250000,
		TransType: "C",
		Content:   "VQR00000000000000 subscription fee",
	}

	outcome, err := svc.ProcessCallback(req)
	require.NoError(t, err)
	assert.Equal(t, CallbackCompleted, outcome)

	first := reloadPayment(t, db, payment.ID)
	require.NotNil(t, first.PaidAt)

	// Re-delivery of the same callback acknowledges success without a
	// second state change.
	outcome, err = svc.ProcessCallback(req)
	require.NoError(t, err)
	assert.Equal(t, CallbackAlreadyProcessed, outcome)
	assert.True(t, outcome.Success())

	second := reloadPayment(t, db, payment.ID)
	assert.Equal(t, models.PaymentStatusCompleted, second.Status)
	require.NotNil(t, second.PaidAt)
	assert.Equal(t, first.PaidAt.UnixNano(), second.PaidAt.UnixNano())
}

func TestProcessCallbackRedeliveryAfterFuzzyMatch(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	// No transaction id: the payment is only reachable by amount+content.
	completed := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-XXXX1357",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "ORDER123 subscription fee",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	req := &VietQRCallbackRequest{
		Amount:    250000,
		TransType: "C",
		Content:   "VQR00000000000000 subscription fee",
	}

	outcome, err := svc.ProcessCallback(req)
	require.NoError(t, err)
	require.Equal(t, CallbackCompleted, outcome)

	// A fresh pending payment with the same amount but different content
	// must not absorb the retry of the already-settled callback.
	other := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-YYYY2468",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "unrelated order",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	outcome, err = svc.ProcessCallback(req)
	require.NoError(t, err)
	assert.Equal(t, CallbackAlreadyProcessed, outcome)
	assert.True(t, outcome.Success())

	assert.Equal(t, models.PaymentStatusCompleted, reloadPayment(t, db, completed.ID).Status)
	assert.Equal(t, models.PaymentStatusPending, reloadPayment(t, db, other.ID).Status)
}

func TestProcessCallbackRejectsDebitNotification(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	payment := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-CCCC3333",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "ORDER123 subscription fee",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		Amount:    250000,
		TransType: "D",
		Content:   "VQR00000000000000 subscription fee",
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackNotFound, outcome)
	assert.False(t, outcome.Success())

	got := reloadPayment(t, db, payment.ID)
	assert.Equal(t, models.PaymentStatusPending, got.Status)
	assert.Nil(t, got.PaidAt)
}

func TestProcessCallbackTransactionIDTakesPriority(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	orderA := seedOrder(t, db)
	orderB := seedOrder(t, db)

	txnID := "VQR-TXN-0001"
	byTxn := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-DDDD4444",
		OrderID:       orderA.ID,
		Amount:        10.00,
		Description:   "alpha invoice",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
		TransactionID: &txnID,
	})
	byOrder := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-EEEE5555",
		OrderID:       orderB.ID,
		Amount:        10.00,
		Description:   "beta invoice",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	// The callback carries both a transaction id and an order id whose
	// pending payment also fits amount and content. The transaction id wins.
	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		Amount:        250000,
		TransType:     "C",
		Content:       "VQR00000000000000 beta invoice",
		TransactionID: txnID,
		OrderID:       fmt.Sprintf("%d", orderB.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackCompleted, outcome)

	assert.Equal(t, models.PaymentStatusCompleted, reloadPayment(t, db, byTxn.ID).Status)
	assert.Equal(t, models.PaymentStatusPending, reloadPayment(t, db, byOrder.ID).Status)
}

func TestProcessCallbackMatchesByReferenceNumber(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	refID := "VQR-REF-0002"
	payment := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-FFFF6666",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "ORDER123 subscription fee",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
		TransactionID: &refID,
	})

	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		Amount:          250000,
		TransType:       "C",
		Content:         "VQR00000000000000 subscription fee",
		ReferenceNumber: refID,
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackCompleted, outcome)
	assert.Equal(t, models.PaymentStatusCompleted, reloadPayment(t, db, payment.ID).Status)
}

func TestProcessCallbackOrderScopedMatch(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	orderA := seedOrder(t, db)
	orderB := seedOrder(t, db)

	// Same amount and overlapping content on both orders; the order id in
	// the callback must pick the right one.
	other := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-GGGG7777",
		OrderID:       orderA.ID,
		Amount:        10.00,
		Description:   "THANH TOAN HOA DON",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})
	target := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-HHHH8888",
		OrderID:       orderB.ID,
		Amount:        10.00,
		Description:   "THANH TOAN HOA DON",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		Amount:    250000,
		TransType: "C",
		Content:   "VQR26044A327PVJX THANH TOAN HOA DON",
		OrderID:   fmt.Sprintf("%d", orderB.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackCompleted, outcome)

	assert.Equal(t, models.PaymentStatusCompleted, reloadPayment(t, db, target.ID).Status)
	assert.Equal(t, models.PaymentStatusPending, reloadPayment(t, db, other.ID).Status)
}

func TestProcessCallbackPrefersBankAccountSurvivor(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	first := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-IIII9999",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "THANH TOAN HOA DON chi nhanh 1",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})
	preferred := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-JJJJ0000",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "THANH TOAN HOA DON 0123456789",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		BankAccount: "0123456789",
		Amount:      250000,
		TransType:   "C",
		Content:     "VQR26044A327PVJX THANH TOAN HOA DON",
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackCompleted, outcome)

	assert.Equal(t, models.PaymentStatusCompleted, reloadPayment(t, db, preferred.ID).Status)
	assert.Equal(t, models.PaymentStatusPending, reloadPayment(t, db, first.ID).Status)
}

func TestProcessCallbackFirstSurvivorWithoutBankAccount(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	first := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-KKKK1212",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "THANH TOAN HOA DON",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})
	second := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-LLLL3434",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "THANH TOAN HOA DON",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		Amount:    250000,
		TransType: "C",
		Content:   "VQR26044A327PVJX THANH TOAN HOA DON",
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackCompleted, outcome)

	// Stable order: the oldest survivor wins.
	assert.Equal(t, models.PaymentStatusCompleted, reloadPayment(t, db, first.ID).Status)
	assert.Equal(t, models.PaymentStatusPending, reloadPayment(t, db, second.ID).Status)
}

func TestProcessCallbackAmountDriftBeyondTolerance(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	payment := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-MMMM5656",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "ORDER123 subscription fee",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	// 250275 VND converts to 10.011 USD, outside the one-cent tolerance.
	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		Amount:    250275,
		TransType: "C",
		Content:   "VQR00000000000000 subscription fee",
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackNotFound, outcome)
	assert.Equal(t, models.PaymentStatusPending, reloadPayment(t, db, payment.ID).Status)
}

func TestProcessCallbackNoMatch(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	payment := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-NNNN7878",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "ORDER123 subscription fee",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		Amount:    250000,
		TransType: "C",
		Content:   "VQR26044A327PVJX unrelated transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackNotFound, outcome)
	assert.Equal(t, models.PaymentStatusPending, reloadPayment(t, db, payment.ID).Status)
}

func TestProcessCallbackInvalidOrderIDFallsThrough(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	payment := seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-OOOO9090",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "ORDER123 subscription fee",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	// A non-numeric order id is ignored and the fuzzy match still runs.
	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		Amount:    250000,
		TransType: "C",
		Content:   "VQR00000000000000 subscription fee",
		OrderID:   "not-a-number",
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackCompleted, outcome)
	assert.Equal(t, models.PaymentStatusCompleted, reloadPayment(t, db, payment.ID).Status)
}

func TestProcessCallbackMissingContent(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	seedPayment(t, db, &models.Payment{
		PaymentCode:   "VIETQR-PPPP1313",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "ORDER123 subscription fee",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodVietQR,
	})

	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		Amount:    250000,
		TransType: "C",
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackNotFound, outcome)
}

func TestProcessCallbackNilRequest(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)

	outcome, err := svc.ProcessCallback(nil)
	require.NoError(t, err)
	assert.Equal(t, CallbackInvalid, outcome)
	assert.False(t, outcome.Success())
}

func TestProcessCallbackIgnoresNonVietQRPayments(t *testing.T) {
	db := newTestDB(t)
	svc := newCallbackService(db)
	order := seedOrder(t, db)

	payment := seedPayment(t, db, &models.Payment{
		PaymentCode:   "PAYPAL-QQQQ2424",
		OrderID:       order.ID,
		Amount:        10.00,
		Description:   "ORDER123 subscription fee",
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodPayPal,
	})

	outcome, err := svc.ProcessCallback(&VietQRCallbackRequest{
		Amount:    250000,
		TransType: "C",
		Content:   "VQR00000000000000 subscription fee",
	})
	require.NoError(t, err)
	assert.Equal(t, CallbackNotFound, outcome)
	assert.Equal(t, models.PaymentStatusPending, reloadPayment(t, db, payment.ID).Status)
}
