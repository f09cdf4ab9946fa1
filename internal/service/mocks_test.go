package service

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/client"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/model"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/provider"
	"github.com/51st-Wellness/fiftyfirst-wellness-backend-sub000/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := client.InitDBClient("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("init test db: %v", err)
	}
	return db
}

// fakeProvider is a scriptable Provider plus StatusVerifier.
type fakeProvider struct {
	kind model.PaymentProvider

	session  *provider.Session
	initErr  error
	lastInit *provider.InitializeInput

	captureResult *provider.CaptureResult
	captureErr    error
	captureCalls  int

	verifyErr error

	parseResult *provider.WebhookResult
	parseErr    error

	remoteStatus model.PaymentStatus
	remoteErr    error
	remoteCalls  int
}

func (f *fakeProvider) Kind() model.PaymentProvider {
	if f.kind == "" {
		return model.ProviderStripe
	}
	return f.kind
}

func (f *fakeProvider) InitializePayment(ctx context.Context, in provider.InitializeInput) (*provider.Session, error) {
	f.lastInit = &in
	if f.initErr != nil {
		return nil, f.initErr
	}
	if f.session != nil {
		return f.session, nil
	}
	return &provider.Session{ProviderRef: "sess_" + in.PaymentID, ApprovalURL: "https://pay.example/" + in.PaymentID}, nil
}

func (f *fakeProvider) CapturePayment(ctx context.Context, providerRef string) (*provider.CaptureResult, error) {
	f.captureCalls++
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return f.captureResult, nil
}

func (f *fakeProvider) VerifyWebhook(ctx context.Context, headers http.Header, rawBody []byte) error {
	return f.verifyErr
}

func (f *fakeProvider) ParseWebhook(ctx context.Context, rawBody []byte) (*provider.WebhookResult, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.parseResult, nil
}

func (f *fakeProvider) VerifyPaymentStatus(ctx context.Context, providerRef string) (model.PaymentStatus, error) {
	f.remoteCalls++
	if f.remoteErr != nil {
		return "", f.remoteErr
	}
	return f.remoteStatus, nil
}

// fakeNotifier records every published event.
type fakeNotifier struct {
	mu              sync.Mutex
	statusEvents    []PaymentStatusEvent
	confirmedOrders []OrderConfirmedEvent
}

func (n *fakeNotifier) NotifyPaymentStatus(ctx context.Context, event PaymentStatusEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statusEvents = append(n.statusEvents, event)
	return nil
}

func (n *fakeNotifier) NotifyOrderConfirmed(ctx context.Context, event OrderConfirmedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmedOrders = append(n.confirmedOrders, event)
	return nil
}

type fakeMailer struct {
	sent int
}

func (m *fakeMailer) EmailOnPaymentStatus(ctx context.Context, userID, paymentID string, status model.PaymentStatus, reason string) error {
	m.sent++
	return nil
}

type reconcileEnv struct {
	db       *gorm.DB
	svc      ReconciliationService
	notifier *fakeNotifier
	mailer   *fakeMailer
	provider *fakeProvider

	paymentRepo      repository.PaymentRepository
	orderRepo        repository.OrderRepository
	productRepo      repository.ProductRepository
	cartRepo         repository.CartRepository
	subscriptionRepo repository.SubscriptionRepository
	planRepo         repository.PlanRepository
}

func newReconcileEnv(t *testing.T, p *fakeProvider) *reconcileEnv {
	t.Helper()
	db := newTestDB(t)
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}

	env := &reconcileEnv{
		db:               db,
		notifier:         notifier,
		mailer:           mailer,
		provider:         p,
		paymentRepo:      repository.NewPaymentRepository(db),
		orderRepo:        repository.NewOrderRepository(db),
		productRepo:      repository.NewProductRepository(db),
		cartRepo:         repository.NewCartRepository(db),
		subscriptionRepo: repository.NewSubscriptionRepository(db),
		planRepo:         repository.NewPlanRepository(db),
	}

	env.svc = NewReconciliationService(
		db, zap.NewNop(), provider.NewRegistry(p), notifier, mailer,
		env.paymentRepo, env.orderRepo, env.productRepo, env.cartRepo,
		env.subscriptionRepo, env.planRepo,
		repository.NewWebhookEventRepository(db),
	)
	return env
}

const (
	testUserID    = "user-001"
	testPaymentID = "pay-001"
	testOrderID   = "order-001"
	testSessionID = "cs_test_001"
)

// seedStorePayment creates a PENDING store payment with a two-unit order line
// against a product holding ten units, plus the matching cart row.
func (e *reconcileEnv) seedStorePayment(t *testing.T, stock int32) {
	t.Helper()
	ctx := context.Background()

	if err := e.db.Create(&model.Product{
		ID:        "prod-001",
		Name:      "Collagen",
		Price:     decimal.RequireFromString("24.00"),
		Currency:  "GBP",
		Stock:     stock,
		Published: true,
	}).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	meta, err := model.PaymentMetadata{
		Type:    model.MetadataStoreCheckout,
		OrderID: testOrderID,
		UserID:  testUserID,
	}.JSON()
	if err != nil {
		t.Fatalf("seed metadata: %v", err)
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		if err := e.paymentRepo.Create(ctx, tx, &model.Payment{
			ID:          testPaymentID,
			Provider:    e.provider.Kind(),
			ProviderRef: testSessionID,
			Status:      model.PaymentPending,
			Amount:      decimal.RequireFromString("48.00"),
			Currency:    "GBP",
			Metadata:    meta,
		}); err != nil {
			return err
		}
		paymentID := testPaymentID
		if err := e.orderRepo.Create(ctx, tx, &model.Order{
			ID:          testOrderID,
			UserID:      testUserID,
			Status:      model.OrderPending,
			PaymentID:   &paymentID,
			TotalAmount: decimal.RequireFromString("48.00"),
		}); err != nil {
			return err
		}
		if err := e.orderRepo.CreateOrderItems(ctx, tx, []*model.OrderItem{{
			OrderID:   testOrderID,
			ProductID: "prod-001",
			Quantity:  2,
			Price:     decimal.RequireFromString("24.00"),
		}}); err != nil {
			return err
		}
		return tx.Create(&model.CartItem{
			UserID:    testUserID,
			ProductID: "prod-001",
			Quantity:  2,
		}).Error
	})
	if err != nil {
		t.Fatalf("seed store payment: %v", err)
	}
}

func (e *reconcileEnv) payment(t *testing.T, id string) *model.Payment {
	t.Helper()
	p, err := e.paymentRepo.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load payment %s: %v", id, err)
	}
	return p
}

func (e *reconcileEnv) productStock(t *testing.T, id string) int32 {
	t.Helper()
	var p model.Product
	if err := e.db.Where("id = ?", id).First(&p).Error; err != nil {
		t.Fatalf("load product %s: %v", id, err)
	}
	return p.Stock
}
