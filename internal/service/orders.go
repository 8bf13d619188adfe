package service

import (
	"context"
	"errors"
	"fmt"

	"storefront-payments/internal/auth"
	"storefront-payments/internal/client"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/identity"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/signature"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService reconciles the three writers that can advance an order:
// pre-create, the client payment callback, and the gateway webhook. All
// writes are idempotent against the natural keys (gatewayOrderId, paymentId)
// so the paths may interleave freely for the same payment.
type OrderService interface {
	PreCreate(ctx context.Context, req *dto.PreCreateRequest) (*dto.PreCreateResponse, error)
	SaveOrder(ctx context.Context, ident *auth.Identity, req *dto.SaveOrderRequest) (*dto.OrderView, error)
	HandleWebhook(ctx context.Context, sig string, body []byte) (*dto.WebhookResponse, error)
	ListOrders(ctx context.Context, ident *auth.Identity) ([]*dto.OrderView, error)
	VerifySignature(req *dto.VerifyRequest) bool
}

type orderServiceImpl struct {
	db            *gorm.DB
	gateway       client.GatewayClient
	orderRepo     repository.OrderRepository
	profileRepo   repository.ProfileRepository
	linker        *identity.Linker
	keySecret     []byte
	webhookSecret []byte
	logger        *zap.Logger
}

func NewOrderService(
	db *gorm.DB,
	gateway client.GatewayClient,
	orderRepo repository.OrderRepository,
	profileRepo repository.ProfileRepository,
	linker *identity.Linker,
	keySecret string,
	webhookSecret string,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		db:            db,
		gateway:       gateway,
		orderRepo:     orderRepo,
		profileRepo:   profileRepo,
		linker:        linker,
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
		logger:        logger,
	}
}

// PreCreate creates the gateway order and, when the caller is known,
// persists a pending row keyed by the new gateway order id. The insert is
// best-effort: the webhook path can still create the row later, so a store
// failure here must not fail the checkout.
func (s *orderServiceImpl) PreCreate(ctx context.Context, req *dto.PreCreateRequest) (*dto.PreCreateResponse, error) {
	receipt := uuid.NewString()

	gwOrder, err := s.gateway.CreateOrder(ctx, req.Amount, req.Currency, receipt)
	if err != nil {
		return nil, fmt.Errorf("gateway create order: %w", err)
	}

	if req.UserID != "" {
		contact := s.linker.Resolve(ctx, identity.Input{UserID: req.UserID})

		order := &model.Order{
			ID:                      receipt,
			GatewayOrderID:          gwOrder.ID,
			Amount:                  req.Amount,
			Currency:                req.Currency,
			Status:                  model.OrderStatusPending,
			UserID:                  req.UserID,
			CustomerEmail:           contact.Email,
			CustomerEmailCanonical:  contact.EmailCanonical,
			CustomerPhone:           contact.Phone,
			CustomerPhoneNormalized: contact.PhoneNormalized,
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.orderRepo.Create(ctx, tx, order); err != nil {
				return err
			}
			return s.orderRepo.CreateOrderItems(ctx, tx, toOrderItems(order.ID, req.Currency, req.Items))
		})
		if err != nil {
			s.logger.Warn("pending order insert failed, webhook will create it",
				zap.String("gateway_order_id", gwOrder.ID),
				zap.Error(err))
		}
	}

	return &dto.PreCreateResponse{
		ID:       gwOrder.ID,
		Amount:   gwOrder.Amount,
		Currency: gwOrder.Currency,
	}, nil
}

// SaveOrder is the client-callback writer. The caller must be
// provider-verified and must own the userId it claims; the callback proof is
// verified before any mutation. Replays of an already-succeeded payment
// return the existing row unchanged.
func (s *orderServiceImpl) SaveOrder(ctx context.Context, ident *auth.Identity, req *dto.SaveOrderRequest) (*dto.OrderView, error) {
	if ident == nil || ident.Strength < auth.StrengthVerified {
		return nil, model.ErrUnauthorized
	}
	if req.UserID == "" || req.UserID != ident.UserID {
		return nil, model.ErrForbidden
	}
	if !signature.Verify(signature.CallbackPayload(req.GatewayOrderID, req.PaymentID), req.Signature, s.keySecret) {
		return nil, model.ErrInvalidSignature
	}

	// replay: this payment already produced a success row
	if existing, err := s.orderRepo.FindByPaymentID(ctx, req.PaymentID); err == nil {
		if existing.Status == model.OrderStatusSuccess {
			return s.orderView(ctx, existing)
		}
	} else if !errors.Is(err, model.ErrOrderNotFound) {
		return nil, fmt.Errorf("find order by payment id: %w", err)
	}

	contact := s.linker.Resolve(ctx, identity.Input{
		RequestEmail: req.CustomerEmail,
		RequestPhone: req.CustomerPhone,
		UserID:       ident.UserID,
		Claims:       ident,
	})

	// webhook events carry only the gateway contact, so the profile row is
	// what maps that contact back to a user id later
	s.backfillProfile(ctx, ident.UserID, contact)

	pending, err := s.orderRepo.FindByGatewayOrderID(ctx, req.GatewayOrderID)
	switch {
	case err == nil && pending.Status == model.OrderStatusSuccess:
		// a concurrent webhook got here first
		return s.orderView(ctx, pending)

	case err == nil:
		return s.succeedPendingOrder(ctx, pending, req, contact, ident.UserID)

	case errors.Is(err, model.ErrOrderNotFound):
		return s.insertSuccessOrder(ctx, req, contact, ident.UserID)

	default:
		return nil, fmt.Errorf("find order by gateway order id: %w", err)
	}
}

// succeedPendingOrder attaches the payment to an existing pending row. A
// zero-row update means another writer finished first; the re-read then
// returns whatever terminal state won.
func (s *orderServiceImpl) succeedPendingOrder(ctx context.Context, pending *model.Order, req *dto.SaveOrderRequest, contact identity.Contact, userID string) (*dto.OrderView, error) {
	updates := map[string]interface{}{
		"payment_id": req.PaymentID,
		"status":     model.OrderStatusSuccess,
	}
	// userId, once set, is never cleared
	if pending.UserID == "" && userID != "" {
		updates["user_id"] = userID
	}
	if pending.CustomerEmail == "" && contact.Email != "" {
		updates["customer_email"] = contact.Email
		updates["customer_email_canonical"] = contact.EmailCanonical
	}
	if pending.CustomerPhone == "" && contact.Phone != "" {
		updates["customer_phone"] = contact.Phone
		updates["customer_phone_normalized"] = contact.PhoneNormalized
	}

	items, err := s.orderRepo.GetOrderItems(ctx, pending.ID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.orderRepo.UpdateByGatewayOrderID(ctx, tx, req.GatewayOrderID,
			model.TerminalStatuses, updates)
		if err != nil {
			return err
		}
		if rows == 0 {
			// the row went terminal under us; the re-read returns the winner
			return nil
		}

		// a webhook-created provisional row has no line items yet
		if len(items) == 0 {
			return s.orderRepo.CreateOrderItems(ctx, tx, toOrderItems(pending.ID, req.Currency, req.Items))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("succeed pending order: %w", err)
	}

	updated, err := s.orderRepo.FindByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}

	return s.orderView(ctx, updated)
}

// insertSuccessOrder covers the case where pre-create never persisted a row.
// The insert ignores a duplicate gatewayOrderId so a racing webhook insert
// degrades to the update path instead of a constraint error.
func (s *orderServiceImpl) insertSuccessOrder(ctx context.Context, req *dto.SaveOrderRequest, contact identity.Contact, userID string) (*dto.OrderView, error) {
	paymentID := req.PaymentID
	order := &model.Order{
		ID:                      uuid.NewString(),
		GatewayOrderID:          req.GatewayOrderID,
		PaymentID:               &paymentID,
		Amount:                  req.Amount,
		Currency:                req.Currency,
		Status:                  model.OrderStatusSuccess,
		UserID:                  userID,
		CustomerEmail:           contact.Email,
		CustomerEmailCanonical:  contact.EmailCanonical,
		CustomerPhone:           contact.Phone,
		CustomerPhoneNormalized: contact.PhoneNormalized,
	}

	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inserted, err = s.orderRepo.InsertIgnoreDuplicate(ctx, tx, order)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		return s.orderRepo.CreateOrderItems(ctx, tx, toOrderItems(order.ID, req.Currency, req.Items))
	})
	if err != nil {
		return nil, fmt.Errorf("insert success order: %w", err)
	}

	if !inserted {
		// a concurrent webhook created the row between our read and write
		existing, err := s.orderRepo.FindByGatewayOrderID(ctx, req.GatewayOrderID)
		if err != nil {
			return nil, fmt.Errorf("reload order: %w", err)
		}
		if existing.Status == model.OrderStatusSuccess {
			return s.orderView(ctx, existing)
		}
		return s.succeedPendingOrder(ctx, existing, req, contact, userID)
	}

	return s.orderView(ctx, order)
}

// HandleWebhook is the server-to-server writer. It is authenticated solely
// by the HMAC signature over the raw body, verified before anything else.
func (s *orderServiceImpl) HandleWebhook(ctx context.Context, sig string, body []byte) (*dto.WebhookResponse, error) {
	if !signature.Verify(body, sig, s.webhookSecret) {
		return nil, model.ErrInvalidSignature
	}

	event, err := model.ParseWebhookEvent(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidPayload, err)
	}

	// replay: this payment already produced a success row
	if event.PaymentID != "" {
		if existing, err := s.orderRepo.FindByPaymentID(ctx, event.PaymentID); err == nil {
			if existing.Status == model.OrderStatusSuccess {
				return &dto.WebhookResponse{Success: true}, nil
			}
		} else if !errors.Is(err, model.ErrOrderNotFound) {
			return nil, fmt.Errorf("find order by payment id: %w", err)
		}
	}

	// events stripped down to bare ids: ask the gateway for the full
	// payment so contact backfill still has something to work with
	if event.PaymentID != "" && event.Email == "" && event.Contact == "" {
		if payment, err := s.gateway.FetchPayment(ctx, event.PaymentID); err == nil {
			event.Email = payment.Email
			event.Contact = payment.Contact
			if event.GatewayOrderID == "" {
				event.GatewayOrderID = payment.GatewayOrderID
			}
			if event.Amount == 0 {
				event.Amount = payment.Amount
			}
			if event.Currency == "" {
				event.Currency = payment.Currency
			}
		} else {
			s.logger.Warn("fetch payment for webhook backfill failed",
				zap.String("payment_id", event.PaymentID),
				zap.Error(err))
		}
	}

	if event.GatewayOrderID == "" {
		return nil, fmt.Errorf("%w: event carries no gateway order id", model.ErrInvalidPayload)
	}

	contact := s.linker.Resolve(ctx, identity.Input{
		GatewayEmail:   event.Email,
		GatewayContact: event.Contact,
	})

	updated, err := s.applyWebhook(ctx, event, contact)
	if err != nil {
		return nil, err
	}
	if updated {
		return &dto.WebhookResponse{Success: true, Updated: true}, nil
	}

	created, err := s.insertProvisionalOrder(ctx, event, contact)
	if err != nil {
		return nil, err
	}
	if created {
		return &dto.WebhookResponse{Success: true, Created: true}, nil
	}

	// insert lost a race with another writer; apply the update once more
	updated, err = s.applyWebhook(ctx, event, contact)
	if err != nil {
		return nil, err
	}
	return &dto.WebhookResponse{Success: true, Updated: updated}, nil
}

// applyWebhook updates the row for the event's gatewayOrderId, reporting
// whether a row was touched. Success rows are left alone.
func (s *orderServiceImpl) applyWebhook(ctx context.Context, event *model.PaymentEvent, contact identity.Contact) (bool, error) {
	existing, err := s.orderRepo.FindByGatewayOrderID(ctx, event.GatewayOrderID)
	if errors.Is(err, model.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find order by gateway order id: %w", err)
	}
	if existing.Status == model.OrderStatusSuccess {
		return true, nil
	}

	updates := map[string]interface{}{
		"status": event.OrderStatus(),
	}
	if event.PaymentID != "" {
		updates["payment_id"] = event.PaymentID
	}
	if existing.UserID == "" {
		if userID := s.userIDForContact(ctx, contact); userID != "" {
			updates["user_id"] = userID
		}
	}
	if existing.CustomerEmail == "" && contact.Email != "" {
		updates["customer_email"] = contact.Email
		updates["customer_email_canonical"] = contact.EmailCanonical
	}
	if existing.CustomerPhone == "" && contact.Phone != "" {
		updates["customer_phone"] = contact.Phone
		updates["customer_phone_normalized"] = contact.PhoneNormalized
	}

	var rows int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the status guard keeps a late event from reverting a terminal row
		var err error
		rows, err = s.orderRepo.UpdateByGatewayOrderID(ctx, tx, event.GatewayOrderID,
			model.TerminalStatuses, updates)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("apply webhook update: %w", err)
	}

	return rows > 0, nil
}

// insertProvisionalOrder creates the row the pre-create step never did. The
// owner is only attached when the gateway contact maps to a known profile.
func (s *orderServiceImpl) insertProvisionalOrder(ctx context.Context, event *model.PaymentEvent, contact identity.Contact) (bool, error) {
	order := &model.Order{
		ID:                      uuid.NewString(),
		GatewayOrderID:          event.GatewayOrderID,
		Amount:                  event.Amount,
		Currency:                event.Currency,
		Status:                  event.OrderStatus(),
		UserID:                  s.userIDForContact(ctx, contact),
		CustomerEmail:           contact.Email,
		CustomerEmailCanonical:  contact.EmailCanonical,
		CustomerPhone:           contact.Phone,
		CustomerPhoneNormalized: contact.PhoneNormalized,
	}
	if event.PaymentID != "" {
		paymentID := event.PaymentID
		order.PaymentID = &paymentID
	}

	var inserted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inserted, err = s.orderRepo.InsertIgnoreDuplicate(ctx, tx, order)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("insert provisional order: %w", err)
	}

	return inserted, nil
}

// backfillProfile records a verified caller's resolved contact. Best-effort:
// a store failure must not fail the callback.
func (s *orderServiceImpl) backfillProfile(ctx context.Context, userID string, contact identity.Contact) {
	if userID == "" || (contact.Email == "" && contact.Phone == "") {
		return
	}
	err := s.profileRepo.Upsert(ctx, &model.Profile{
		UserID:         userID,
		Email:          contact.Email,
		EmailCanonical: contact.EmailCanonical,
		Phone:          contact.Phone,
	})
	if err != nil {
		s.logger.Warn("profile backfill failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (s *orderServiceImpl) userIDForContact(ctx context.Context, contact identity.Contact) string {
	if contact.EmailCanonical == "" {
		return ""
	}
	profile, err := s.profileRepo.FindByEmailCanonical(ctx, contact.EmailCanonical)
	if err != nil {
		if !errors.Is(err, model.ErrProfileNotFound) {
			s.logger.Debug("profile lookup by email failed", zap.Error(err))
		}
		return ""
	}
	return profile.UserID
}

// ListOrders returns the caller's orders, newest first. No resolvable email
// means an empty list, never an error and never another user's orders.
func (s *orderServiceImpl) ListOrders(ctx context.Context, ident *auth.Identity) ([]*dto.OrderView, error) {
	if ident == nil {
		return []*dto.OrderView{}, nil
	}

	contact := s.linker.Resolve(ctx, identity.Input{
		UserID: ident.UserID,
		Claims: ident,
	})
	if contact.EmailCanonical == "" {
		return []*dto.OrderView{}, nil
	}

	orders, err := s.orderRepo.FindByCustomerEmail(ctx, contact.EmailCanonical)
	if err != nil {
		return nil, fmt.Errorf("find orders by email: %w", err)
	}

	views := make([]*dto.OrderView, 0, len(orders))
	for _, order := range orders {
		view, err := s.orderView(ctx, order)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	return views, nil
}

// VerifySignature recomputes the callback proof. Pure check, no mutation.
func (s *orderServiceImpl) VerifySignature(req *dto.VerifyRequest) bool {
	return signature.Verify(
		signature.CallbackPayload(req.GatewayOrderID, req.PaymentID),
		req.Signature,
		s.keySecret,
	)
}

func (s *orderServiceImpl) orderView(ctx context.Context, order *model.Order) (*dto.OrderView, error) {
	items, err := s.orderRepo.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	return dto.NewOrderView(order, items), nil
}

func toOrderItems(orderID, currency string, items []*dto.Item) []*model.OrderItem {
	out := make([]*model.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, &model.OrderItem{
			OrderID:   orderID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			Currency:  currency,
		})
	}
	return out
}
