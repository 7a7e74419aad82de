package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/api/dto"
	"github.com/twelvenexus/oneplan-billing/internal/domain/invoice"
	"github.com/twelvenexus/oneplan-billing/internal/domain/payment"
	ierr "github.com/twelvenexus/oneplan-billing/internal/errors"
	"github.com/twelvenexus/oneplan-billing/internal/types"
	"github.com/twelvenexus/oneplan-billing/internal/validator"
)

// InvoiceService issues tax invoices for completed payments. Amounts
// are frozen at generation; corrections void and reissue.
type InvoiceService interface {
	// CreateForPayment issues a PAID invoice for a completed payment.
	// Calling it twice for the same payment returns the existing invoice.
	CreateForPayment(ctx context.Context, p *payment.Payment) (*dto.InvoiceResponse, error)

	// GenerateInvoice creates a DRAFT invoice for the subscription's
	// current period, priced from the frozen subscription amount.
	GenerateInvoice(ctx context.Context, req *dto.GenerateInvoiceRequest) (*dto.InvoiceResponse, error)

	// IssueInvoice moves a DRAFT invoice to ISSUED and stamps the issue
	// and due dates. Amounts are immutable from this point.
	IssueInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)

	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	MarkInvoicePaid(ctx context.Context, id string, paidAt time.Time) (*dto.InvoiceResponse, error)
	VoidInvoice(ctx context.Context, id string, req *dto.VoidInvoiceRequest) (*dto.InvoiceResponse, error)

	// ProcessOverdueInvoices flags ISSUED invoices past their due date
	// and returns how many were moved to OVERDUE.
	ProcessOverdueInvoices(ctx context.Context) (int, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) CreateForPayment(ctx context.Context, p *payment.Payment) (*dto.InvoiceResponse, error) {
	if existing, err := s.InvoiceRepo.GetByPaymentID(ctx, p.ID); err == nil && existing != nil {
		return dto.NewInvoiceResponse(existing), nil
	} else if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	if p.PaymentStatus != types.PaymentStatusCompleted {
		return nil, ierr.NewError("payment is not completed").
			WithHint("Invoices are only issued for completed payments").
			WithReportableDetails(map[string]any{
				"payment_id":     p.ID,
				"payment_status": p.PaymentStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	inv, err := s.buildInvoice(ctx, p.TenantID, p.SubscriptionID, p.Amount, p.Currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	paidAt := now
	if p.CompletedAt != nil {
		paidAt = *p.CompletedAt
	}

	inv.PaymentID = &p.ID
	inv.InvoiceStatus = types.InvoiceStatusPaid
	inv.IssuedAt = now
	inv.DueAt = now.AddDate(0, 0, s.Config.Billing.InvoiceDueDays)
	inv.PaidAt = &paidAt

	if err := s.persistInvoice(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("issued invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"payment_id", p.ID,
		"total", inv.Total)
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) GenerateInvoice(ctx context.Context, req *dto.GenerateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	inv, err := s.buildInvoice(ctx, sub.TenantID, sub.ID, sub.Amount, sub.Currency)
	if err != nil {
		return nil, err
	}

	if err := s.persistInvoice(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("generated draft invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"subscription_id", sub.ID)
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) IssueInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceStatus != types.InvoiceStatusDraft {
		return nil, ierr.NewError("invoice is not a draft").
			WithHint("Only draft invoices can be issued").
			WithReportableDetails(map[string]any{
				"invoice_status": inv.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	inv.InvoiceStatus = types.InvoiceStatusIssued
	inv.IssuedAt = now
	inv.DueAt = now.AddDate(0, 0, s.Config.Billing.InvoiceDueDays)
	inv.UpdatedBy = types.GetUserID(ctx)

	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("issued invoice",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"due_at", inv.DueAt)
	return dto.NewInvoiceResponse(inv), nil
}

// buildInvoice assembles a DRAFT invoice for the subscription's current
// period, pulling the next per-year sequence number and freezing the
// configured tax rate.
func (s *invoiceService) buildInvoice(ctx context.Context, tenantID, subscriptionID string, subtotal decimal.Decimal, currency string) (*invoice.Invoice, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	pl, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	seq, err := s.InvoiceRepo.NextSequence(ctx, now.Year())
	if err != nil {
		return nil, err
	}

	taxRate := s.Config.Billing.TaxRatePercent
	taxAmount := subtotal.Mul(taxRate).Div(decimal.NewFromInt(100)).Round(2)

	base := types.GetDefaultBaseModel(ctx)
	base.TenantID = tenantID

	invoiceID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE)
	return &invoice.Invoice{
		ID:             invoiceID,
		TenantID:       tenantID,
		InvoiceNumber:  fmt.Sprintf("INV-%d-%05d", now.Year(), seq),
		SubscriptionID: sub.ID,
		InvoiceStatus:  types.InvoiceStatusDraft,
		Subtotal:       subtotal,
		TaxRatePercent: taxRate,
		TaxAmount:      taxAmount,
		Total:          subtotal.Add(taxAmount),
		Currency:       currency,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
		BillToName:     s.Config.Billing.CompanyName,
		BillToAddress:  s.Config.Billing.CompanyAddress,
		TaxRegNo:       s.Config.Billing.TaxRegistrationNo,
		LineItems: []*invoice.LineItem{
			{
				ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
				InvoiceID:   invoiceID,
				Description: fmt.Sprintf("%s (%s)", pl.Name, sub.BillingCycle),
				Quantity:    sub.Quantity,
				UnitPrice:   subtotal.DivRound(decimal.NewFromInt(int64(sub.Quantity)), 2),
				Amount:      subtotal,
				BaseModel:   base,
			},
		},
		BaseModel: base,
	}, nil
}

func (s *invoiceService) persistInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}
	for _, li := range inv.LineItems {
		if err := li.Validate(); err != nil {
			return err
		}
	}
	return s.InvoiceRepo.CreateWithLineItems(ctx, inv)
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.GetByNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = &types.InvoiceFilter{}
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, dto.NewInvoiceResponse(inv))
	}

	return &dto.ListInvoicesResponse{
		Items: items,
		Pagination: types.PaginationResponse{
			Total:  total,
			Limit:  filter.GetLimit(),
			Offset: filter.GetOffset(),
		},
	}, nil
}

func (s *invoiceService) MarkInvoicePaid(ctx context.Context, id string, paidAt time.Time) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch inv.InvoiceStatus {
	case types.InvoiceStatusIssued, types.InvoiceStatusOverdue:
	case types.InvoiceStatusPaid:
		return dto.NewInvoiceResponse(inv), nil
	default:
		return nil, ierr.NewError("invoice cannot be marked paid").
			WithHint("Only issued or overdue invoices can be marked paid").
			WithReportableDetails(map[string]any{
				"invoice_status": inv.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	inv.InvoiceStatus = types.InvoiceStatusPaid
	inv.PaidAt = &paidAt
	inv.UpdatedBy = types.GetUserID(ctx)

	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("marked invoice paid", "invoice_id", inv.ID)
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) VoidInvoice(ctx context.Context, id string, req *dto.VoidInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceStatus == types.InvoiceStatusVoid {
		return nil, ierr.NewError("invoice already void").
			WithHint("The invoice is already void").
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	inv.InvoiceStatus = types.InvoiceStatusVoid
	inv.VoidedAt = &now
	inv.Metadata = inv.Metadata.Merge(types.Metadata{"void_reason": req.Reason})
	inv.UpdatedBy = types.GetUserID(ctx)

	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("voided invoice", "invoice_id", inv.ID, "reason", req.Reason)
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ProcessOverdueInvoices(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	invoices, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{
		QueryFilter: types.QueryFilter{Limit: types.FilterMaxLimit},
		Statuses:    []types.InvoiceStatus{types.InvoiceStatusIssued},
		DueBefore:   &now,
	})
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, inv := range invoices {
		inv.InvoiceStatus = types.InvoiceStatusOverdue
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			s.Logger.Errorw("failed to mark invoice overdue",
				"invoice_id", inv.ID, "error", err)
			continue
		}
		processed++
	}

	if processed > 0 {
		s.Logger.Infow("marked invoices overdue", "count", processed)
	}
	return processed, nil
}
