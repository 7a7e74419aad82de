package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/domain/invoice"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/postgres"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type invoiceRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewInvoiceRepository(params RepositoryParams) invoice.Repository {
	return &invoiceRepository{
		client: params.Client,
		logger: params.Logger,
	}
}

type invoiceRow struct {
	ID             string          `db:"id"`
	InvoiceNumber  string          `db:"invoice_number"`
	SubscriptionID string          `db:"subscription_id"`
	PaymentID      *string         `db:"payment_id"`
	InvoiceStatus  string          `db:"invoice_status"`
	Subtotal       decimal.Decimal `db:"subtotal"`
	TaxRatePercent decimal.Decimal `db:"tax_rate_percent"`
	TaxAmount      decimal.Decimal `db:"tax_amount"`
	Total          decimal.Decimal `db:"total"`
	Currency       string          `db:"currency"`
	IssuedAt       time.Time       `db:"issued_at"`
	DueAt          time.Time       `db:"due_at"`
	PaidAt         *time.Time      `db:"paid_at"`
	VoidedAt       *time.Time      `db:"voided_at"`
	PeriodStart    time.Time       `db:"period_start"`
	PeriodEnd      time.Time       `db:"period_end"`
	BillToName     string          `db:"bill_to_name"`
	BillToAddress  string          `db:"bill_to_address"`
	TaxRegNo       string          `db:"tax_reg_no"`
	Metadata       []byte          `db:"metadata"`

	types.BaseModel
}

const invoiceColumns = `id, invoice_number, subscription_id, payment_id, invoice_status,
	subtotal, tax_rate_percent, tax_amount, total, currency,
	issued_at, due_at, paid_at, voided_at, period_start, period_end,
	bill_to_name, bill_to_address, tax_reg_no, metadata,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

type lineItemRow struct {
	ID          string          `db:"id"`
	InvoiceID   string          `db:"invoice_id"`
	Description string          `db:"description"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	Amount      decimal.Decimal `db:"amount"`

	types.BaseModel
}

const lineItemColumns = `id, invoice_id, description, quantity, unit_price, amount,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

func invoiceToRow(inv *invoice.Invoice) (*invoiceRow, error) {
	metadata, err := marshalJSON(inv.Metadata)
	if err != nil {
		return nil, err
	}
	return &invoiceRow{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		SubscriptionID: inv.SubscriptionID,
		PaymentID:      inv.PaymentID,
		InvoiceStatus:  inv.InvoiceStatus.String(),
		Subtotal:       inv.Subtotal,
		TaxRatePercent: inv.TaxRatePercent,
		TaxAmount:      inv.TaxAmount,
		Total:          inv.Total,
		Currency:       inv.Currency,
		IssuedAt:       inv.IssuedAt,
		DueAt:          inv.DueAt,
		PaidAt:         inv.PaidAt,
		VoidedAt:       inv.VoidedAt,
		PeriodStart:    inv.PeriodStart,
		PeriodEnd:      inv.PeriodEnd,
		BillToName:     inv.BillToName,
		BillToAddress:  inv.BillToAddress,
		TaxRegNo:       inv.TaxRegNo,
		Metadata:       metadata,
		BaseModel:      inv.BaseModel,
	}, nil
}

func (r *invoiceRow) toDomain() (*invoice.Invoice, error) {
	inv := &invoice.Invoice{
		ID:             r.ID,
		TenantID:       r.TenantID,
		InvoiceNumber:  r.InvoiceNumber,
		SubscriptionID: r.SubscriptionID,
		PaymentID:      r.PaymentID,
		InvoiceStatus:  types.InvoiceStatus(r.InvoiceStatus),
		Subtotal:       r.Subtotal,
		TaxRatePercent: r.TaxRatePercent,
		TaxAmount:      r.TaxAmount,
		Total:          r.Total,
		Currency:       r.Currency,
		IssuedAt:       r.IssuedAt,
		DueAt:          r.DueAt,
		PaidAt:         r.PaidAt,
		VoidedAt:       r.VoidedAt,
		PeriodStart:    r.PeriodStart,
		PeriodEnd:      r.PeriodEnd,
		BillToName:     r.BillToName,
		BillToAddress:  r.BillToAddress,
		TaxRegNo:       r.TaxRegNo,
		BaseModel:      r.BaseModel,
	}
	if err := unmarshalJSON(r.Metadata, &inv.Metadata); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *lineItemRow) toDomain() *invoice.LineItem {
	return &invoice.LineItem{
		ID:          r.ID,
		InvoiceID:   r.InvoiceID,
		Description: r.Description,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		Amount:      r.Amount,
		BaseModel:   r.BaseModel,
	}
}

// CreateWithLineItems inserts the invoice and its line items in one
// transaction.
func (r *invoiceRepository) CreateWithLineItems(ctx context.Context, inv *invoice.Invoice) error {
	return r.client.WithTx(ctx, func(ctx context.Context) error {
		row, err := invoiceToRow(inv)
		if err != nil {
			return err
		}

		_, err = r.client.Querier(ctx).NamedExecContext(ctx, `
			INSERT INTO invoices (`+invoiceColumns+`)
			VALUES (:id, :invoice_number, :subscription_id, :payment_id, :invoice_status,
				:subtotal, :tax_rate_percent, :tax_amount, :total, :currency,
				:issued_at, :due_at, :paid_at, :voided_at, :period_start, :period_end,
				:bill_to_name, :bill_to_address, :tax_reg_no, :metadata,
				:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`,
			row)
		if err != nil {
			return wrapDBError(err, "Failed to create invoice")
		}

		for _, li := range inv.LineItems {
			liRow := &lineItemRow{
				ID:          li.ID,
				InvoiceID:   inv.ID,
				Description: li.Description,
				Quantity:    li.Quantity,
				UnitPrice:   li.UnitPrice,
				Amount:      li.Amount,
				BaseModel:   li.BaseModel,
			}
			_, err = r.client.Querier(ctx).NamedExecContext(ctx, `
				INSERT INTO invoice_line_items (`+lineItemColumns+`)
				VALUES (:id, :invoice_id, :description, :quantity, :unit_price, :amount,
					:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`,
				liRow)
			if err != nil {
				return wrapDBError(err, "Failed to create invoice line item")
			}
		}
		return nil
	})
}

func (r *invoiceRepository) loadLineItems(ctx context.Context, inv *invoice.Invoice) error {
	var rows []lineItemRow
	err := r.client.Querier(ctx).SelectContext(ctx, &rows, `
		SELECT `+lineItemColumns+` FROM invoice_line_items
		WHERE invoice_id = $1 AND status != 'deleted'
		ORDER BY created_at`, inv.ID)
	if err != nil {
		return wrapDBError(err, "Failed to load invoice line items")
	}
	inv.LineItems = make([]*invoice.LineItem, 0, len(rows))
	for i := range rows {
		inv.LineItems = append(inv.LineItems, rows[i].toDomain())
	}
	return nil
}

func (r *invoiceRepository) getOne(ctx context.Context, where string, arg interface{}, hint string) (*invoice.Invoice, error) {
	var row invoiceRow
	err := r.client.Querier(ctx).GetContext(ctx, &row, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE `+where+` AND status != 'deleted'`, arg)
	if err != nil {
		return nil, wrapDBError(err, hint)
	}
	inv, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	if err := r.loadLineItems(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.getOne(ctx, "id = $1", id, "Invoice not found")
}

func (r *invoiceRepository) GetByNumber(ctx context.Context, invoiceNumber string) (*invoice.Invoice, error) {
	return r.getOne(ctx, "invoice_number = $1", invoiceNumber, "Invoice not found")
}

func (r *invoiceRepository) GetByPaymentID(ctx context.Context, paymentID string) (*invoice.Invoice, error) {
	return r.getOne(ctx, "payment_id = $1", paymentID, "Invoice not found for payment")
}

func buildInvoiceFilter(filter *types.InvoiceFilter) (string, []interface{}) {
	clauses := []string{`status != 'deleted'`}
	args := []interface{}{}

	if filter == nil {
		return strings.Join(clauses, " AND "), args
	}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TenantID != "" {
		clauses = append(clauses, "tenant_id = "+arg(filter.TenantID))
	}
	if filter.SubscriptionID != "" {
		clauses = append(clauses, "subscription_id = "+arg(filter.SubscriptionID))
	}
	if len(filter.Statuses) > 0 {
		statuses := lo.Map(filter.Statuses, func(s types.InvoiceStatus, _ int) string {
			return s.String()
		})
		clauses = append(clauses, "invoice_status = ANY("+arg(pqStringArray(statuses))+")")
	}
	if filter.DueBefore != nil {
		clauses = append(clauses, "due_at <= "+arg(*filter.DueBefore))
	}

	return strings.Join(clauses, " AND "), args
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	where, args := buildInvoiceFilter(filter)
	query := fmt.Sprintf(`
		SELECT %s FROM invoices
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.GetLimit(), filter.GetOffset())

	var rows []invoiceRow
	if err := r.client.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapDBError(err, "Failed to list invoices")
	}

	invoices := make([]*invoice.Invoice, 0, len(rows))
	for i := range rows {
		inv, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	where, args := buildInvoiceFilter(filter)
	query := "SELECT COUNT(*) FROM invoices WHERE " + where

	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, wrapDBError(err, "Failed to count invoices")
	}
	return count, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	row, err := invoiceToRow(inv)
	if err != nil {
		return err
	}

	result, err := r.client.Querier(ctx).NamedExecContext(ctx, `
		UPDATE invoices SET
			invoice_status = :invoice_status,
			paid_at = :paid_at,
			voided_at = :voided_at,
			metadata = :metadata,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND status != 'deleted'`,
		row)
	if err != nil {
		return wrapDBError(err, "Failed to update invoice")
	}
	return requireRowAffected(result, "Invoice not found")
}

// NextSequence claims the next per-year counter with an upsert, so two
// concurrent generations never share a value.
func (r *invoiceRepository) NextSequence(ctx context.Context, year int) (int64, error) {
	var next int64
	err := r.client.Querier(ctx).GetContext(ctx, &next, `
		INSERT INTO invoice_sequences (year, last_value)
		VALUES ($1, 1)
		ON CONFLICT (year)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`, year)
	if err != nil {
		return 0, wrapDBError(err, "Failed to claim invoice sequence")
	}
	return next, nil
}
