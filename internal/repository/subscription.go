package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/domain/subscription"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/postgres"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type subscriptionRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewSubscriptionRepository(params RepositoryParams) subscription.Repository {
	return &subscriptionRepository{
		client: params.Client,
		logger: params.Logger,
	}
}

type subscriptionRow struct {
	ID                 string          `db:"id"`
	PlanID             string          `db:"plan_id"`
	SubscriptionStatus string          `db:"subscription_status"`
	BillingCycle       string          `db:"billing_cycle"`
	Quantity           int             `db:"quantity"`
	Amount             decimal.Decimal `db:"amount"`
	Currency           string          `db:"currency"`
	StartDate          time.Time       `db:"start_date"`
	EndDate            *time.Time      `db:"end_date"`
	CurrentPeriodStart time.Time       `db:"current_period_start"`
	CurrentPeriodEnd   time.Time       `db:"current_period_end"`
	BillingAnchorDay   int             `db:"billing_anchor_day"`
	TrialStart         *time.Time      `db:"trial_start"`
	TrialEnd           *time.Time      `db:"trial_end"`
	AutoRenew          bool            `db:"auto_renew"`
	CancelledAt        *time.Time      `db:"cancelled_at"`
	CancelReason       string          `db:"cancel_reason"`
	PausedAt           *time.Time      `db:"paused_at"`
	Metadata           []byte          `db:"metadata"`

	types.BaseModel
}

const subscriptionColumns = `id, plan_id, subscription_status, billing_cycle,
	quantity, amount, currency, start_date, end_date,
	current_period_start, current_period_end, billing_anchor_day,
	trial_start, trial_end, auto_renew, cancelled_at, cancel_reason, paused_at,
	metadata, tenant_id, status, created_at, updated_at, created_by, updated_by`

func subscriptionToRow(s *subscription.Subscription) (*subscriptionRow, error) {
	metadata, err := marshalJSON(s.Metadata)
	if err != nil {
		return nil, err
	}
	return &subscriptionRow{
		ID:                 s.ID,
		PlanID:             s.PlanID,
		SubscriptionStatus: s.SubscriptionStatus.String(),
		BillingCycle:       s.BillingCycle.String(),
		Quantity:           s.Quantity,
		Amount:             s.Amount,
		Currency:           s.Currency,
		StartDate:          s.StartDate,
		EndDate:            s.EndDate,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		BillingAnchorDay:   s.BillingAnchorDay,
		TrialStart:         s.TrialStart,
		TrialEnd:           s.TrialEnd,
		AutoRenew:          s.AutoRenew,
		CancelledAt:        s.CancelledAt,
		CancelReason:       s.CancelReason,
		PausedAt:           s.PausedAt,
		Metadata:           metadata,
		BaseModel:          s.BaseModel,
	}, nil
}

func (r *subscriptionRow) toDomain() (*subscription.Subscription, error) {
	s := &subscription.Subscription{
		ID:                 r.ID,
		TenantID:           r.TenantID,
		PlanID:             r.PlanID,
		SubscriptionStatus: types.SubscriptionStatus(r.SubscriptionStatus),
		BillingCycle:       types.BillingCycle(r.BillingCycle),
		Quantity:           r.Quantity,
		Amount:             r.Amount,
		Currency:           r.Currency,
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		CurrentPeriodStart: r.CurrentPeriodStart,
		CurrentPeriodEnd:   r.CurrentPeriodEnd,
		BillingAnchorDay:   r.BillingAnchorDay,
		TrialStart:         r.TrialStart,
		TrialEnd:           r.TrialEnd,
		AutoRenew:          r.AutoRenew,
		CancelledAt:        r.CancelledAt,
		CancelReason:       r.CancelReason,
		PausedAt:           r.PausedAt,
		BaseModel:          r.BaseModel,
	}
	if err := unmarshalJSON(r.Metadata, &s.Metadata); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	row, err := subscriptionToRow(s)
	if err != nil {
		return err
	}

	_, err = r.client.Querier(ctx).NamedExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (:id, :plan_id, :subscription_status, :billing_cycle,
			:quantity, :amount, :currency, :start_date, :end_date,
			:current_period_start, :current_period_end, :billing_anchor_day,
			:trial_start, :trial_end, :auto_renew, :cancelled_at, :cancel_reason, :paused_at,
			:metadata, :tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`,
		row)
	return wrapDBError(err, "Failed to create subscription")
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	var row subscriptionRow
	err := r.client.Querier(ctx).GetContext(ctx, &row, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE id = $1 AND status != 'deleted'`, id)
	if err != nil {
		return nil, wrapDBError(err, "Subscription not found")
	}
	return row.toDomain()
}

func (r *subscriptionRepository) GetActiveByTenant(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	var row subscriptionRow
	err := r.client.Querier(ctx).GetContext(ctx, &row, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE tenant_id = $1
		  AND subscription_status IN ('ACTIVE', 'TRIALING')
		  AND status != 'deleted'
		ORDER BY created_at DESC
		LIMIT 1`, tenantID)
	if err != nil {
		return nil, wrapDBError(err, "No active subscription for tenant")
	}
	return row.toDomain()
}

func buildSubscriptionFilter(filter *types.SubscriptionFilter) (string, []interface{}) {
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
	if filter.PlanID != "" {
		clauses = append(clauses, "plan_id = "+arg(filter.PlanID))
	}
	if len(filter.Statuses) > 0 {
		statuses := lo.Map(filter.Statuses, func(s types.SubscriptionStatus, _ int) string {
			return s.String()
		})
		clauses = append(clauses, "subscription_status = ANY("+arg(pqStringArray(statuses))+")")
	}
	if filter.RenewBefore != nil {
		clauses = append(clauses, "auto_renew = true")
		clauses = append(clauses, "current_period_end <= "+arg(*filter.RenewBefore))
	}
	if filter.TrialEndedBefore != nil {
		clauses = append(clauses, "trial_end <= "+arg(*filter.TrialEndedBefore))
	}
	if filter.EndedBefore != nil {
		clauses = append(clauses, "end_date IS NOT NULL")
		clauses = append(clauses, "end_date <= "+arg(*filter.EndedBefore))
	}
	if filter.AutoRenew != nil {
		clauses = append(clauses, "auto_renew = "+arg(*filter.AutoRenew))
	}

	return strings.Join(clauses, " AND "), args
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	where, args := buildSubscriptionFilter(filter)
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		subscriptionColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.GetLimit(), filter.GetOffset())

	var rows []subscriptionRow
	if err := r.client.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapDBError(err, "Failed to list subscriptions")
	}

	subs := make([]*subscription.Subscription, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (r *subscriptionRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	where, args := buildSubscriptionFilter(filter)
	query := "SELECT COUNT(*) FROM subscriptions WHERE " + where

	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, wrapDBError(err, "Failed to count subscriptions")
	}
	return count, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	row, err := subscriptionToRow(s)
	if err != nil {
		return err
	}

	result, err := r.client.Querier(ctx).NamedExecContext(ctx, `
		UPDATE subscriptions SET
			plan_id = :plan_id,
			subscription_status = :subscription_status,
			billing_cycle = :billing_cycle,
			quantity = :quantity,
			amount = :amount,
			currency = :currency,
			end_date = :end_date,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			billing_anchor_day = :billing_anchor_day,
			trial_start = :trial_start,
			trial_end = :trial_end,
			auto_renew = :auto_renew,
			cancelled_at = :cancelled_at,
			cancel_reason = :cancel_reason,
			paused_at = :paused_at,
			metadata = :metadata,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND status != 'deleted'`,
		row)
	if err != nil {
		return wrapDBError(err, "Failed to update subscription")
	}
	return requireRowAffected(result, "Subscription not found")
}

func (r *subscriptionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE subscriptions SET status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND status != 'deleted'`, id)
	if err != nil {
		return wrapDBError(err, "Failed to delete subscription")
	}
	return requireRowAffected(result, "Subscription not found")
}
