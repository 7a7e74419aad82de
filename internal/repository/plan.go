package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/twelvenexus/oneplan-billing/internal/domain/plan"
	"github.com/twelvenexus/oneplan-billing/internal/logger"
	"github.com/twelvenexus/oneplan-billing/internal/postgres"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type planRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

func NewPlanRepository(params RepositoryParams) plan.Repository {
	return &planRepository{
		client: params.Client,
		logger: params.Logger,
	}
}

type planRow struct {
	ID                 string          `db:"id"`
	Name               string          `db:"name"`
	Description        string          `db:"description"`
	Code               string          `db:"code"`
	BasePrice          decimal.Decimal `db:"base_price"`
	Currency           string          `db:"currency"`
	BillingCyclePrices []byte          `db:"billing_cycle_prices"`
	Features           []byte          `db:"features"`
	Limits             []byte          `db:"limits"`
	TrialDays          int             `db:"trial_days"`
	Active             bool            `db:"active"`
	Popular            bool            `db:"popular"`
	SortOrder          int             `db:"sort_order"`
	Metadata           []byte          `db:"metadata"`

	types.BaseModel
}

const planColumns = `id, name, description, code, base_price, currency,
	billing_cycle_prices, features, limits, trial_days, active, popular,
	sort_order, metadata, tenant_id, status, created_at, updated_at,
	created_by, updated_by`

func planToRow(p *plan.Plan) (*planRow, error) {
	prices, err := marshalJSON(p.BillingCyclePrices)
	if err != nil {
		return nil, err
	}
	features, err := marshalJSON(p.Features)
	if err != nil {
		return nil, err
	}
	limits, err := marshalJSON(p.Limits)
	if err != nil {
		return nil, err
	}
	metadata, err := marshalJSON(p.Metadata)
	if err != nil {
		return nil, err
	}
	return &planRow{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		Code:               p.Code,
		BasePrice:          p.BasePrice,
		Currency:           p.Currency,
		BillingCyclePrices: prices,
		Features:           features,
		Limits:             limits,
		TrialDays:          p.TrialDays,
		Active:             p.Active,
		Popular:            p.Popular,
		SortOrder:          p.SortOrder,
		Metadata:           metadata,
		BaseModel:          p.BaseModel,
	}, nil
}

func (r *planRow) toDomain() (*plan.Plan, error) {
	p := &plan.Plan{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Code:        r.Code,
		BasePrice:   r.BasePrice,
		Currency:    r.Currency,
		TrialDays:   r.TrialDays,
		Active:      r.Active,
		Popular:     r.Popular,
		SortOrder:   r.SortOrder,
		BaseModel:   r.BaseModel,
	}
	if err := unmarshalJSON(r.BillingCyclePrices, &p.BillingCyclePrices); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(r.Features, &p.Features); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(r.Limits, &p.Limits); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(r.Metadata, &p.Metadata); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *planRepository) Create(ctx context.Context, p *plan.Plan) error {
	row, err := planToRow(p)
	if err != nil {
		return err
	}

	_, err = r.client.Querier(ctx).NamedExecContext(ctx, `
		INSERT INTO plans (`+planColumns+`)
		VALUES (:id, :name, :description, :code, :base_price, :currency,
			:billing_cycle_prices, :features, :limits, :trial_days, :active,
			:popular, :sort_order, :metadata, :tenant_id, :status, :created_at,
			:updated_at, :created_by, :updated_by)`,
		row)
	return wrapDBError(err, "Failed to create plan")
}

func (r *planRepository) Get(ctx context.Context, id string) (*plan.Plan, error) {
	var row planRow
	err := r.client.Querier(ctx).GetContext(ctx, &row, `
		SELECT `+planColumns+` FROM plans
		WHERE id = $1 AND status != 'deleted'`, id)
	if err != nil {
		return nil, wrapDBError(err, "Plan not found")
	}
	return row.toDomain()
}

func (r *planRepository) GetByCode(ctx context.Context, code string) (*plan.Plan, error) {
	var row planRow
	err := r.client.Querier(ctx).GetContext(ctx, &row, `
		SELECT `+planColumns+` FROM plans
		WHERE code = $1 AND status != 'deleted'`, code)
	if err != nil {
		return nil, wrapDBError(err, "Plan not found")
	}
	return row.toDomain()
}

func (r *planRepository) List(ctx context.Context, filter *types.PlanFilter) ([]*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE status != 'deleted'`
	args := []interface{}{}
	if filter != nil && filter.ActiveOnly {
		query += ` AND active = true`
	}
	if filter != nil && filter.PopularOnly {
		query += ` AND popular = true`
	}
	query += ` ORDER BY sort_order ASC, created_at DESC LIMIT $1 OFFSET $2`
	args = append(args, filter.GetLimit(), filter.GetOffset())

	var rows []planRow
	if err := r.client.Querier(ctx).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, wrapDBError(err, "Failed to list plans")
	}

	plans := make([]*plan.Plan, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (r *planRepository) Count(ctx context.Context, filter *types.PlanFilter) (int, error) {
	query := `SELECT COUNT(*) FROM plans WHERE status != 'deleted'`
	if filter != nil && filter.ActiveOnly {
		query += ` AND active = true`
	}
	if filter != nil && filter.PopularOnly {
		query += ` AND popular = true`
	}

	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, query); err != nil {
		return 0, wrapDBError(err, "Failed to count plans")
	}
	return count, nil
}

func (r *planRepository) Update(ctx context.Context, p *plan.Plan) error {
	row, err := planToRow(p)
	if err != nil {
		return err
	}

	result, err := r.client.Querier(ctx).NamedExecContext(ctx, `
		UPDATE plans SET
			name = :name,
			description = :description,
			base_price = :base_price,
			currency = :currency,
			billing_cycle_prices = :billing_cycle_prices,
			features = :features,
			limits = :limits,
			trial_days = :trial_days,
			active = :active,
			popular = :popular,
			sort_order = :sort_order,
			metadata = :metadata,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND status != 'deleted'`,
		row)
	if err != nil {
		return wrapDBError(err, "Failed to update plan")
	}
	return requireRowAffected(result, "Plan not found")
}

func (r *planRepository) Delete(ctx context.Context, id string) error {
	result, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE plans SET status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND status != 'deleted'`, id)
	if err != nil {
		return wrapDBError(err, "Failed to delete plan")
	}
	return requireRowAffected(result, "Plan not found")
}
