package dto

import (
	"github.com/twelvenexus/oneplan-billing/internal/domain/invoice"
	"github.com/twelvenexus/oneplan-billing/internal/types"
)

type InvoiceResponse struct {
	*invoice.Invoice
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{Invoice: inv}
}

type ListInvoicesResponse struct {
	Items      []*InvoiceResponse       `json:"items"`
	Pagination types.PaginationResponse `json:"pagination"`
}

type GenerateInvoiceRequest struct {
	SubscriptionID string `json:"subscription_id" validate:"required"`
}

type VoidInvoiceRequest struct {
	Reason string `json:"reason" validate:"required"`
}
