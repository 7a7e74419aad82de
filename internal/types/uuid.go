package types

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	UUID_PREFIX_PLAN              = "plan"
	UUID_PREFIX_SUBSCRIPTION      = "subs"
	UUID_PREFIX_PAYMENT           = "pay"
	UUID_PREFIX_PAYMENT_METHOD    = "pm"
	UUID_PREFIX_INVOICE           = "inv"
	UUID_PREFIX_INVOICE_LINE_ITEM = "inv_line"
	UUID_PREFIX_WEBHOOK_EVENT     = "whe"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex pay_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

// GenerateGatewayOrderReference returns the merchant-side reference sent
// to payment gateways when creating an order.
func GenerateGatewayOrderReference() string {
	return fmt.Sprintf("ORD_%s", strings.ToUpper(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()))
}
