package tenant

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// PlanCode identifies a subscription plan
type PlanCode string

const (
	PlanFree       PlanCode = "free"
	PlanBasic      PlanCode = "basic"
	PlanPro        PlanCode = "pro"
	PlanEnterprise PlanCode = "enterprise"
)

// Unlimited marks a plan limit with no ceiling
const Unlimited int64 = -1

const (
	mb = int64(1) << 20
	gb = int64(1) << 30
)

// Plan describes what a tenant pays and what it gets
type Plan struct {
	Code                PlanCode                   `json:"code"`
	Name                string                     `json:"name"`
	Prices              map[string]decimal.Decimal `json:"prices"`
	MaxStorageBytes     int64                      `json:"max_storage_bytes"`
	MaxProducts         int64                      `json:"max_products"`
	MaxInvoicesPerMonth int64                      `json:"max_invoices_per_month"`
	SortOrder           int                        `json:"sort_order"`
}

var plans = map[PlanCode]Plan{
	PlanFree: {
		Code: PlanFree, Name: "Free",
		Prices:          map[string]decimal.Decimal{"USD": decimal.Zero, "PEN": decimal.Zero, "ARS": decimal.Zero},
		MaxStorageBytes: 100 * mb, MaxProducts: 25, MaxInvoicesPerMonth: 20,
		SortOrder: 0,
	},
	PlanBasic: {
		Code: PlanBasic, Name: "Basic",
		Prices: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(29),
			"PEN": decimal.NewFromInt(109),
			"ARS": decimal.NewFromInt(29000),
		},
		MaxStorageBytes: 1 * gb, MaxProducts: 500, MaxInvoicesPerMonth: 200,
		SortOrder: 1,
	},
	PlanPro: {
		Code: PlanPro, Name: "Pro",
		Prices: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(79),
			"PEN": decimal.NewFromInt(299),
			"ARS": decimal.NewFromInt(79000),
		},
		MaxStorageBytes: 10 * gb, MaxProducts: 5000, MaxInvoicesPerMonth: 2000,
		SortOrder: 2,
	},
	PlanEnterprise: {
		Code: PlanEnterprise, Name: "Enterprise",
		Prices: map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(199),
			"PEN": decimal.NewFromInt(749),
			"ARS": decimal.NewFromInt(199000),
		},
		MaxStorageBytes: 100 * gb, MaxProducts: Unlimited, MaxInvoicesPerMonth: Unlimited,
		SortOrder: 3,
	},
}

// LookupPlan returns the plan for code
func LookupPlan(code PlanCode) (Plan, bool) {
	p, ok := plans[PlanCode(strings.ToLower(string(code)))]
	return p, ok
}

// Plans returns every plan ordered from cheapest to most expensive
func Plans() []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

// PriceFor returns the monthly price in currency
func (p Plan) PriceFor(currency string) (decimal.Decimal, bool) {
	price, ok := p.Prices[strings.ToUpper(currency)]
	return price, ok
}

// IsFree reports whether the plan costs nothing
func (p Plan) IsFree() bool {
	return p.Code == PlanFree
}

// Allows reports whether used+add stays within limit
func Allows(limit, used, add int64) bool {
	if limit == Unlimited {
		return true
	}
	return used+add <= limit
}
