package domain

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/config"
)

type PricingRules struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
}

func RulesFromConfig(cfg config.CommerceConfig) PricingRules {
	return PricingRules{
		TaxRate:               decimal.NewFromFloat(cfg.TaxRate),
		FreeShippingThreshold: decimal.NewFromFloat(cfg.FreeShippingThreshold),
		FlatShippingFee:       decimal.NewFromFloat(cfg.FlatShippingFee),
	}
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals prices an order. Shipping is free only strictly above the
// threshold; tax is rounded half away from zero to cents.
func ComputeTotals(subtotal decimal.Decimal, rules PricingRules) Totals {
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(rules.TaxRate).Round(2)
	shipping := rules.FlatShippingFee.Round(2)
	if subtotal.GreaterThan(rules.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: decimal.Zero,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}
