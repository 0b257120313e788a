/*
Deterministic link rules.

PURPOSE:
  Declares the ordered rule chain of every record kind. Order is part of the
  contract: later rules read links that earlier rules wrote. Each rule is a
  guarded bulk fill, so running a chain twice changes nothing the second time
  and a chain can never un-resolve or re-resolve a link.

CHAIN SHAPE:
  Forever    marking -> customer -> shipment (strict, then relaxed) ->
             shipment backlink -> country
  IpHandlers marking -> customer -> shipment -> shipment backlink
  Sales      marking -> customer -> shipment via forever -> expense links ->
             country -> markup -> prices -> daily rate -> totals
  Shipments  marking -> customer
  Markings   customer by exact name
*/
package reconcile

import "context"

// Rule is one named guarded fill. Apply returns the number of rows changed.
type Rule struct {
	Name  string
	Apply func(ctx context.Context, s RuleStore) (int64, error)
}

// =============================================================================
// SALE PRICING TABLES
// =============================================================================

// PriceColumn selects which sale price field a pricing rule fills.
type PriceColumn string

const (
	PriceKg     PriceColumn = "sale_price_kg"
	PricePallet PriceColumn = "sale_price_pallet"
	PriceTroll  PriceColumn = "sale_price_troll"
)

// RateCardPrice selects which customer rate-card column feeds the price.
type RateCardPrice string

const (
	RateConsKg     RateCardPrice = "customer_cons_kg"
	RateEqKg       RateCardPrice = "customer_eq_kg"
	RateKenKg      RateCardPrice = "customer_ken_kg"
	RateColKg      RateCardPrice = "customer_col_kg"
	RateIsrKg      RateCardPrice = "customer_isr_kg"
	RateIsrPallet  RateCardPrice = "customer_isr_pallet"
	RateHollPallet RateCardPrice = "customer_holl_pallet"
	RateTroll      RateCardPrice = "customer_troll"
)

// SalePriceRule matches sales on a service-type substring and an exact
// country code and copies one rate-card column into one price column.
type SalePriceRule struct {
	Name         string
	TypeContains string
	Country      string
	Column       PriceColumn
	Source       RateCardPrice
}

// SalePriceRules is the declared pricing table. Substrings are the stems the
// operators use in the free-text sale type ("консолидат" consolidation,
// "срезка" cut flowers, "телег" trolleys, "весу" by weight, "объему" by
// volume); countries are the exact codes the shipment sheets carry.
var SalePriceRules = []SalePriceRule{
	{Name: "price consolidation ecuador", TypeContains: "консолидат", Country: "ec", Column: PriceKg, Source: RateConsKg},
	{Name: "price cut denmark", TypeContains: "срезка", Country: "den", Column: PricePallet, Source: RateHollPallet},
	{Name: "price trolleys denmark", TypeContains: "телег", Country: "den", Column: PriceTroll, Source: RateTroll},
	{Name: "price cut ecuador", TypeContains: "срезка", Country: "ec", Column: PriceKg, Source: RateEqKg},
	{Name: "price cut colombia", TypeContains: "срезка", Country: "co", Column: PriceKg, Source: RateColKg},
	{Name: "price cut kenya", TypeContains: "срезка", Country: "ke", Column: PriceKg, Source: RateKenKg},
	{Name: "price cut holland", TypeContains: "срезка", Country: "nl", Column: PricePallet, Source: RateHollPallet},
	{Name: "price trolleys holland", TypeContains: "телег", Country: "nl", Column: PriceTroll, Source: RateTroll},
	{Name: "price by weight israel", TypeContains: "весу", Country: "il", Column: PriceKg, Source: RateIsrKg},
	{Name: "price by volume israel", TypeContains: "объему", Country: "il", Column: PricePallet, Source: RateIsrPallet},
}

// SaleUnit selects which quantity a total is computed from, matching which
// price column the pricing rules managed to fill.
type SaleUnit int

const (
	UnitWeight SaleUnit = iota // weight * price_kg
	UnitVolume                 // volume * price_pallet
	UnitBox                    // full_box * price_troll
)

// =============================================================================
// CHAINS
// =============================================================================

var foreverChain = []Rule{
	{Name: "customer from marking", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillForeverCustomerFromMarking(ctx)
	}},
	{Name: "customer display name", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillForeverCustomerName(ctx)
	}},
	{Name: "shipment by awb, box and marking", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillForeverShipment(ctx, true)
	}},
	{Name: "shipment by awb and marking", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillForeverShipment(ctx, false)
	}},
	{Name: "shipment backlink", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillShipmentForeverBacklink(ctx)
	}},
	{Name: "country from shipment", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillForeverCountry(ctx)
	}},
}

var iphandlersChain = []Rule{
	{Name: "customer from marking", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillIphandlersCustomerFromMarking(ctx)
	}},
	{Name: "customer display name", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillIphandlersCustomerName(ctx)
	}},
	{Name: "shipment by awb and marking", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillIphandlersShipment(ctx)
	}},
	{Name: "shipment backlink", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillShipmentIphandlersBacklink(ctx)
	}},
}

func salesChain() []Rule {
	chain := []Rule{
		{Name: "customer from marking", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSaleCustomerFromMarking(ctx)
		}},
		{Name: "customer display name", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSaleCustomerName(ctx)
		}},
		{Name: "shipment via forever expense", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSaleShipmentFromForever(ctx)
		}},
		{Name: "forever expense link", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSaleExpenseForever(ctx)
		}},
		{Name: "iphandlers expense link", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSaleExpenseIphandlers(ctx)
		}},
		{Name: "country from shipment", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSaleCountry(ctx)
		}},
		{Name: "usd markup", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSaleCurrencyMarkup(ctx, CurrencyUSD)
		}},
		{Name: "eur markup", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSaleCurrencyMarkup(ctx, CurrencyEUR)
		}},
	}
	for _, pr := range SalePriceRules {
		pr := pr
		chain = append(chain, Rule{Name: pr.Name, Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSalePrice(ctx, pr)
		}})
	}
	chain = append(chain,
		Rule{Name: "usd daily rate", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSaleCurrencyRate(ctx, CurrencyUSD)
		}},
		Rule{Name: "eur daily rate", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
			return s.FillSaleCurrencyRate(ctx, CurrencyEUR)
		}},
	)
	for _, currency := range []string{CurrencyUSD, CurrencyEUR} {
		for _, unit := range []SaleUnit{UnitWeight, UnitVolume, UnitBox} {
			currency, unit := currency, unit
			chain = append(chain, Rule{
				Name: "total " + currency + " " + unitName(unit),
				Apply: func(ctx context.Context, s RuleStore) (int64, error) {
					return s.FillSaleTotal(ctx, currency, unit)
				},
			})
		}
	}
	return chain
}

var shipmentsChain = []Rule{
	{Name: "customer from marking", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillShipmentCustomerFromMarking(ctx)
	}},
}

var markingsChain = []Rule{
	{Name: "customer by exact name", Apply: func(ctx context.Context, s RuleStore) (int64, error) {
		return s.FillMarkingCustomer(ctx)
	}},
}

// ChainFor returns the rule chain of a kind, in its declared order.
func ChainFor(kind RecordKind) ([]Rule, error) {
	switch kind {
	case KindExpenseForever:
		return foreverChain, nil
	case KindExpenseIphandlers:
		return iphandlersChain, nil
	case KindSale:
		return salesChain(), nil
	case KindShipment:
		return shipmentsChain, nil
	case KindMarking:
		return markingsChain, nil
	default:
		return nil, ErrUnknownKind
	}
}

// RunChain applies each rule of a kind's chain in order and returns the
// per-rule row counts.
func RunChain(ctx context.Context, s RuleStore, kind RecordKind) (map[string]int64, error) {
	chain, err := ChainFor(kind)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(chain))
	for _, rule := range chain {
		n, err := rule.Apply(ctx, s)
		if err != nil {
			return counts, &RuleError{Kind: kind, Rule: rule.Name, Err: err}
		}
		counts[rule.Name] += n
	}
	return counts, nil
}

func unitName(u SaleUnit) string {
	switch u {
	case UnitWeight:
		return "by weight"
	case UnitVolume:
		return "by volume"
	default:
		return "by box"
	}
}
