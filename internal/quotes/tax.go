package quotes

import "math"

// Québec sales-tax parameters (2024 rates).
const (
	DefaultFederalRate    = 5.0   // TPS
	DefaultProvincialRate = 9.975 // TVQ

	// Partial TPS rebate for residential construction sold to individuals.
	federalRebateShare = 0.36

	// TVQ new-home rebate: 50% of the tax, capped at $6,300 once the
	// pre-tax amount reaches the threshold.
	provincialRebateShare     = 0.5
	provincialRebateCap       = 6300.0
	provincialRebateThreshold = 225000.0
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// normalize fills the unset fields of a TaxConfig with the defaults
// used throughout the quote module. Nil rates take the Québec defaults;
// an explicit zero survives (tax-exempt quote).
func (c TaxConfig) normalize() TaxConfig {
	if c.FederalRate == nil {
		rate := DefaultFederalRate
		c.FederalRate = &rate
	}
	if c.ProvincialRate == nil {
		rate := DefaultProvincialRate
		c.ProvincialRate = &rate
	}
	if c.ClientType == "" {
		c.ClientType = ClientTypeIndividual
	}
	if c.Sector == "" {
		c.Sector = SectorResidential
	}
	if c.Currency == "" {
		c.Currency = "CAD"
	}
	if c.ValidityDays == 0 {
		c.ValidityDays = 30
	}
	return c
}

func rebateEligible(cfg TaxConfig) bool {
	return cfg.ClientType == ClientTypeIndividual && cfg.Sector == SectorResidential
}

// ComputeTotals derives the financial summary of a quote from its lines
// and tax configuration. When the quote has no lines the configured
// estimated price stands in for the subtotal. Only the federal rebate
// applies here; the provincial new-home rebate is a separate filing and
// is exposed through ConstructionTaxes. Intermediate values keep full
// precision; rounding happens once, at the return.
func ComputeTotals(lines []QuoteLine, cfg TaxConfig) Totals {
	cfg = cfg.normalize()

	var subtotal float64
	for _, line := range lines {
		subtotal += line.Amount()
	}
	if subtotal == 0 && cfg.EstimatedPrice > 0 {
		subtotal = cfg.EstimatedPrice
	}

	federal := subtotal * (*cfg.FederalRate / 100)
	provincial := subtotal * (*cfg.ProvincialRate / 100)

	var federalRebate float64
	if rebateEligible(cfg) {
		federalRebate = federal * federalRebateShare
	}

	netFederal := federal - federalRebate
	totalTaxes := netFederal + provincial

	// Grand total is the sum of the rounded components so that
	// subtotal + total_taxes == grand_total holds exactly on the output.
	return Totals{
		Subtotal:         round2(subtotal),
		FederalRate:      *cfg.FederalRate,
		FederalTax:       round2(federal),
		FederalRebate:    round2(federalRebate),
		NetFederal:       round2(netFederal),
		ProvincialRate:   *cfg.ProvincialRate,
		ProvincialTax:    round2(provincial),
		ProvincialRebate: 0,
		NetProvincial:    round2(provincial),
		TotalTaxes:       round2(totalTaxes),
		GrandTotal:       round2(round2(subtotal) + round2(totalTaxes)),
		TaxSavings:       round2(federalRebate),
		ClientType:       cfg.ClientType,
		Sector:           cfg.Sector,
	}
}

// ConstructionTaxes computes the full Québec construction-tax picture
// for a pre-tax amount, including the capped provincial new-home rebate.
// Used for what-if reporting; quote totals themselves come from
// ComputeTotals.
func ConstructionTaxes(subtotal float64, clientType ClientType, sector Sector) Totals {
	cfg := TaxConfig{ClientType: clientType, Sector: sector}.normalize()

	federal := subtotal * (*cfg.FederalRate / 100)
	provincial := subtotal * (*cfg.ProvincialRate / 100)

	var federalRebate, provincialRebate float64
	if rebateEligible(cfg) {
		federalRebate = federal * federalRebateShare
		if subtotal >= provincialRebateThreshold {
			provincialRebate = math.Min(provincial*provincialRebateShare, provincialRebateCap)
		} else {
			provincialRebate = provincial * provincialRebateShare
		}
	}

	netFederal := federal - federalRebate
	netProvincial := provincial - provincialRebate
	totalTaxes := netFederal + netProvincial

	return Totals{
		Subtotal:         round2(subtotal),
		FederalRate:      *cfg.FederalRate,
		FederalTax:       round2(federal),
		FederalRebate:    round2(federalRebate),
		NetFederal:       round2(netFederal),
		ProvincialRate:   *cfg.ProvincialRate,
		ProvincialTax:    round2(provincial),
		ProvincialRebate: round2(provincialRebate),
		NetProvincial:    round2(netProvincial),
		TotalTaxes:       round2(totalTaxes),
		GrandTotal:       round2(round2(subtotal) + round2(totalTaxes)),
		TaxSavings:       round2(federalRebate + provincialRebate),
		ClientType:       cfg.ClientType,
		Sector:           cfg.Sector,
	}
}
