/*
Package factory converts between JSON and payment configurations.

PURPOSE:
  Payment configurations arrive as JSON from the API and from ingestion
  rows. The factory turns them into payment.Configuration values and back,
  so nothing outside this package needs to know the wire field names.

JSON SCHEMA:
  {"kind": "percentage", "driver_percent": 70, "company_percent": 25, "service_fee_percent": 5}
  {"kind": "flat_rate", "flat_rate_amount": 750}
  {"kind": "per_mile", "per_mile_rate": 2.15}

  Fields that do not belong to the kind are ignored on input and omitted on
  output.

VALIDATION:
  The factory only rejects JSON it cannot read and unknown kinds. Structural
  rules (ranges, percentages summing to 100) are checked by
  Configuration.Validate, so a change request can report them alongside its
  other errors.

USAGE:
  f := NewConfigurationFactory()
  cfg, err := f.ParseConfiguration(`{"kind":"per_mile","per_mile_rate":2}`)

SEE ALSO:
  - payment/configuration.go: Configuration type definition
  - api/dto.go: Request bodies embedding ConfigurationJSON
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/driver-pay/payment"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigurationJSON is the JSON representation of a payment configuration.
type ConfigurationJSON struct {
	Kind              string  `json:"kind"`
	DriverPercent     float64 `json:"driver_percent,omitempty"`
	CompanyPercent    float64 `json:"company_percent,omitempty"`
	ServiceFeePercent float64 `json:"service_fee_percent,omitempty"`
	FlatRateAmount    float64 `json:"flat_rate_amount,omitempty"`
	PerMileRate       float64 `json:"per_mile_rate,omitempty"`

	// Summary is filled on output only.
	Summary string `json:"summary,omitempty"`
}

// =============================================================================
// CONFIGURATION FACTORY
// =============================================================================

type ConfigurationFactory struct{}

func NewConfigurationFactory() *ConfigurationFactory {
	return &ConfigurationFactory{}
}

// ParseConfiguration parses a JSON string into a Configuration.
func (f *ConfigurationFactory) ParseConfiguration(jsonStr string) (payment.Configuration, error) {
	var cj ConfigurationJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return payment.Configuration{}, fmt.Errorf("failed to parse configuration JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts ConfigurationJSON to a Configuration of its kind.
func (f *ConfigurationFactory) FromJSON(cj ConfigurationJSON) (payment.Configuration, error) {
	kind, err := payment.ParseKind(cj.Kind)
	if err != nil {
		return payment.Configuration{}, err
	}

	switch kind {
	case payment.KindPercentage:
		return payment.Configuration{
			Kind:              kind,
			DriverPercent:     decimal.NewFromFloat(cj.DriverPercent),
			CompanyPercent:    decimal.NewFromFloat(cj.CompanyPercent),
			ServiceFeePercent: decimal.NewFromFloat(cj.ServiceFeePercent),
		}, nil
	case payment.KindFlatRate:
		return payment.Configuration{Kind: kind, FlatRateAmount: decimal.NewFromFloat(cj.FlatRateAmount)}, nil
	case payment.KindPerMile:
		return payment.Configuration{Kind: kind, PerMileRate: decimal.NewFromFloat(cj.PerMileRate)}, nil
	}
	return payment.Configuration{}, fmt.Errorf("%w: %q", payment.ErrUnknownKind, cj.Kind)
}

// ToJSON converts a Configuration to ConfigurationJSON.
func (f *ConfigurationFactory) ToJSON(cfg payment.Configuration) ConfigurationJSON {
	cj := ConfigurationJSON{Kind: string(cfg.Kind), Summary: cfg.Describe()}
	switch cfg.Kind {
	case payment.KindPercentage:
		cj.DriverPercent = cfg.DriverPercent.InexactFloat64()
		cj.CompanyPercent = cfg.CompanyPercent.InexactFloat64()
		cj.ServiceFeePercent = cfg.ServiceFeePercent.InexactFloat64()
	case payment.KindFlatRate:
		cj.FlatRateAmount = cfg.FlatRateAmount.InexactFloat64()
	case payment.KindPerMile:
		cj.PerMileRate = cfg.PerMileRate.InexactFloat64()
	}
	return cj
}

// =============================================================================
// PAYMENT METHODS
// =============================================================================

// MethodJSON describes one payment model for pickers and import templates.
type MethodJSON struct {
	Kind                string            `json:"kind"`
	DisplayName         string            `json:"display_name"`
	RequiresGrossAmount bool              `json:"requires_gross_amount"`
	RequiresZipCodes    bool              `json:"requires_zip_codes"`
	Example             ConfigurationJSON `json:"example"`
}

// Methods lists every payment model with a valid example configuration.
func (f *ConfigurationFactory) Methods() []MethodJSON {
	examples := map[payment.Kind]payment.Configuration{
		payment.KindPercentage: payment.DefaultConfiguration(),
		payment.KindFlatRate:   payment.NewFlatRate(750),
		payment.KindPerMile:    payment.NewPerMile(2),
	}

	out := make([]MethodJSON, 0, len(payment.Kinds()))
	for _, k := range payment.Kinds() {
		m := payment.MethodFor(k)
		out = append(out, MethodJSON{
			Kind:                string(k),
			DisplayName:         k.DisplayName(),
			RequiresGrossAmount: m.RequiresGrossAmount(),
			RequiresZipCodes:    m.RequiresZipCodes(),
			Example:             f.ToJSON(examples[k]),
		})
	}
	return out
}
