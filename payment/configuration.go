/*
Package payment provides the driver payment models and the rules that go with
them.

PURPOSE:
  A driver is paid for a load under exactly one payment model at a time:
  - Percentage: a share of the load's gross amount
  - Flat rate:  a fixed amount per load
  - Per mile:   a rate multiplied by loaded miles

  This package owns the immutable Configuration value describing one model's
  parameters and the Method engine that validates a configuration, computes a
  payment for a load, and flags payments or rates that look unreasonable.

KEY CONCEPTS IN THIS FILE (configuration.go):
  - Kind: The closed set of payment models
  - Configuration: Parameters for one model (only the fields of its Kind matter)

DESIGN PRINCIPLES:
  1. Closed set: Kind is validated at every boundary (ParseKind), so dispatch
     on an unknown Kind is a defect, not an input error
  2. Precision: decimal.Decimal for every money, percent and rate value
  3. Immutability: Configuration is a value; "changing" pay means recording a
     new configuration in the history ledger

USAGE:
  cfg := payment.NewPercentage(70, 25, 5)
  if err := cfg.Validate(); err != nil { ... }
  pay := cfg.Method().CalculatePayment(cfg, decimal.NewFromInt(1000), decimal.Zero)

SEE ALSO:
  - method.go: Per-kind validation, calculation and warnings
  - errors.go: ConfigurationError
*/
package payment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KIND - Closed set of payment models
// =============================================================================

type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFlatRate   Kind = "flat_rate"
	KindPerMile    Kind = "per_mile"
)

// Kinds returns every payment model in display order.
func Kinds() []Kind {
	return []Kind{KindPercentage, KindFlatRate, KindPerMile}
}

// ParseKind converts an external string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindPercentage, KindFlatRate, KindPerMile:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown payment model %q", ErrUnknownKind, s)
	}
}

func (k Kind) String() string { return string(k) }

// DisplayName is the human label for a kind.
func (k Kind) DisplayName() string {
	switch k {
	case KindPercentage:
		return "Percentage"
	case KindFlatRate:
		return "Flat Rate"
	case KindPerMile:
		return "Per Mile"
	default:
		return string(k)
	}
}

// =============================================================================
// CONFIGURATION - Parameters of one payment model
// =============================================================================

// Configuration describes how a driver is paid. Only the fields belonging to
// Kind are meaningful; the others are carried as zero.
type Configuration struct {
	Kind Kind

	// Percentage
	DriverPercent     decimal.Decimal
	CompanyPercent    decimal.Decimal
	ServiceFeePercent decimal.Decimal

	// Flat rate
	FlatRateAmount decimal.Decimal

	// Per mile
	PerMileRate decimal.Decimal
}

func NewPercentage(driver, company, serviceFee float64) Configuration {
	return Configuration{
		Kind:              KindPercentage,
		DriverPercent:     decimal.NewFromFloat(driver),
		CompanyPercent:    decimal.NewFromFloat(company),
		ServiceFeePercent: decimal.NewFromFloat(serviceFee),
	}
}

func NewFlatRate(amount float64) Configuration {
	return Configuration{Kind: KindFlatRate, FlatRateAmount: decimal.NewFromFloat(amount)}
}

func NewPerMile(rate float64) Configuration {
	return Configuration{Kind: KindPerMile, PerMileRate: decimal.NewFromFloat(rate)}
}

// DefaultConfiguration is assigned to employees ingested without payment fields.
func DefaultConfiguration() Configuration {
	return NewPercentage(70, 30, 0)
}

// Method returns the engine for this configuration's kind.
func (c Configuration) Method() Method { return MethodFor(c.Kind) }

// Validate returns nil or a *ConfigurationError.
func (c Configuration) Validate() error { return c.Method().Validate(c) }

// Equal compares the meaningful fields of two configurations.
func (c Configuration) Equal(other Configuration) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case KindPercentage:
		return c.DriverPercent.Equal(other.DriverPercent) &&
			c.CompanyPercent.Equal(other.CompanyPercent) &&
			c.ServiceFeePercent.Equal(other.ServiceFeePercent)
	case KindFlatRate:
		return c.FlatRateAmount.Equal(other.FlatRateAmount)
	case KindPerMile:
		return c.PerMileRate.Equal(other.PerMileRate)
	default:
		return false
	}
}

// Describe renders a one-line summary, e.g. "$2.00/mile".
func (c Configuration) Describe() string {
	switch c.Kind {
	case KindPercentage:
		return fmt.Sprintf("%s%% driver / %s%% company / %s%% service fee",
			c.DriverPercent.String(), c.CompanyPercent.String(), c.ServiceFeePercent.String())
	case KindFlatRate:
		return fmt.Sprintf("$%s flat", c.FlatRateAmount.StringFixed(2))
	case KindPerMile:
		return fmt.Sprintf("$%s/mile", c.PerMileRate.StringFixed(2))
	default:
		return string(c.Kind)
	}
}

func (c Configuration) String() string { return c.Describe() }
