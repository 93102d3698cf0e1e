package payment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// METHOD - Behavior per payment model
// =============================================================================

// Method is the rule set of one payment model. There are exactly three
// implementations, one per Kind, obtained through MethodFor.
//
// Two kinds of checks live here and must not be confused:
//   - Validate: structural correctness. Failing blocks the configuration.
//   - RateWarning / PaymentWarning: business sanity. Advisory only.
type Method interface {
	Kind() Kind

	// Validate returns nil or a *ConfigurationError.
	Validate(cfg Configuration) error
	IsValid(cfg Configuration) bool

	// CalculatePayment computes the driver's pay for one load.
	CalculatePayment(cfg Configuration, grossAmount, miles decimal.Decimal) decimal.Decimal

	// IsReasonablePayment and PaymentWarning judge a computed payment.
	// An empty warning means none.
	IsReasonablePayment(amount, miles decimal.Decimal) bool
	PaymentWarning(amount, miles decimal.Decimal) string

	// RateWarning judges the configuration's parameters against typical
	// business ranges. An empty warning means none.
	RateWarning(cfg Configuration) string

	// RequiresZipCodes is true when miles must be derived from origin and
	// destination upstream.
	RequiresZipCodes() bool
	RequiresGrossAmount() bool
}

// MethodFor returns the Method for k. It panics on a kind outside the closed
// set: configurations only enter the system through ParseKind or the
// constructors, so an unknown kind here is a defect.
func MethodFor(k Kind) Method {
	switch k {
	case KindPercentage:
		return percentageMethod{}
	case KindFlatRate:
		return flatRateMethod{}
	case KindPerMile:
		return perMileMethod{}
	default:
		panic(unreachableKind(k))
	}
}

var (
	hundred = decimal.NewFromInt(100)

	percentSumTolerance = decimal.RequireFromString("0.01")

	maxFlatRate    = decimal.NewFromInt(10000)
	maxPerMileRate = decimal.NewFromInt(10)

	// Configuration rate sanity
	typicalDriverPercentMin = decimal.NewFromInt(50)
	typicalDriverPercentMax = decimal.NewFromInt(90)
	typicalFlatRateMin      = decimal.NewFromInt(100)
	typicalFlatRateMax      = decimal.NewFromInt(5000)
	typicalPerMileMin       = decimal.RequireFromString("0.50")
	typicalPerMileMax       = decimal.RequireFromString("5.00")

	// Computed payment sanity
	percentagePaymentMax     = decimal.NewFromInt(50000)
	percentagePaymentHigh    = decimal.NewFromInt(25000)
	percentagePaymentLow     = decimal.NewFromInt(50)
	flatRatePaymentMin       = decimal.NewFromInt(50)
	flatRatePaymentMax       = decimal.NewFromInt(10000)
	perMilePaymentMaxPerMile = decimal.NewFromInt(10)
)

func money(d decimal.Decimal) string { return "$" + d.StringFixed(2) }

func percent(d decimal.Decimal) string { return d.StringFixed(2) + "%" }

func between(v, lo, hi decimal.Decimal) bool {
	return v.GreaterThanOrEqual(lo) && v.LessThanOrEqual(hi)
}

// =============================================================================
// PERCENTAGE
// =============================================================================

type percentageMethod struct{}

func (percentageMethod) Kind() Kind { return KindPercentage }

func (m percentageMethod) Validate(cfg Configuration) error {
	parts := []struct {
		field string
		label string
		value decimal.Decimal
	}{
		{"driver_percent", "Driver", cfg.DriverPercent},
		{"company_percent", "Company", cfg.CompanyPercent},
		{"service_fee_percent", "Service fee", cfg.ServiceFeePercent},
	}
	for _, p := range parts {
		if !between(p.value, decimal.Zero, hundred) {
			return invalid(KindPercentage, p.field,
				"%s percentage must be between 0%% and 100%%. Current value: %s", p.label, percent(p.value))
		}
	}

	total := cfg.DriverPercent.Add(cfg.CompanyPercent).Add(cfg.ServiceFeePercent)
	if total.Sub(hundred).Abs().GreaterThan(percentSumTolerance) {
		return invalid(KindPercentage, "total_percent",
			"Percentages must sum to 100%%. Current total: %s", percent(total))
	}
	return nil
}

func (m percentageMethod) IsValid(cfg Configuration) bool { return m.Validate(cfg) == nil }

func (percentageMethod) CalculatePayment(cfg Configuration, grossAmount, _ decimal.Decimal) decimal.Decimal {
	return grossAmount.Mul(cfg.DriverPercent).Div(hundred)
}

func (percentageMethod) IsReasonablePayment(amount, _ decimal.Decimal) bool {
	return between(amount, decimal.Zero, percentagePaymentMax)
}

func (percentageMethod) PaymentWarning(amount, _ decimal.Decimal) string {
	switch {
	case amount.GreaterThan(percentagePaymentHigh):
		return fmt.Sprintf("Payment of %s is unusually high for a percentage load (over %s)",
			money(amount), money(percentagePaymentHigh))
	case amount.IsPositive() && amount.LessThan(percentagePaymentLow):
		return fmt.Sprintf("Payment of %s is unusually low for a percentage load (under %s)",
			money(amount), money(percentagePaymentLow))
	}
	return ""
}

func (percentageMethod) RateWarning(cfg Configuration) string {
	if !between(cfg.DriverPercent, typicalDriverPercentMin, typicalDriverPercentMax) {
		return fmt.Sprintf("Driver percentage of %s is outside the typical range of %s-%s",
			percent(cfg.DriverPercent), percent(typicalDriverPercentMin), percent(typicalDriverPercentMax))
	}
	return ""
}

func (percentageMethod) RequiresZipCodes() bool    { return false }
func (percentageMethod) RequiresGrossAmount() bool { return true }

// =============================================================================
// FLAT RATE
// =============================================================================

type flatRateMethod struct{}

func (flatRateMethod) Kind() Kind { return KindFlatRate }

func (flatRateMethod) Validate(cfg Configuration) error {
	amount := cfg.FlatRateAmount
	if !amount.IsPositive() {
		return invalid(KindFlatRate, "flat_rate_amount",
			"Flat rate amount must be greater than $0.00. Current value: %s", money(amount))
	}
	if amount.GreaterThan(maxFlatRate) {
		return invalid(KindFlatRate, "flat_rate_amount",
			"Flat rate amount must not exceed %s. Current value: %s", money(maxFlatRate), money(amount))
	}
	return nil
}

func (m flatRateMethod) IsValid(cfg Configuration) bool { return m.Validate(cfg) == nil }

func (flatRateMethod) CalculatePayment(cfg Configuration, _, _ decimal.Decimal) decimal.Decimal {
	return cfg.FlatRateAmount
}

func (flatRateMethod) IsReasonablePayment(amount, _ decimal.Decimal) bool {
	return between(amount, flatRatePaymentMin, flatRatePaymentMax)
}

func (flatRateMethod) PaymentWarning(amount, _ decimal.Decimal) string {
	switch {
	case amount.GreaterThan(typicalFlatRateMax):
		return fmt.Sprintf("Flat rate payment of %s is unusually high (over %s)",
			money(amount), money(typicalFlatRateMax))
	case amount.LessThan(typicalFlatRateMin):
		return fmt.Sprintf("Flat rate payment of %s is unusually low (under %s)",
			money(amount), money(typicalFlatRateMin))
	}
	return ""
}

func (flatRateMethod) RateWarning(cfg Configuration) string {
	if !between(cfg.FlatRateAmount, typicalFlatRateMin, typicalFlatRateMax) {
		return fmt.Sprintf("Flat rate of %s is outside the typical range of %s-%s",
			money(cfg.FlatRateAmount), money(typicalFlatRateMin), money(typicalFlatRateMax))
	}
	return ""
}

func (flatRateMethod) RequiresZipCodes() bool    { return false }
func (flatRateMethod) RequiresGrossAmount() bool { return false }

// =============================================================================
// PER MILE
// =============================================================================

type perMileMethod struct{}

func (perMileMethod) Kind() Kind { return KindPerMile }

func (perMileMethod) Validate(cfg Configuration) error {
	rate := cfg.PerMileRate
	if !rate.IsPositive() {
		return invalid(KindPerMile, "per_mile_rate",
			"Per-mile rate must be greater than $0.00. Current value: %s", money(rate))
	}
	if rate.GreaterThan(maxPerMileRate) {
		return invalid(KindPerMile, "per_mile_rate",
			"Per-mile rate must not exceed %s. Current value: %s", money(maxPerMileRate), money(rate))
	}
	return nil
}

func (m perMileMethod) IsValid(cfg Configuration) bool { return m.Validate(cfg) == nil }

func (perMileMethod) CalculatePayment(cfg Configuration, _, miles decimal.Decimal) decimal.Decimal {
	return miles.Mul(cfg.PerMileRate)
}

func (perMileMethod) IsReasonablePayment(amount, miles decimal.Decimal) bool {
	if !miles.IsPositive() {
		return false
	}
	return between(amount, decimal.Zero, miles.Mul(perMilePaymentMaxPerMile))
}

func (perMileMethod) PaymentWarning(amount, miles decimal.Decimal) string {
	if !miles.IsPositive() {
		return fmt.Sprintf("Per-mile payment needs a positive mileage. Current miles: %s", miles.String())
	}
	rate := amount.Div(miles)
	switch {
	case rate.GreaterThan(typicalPerMileMax):
		return fmt.Sprintf("Effective rate of %s/mile is unusually high (over %s/mile)",
			money(rate), money(typicalPerMileMax))
	case rate.LessThan(typicalPerMileMin):
		return fmt.Sprintf("Effective rate of %s/mile is unusually low (under %s/mile)",
			money(rate), money(typicalPerMileMin))
	}
	return ""
}

func (perMileMethod) RateWarning(cfg Configuration) string {
	if !between(cfg.PerMileRate, typicalPerMileMin, typicalPerMileMax) {
		return fmt.Sprintf("Per-mile rate of %s is outside the typical range of %s-%s",
			money(cfg.PerMileRate), money(typicalPerMileMin), money(typicalPerMileMax))
	}
	return ""
}

func (perMileMethod) RequiresZipCodes() bool    { return true }
func (perMileMethod) RequiresGrossAmount() bool { return false }

// Compile-time checks
var (
	_ Method = percentageMethod{}
	_ Method = flatRateMethod{}
	_ Method = perMileMethod{}
)
