package payment_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/driver-pay/payment"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// =============================================================================
// STRUCTURAL VALIDATION
// =============================================================================

func TestPercentage_Validate(t *testing.T) {
	tests := []struct {
		name                 string
		driver, company, fee float64
		wantErr              string
	}{
		{"exact 100", 70, 25, 5, ""},
		{"within tolerance below", 70, 29.99, 0, ""},
		{"within tolerance above", 70, 30.01, 0, ""},
		{"just outside tolerance", 70, 29.98, 0, "Percentages must sum to 100%. Current total: 99.98%"},
		{"short", 70, 27.5, 0, "Percentages must sum to 100%. Current total: 97.50%"},
		{"all to driver", 100, 0, 0, ""},
		{"negative company", 100, -10, 10, "Company percentage must be between 0% and 100%. Current value: -10.00%"},
		{"driver over 100", 120, 0, 0, "Driver percentage must be between 0% and 100%. Current value: 120.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := payment.NewPercentage(tt.driver, tt.company, tt.fee)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				assert.True(t, cfg.Method().IsValid(cfg))
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.False(t, cfg.Method().IsValid(cfg))

			var cfgErr *payment.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, payment.KindPercentage, cfgErr.Kind)
			assert.True(t, errors.Is(err, payment.ErrInvalidConfiguration))
		})
	}
}

func TestFlatRate_Validate(t *testing.T) {
	assert.NoError(t, payment.NewFlatRate(750).Validate())
	assert.NoError(t, payment.NewFlatRate(10000).Validate())

	err := payment.NewFlatRate(0).Validate()
	require.Error(t, err)
	assert.Equal(t, "Flat rate amount must be greater than $0.00. Current value: $0.00", err.Error())

	err = payment.NewFlatRate(10000.01).Validate()
	require.Error(t, err)
	assert.Equal(t, "Flat rate amount must not exceed $10000.00. Current value: $10000.01", err.Error())
}

func TestPerMile_Validate(t *testing.T) {
	assert.NoError(t, payment.NewPerMile(2).Validate())
	assert.NoError(t, payment.NewPerMile(10).Validate())

	err := payment.NewPerMile(-1).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greater than $0.00")

	err = payment.NewPerMile(12).Validate()
	require.Error(t, err)
	assert.Equal(t, "Per-mile rate must not exceed $10.00. Current value: $12.00", err.Error())
}

// =============================================================================
// CALCULATION
// =============================================================================

func TestCalculatePayment(t *testing.T) {
	perMile := payment.NewPerMile(2.0)
	assert.True(t, dec(1000).Equal(perMile.Method().CalculatePayment(perMile, dec(123456), dec(500))))

	flat := payment.NewFlatRate(750)
	assert.True(t, dec(750).Equal(flat.Method().CalculatePayment(flat, dec(99999), dec(1234))))
	assert.True(t, dec(750).Equal(flat.Method().CalculatePayment(flat, decimal.Zero, decimal.Zero)))

	pct := payment.NewPercentage(70, 30, 0)
	assert.True(t, dec(700).Equal(pct.Method().CalculatePayment(pct, dec(1000), dec(42))))
}

func TestMethodFor_UnknownKindPanics(t *testing.T) {
	assert.Panics(t, func() { payment.MethodFor(payment.Kind("hourly")) })
}

func TestParseKind(t *testing.T) {
	for _, k := range payment.Kinds() {
		parsed, err := payment.ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := payment.ParseKind("hourly")
	assert.ErrorIs(t, err, payment.ErrUnknownKind)
}

func TestRequirements(t *testing.T) {
	assert.True(t, payment.MethodFor(payment.KindPerMile).RequiresZipCodes())
	assert.False(t, payment.MethodFor(payment.KindPercentage).RequiresZipCodes())
	assert.False(t, payment.MethodFor(payment.KindFlatRate).RequiresZipCodes())

	assert.True(t, payment.MethodFor(payment.KindPercentage).RequiresGrossAmount())
	assert.False(t, payment.MethodFor(payment.KindPerMile).RequiresGrossAmount())
	assert.False(t, payment.MethodFor(payment.KindFlatRate).RequiresGrossAmount())
}

// =============================================================================
// RATE SANITY (configuration)
// =============================================================================

func TestRateWarning(t *testing.T) {
	tests := []struct {
		name string
		cfg  payment.Configuration
		warn bool
	}{
		{"driver 40%", payment.NewPercentage(40, 60, 0), true},
		{"driver 75%", payment.NewPercentage(75, 25, 0), false},
		{"driver 95%", payment.NewPercentage(95, 5, 0), true},
		{"flat 50", payment.NewFlatRate(50), true},
		{"flat 750", payment.NewFlatRate(750), false},
		{"flat 6000", payment.NewFlatRate(6000), true},
		{"per mile 0.30", payment.NewPerMile(0.3), true},
		{"per mile 2.00", payment.NewPerMile(2.0), false},
		{"per mile 5.50", payment.NewPerMile(5.5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warning := tt.cfg.Method().RateWarning(tt.cfg)
			if tt.warn {
				assert.NotEmpty(t, warning)
			} else {
				assert.Empty(t, warning)
			}
		})
	}

	cfg := payment.NewPercentage(40, 60, 0)
	assert.Equal(t, "Driver percentage of 40.00% is outside the typical range of 50.00%-90.00%",
		cfg.Method().RateWarning(cfg))
}

func TestRateWarning_NeverInvalidates(t *testing.T) {
	cfg := payment.NewFlatRate(50)
	assert.NotEmpty(t, cfg.Method().RateWarning(cfg))
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// PAYMENT SANITY (computed amount)
// =============================================================================

func TestPercentage_PaymentChecks(t *testing.T) {
	m := payment.MethodFor(payment.KindPercentage)

	assert.True(t, m.IsReasonablePayment(dec(700), decimal.Zero))
	assert.Empty(t, m.PaymentWarning(dec(700), decimal.Zero))

	assert.True(t, m.IsReasonablePayment(dec(30000), decimal.Zero))
	assert.Contains(t, m.PaymentWarning(dec(30000), decimal.Zero), "unusually high")

	assert.Contains(t, m.PaymentWarning(dec(20), decimal.Zero), "unusually low")
	assert.Empty(t, m.PaymentWarning(decimal.Zero, decimal.Zero), "zero is not flagged as low")

	assert.False(t, m.IsReasonablePayment(dec(50001), decimal.Zero))
	assert.False(t, m.IsReasonablePayment(dec(-1), decimal.Zero))
}

func TestFlatRate_PaymentChecks(t *testing.T) {
	m := payment.MethodFor(payment.KindFlatRate)

	assert.True(t, m.IsReasonablePayment(dec(750), decimal.Zero))
	assert.Empty(t, m.PaymentWarning(dec(750), decimal.Zero))

	assert.False(t, m.IsReasonablePayment(dec(40), decimal.Zero))
	assert.True(t, m.IsReasonablePayment(dec(60), decimal.Zero))
	assert.Contains(t, m.PaymentWarning(dec(60), decimal.Zero), "unusually low")
	assert.Contains(t, m.PaymentWarning(dec(5500), decimal.Zero), "unusually high")
	assert.False(t, m.IsReasonablePayment(dec(10001), decimal.Zero))
}

func TestPerMile_PaymentChecks(t *testing.T) {
	m := payment.MethodFor(payment.KindPerMile)

	assert.True(t, m.IsReasonablePayment(dec(1000), dec(500)))
	assert.Empty(t, m.PaymentWarning(dec(1000), dec(500)))

	assert.False(t, m.IsReasonablePayment(dec(100), decimal.Zero))
	assert.NotEmpty(t, m.PaymentWarning(dec(100), decimal.Zero))

	assert.False(t, m.IsReasonablePayment(dec(5001), dec(500)), "over $10/mile")
	assert.Equal(t, "Effective rate of $6.00/mile is unusually high (over $5.00/mile)",
		m.PaymentWarning(dec(3000), dec(500)))
	assert.Contains(t, m.PaymentWarning(dec(100), dec(500)), "unusually low")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "70% driver / 25% company / 5% service fee", payment.NewPercentage(70, 25, 5).Describe())
	assert.Equal(t, "$750.00 flat", payment.NewFlatRate(750).Describe())
	assert.Equal(t, "$2.00/mile", payment.NewPerMile(2).Describe())
}

func TestConfiguration_Equal(t *testing.T) {
	assert.True(t, payment.NewPerMile(2).Equal(payment.NewPerMile(2.0)))
	assert.False(t, payment.NewPerMile(2).Equal(payment.NewFlatRate(2)))
	assert.False(t, payment.NewPercentage(70, 30, 0).Equal(payment.NewPercentage(75, 25, 0)))
}
