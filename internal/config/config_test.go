package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("INVOICE_PARTS_MARKUP", "")
	t.Setenv("INVOICE_TAX_RATE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverBolt, cfg.Store.Driver)
	assert.True(t, decimal.RequireFromString("1.5").Equal(cfg.Invoice.PartsMarkup))
	assert.True(t, cfg.Invoice.TaxRate.IsZero())
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoad_InvoicePolicy(t *testing.T) {
	t.Setenv("INVOICE_PARTS_MARKUP", "1.25")
	t.Setenv("INVOICE_TAX_RATE", "0.07")

	cfg, err := Load()
	require.NoError(t, err)

	policy := cfg.Invoice.Policy()
	assert.Equal(t, int64(1250), policy.MarkUp(1000))
	assert.Equal(t, int64(70), policy.Tax(1000))
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Run("markup", func(t *testing.T) {
		t.Setenv("INVOICE_PARTS_MARKUP", "one and a half")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("negative tax", func(t *testing.T) {
		t.Setenv("INVOICE_TAX_RATE", "-0.1")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "postgres")
		t.Setenv("POSTGRES_DSN", "")
		_, err := Load()
		assert.Error(t, err)
	})
}
