package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("OVER_RECEIPT_POLICY", "tolerance")
	t.Setenv("OVER_RECEIPT_TOLERANCE_PCT", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, OverReceiptTolerance, cfg.Procurement.OverReceiptPolicy)
	assert.Equal(t, 5.0, cfg.Procurement.OverReceiptTolerancePct)
	assert.Equal(t, 15*time.Minute, cfg.Report.CacheTTL)
	assert.Equal(t, 8082, cfg.Server.Port)
	assert.False(t, cfg.Inventory.AllowNegativeStock)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Database:    DatabaseConfig{Driver: "postgres"},
		Procurement: ProcurementConfig{OverReceiptPolicy: "sometimes"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Procurement.OverReceiptPolicy = OverReceiptReject
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "jewelry", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=jewelry sslmode=disable", c.DSN())
}
