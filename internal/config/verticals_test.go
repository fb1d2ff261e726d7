package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVerticals = `
verticals:
  fireworks:
    display_name: Fireworks Stands
    vendor_fee_percent: "8"
  farmers_market:
    display_name: Farmers Markets
    vendor_fee_percent: "6.5"
  food_trucks:
    display_name: Food Trucks
`

func TestParseVerticals(t *testing.T) {
	t.Parallel()

	v, err := ParseVerticals(strings.NewReader(sampleVerticals), "5")
	require.NoError(t, err)

	assert.Equal(t, "8", v.Get("fireworks").VendorFeePercent.String())
	assert.Equal(t, "6.5", v.Get("farmers_market").VendorFeePercent.String())
	assert.Equal(t, "Food Trucks", v.Get("food_trucks").DisplayName)
	assert.Equal(t, "5", v.Get("food_trucks").VendorFeePercent.String())
	assert.Equal(t, "5", v.Get("craft_fairs").VendorFeePercent.String())
}

func TestParseVerticalsRejectsBadPercent(t *testing.T) {
	t.Parallel()

	_, err := ParseVerticals(strings.NewReader("verticals:\n  x:\n    vendor_fee_percent: \"abc\"\n"), "5")
	assert.Error(t, err)

	_, err = ParseVerticals(nil, "120")
	assert.Error(t, err)
}

func TestLoadVerticalsMissingFile(t *testing.T) {
	t.Parallel()

	v, err := LoadVerticals(filepath.Join(t.TempDir(), "nope.yaml"), "6.5")
	require.NoError(t, err)
	assert.Equal(t, "6.5", v.Get("fireworks").VendorFeePercent.String())
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, env.ParseWithOptions(cfg, env.Options{Environment: map[string]string{
		"KAFKA_BROKERS": "k1:9092,k2:9092",
		"DB_DRIVER":     "postgres",
	}}))

	assert.Equal(t, "development", cfg.Environment.Name)
	assert.True(t, cfg.Environment.IsDevelopment())
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "30s", cfg.Payout.ConfirmationWindow.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Worker.RetryConcurrency)
	assert.Equal(t, "none", cfg.Payout.Provider)
}
