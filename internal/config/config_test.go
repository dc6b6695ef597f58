package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, BackendDynamo, cfg.StoreBackend)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 5, cfg.OTPMaxAttempts)
	assert.Equal(t, "91", cfg.SMSDefaultCountryCode)
	assert.Equal(t, "one_time_codes", cfg.DynamoTables.OneTimeCodes)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OTP_TTL", "2m")
	t.Setenv("OTP_MAX_ATTEMPTS", "0")
	t.Setenv("STORE_BACKEND", BackendMemory)
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := Load()
	assert.Equal(t, 2*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 0, cfg.OTPMaxAttempts)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("OTP_TTL", "ten minutes")
	t.Setenv("OTP_MAX_ATTEMPTS", "many")

	cfg := Load()
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 5, cfg.OTPMaxAttempts)
}
