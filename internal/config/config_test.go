package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "CREATE_RATE_PER_MIN", "UPDATE_RATE_PER_MIN"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 10, cfg.CreateRatePerMin)
	assert.Equal(t, 20, cfg.UpdateRatePerMin)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("CREATE_RATE_PER_MIN", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://app.example.com")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 5, cfg.CreateRatePerMin)
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("UPDATE_RATE_PER_MIN", "plenty")
	cfg := Load()
	assert.Equal(t, 20, cfg.UpdateRatePerMin)
}
