package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "4100")

	cfg := Load()

	assert.Equal(t, "4100", cfg.App.Port)
	assert.Equal(t, "http://localhost:4100/api/relay", cfg.Relay.ClientURL)
	assert.Equal(t, []string{"embed", "pdfjs", "native"}, cfg.Renderer.Order)
	assert.Equal(t, 8*time.Second, cfg.Renderer.EmbedReadyWait)
	assert.Equal(t, "http", cfg.Answer.Provider)
	assert.Equal(t, 5, cfg.Answer.TopK)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RENDERER_ORDER", " pdfjs , ,native")
	t.Setenv("RELAY_ALLOWED_HOSTS", "www.abpi.org.uk,pmcpa.org.uk")
	t.Setenv("RELAY_TIMEOUT", "5s")
	t.Setenv("ANSWER_TOP_K", "not-a-number")

	cfg := Load()

	assert.Equal(t, []string{"pdfjs", "native"}, cfg.Renderer.Order)
	assert.Equal(t, []string{"www.abpi.org.uk", "pmcpa.org.uk"}, cfg.Relay.AllowedHosts)
	assert.Equal(t, 5*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, 5, cfg.Answer.TopK)
}
