package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_Defaults(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "chat.db")

	cfg, err := LoadServer()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "chat.db", cfg.DatabaseURL)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
}

func TestLoadServer_InvalidTTL(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL", "-1s")

	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("CHAT_SERVER_URL", "http://chat.example:8080")
	t.Setenv("CHAT_TYPING_IDLE", "1s")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://chat.example:8080", cfg.ServerURL)
	assert.Equal(t, time.Second, cfg.TypingIdle)
}

func TestMaskDBSource(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{name: "postgres", dsn: "postgres://user:secret@db:5432/chat", want: "postgres://****:****@db:5432/chat"},
		{name: "postgres without credentials", dsn: "postgres://db", want: "invalid-dsn-format"},
		{name: "sqlite path", dsn: "web_chat_users.db", want: "web_chat_users.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskDBSource(tt.dsn))
		})
	}
}
