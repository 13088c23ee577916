package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/linemk/proshop/internal/config"
	"github.com/stretchr/testify/assert"
)

// writeConfig создает временный yaml-файл с конфигурацией
func writeConfig(t *testing.T, content string) string {
	tmpFile, err := os.CreateTemp("", "config_test_*.yaml")
	assert.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	_, err = tmpFile.WriteString(content)
	assert.NoError(t, err)
	assert.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

func TestMustLoadByPath_Success(t *testing.T) {
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "mysecret")
	t.Setenv("ADMIN_PASSWORD", "adminpass")

	path := writeConfig(t, `
env: "local"
http_server:
  address: "localhost:8080"
  timeout: "4s"
  idle_timeout: "60s"
database:
  host: "localhost"
  port: 5432
  user: "postgres"
  name: "proshop"
jwt:
  token_ttl: 60
migrations:
  path: "./migrations"
notifications:
  order_recipient_id: 7
  workers: 4
  queue_size: 128
dashboard:
  window_days: 14
admin:
  email: "admin@proshop.com"
`)

	cfg := config.MustLoadByPath(path)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
	assert.Equal(t, 4*time.Second, cfg.HTTPServer.Timeout)
	assert.Equal(t, 60*time.Second, cfg.HTTPServer.IdleTimeout)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "proshop", cfg.Database.Name)
	assert.Equal(t, "mypassword", cfg.Database.Password)
	assert.Equal(t, "mysecret", cfg.JWT.Secret)
	assert.Equal(t, 60, cfg.JWT.TokenTTL)
	assert.Equal(t, "./migrations", cfg.Migrations.Path)
	assert.Equal(t, int64(7), cfg.Notifications.OrderRecipientID)
	assert.Equal(t, 4, cfg.Notifications.Workers)
	assert.Equal(t, 128, cfg.Notifications.QueueSize)
	assert.Equal(t, 14, cfg.Dashboard.WindowDays)
	assert.Equal(t, "admin@proshop.com", cfg.Admin.Email)
	assert.Equal(t, "adminpass", cfg.Admin.Password)
}

func TestMustLoadByPath_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "mypassword")
	t.Setenv("JWT_SECRET", "mysecret")

	path := writeConfig(t, `
database:
  user: "postgres"
  name: "proshop"
`)

	cfg := config.MustLoadByPath(path)

	// значения по умолчанию
	assert.Equal(t, 20, cfg.Notifications.ListLimit)
	assert.Equal(t, 2, cfg.Notifications.Workers)
	assert.Equal(t, 64, cfg.Notifications.QueueSize)
	assert.Equal(t, int64(0), cfg.Notifications.OrderRecipientID)
	assert.Equal(t, 30, cfg.Dashboard.WindowDays)
	assert.Equal(t, 6, cfg.Dashboard.TopProducts)
	assert.Equal(t, 10, cfg.Dashboard.RecentOrders)
	assert.Equal(t, "Admin", cfg.Admin.Name)
}

func TestMustLoadByPath_FileNotFound(t *testing.T) {
	// Ожидаем панику, если файла не существует
	assert.Panics(t, func() {
		config.MustLoadByPath("non_existent_config.yaml")
	})
}
