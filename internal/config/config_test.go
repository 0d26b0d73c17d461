package config

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, 14, cfg.Pipeline.DefaultDueDays)
	assert.Equal(t, 75, cfg.Pipeline.CommitThreshold)
	assert.Equal(t, 50, cfg.Pipeline.BestCaseThreshold)
	assert.True(t, cfg.Pipeline.IncludeUnassignedFallback)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.CatalogCacheTTLDuration())
	assert.Equal(t, "0 15 2 * * *", cfg.Jobs.SnapshotCron)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PIPELINE_DEFAULTDUEDAYS", "21")
	t.Setenv("PIPELINE_INCLUDEUNASSIGNEDFALLBACK", "false")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("ADMIN_API_KEY", "env-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 21, cfg.Pipeline.DefaultDueDays)
	assert.False(t, cfg.Pipeline.IncludeUnassignedFallback)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "env-key", cfg.ApiKey.Value)
}

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecretOrEnv(_ context.Context, secretName, _ string) (string, error) {
	if v, ok := f[secretName]; ok {
		return v, nil
	}
	return "", fmt.Errorf("secret %s not found", secretName)
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Host = "localhost"

	applySecrets(context.Background(), cfg, fakeSecrets{
		"POSTGRES-MAIN-PASSWORD":    "vault-password",
		"jwt-signing-secret":        "vault-jwt",
		"storage-connection-string": "DefaultEndpointsProtocol=https",
	}, zap.NewNop())

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "vault-password", cfg.Database.Password)
	assert.Equal(t, "vault-jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, "DefaultEndpointsProtocol=https", cfg.Storage.CloudConnectionString)
	assert.Empty(t, cfg.ApiKey.Value)
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "pipeline", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=pipeline sslmode=require", d.ConnectionString())
}
