package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gompdf/sectionpdf/internal/geometry"
	"github.com/gompdf/sectionpdf/internal/pagination"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, geometry.DefaultPageConfig(), cfg.PageConfig())
	assert.Equal(t, pagination.TailNewPage, cfg.TailPolicy())
	assert.Equal(t, "sectionpdf", cfg.App.Name)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "lazy", cfg.Render.Mode)
	assert.Equal(t, 30*time.Second, cfg.Render.Timeout)
	assert.Equal(t, "filesystem", cfg.Storage.Backend)
	assert.Equal(t, "always", cfg.Entitlement.Backend)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, "sectionpdf", cfg.Header.Brand)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[app]
env = "production"

[page]
margin_mm = 0
header_height_mm = 20
tail_policy = "reuse"

[header]
mark = "Compare"
destination = "Broadband deals"

[render]
mode = "eager"
timeout = "5s"

[storage]
backend = "s3"

[s3]
bucket = "exports"
access_key = "k"
secret_key = "s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Page.MarginMM, "explicit zero margin is kept")
	assert.Equal(t, 20.0, cfg.Page.HeaderHeightMM)
	assert.Equal(t, 297.0, cfg.Page.HeightMM)
	assert.Equal(t, pagination.TailReuse, cfg.TailPolicy())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "Broadband deals", cfg.Header.Destination)
	assert.Equal(t, 5*time.Second, cfg.Render.Timeout)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, 15*time.Minute, cfg.S3.PresignExpiration)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SECTIONPDF_PAGE_SECTION_GAP_MM", "6.5")
	t.Setenv("SECTIONPDF_ENTITLEMENT_BACKEND", "redis")
	t.Setenv("SECTIONPDF_REDIS_HOST", "cache")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 6.5, cfg.Page.SectionGapMM)
	assert.Equal(t, "redis", cfg.Entitlement.Backend)
	assert.Equal(t, "cache", cfg.Redis.Host)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no usable area", "[page]\nheader_height_mm = 280\n"},
		{"bad tail policy", "[page]\ntail_policy = \"squeeze\"\n"},
		{"bad render mode", "[render]\nmode = \"sometimes\"\n"},
		{"bad storage backend", "[storage]\nbackend = \"ftp\"\n"},
		{"s3 without bucket", "[storage]\nbackend = \"s3\"\n"},
		{"bad entitlement backend", "[entitlement]\nbackend = \"ldap\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseTailPolicy(t *testing.T) {
	p, err := ParseTailPolicy(" Reuse ")
	require.NoError(t, err)
	assert.Equal(t, pagination.TailReuse, p)

	p, err = ParseTailPolicy("")
	require.NoError(t, err)
	assert.Equal(t, pagination.TailNewPage, p)
}
