package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "insights.yaml")
	data := []byte(`
table_prefix: acme_
db:
  driver: mysql
  dsn: mysql://u:p@tcp(db:3306)/bi
preview:
  max_rows: 50
draft_ttl: 10m
`)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TABLE_PREFIX", "")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.TablePrefix != "acme_" || c.DB.Driver != "mysql" || c.JWTSecret != "s3cret" {
		t.Fatalf("unexpected config %+v", c)
	}
	if c.Preview.MaxRows != 50 || !c.Preview.ReadOnly || c.DraftTTL != 10*time.Minute {
		t.Fatalf("preview/draft: %+v %v", c.Preview, c.DraftTTL)
	}
	if c.Reporting != c.DB {
		t.Fatalf("reporting db must default to the main db")
	}
	if diff := cmp.Diff([]string{"https://a.example", "https://b.example"}, c.AllowedOrigins); diff != "" {
		t.Fatalf("origins (-want +got):\n%s", diff)
	}
	if c.T("widgets") != "acme_widgets" {
		t.Fatalf("T = %s", c.T("widgets"))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}
