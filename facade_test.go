package spapipush

import (
	"context"
	"io/fs"
	"testing"

	"github.com/goliatone/go-spapi-push/core"
)

func TestDefaultConfig_MatchesCoreDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "spapi-push" {
		t.Fatalf("unexpected default service name %q", cfg.ServiceName)
	}
	if cfg.SPAPI.Endpoint != core.DefaultSPAPIEndpoint {
		t.Fatalf("unexpected default endpoint %q", cfg.SPAPI.Endpoint)
	}
	if cfg.LWA.StateTTLSeconds != int(core.DefaultStateTTL.Seconds()) {
		t.Fatalf("unexpected default state ttl %d", cfg.LWA.StateTTLSeconds)
	}
}

func TestNewService_ExposesCoreSurface(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.GetConnectionStatus(context.Background(), "usr_facade")
	if !core.HasTextCode(err, core.PushErrorConfiguration) {
		t.Fatalf("expected configuration error without a connection store, got %v", err)
	}

	alias, err := Setup(Config{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if alias.Config().ServiceName != svc.Config().ServiceName {
		t.Fatalf("expected setup and new service to resolve the same config")
	}
}

func TestMigrationFilesystems_ExposePushSchema(t *testing.T) {
	for _, root := range []fs.FS{GetMigrationsFS(), GetCoreMigrationsFS()} {
		matches, err := fs.Glob(root, "data/sql/migrations/*.up.sql")
		if err != nil {
			t.Fatalf("glob migrations: %v", err)
		}
		if len(matches) == 0 {
			t.Fatalf("expected embedded postgres migrations")
		}
		sqliteMatches, err := fs.Glob(root, "data/sql/migrations/sqlite/*.up.sql")
		if err != nil {
			t.Fatalf("glob sqlite migrations: %v", err)
		}
		if len(sqliteMatches) == 0 {
			t.Fatalf("expected embedded sqlite migrations")
		}
	}
}
