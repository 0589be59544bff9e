package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cashflow/internal/config"
	"cashflow/internal/log"
	"cashflow/internal/query"
)

const testSeed = `
accounts:
  - id: checking
    name: Checking
payees:
  - id: employer
    name: Employer
categoryGroups:
  - id: income
    name: Income
    isIncome: true
    categories:
      - id: salary
        name: Salary
transactions:
  - date: "2024-01-15"
    account: checking
    payee: employer
    category: salary
    amount: "1500.00"
  - date: "2024-02-15"
    account: checking
    payee: employer
    category: salary
    amount: "1500.00"
`

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(testSeed), 0644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestCreateBackend(t *testing.T) {
	seedFile := writeSeed(t)

	tests := []struct {
		name    string
		config  Config
		wantErr bool
		wantTx  int
	}{
		{name: "memory", config: Config{Type: MemoryBackend}},
		{name: "memory seeded", config: Config{Type: MemoryBackend, SeedFile: seedFile}, wantTx: 2},
		{name: "sqlite seeded", config: Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "cf.db"), SeedFile: seedFile}, wantTx: 2},
		{name: "sqlite without path", config: Config{Type: SQLiteBackend}, wantErr: true},
		{name: "unknown type", config: Config{Type: "sheets"}, wantErr: true},
		{name: "missing seed", config: Config{Type: MemoryBackend, SeedFile: "/non/existent.yaml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewFactory(log.Discard()).CreateBackend(context.Background(), tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer res.Close()

			if err := res.Store.Ping(context.Background()); err != nil {
				t.Fatalf("Ping() error = %v", err)
			}
			if tt.wantTx == 0 {
				if res.Seeded != nil {
					t.Errorf("unexpected seed stats: %+v", res.Seeded)
				}
				return
			}
			if res.Seeded == nil || res.Seeded.Transactions != tt.wantTx {
				t.Fatalf("Seeded = %+v, want %d transactions", res.Seeded, tt.wantTx)
			}
			total, err := res.Store.Sum(context.Background(), query.SumQuery{})
			if err != nil {
				t.Fatalf("Sum() error = %v", err)
			}
			if total != 300000 {
				t.Errorf("Sum() = %d, want 300000", total)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", SeedFile: "seed.yaml"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" || cfg.SeedFile != "seed.yaml" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unsupported backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
