package adapter

import (
	"context"
	"log/slog"
	"testing"

	"github.com/leapstack-labs/playdwh/pkg/core"
	"github.com/leapstack-labs/playdwh/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownAdapterError_Error(t *testing.T) {
	err := &UnknownAdapterError{
		Type:      "fake_db",
		Available: []string{"duckdb", "redshift"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "fake_db")
	assert.Contains(t, msg, "redshift")
	assert.Contains(t, msg, "playdwh.yaml", "error should mention config file")
}

func TestRegister(t *testing.T) {
	Register("test_adapter_internal", func(_ *slog.Logger) Adapter { return nil })

	assert.True(t, IsRegistered("test_adapter_internal"))
	assert.Contains(t, ListAdapters(), "test_adapter_internal")

	factory, ok := Get("test_adapter_internal")
	assert.True(t, ok)
	assert.NotNil(t, factory)

	_, ok = Get("nonexistent")
	assert.False(t, ok)
}

func TestNewAdapter(t *testing.T) {
	Register("test_adapter_factory", func(_ *slog.Logger) Adapter { return &fakeAdapter{} })

	tests := []struct {
		name    string
		typ     string
		wantErr string
	}{
		{name: "empty type", typ: "", wantErr: "adapter type not specified"},
		{name: "unknown type", typ: "unknown_adapter", wantErr: `unknown warehouse type "unknown_adapter"`},
		{name: "registered", typ: "test_adapter_factory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adp, err := NewAdapter(core.WarehouseConfig{Type: tt.typ}, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, adp)
		})
	}

	_, err := NewAdapter(core.WarehouseConfig{Type: "unknown_adapter"}, nil)
	var unknownErr *UnknownAdapterError
	require.ErrorAs(t, err, &unknownErr)
	assert.Contains(t, unknownErr.Available, "test_adapter_factory")
}

type fakeAdapter struct{ BaseSQLAdapter }

func (f *fakeAdapter) Connect(_ context.Context, _ core.WarehouseConfig) error { return nil }

func (f *fakeAdapter) TableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	return f.TableMetadataCommon(ctx, table, f.Dialect())
}

func (f *fakeAdapter) Dialect() *dialect.Dialect { return dialect.NewDialect("fake").Build() }
