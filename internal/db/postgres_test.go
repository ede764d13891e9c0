package db

import (
	"testing"
	"time"
)

func TestPostgresConfigWithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   PostgresConfig
		want PostgresConfig
	}{
		{
			name: "zero value",
			in:   PostgresConfig{},
			want: DefaultPostgresConfig(),
		},
		{
			name: "idle capped by open",
			in:   PostgresConfig{MaxOpenConns: 5, MaxIdleConns: 10},
			want: PostgresConfig{MaxOpenConns: 5, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute, PingTimeout: 5 * time.Second},
		},
		{
			name: "explicit values kept",
			in:   PostgresConfig{MaxOpenConns: 8, MaxIdleConns: 2, ConnMaxLifetime: time.Minute, PingTimeout: time.Second},
			want: PostgresConfig{MaxOpenConns: 8, MaxIdleConns: 2, ConnMaxLifetime: time.Minute, PingTimeout: time.Second},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.withDefaults()
			if got != tc.want {
				t.Fatalf("withDefaults mismatch got=%+v want=%+v", got, tc.want)
			}
		})
	}
}

func TestSchemaIsEmbedded(t *testing.T) {
	if len(schemaSQL) == 0 {
		t.Fatalf("schema.sql not embedded")
	}
}
