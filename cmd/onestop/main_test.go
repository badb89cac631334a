package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	require.NoError(t, Execute(context.Background(), "version"))
	assert.Contains(t, out.String(), "onestop 0.0.0")
}

func TestMigrateCommand_Errors(t *testing.T) {
	t.Setenv("ONESTOP_JWT__SECRET_KEY", testSecret)

	tests := []struct {
		name    string
		dbURL   string
		args    []string
		wantErr string
	}{
		{"missing direction", "", []string{"migrate"}, "accepts 1 arg(s)"},
		{"no database url", "", []string{"migrate", "up"}, "database.url is required"},
		{"unknown direction", "postgres://localhost:1/none?sslmode=disable", []string{"migrate", "sideways"}, "unknown migration direction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ONESTOP_DATABASE__URL", tt.dbURL)

			err := Execute(context.Background(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServeCommand_InvalidConfig(t *testing.T) {
	t.Setenv("ONESTOP_JWT__SECRET_KEY", "short")

	err := Execute(context.Background(), "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret_key must be at least 32 characters")
}
