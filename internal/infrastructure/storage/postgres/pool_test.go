package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPoolConfigBoundsStatements(t *testing.T) {
	cfg := DefaultPoolConfig("postgres://localhost/medistock")

	params := cfg.runtimeParams()
	assert.Equal(t, "30000", params["statement_timeout"],
		"every pooled connection must carry a statement timeout, transactions override it with SET LOCAL")
}

func TestRuntimeParamsCustomTimeout(t *testing.T) {
	cfg := DefaultPoolConfig("postgres://localhost/medistock")
	cfg.StatementTimeout = 5 * time.Second

	assert.Equal(t, "5000", cfg.runtimeParams()["statement_timeout"])
}

func TestRuntimeParamsDisabled(t *testing.T) {
	cfg := DefaultPoolConfig("postgres://localhost/medistock")
	cfg.StatementTimeout = 0

	_, ok := cfg.runtimeParams()["statement_timeout"]
	assert.False(t, ok)
}
