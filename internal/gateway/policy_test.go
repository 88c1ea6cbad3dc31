package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowed(t *testing.T) {
	p := NewPolicy(false)

	t.Run("paths under an allowed prefix are accepted", func(t *testing.T) {
		for _, path := range []string{
			"/api/employees",
			"/api/employees/get",
			"/api/quotations/123",
			"/api/candidates/search?limit=5",
			"api/products/get",
		} {
			assert.True(t, p.IsAllowed(path), path)
		}
	})

	t.Run("paths outside the allow-list are rejected", func(t *testing.T) {
		for _, path := range []string{
			"/api/unknown/x",
			"/api/employeeships",
			"/internal/admin",
			"/",
			"",
			"/health",
		} {
			assert.False(t, p.IsAllowed(path), path)
		}
	})
}

func TestIsWriteOperation(t *testing.T) {
	p := NewPolicy(false)

	t.Run("safe methods are never writes", func(t *testing.T) {
		for _, method := range []string{"GET", "get", "HEAD", "OPTIONS"} {
			assert.False(t, p.IsWriteOperation(method, "/api/employees/delete"), method)
		}
	})

	t.Run("POST to a read suffix is a read", func(t *testing.T) {
		assert.False(t, p.IsWriteOperation("POST", "/api/employees/get"))
		assert.False(t, p.IsWriteOperation("POST", "/api/quotations/list"))
		assert.False(t, p.IsWriteOperation("POST", "/api/candidates/search"))
		assert.False(t, p.IsWriteOperation("POST", "/api/auth/login"))
		assert.False(t, p.IsWriteOperation("POST", "/api/auth/logout"))
		assert.False(t, p.IsWriteOperation("POST", "/api/reports/dashboard"))
	})

	t.Run("other POSTs and mutating methods are writes", func(t *testing.T) {
		assert.True(t, p.IsWriteOperation("POST", "/api/employees"))
		assert.True(t, p.IsWriteOperation("POST", "/api/quotations/approve"))
		assert.True(t, p.IsWriteOperation("PUT", "/api/employees/get"))
		assert.True(t, p.IsWriteOperation("DELETE", "/api/employees/1"))
		assert.True(t, p.IsWriteOperation("PATCH", "/api/products/2"))
	})
}

func TestAuthorize(t *testing.T) {
	t.Run("disallowed path wins over write check", func(t *testing.T) {
		p := NewPolicy(false)
		err := p.Authorize("POST", "/api/unknown/x")
		require.ErrorIs(t, err, ErrPathNotAllowed)
	})

	t.Run("write rejected when writes disabled", func(t *testing.T) {
		p := NewPolicy(false)
		err := p.Authorize("POST", "/api/employees")
		require.ErrorIs(t, err, ErrWriteNotAllowed)
	})

	t.Run("write permitted when writes enabled", func(t *testing.T) {
		p := NewPolicy(true)
		assert.NoError(t, p.Authorize("POST", "/api/employees"))
	})

	t.Run("reads always pass on allowed paths", func(t *testing.T) {
		p := NewPolicy(false)
		assert.NoError(t, p.Authorize("POST", "/api/employees/get"))
		assert.NoError(t, p.Authorize("GET", "/api/employees"))
	})
}
