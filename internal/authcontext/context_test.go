package authcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrincipalFromContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: 42, Role: RoleAdmin})
	p, ok := PrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(42), p.UserID.Int64())
	assert.True(t, p.IsAdmin())

	ctx = WithPrincipal(context.Background(), Principal{Role: RoleEmployee})
	_, ok = PrincipalFromContext(ctx)
	assert.False(t, ok)
}
