package option

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithQuerySortBy(t *testing.T) {
	allowed := map[string]bool{"price": true, "created_at": true}

	assert.Equal(t, QuerySortBy{Column: "price", Direction: "asc"}, WithQuerySortBy("Price", "ASC", allowed))
	assert.Equal(t, QuerySortBy{Column: "created_at", Direction: "desc"}, WithQuerySortBy("password_hash", "sideways", allowed))
}
