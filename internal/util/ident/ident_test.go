package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteMySQLUsesBackticksAndDoublesEmbedded(t *testing.T) {
	assert.Equal(t, "`orders`", Quote(MySQL, "orders"))
	assert.Equal(t, "`weird``name`", Quote(MySQL, "weird`name"))
}

func TestQuotePostgresUsesDoubleQuotesAndDoublesEmbedded(t *testing.T) {
	assert.Equal(t, `"orders"`, Quote(Postgres, "orders"))
	assert.Equal(t, `"weird""name"`, Quote(Postgres, `weird"name`))
}

func TestQualifiedTableOmitsDotWhenSchemaEmpty(t *testing.T) {
	assert.Equal(t, `"orders"`, QualifiedTable(Postgres, "", "orders"))
}

func TestQualifiedTableJoinsSchemaAndTable(t *testing.T) {
	assert.Equal(t, `"public"."orders"`, QualifiedTable(Postgres, "public", "orders"))
	assert.Equal(t, "`shop`.`orders`", QualifiedTable(MySQL, "shop", "orders"))
}
