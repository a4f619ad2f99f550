package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchbase/couchbase-lite-core-sub003/token"
)

func TestLookupOpNameAndArityMatch(t *testing.T) {
	op, nameMatched, arityOK := token.LookupOp("=", 2)
	assert.True(t, nameMatched)
	assert.True(t, arityOK)
	assert.Equal(t, token.OpEq, op.Type)
	assert.Equal(t, token.PrecCompareEq, op.Precedence)
}

func TestLookupOpIsCaseInsensitive(t *testing.T) {
	op, nameMatched, arityOK := token.LookupOp("and", 3)
	assert.True(t, nameMatched)
	assert.True(t, arityOK)
	assert.Equal(t, token.OpAnd, op.Type)
}

func TestLookupOpNameMatchesButArityWrong(t *testing.T) {
	_, nameMatched, arityOK := token.LookupOp("BETWEEN", 2)
	assert.True(t, nameMatched)
	assert.False(t, arityOK)
}

func TestLookupOpUnknownName(t *testing.T) {
	_, nameMatched, arityOK := token.LookupOp("FROBNICATE", 1)
	assert.False(t, nameMatched)
	assert.False(t, arityOK)
}

func TestLookupOpByType(t *testing.T) {
	op, ok := token.LookupOpByType(token.OpRank)
	assert.True(t, ok)
	assert.Equal(t, "RANK()", op.Name)
	assert.Equal(t, 1, op.MinArgs)
	assert.Equal(t, 1, op.MaxArgs)
}

func TestFunctionByNameMatchesAggregateFlag(t *testing.T) {
	def, ok := token.FunctionByName("count")
	assert.True(t, ok)
	assert.NotZero(t, def.Flags&token.FlagAggregate)
	assert.Equal(t, "count", def.SQLName())
}

func TestFunctionByNameDefaultsSQLNameToName(t *testing.T) {
	def, ok := token.FunctionByName("abs")
	assert.True(t, ok)
	assert.Equal(t, "abs", def.SQLName())
}

func TestFunctionByNameUnknown(t *testing.T) {
	_, ok := token.FunctionByName("not_a_function")
	assert.False(t, ok)
}

func TestLookupMetaKnownAndUnknown(t *testing.T) {
	assert.Equal(t, token.MetaID, token.LookupMeta("id"))
	assert.Equal(t, token.MetaDeleted, token.LookupMeta("DELETED"))
	assert.Equal(t, token.MetaNone, token.LookupMeta("bogus"))
}

func TestLookupJoinKnownAndUnknown(t *testing.T) {
	assert.Equal(t, token.JoinLeftOuter, token.LookupJoin("left outer"))
	assert.Equal(t, token.JoinNone, token.LookupJoin("bogus"))
}

func TestJoinTypeString(t *testing.T) {
	assert.Equal(t, "LEFT JOIN", token.JoinLeft.String())
	assert.Equal(t, "CROSS JOIN", token.JoinCross.String())
}
