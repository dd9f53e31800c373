package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitNormalization(t *testing.T) {
	ctx := NewContext()

	cs, err := Parse("calc(5s)")
	require.NoError(t, err)
	v, err := cs.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, v)

	cms, err := Parse("calc(250ms)")
	require.NoError(t, err)
	v, err = cms.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250.0, v)
}

func TestExpressionRoundTrip(t *testing.T) {
	ctx := NewContext()
	ctx.Set("ending", TimeData{StartMS: 8000, EndMS: 12000, DurationMS: 4000})

	sum, err := Parse("calc((url(#ending.time.start) + url(#ending.time.duration)) * 2)")
	require.NoError(t, err)
	sumVal, err := sum.Evaluate(ctx)
	require.NoError(t, err)

	x, err := Parse("calc(url(#ending.time.start))")
	require.NoError(t, err)
	xVal, err := x.Evaluate(ctx)
	require.NoError(t, err)

	y, err := Parse("calc(url(#ending.time.duration))")
	require.NoError(t, err)
	yVal, err := y.Evaluate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2*(xVal+yVal), sumVal)
}

func TestForwardReference(t *testing.T) {
	ctx := NewContext()
	ctx.Set("ending", TimeData{StartMS: 8000})

	compiled, err := Parse("calc(url(#ending.time.start))")
	require.NoError(t, err)

	v, err := compiled.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, v)
}

func TestUnknownFragmentID(t *testing.T) {
	ctx := NewContext()
	compiled, err := Parse("calc(url(#missing.time.start))")
	require.NoError(t, err)

	_, err = compiled.Evaluate(ctx)
	require.Error(t, err)
}

func TestDivisionByZero(t *testing.T) {
	compiled, err := Parse("calc(10 / 0)")
	require.NoError(t, err)

	_, err = compiled.Evaluate(NewContext())
	require.Error(t, err)
}

func TestParseError(t *testing.T) {
	_, err := Parse("calc(1 + )")
	require.Error(t, err)
}

func TestUnknownPropertyPath(t *testing.T) {
	ctx := NewContext()
	ctx.Set("a", TimeData{StartMS: 1})
	compiled, err := Parse("calc(url(#a.time.bogus))")
	require.NoError(t, err)

	_, err = compiled.Evaluate(ctx)
	require.Error(t, err)
}

func TestIsCalc(t *testing.T) {
	assert.True(t, IsCalc("calc(1s)"))
	assert.False(t, IsCalc("100%"))
	assert.False(t, IsCalc("5000"))
}
