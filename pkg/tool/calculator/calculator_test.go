package calculator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exec(t *testing.T, c *Calculator, op string, a, b float64) (string, error) {
	t.Helper()
	args, err := json.Marshal(request{Operation: op, A: a, B: b})
	require.NoError(t, err)
	return c.Execute(context.Background(), args)
}

func TestCalculatorBasicOps(t *testing.T) {
	c := New()

	out, err := exec(t, c, "add", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, "4", out)

	out, err = exec(t, c, "multiply", 3, 2.5)
	require.NoError(t, err)
	assert.Equal(t, "7.5", out)
}

func TestCalculatorDivideByZero(t *testing.T) {
	c := New()
	_, err := exec(t, c, "divide", 1, 0)
	require.Error(t, err)
}

func TestCalculatorSqrtNegative(t *testing.T) {
	c := New()
	_, err := exec(t, c, "sqrt", -4, 0)
	require.Error(t, err)
}

func TestCalculatorRoundTrip(t *testing.T) {
	c := New()
	for _, pair := range [][2]float64{{5, 3}, {-10, 4}, {100, 7}} {
		a, b := pair[0], pair[1]
		added, err := exec(t, c, "add", a, b)
		require.NoError(t, err)
		var sum float64
		require.NoError(t, json.Unmarshal([]byte(added), &sum))
		back, err := exec(t, c, "subtract", sum, b)
		require.NoError(t, err)
		assert.Equal(t, formatResult(a), back)
	}
}

func TestFormatResultTrimsTrailingZeros(t *testing.T) {
	assert.Equal(t, "0.333333", formatResult(1.0/3.0))
	assert.Equal(t, "2.5", formatResult(2.5))
	assert.Equal(t, "4", formatResult(4.0))
}
