package odds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	// pool 400, lado A 100 -> 4.0x; lado B 300 -> 1.333x (floor)
	assert.Equal(t, int64(4000), Calculate(400, 100))
	assert.Equal(t, int64(1333), Calculate(400, 300))

	// lado sem stake paga 1.0x
	assert.Equal(t, int64(1000), Calculate(500, 0))
	assert.Equal(t, int64(1000), Calculate(0, 0))
}

func TestForMatch(t *testing.T) {
	t.Parallel()

	a, b := ForMatch(100, 300)
	assert.Equal(t, int64(4000), a)
	assert.Equal(t, int64(1333), b)

	a, b = ForMatch(0, 0)
	assert.Equal(t, int64(1000), a)
	assert.Equal(t, int64(1000), b)
}

func TestDistribution(t *testing.T) {
	t.Parallel()

	a, b := Distribution(0, 0)
	assert.Equal(t, int64(50), a)
	assert.Equal(t, int64(50), b)

	a, b = Distribution(100, 300)
	assert.Equal(t, int64(25), a)
	assert.Equal(t, int64(75), b)

	// arredondamento fecha em 100
	a, b = Distribution(1, 2)
	assert.Equal(t, int64(100), a+b)
}
