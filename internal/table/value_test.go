package table

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("a")
	var _ Value = Int(1)
	var _ Value = Float(1.5)
	var _ Value = Bool(true)
	var _ Value = Date(2020, time.January, 1)
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(Null{}))
	assert.True(t, IsNull(Float(math.NaN())))
	assert.False(t, IsNull(Int(0)))
	assert.False(t, IsNull(String("")))
	assert.False(t, IsNull(Bool(false)))
}

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Value
		sameKeys bool
	}{
		{"null and nan", Null{}, Float(math.NaN()), true},
		{"int and integral float", Int(3), Float(3), true},
		{"int and fractional float", Int(3), Float(3.5), false},
		{"nfc normalization", String("caf\u00e9"), String("cafe\u0301"), true},
		{"string and int", String("1"), Int(1), false},
		{"times by instant", NewTime(time.Date(2020, 1, 1, 5, 0, 0, 0, time.FixedZone("x", 3600))), NewTime(time.Date(2020, 1, 1, 4, 0, 0, 0, time.UTC)), true},
		{"bools", Bool(true), Bool(false), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sameKeys, Key(tt.a) == Key(tt.b))
		})
	}
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(Null{}, Int(0)))
	assert.Equal(t, 0, Compare(Int(2), Float(2)))
	assert.Equal(t, -1, Compare(Int(1), Float(1.5)))
	assert.Equal(t, 1, Compare(String("b"), String("a")))
	assert.Equal(t, -1, Compare(Bool(false), Bool(true)))
	assert.Equal(t, -1, Compare(Date(2019, 1, 1), Date(2020, 1, 1)))
	assert.Equal(t, -1, Compare(Int(100), String("a")), "numbers order before strings")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(Null{}))
	assert.Equal(t, "2020-03-04", Format(Date(2020, 3, 4)))
	assert.Equal(t, "2020-03-04 10:30:00", Format(NewTime(time.Date(2020, 3, 4, 10, 30, 0, 0, time.UTC))))
	assert.Equal(t, "1.25", Format(Float(1.25)))
	assert.Equal(t, "42", Format(Int(42)))
}

func TestOf(t *testing.T) {
	v, err := Of(7)
	require.NoError(t, err)
	assert.Equal(t, Int(7), v)

	v, err = Of(nil)
	require.NoError(t, err)
	assert.Equal(t, Null{}, v)

	_, err = Of(struct{}{})
	assert.Error(t, err)
}

func TestValueJSON(t *testing.T) {
	cells := []Value{Null{}, String("x"), Int(1), Float(math.NaN()), Bool(true), Date(2021, 2, 3)}
	data, err := json.Marshal(cells)
	require.NoError(t, err)
	assert.Equal(t, `[null,"x",1,null,true,"2021-02-03"]`, string(data))
}
