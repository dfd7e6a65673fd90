package codec

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"bool true", true},
		{"bool false", false},
		{"int", int(-42)},
		{"int32", int32(math.MaxInt32)},
		{"int64", int64(math.MinInt64)},
		{"float32", float32(3.25)},
		{"float64", 0.1},
		{"float64 inf", math.Inf(1)},
		{"string", "Bob Bobberson"},
		{"empty string", ""},
		{"bytes", []byte{0, 1, 2, 255}},
		{"empty bytes", []byte{}},
		{"nil bytes", []byte(nil)},
		{"uuid", uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")},
		{"nullable bool", ptr(true)},
		{"nullable int", ptr(7)},
		{"nullable int64", ptr(int64(-1000))},
		{"nullable float64", ptr(2.5)},
		{"nullable string", ptr("x")},
		{"nil nullable bool", (*bool)(nil)},
		{"nil nullable int64", (*int64)(nil)},
		{"nil nullable string", (*string)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Lookup(reflect.TypeOf(tt.value))
			require.NoError(t, err)

			s, present, err := c.Encode(tt.value)
			require.NoError(t, err)

			decoded, err := c.Decode(s, present)
			require.NoError(t, err)
			assert.Equal(t, tt.value, decoded)
		})
	}
}

func TestCodec_TimeRoundTrip(t *testing.T) {
	c, err := For[time.Time]()
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)
	s, present, err := c.Encode(now)
	require.NoError(t, err)
	assert.True(t, present)

	decoded, err := c.Decode(s, true)
	require.NoError(t, err)
	assert.True(t, now == decoded.(time.Time))

	oslo := time.FixedZone("CET", 3600)
	local := now.In(oslo)
	s, _, err = c.Encode(local)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:30:45.123456789Z", s)

	decoded, err = c.Decode(s, true)
	require.NoError(t, err)
	assert.True(t, local.Equal(decoded.(time.Time)))
	assert.Equal(t, time.UTC, decoded.(time.Time).Location())

	wall, _, err := c.Encode(time.Now())
	require.NoError(t, err)
	decoded, err = c.Decode(wall, true)
	require.NoError(t, err)
	assert.Equal(t, wall, decoded.(time.Time).Format(time.RFC3339Nano))
}

func TestCodec_AbsentDecodesToZero(t *testing.T) {
	tests := []struct {
		name     string
		typ      reflect.Type
		expected any
	}{
		{"string", reflect.TypeOf(""), ""},
		{"int64", reflect.TypeOf(int64(0)), int64(0)},
		{"bool", reflect.TypeOf(false), false},
		{"nullable int64", reflect.TypeOf((*int64)(nil)), (*int64)(nil)},
		{"bytes", reflect.TypeOf([]byte(nil)), []byte(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Lookup(tt.typ)
			require.NoError(t, err)

			v, err := c.Decode("", false)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestCodec_WireForms(t *testing.T) {
	boolCodec, _ := For[bool]()
	s, _, _ := boolCodec.Encode(true)
	assert.Equal(t, "1", s)

	intCodec, _ := For[int64]()
	s, _, _ = intCodec.Encode(int64(1000))
	assert.Equal(t, "1000", s)

	v, err := boolCodec.Decode("true", true)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestLookup_Unrepresentable(t *testing.T) {
	type someStruct struct{}

	for _, typ := range []reflect.Type{
		reflect.TypeOf(someStruct{}),
		reflect.TypeOf(map[string]int{}),
		reflect.TypeOf([]string{}),
		reflect.TypeOf(uint8(0)),
		reflect.TypeOf((**int)(nil)),
		nil,
	} {
		_, err := Lookup(typ)
		assert.ErrorIs(t, err, ErrUnrepresentableType)
	}
}

func TestCodec_EncodeTypeMismatch(t *testing.T) {
	c, err := For[int64]()
	require.NoError(t, err)

	_, _, err = c.Encode("nope")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, _, err = c.Encode(nil)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestCodec_DecodeError(t *testing.T) {
	c, err := For[int64]()
	require.NoError(t, err)

	_, err = c.Decode("abc", true)
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestCoerce(t *testing.T) {
	v, err := Coerce(3, reflect.TypeOf(int64(0)))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Interface())

	v, err = Coerce(uint8(9), reflect.TypeOf(int32(0)))
	require.NoError(t, err)
	assert.Equal(t, int32(9), v.Interface())

	_, err = Coerce(int64(math.MaxInt64), reflect.TypeOf(int32(0)))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	id := uuid.New()
	v, err = Coerce(id.String(), reflect.TypeOf(uuid.UUID{}))
	require.NoError(t, err)
	assert.Equal(t, id, v.Interface())

	_, err = Coerce(12, reflect.TypeOf(""))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestTypeList(t *testing.T) {
	list := TypeList()
	assert.Contains(t, list, "int64?")
	assert.Contains(t, list, "[]uint8")
	assert.Contains(t, list, "uuid.UUID")
}
