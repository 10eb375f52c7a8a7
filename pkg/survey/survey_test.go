package survey

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCoercer() *Coercer {
	return &Coercer{
		FloatFields: map[string]bool{
			"LENGTH": true, "BEARING": true, "LEFT": true, "RIGHT": true,
		},
		PassageFields:    map[string]bool{"LEFT": true, "RIGHT": true},
		NoDataSentinels:  []string{"-999.00"},
		PassageSentinels: []string{"-9.90", "-9999.00"},
	}
}

func TestCoerce(t *testing.T) {
	c := testCoercer()

	tests := []struct {
		name  string
		field string
		raw   string
		want  Value
	}{
		{name: "no-data sentinel decodes to missing", field: "LENGTH", raw: "-999.00", want: MissingValue()},
		{name: "passage sentinel decodes to +Inf", field: "LEFT", raw: "-9.90", want: Num(math.Inf(1))},
		{name: "long passage sentinel decodes to +Inf", field: "RIGHT", raw: "-9999.00", want: Num(math.Inf(1))},
		{name: "passage sentinel on plain float field stays numeric", field: "BEARING", raw: "-9.90", want: Num(-9.9)},
		{name: "numeric field", field: "BEARING", raw: "307.00", want: Num(307)},
		{name: "non-float field passes through", field: "FROM", raw: "BSA2", want: TextValue("BSA2")},
		{name: "bad float retains raw text", field: "LENGTH", raw: "12,3", want: TextValue("12,3")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Coerce(tc.field, tc.raw)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCoerceNeverZeroForMissing(t *testing.T) {
	c := testCoercer()
	v := c.Coerce("LENGTH", "-999.00")
	require.True(t, v.IsMissing())
	_, ok := v.Float()
	assert.False(t, ok, "missing value must not read as a numeric zero")
}

func TestRecordOrder(t *testing.T) {
	r := NewRecord()
	r.Set("FROM", TextValue("A1"))
	r.Set("TO", TextValue("A2"))
	r.Set("LENGTH", Num(10))
	r.Set("FROM", TextValue("A9")) // overwrite keeps position

	require.Equal(t, []string{"FROM", "TO", "LENGTH"}, r.Keys())
	assert.Equal(t, "A9", r.Str("FROM"))
	assert.Equal(t, 3, r.Len())
}

func TestCorrectedAzimuth(t *testing.T) {
	tests := []struct {
		name        string
		fwd, back   Value
		declination float64
		want        float64
		ok          bool
	}{
		{name: "both readings averaged", fwd: Num(7), back: Num(189), declination: 8.5, want: 16.5, ok: true},
		{name: "forward only", fwd: Num(307), back: MissingValue(), declination: 11.18, want: 318.18, ok: true},
		{name: "backsight only", fwd: MissingValue(), back: Num(189), declination: 0, want: 9, ok: true},
		{name: "backsight wraps past north", fwd: MissingValue(), back: Num(350), declination: 0, want: 170, ok: true},
		{name: "no readings", fwd: MissingValue(), back: MissingValue(), ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CorrectedAzimuth(tc.fwd, tc.back, tc.declination)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestCorrectedInclination(t *testing.T) {
	tests := []struct {
		name      string
		fwd, back Value
		want      float64
		ok        bool
	}{
		{name: "both readings averaged", fwd: Num(-4), back: Num(3.5), want: -3.75, ok: true},
		{name: "forward only", fwd: Num(-23), back: MissingValue(), want: -23, ok: true},
		{name: "backsight only is negated", fwd: MissingValue(), back: Num(3.5), want: -3.5, ok: true},
		{name: "no readings", fwd: MissingValue(), back: MissingValue(), ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CorrectedInclination(tc.fwd, tc.back)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}
