package compass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speleotools/caveconv/pkg/survey"
)

func TestParseFileFormat(t *testing.T) {
	tests := []struct {
		name            string
		in              string
		shotItemOrder   string
		backsight       byte
		lrudAssociation byte
	}{
		{name: "11 chars defaults both flags", in: "DMMDLRUDLAD", shotItemOrder: "LAD", backsight: 'N', lrudAssociation: 'F'},
		{name: "12 chars carries LRUD association", in: "DMMDLRUDLADT", shotItemOrder: "LAD", backsight: 'N', lrudAssociation: 'T'},
		{name: "13 chars carries both flags", in: "DMMDLRUDLADBF", shotItemOrder: "LAD", backsight: 'B', lrudAssociation: 'F'},
		{name: "14 chars has five item slots", in: "DMMDLRUDLADadT", shotItemOrder: "LADad", backsight: 'N', lrudAssociation: 'T'},
		{name: "15 chars has everything", in: "DMMDLRUDLADadBF", shotItemOrder: "LADad", backsight: 'B', lrudAssociation: 'F'},
		{name: "blank flags fall back to defaults", in: "DMMDLRUDLAD  ", shotItemOrder: "LAD", backsight: 'N', lrudAssociation: 'F'},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := ParseFileFormat(tc.in)
			assert.Equal(t, byte('D'), f.BearingUnits)
			assert.Equal(t, byte('M'), f.LengthUnits)
			assert.Equal(t, byte('M'), f.PassageUnits)
			assert.Equal(t, byte('D'), f.InclinationUnits)
			assert.Equal(t, "LRUD", string(f.PassageDimensionOrder))
			assert.Equal(t, tc.shotItemOrder, string(f.ShotItemOrder))
			assert.Equal(t, tc.backsight, f.Backsight)
			assert.Equal(t, tc.lrudAssociation, f.LRUDAssociation)
		})
	}
}

func TestParseFileFormatTooShort(t *testing.T) {
	f := ParseFileFormat("")
	assert.Equal(t, byte('N'), f.Backsight)
	assert.Equal(t, byte('F'), f.LRUDAssociation)
	assert.Empty(t, f.ShotItemOrder)
}

func TestSurveyAddShotAppliesDeclination(t *testing.T) {
	s := &Survey{Name: "A", Declination: 8.5}
	shot := NewShot()
	shot.Set(FieldBearing, survey.Num(7))
	shot.Set(FieldAzm2, survey.Num(189))
	s.AddShot(shot)

	require.InDelta(t, 8.5, shot.Declination, 1e-9)
	azm, ok := shot.Azimuth()
	require.True(t, ok)
	assert.InDelta(t, 16.5, azm, 1e-9)
}

func TestUTMLocationString(t *testing.T) {
	loc := &UTMLocation{
		Easting: 399670.78, Northing: 4374742.74, Elevation: 2700,
		Zone: 13, Datum: "North American 1983",
	}
	assert.Equal(t, "<North American 1983 UTM Zone 13 399670.8E 4374742.7N 2700.0>", loc.String())
}
