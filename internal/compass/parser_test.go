package compass

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProject(t *testing.T) {
	proj, err := ParseProject(filepath.Join("testdata", "FULFORDS.MAK"))
	require.NoError(t, err)

	assert.Equal(t, "FULFORDS", proj.Name)
	assert.Equal(t, []string{"FULFORD.DAT", "SURFACE.DAT"}, proj.LinkedFileNames)
	require.Equal(t, 2, proj.Len())

	require.NotNil(t, proj.BaseLocation)
	loc := proj.BaseLocation
	assert.InDelta(t, 399670.780, loc.Easting, 1e-9)
	assert.InDelta(t, 4374742.740, loc.Northing, 1e-9)
	assert.InDelta(t, 2700.0, loc.Elevation, 1e-9)
	assert.Equal(t, 13, loc.Zone)
	assert.InDelta(t, 0.780, loc.Convergence, 1e-9)
	assert.Equal(t, "North American 1983", loc.Datum)

	// !OT; decodes to one flag per character.
	assert.True(t, proj.FileParams['O'])
	assert.True(t, proj.FileParams['T'])
	assert.False(t, proj.FileParams['L'])

	dat, ok := proj.File("FULFORD")
	require.True(t, ok)
	assert.Equal(t, 2, dat.Len())
	_, ok = proj.File("NOPE")
	assert.False(t, ok)
}

func TestParseProjectMissingLinkedFile(t *testing.T) {
	dir := t.TempDir()
	mak := filepath.Join(dir, "BROKEN.MAK")
	require.NoError(t, os.WriteFile(mak, []byte("#NOPE.DAT;\r\n"), 0o644))

	_, err := ParseProject(mak)
	require.Error(t, err)
}

func TestParseDat(t *testing.T) {
	dat, err := ParseDat(filepath.Join("testdata", "FULFORD.DAT"))
	require.NoError(t, err)

	assert.Equal(t, "FULFORD", dat.Name)
	require.Equal(t, 2, dat.Len())
	assert.InDelta(t, 305.85, dat.Length(), 1e-9)

	bs, ok := dat.Survey("BS")
	require.True(t, ok)
	assert.Equal(t, "FULFORD CAVE", bs.CaveName)
	assert.Equal(t, "BIG SPRING AND SHOWERBATH PASSAGE", bs.Comment)
	assert.Equal(t, time.Date(1989, time.February, 11, 0, 0, 0, 0, time.UTC), bs.Date)
	assert.Equal(t, []string{"Chris Groves", "Stan Allison", "Bob Root"}, bs.Team)
	assert.InDelta(t, 11.18, bs.Declination, 1e-9)
	assert.Equal(t, "DMMDLRUDLADN", bs.FileFormat)
	assert.Equal(t, "0.00 0.00 0.00", bs.Corrections)
	assert.Equal(t,
		[]string{"FROM", "TO", "LENGTH", "BEARING", "INC", "LEFT", "UP", "DOWN", "RIGHT", "FLAGS", "COMMENTS"},
		bs.ShotHeader)
	require.Len(t, bs.Shots, 15)

	assert.True(t, bs.Contains("BSA2"))
	assert.False(t, bs.Contains("XS1"))

	_, ok = dat.Survey("ZZ")
	assert.False(t, ok)
}

func TestParseDatLastShot(t *testing.T) {
	dat, err := ParseDat(filepath.Join("testdata", "FULFORD.DAT"))
	require.NoError(t, err)
	bs, ok := dat.Survey("BS")
	require.True(t, ok)

	shot := bs.Shots[len(bs.Shots)-1]
	assert.Equal(t, "BSA2", shot.From())
	assert.Equal(t, "BS1", shot.To())

	length, ok := shot.Length()
	require.True(t, ok)
	assert.InDelta(t, 37.85, length, 1e-9)

	// Declination is applied per shot.
	azm, ok := shot.Azimuth()
	require.True(t, ok)
	assert.InDelta(t, 307.00+11.18, azm, 1e-9)

	inc, ok := shot.Inclination()
	require.True(t, ok)
	assert.InDelta(t, -23.0, inc, 1e-9)

	// A passage sentinel on an LRUD field means "wider than the instrument
	// could read", decoded as +Inf rather than missing.
	left, ok := shot.Float(FieldLeft)
	require.True(t, ok)
	assert.True(t, math.IsInf(left, 1))
}

func TestParseDatShotFlags(t *testing.T) {
	dat, err := ParseDat(filepath.Join("testdata", "FULFORD.DAT"))
	require.NoError(t, err)
	xs, ok := dat.Survey("XS")
	require.True(t, ok)
	require.Len(t, xs.Shots, 3)
	assert.Equal(t, "", xs.Comment)

	plot := xs.Shots[0]
	assert.Equal(t, "P", plot.FlagString())
	assert.True(t, plot.HasFlag(ExcludePlot))
	assert.True(t, plot.IsIncluded())
	assert.Equal(t, "", plot.Str(FieldComments))

	// A trailing blob without the #| marker is a bare comment.
	disto := xs.Shots[1]
	assert.Equal(t, "", disto.FlagString())
	assert.Equal(t, "shot taken with Disto", disto.Str(FieldComments))
	v, ok := disto.Get(FieldLeft)
	require.True(t, ok)
	assert.True(t, v.IsMissing())

	dup := xs.Shots[2]
	assert.Equal(t, "LX", dup.FlagString())
	assert.Equal(t, "duplicate leg", dup.Str(FieldComments))
	assert.True(t, dup.IsExcluded())
}

func TestSurveyLengths(t *testing.T) {
	dat, err := ParseDat(filepath.Join("testdata", "FULFORD.DAT"))
	require.NoError(t, err)
	xs, ok := dat.Survey("XS")
	require.True(t, ok)

	assert.InDelta(t, 23.0, xs.Length(), 1e-9)
	assert.InDelta(t, 15.0, xs.IncludedLength(), 1e-9)
	assert.InDelta(t, 8.0, xs.ExcludedLength(), 1e-9)
}

func TestParseDatEmptyCaveName(t *testing.T) {
	dat, err := ParseDat(filepath.Join("testdata", "SURFACE.DAT"))
	require.NoError(t, err)
	require.Equal(t, 1, dat.Len())

	sf := dat.Surveys[0]
	assert.Equal(t, "SF", sf.Name)
	assert.Equal(t, "", sf.CaveName)
	// Two digit years are pivoted into the right century.
	assert.Equal(t, time.Date(1989, time.March, 4, 0, 0, 0, 0, time.UTC), sf.Date)
	// Team names may carry Windows-1252 bytes.
	assert.Equal(t, []string{"Tanya Pietraß", "John Doe"}, sf.Team)
	require.Len(t, sf.Shots, 2)

	v, ok := sf.Shots[0].Get(FieldLeft)
	require.True(t, ok)
	assert.True(t, v.IsMissing())
}

func TestParseDatIdempotent(t *testing.T) {
	path := filepath.Join("testdata", "FULFORD.DAT")
	first, err := ParseDat(path)
	require.NoError(t, err)
	second, err := ParseDat(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestParseSurveyTooShort(t *testing.T) {
	p := NewDatParser()
	_, err := p.parseSurvey("CAVE\r\nSURVEY NAME: A\r\nSURVEY DATE: 1 1 2001")
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Msg, "at least 10 lines")
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "2 11 1989", want: time.Date(1989, time.February, 11, 0, 0, 0, 0, time.UTC)},
		{in: "3 4 89", want: time.Date(1989, time.March, 4, 0, 0, 0, 0, time.UTC)},
		{in: "  12  31  2015 ", want: time.Date(2015, time.December, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := parseDate(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := parseDate("not a date")
	require.Error(t, err)
}

func TestParseDeclinationLine(t *testing.T) {
	decl, format, corr := parseDeclinationLine(
		"DECLINATION:   11.18  FORMAT: DMMDLRUDLADN  CORRECTIONS:  0.00 0.00 0.00")
	assert.InDelta(t, 11.18, decl, 1e-9)
	assert.Equal(t, "DMMDLRUDLADN", format)
	assert.Equal(t, "0.00 0.00 0.00", corr)

	decl, format, corr = parseDeclinationLine("DECLINATION: 0.00")
	assert.Zero(t, decl)
	assert.Empty(t, format)
	assert.Empty(t, corr)
}
