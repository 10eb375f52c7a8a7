// Package compass models Compass cave survey data and parses the .MAK
// project and .DAT data file formats.
package compass

import (
	"fmt"
	"strings"
	"time"

	"github.com/speleotools/caveconv/pkg/survey"
)

// Shot field names as they appear in a .DAT column header.
const (
	FieldFrom     = "FROM"
	FieldTo       = "TO"
	FieldLength   = "LENGTH"
	FieldBearing  = "BEARING"
	FieldAzm2     = "AZM2"
	FieldInc      = "INC"
	FieldInc2     = "INC2"
	FieldLeft     = "LEFT"
	FieldRight    = "RIGHT"
	FieldUp       = "UP"
	FieldDown     = "DOWN"
	FieldFlags    = "FLAGS"
	FieldComments = "COMMENTS"
)

// Shot flag characters. A flagged shot stays in the shot list but is
// excluded from length totals or plotting.
const (
	ExcludeLength byte = 'L'
	ExcludePlot   byte = 'P'
	ExcludeTotal  byte = 'X'
)

// Missing-data sentinels used by the .DAT format.
const (
	NoDataSentinel   = "-999.00"
	PassageSentinel  = "-9.90"
	PassageSentinel2 = "-9999.00"
)

// Shot is a single measured leg in a Compass survey: an ordered field
// record plus the declination applied by its owning survey.
type Shot struct {
	survey.Record
}

func NewShot() *Shot {
	return &Shot{Record: *survey.NewRecord()}
}

func (s *Shot) From() string { return s.Str(FieldFrom) }
func (s *Shot) To() string   { return s.Str(FieldTo) }

// Azimuth is the corrected azimuth: forward bearing and optional backsight
// averaged, declination applied. Reports false when neither reading exists.
func (s *Shot) Azimuth() (float64, bool) {
	fwd, _ := s.Get(FieldBearing)
	back, _ := s.Get(FieldAzm2)
	return survey.CorrectedAzimuth(fwd, back, s.Declination)
}

// Inclination is the corrected inclination: forward reading averaged with
// the negated backsight, or whichever single reading exists.
func (s *Shot) Inclination() (float64, bool) {
	fwd, _ := s.Get(FieldInc)
	back, _ := s.Get(FieldInc2)
	return survey.CorrectedInclination(fwd, back)
}

// Length is the taped distance. Reports false when no reading exists.
func (s *Shot) Length() (float64, bool) {
	return s.Float(FieldLength)
}

// FlagString returns the raw flag characters, e.g. "LP".
func (s *Shot) FlagString() string { return s.Str(FieldFlags) }

func (s *Shot) HasFlag(flag byte) bool {
	return strings.IndexByte(s.FlagString(), flag) >= 0
}

// IsExcluded reports whether the shot is excluded from length totals.
func (s *Shot) IsExcluded() bool {
	return s.HasFlag(ExcludeLength) || s.HasFlag(ExcludeTotal)
}

func (s *Shot) IsIncluded() bool { return !s.IsExcluded() }

// FileFormat is the decoded survey format line: units, passage dimension
// order, shot item order and backsight/LRUD association flags.
type FileFormat struct {
	BearingUnits          byte
	LengthUnits           byte
	PassageUnits          byte
	InclinationUnits      byte
	PassageDimensionOrder []byte
	ShotItemOrder         []byte
	Backsight             byte // 'B' = redundant backsights, 'N' = none
	LRUDAssociation       byte // 'F' = from station, 'T' = to station
}

// ParseFileFormat decodes a Compass format string (11 to 15 characters).
// Missing backsight and LRUD association characters default to 'N' and 'F'.
func ParseFileFormat(s string) FileFormat {
	f := FileFormat{Backsight: 'N', LRUDAssociation: 'F'}
	if len(s) < 11 {
		return f
	}
	f.BearingUnits = s[0]
	f.LengthUnits = s[1]
	f.PassageUnits = s[2]
	f.InclinationUnits = s[3]
	f.PassageDimensionOrder = []byte(s[4:8])
	rest := s[8:]
	switch len(rest) {
	case 3:
		f.ShotItemOrder = []byte(rest)
	case 4:
		f.ShotItemOrder = []byte(rest[:3])
		f.LRUDAssociation = rest[3]
	case 5:
		f.ShotItemOrder = []byte(rest[:3])
		f.Backsight = rest[3]
		f.LRUDAssociation = rest[4]
	case 6:
		f.ShotItemOrder = []byte(rest[:5])
		f.LRUDAssociation = rest[5]
	default:
		f.ShotItemOrder = []byte(rest[:5])
		f.Backsight = rest[5]
		f.LRUDAssociation = rest[6]
	}
	if f.Backsight == ' ' {
		f.Backsight = 'N'
	}
	if f.LRUDAssociation == ' ' {
		f.LRUDAssociation = 'F'
	}
	return f
}

// Survey is a named collection of shots with its header metadata.
type Survey struct {
	Name        string
	Date        time.Time
	Comment     string
	Team        []string
	Declination float64
	FileFormat  string
	Corrections string
	CaveName    string
	ShotHeader  []string
	Shots       []*Shot
}

// AddShot appends a shot, applying the survey's declination to it.
func (s *Survey) AddShot(shot *Shot) {
	shot.Declination = s.Declination
	s.Shots = append(s.Shots, shot)
}

// Format decodes the survey's format string.
func (s *Survey) Format() FileFormat { return ParseFileFormat(s.FileFormat) }

// Length is the total taped length of every shot, flagged or not.
func (s *Survey) Length() float64 {
	var total float64
	for _, shot := range s.Shots {
		if l, ok := shot.Length(); ok {
			total += l
		}
	}
	return total
}

// IncludedLength is the surveyed length with excluded shots removed.
func (s *Survey) IncludedLength() float64 {
	var total float64
	for _, shot := range s.Shots {
		if shot.IsExcluded() {
			continue
		}
		if l, ok := shot.Length(); ok {
			total += l
		}
	}
	return total
}

// ExcludedLength is the taped length of shots flagged out of the totals.
func (s *Survey) ExcludedLength() float64 {
	var total float64
	for _, shot := range s.Shots {
		if !shot.IsExcluded() {
			continue
		}
		if l, ok := shot.Length(); ok {
			total += l
		}
	}
	return total
}

// Contains reports whether any shot references the named station.
func (s *Survey) Contains(station string) bool {
	for _, shot := range s.Shots {
		if shot.From() == station || shot.To() == station {
			return true
		}
	}
	return false
}

// DatFile is the contents of one .DAT data file: a named collection of
// surveys plus any non-fatal diagnostics recorded while parsing it.
type DatFile struct {
	Name        string
	Surveys     []*Survey
	Diagnostics []survey.Diagnostic
}

func (d *DatFile) AddSurvey(s *Survey) { d.Surveys = append(d.Surveys, s) }

// Survey looks a survey up by name.
func (d *DatFile) Survey(name string) (*Survey, bool) {
	for _, s := range d.Surveys {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Length is the total surveyed length over all contained surveys.
func (d *DatFile) Length() float64 {
	var total float64
	for _, s := range d.Surveys {
		total += s.Length()
	}
	return total
}

func (d *DatFile) Len() int { return len(d.Surveys) }

// UTMLocation is a fixed base location: a projected coordinate with its
// UTM zone, grid convergence and datum.
type UTMLocation struct {
	Easting     float64
	Northing    float64
	Elevation   float64
	Zone        int
	Convergence float64
	Datum       string
}

func (u *UTMLocation) String() string {
	return fmt.Sprintf("<%s UTM Zone %d %.1fE %.1fN %.1f>",
		u.Datum, u.Zone, u.Easting, u.Northing, u.Elevation)
}

// Project is the contents of one .MAK project file: linked data files,
// an optional fixed base location and the file processing parameter flags.
type Project struct {
	Name            string
	BaseLocation    *UTMLocation
	FileParams      map[byte]bool
	LinkedFileNames []string
	LinkedFiles     []*DatFile
}

func (p *Project) AddLinkedFile(d *DatFile) { p.LinkedFiles = append(p.LinkedFiles, d) }

// File looks a linked data file up by name.
func (p *Project) File(name string) (*DatFile, bool) {
	for _, d := range p.LinkedFiles {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

func (p *Project) Len() int { return len(p.LinkedFiles) }
