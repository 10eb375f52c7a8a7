// Package pockettopo models PocketTopo survey data and parses the .TXT
// export file format.
package pockettopo

import (
	"fmt"
	"time"

	"github.com/speleotools/caveconv/pkg/survey"
)

// Shot field names.
const (
	FieldFrom    = "FROM"
	FieldTo      = "TO"
	FieldLength  = "LENGTH"
	FieldAzimuth = "AZM"
	FieldInc     = "INC"
	FieldComment = "COMMENT"
)

// Angle unit tokens carried by the .TXT header.
const (
	AngleDegrees = 360
	AngleGrads   = 400
)

// Shot is a single measured leg or splay in a PocketTopo survey.
type Shot struct {
	survey.Record
}

func NewShot() *Shot {
	return &Shot{Record: *survey.NewRecord()}
}

func (s *Shot) From() string    { return s.Str(FieldFrom) }
func (s *Shot) To() string      { return s.Str(FieldTo) }
func (s *Shot) Comment() string { return s.Str(FieldComment) }

// IsSplay reports whether this shot has no destination station and only
// sketches the passage cross-section.
func (s *Shot) IsSplay() bool { return s.To() == "" }

// Azimuth is the corrected azimuth: the single compass reading plus the
// survey's declination. PocketTopo exports carry no backsights.
func (s *Shot) Azimuth() (float64, bool) {
	azm, _ := s.Get(FieldAzimuth)
	return survey.CorrectedAzimuth(azm, survey.MissingValue(), s.Declination)
}

// Inclination is the single clino reading.
func (s *Shot) Inclination() (float64, bool) {
	inc, _ := s.Get(FieldInc)
	return survey.CorrectedInclination(inc, survey.MissingValue())
}

// Length is the taped distance in the file's length unit.
func (s *Shot) Length() (float64, bool) {
	return s.Float(FieldLength)
}

// Survey is one PocketTopo trip: a named collection of shots with the
// trip metadata from the bracketed header block.
type Survey struct {
	Name        string
	Date        time.Time
	Comment     string
	Declination float64
	CaveName    string
	Shots       []*Shot
}

// AddShot appends a shot, applying the survey's declination to it.
func (s *Survey) AddShot(shot *Shot) {
	shot.Declination = s.Declination
	s.Shots = append(s.Shots, shot)
}

// Length is the surveyed length excluding splays, which are not
// load-bearing to cave length.
func (s *Survey) Length() float64 {
	var total float64
	for _, shot := range s.Shots {
		if shot.IsSplay() {
			continue
		}
		if l, ok := shot.Length(); ok {
			total += l
		}
	}
	return total
}

// TotalLength is the surveyed length including splays.
func (s *Survey) TotalLength() float64 {
	var total float64
	for _, shot := range s.Shots {
		if l, ok := shot.Length(); ok {
			total += l
		}
	}
	return total
}

// Splays indexes the survey's splay shots by their FROM station.
func (s *Survey) Splays() map[string][]*Shot {
	idx := make(map[string][]*Shot)
	for _, shot := range s.Shots {
		if shot.IsSplay() {
			idx[shot.From()] = append(idx[shot.From()], shot)
		}
	}
	return idx
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

// UTMLocation is a projected reference-point coordinate. PocketTopo does
// not record UTM zones; the free-text comment is kept instead.
type UTMLocation struct {
	Easting   float64
	Northing  float64
	Elevation float64
	Comment   string
}

func (u *UTMLocation) String() string {
	return fmt.Sprintf("<UTM %.1fE %.1fN %.1fm>", u.Easting, u.Northing, u.Elevation)
}

// ReferencePoint ties a station name to a fixed location.
type ReferencePoint struct {
	Station  string
	Location UTMLocation
}

// TxtFile is the contents of one .TXT export: header units, the trip
// surveys, the fixed reference points and any non-fatal diagnostics
// recorded while parsing.
type TxtFile struct {
	Name            string
	LengthUnits     string // "m" or "feet"
	AngleUnits      int    // 360 for degrees, 400 for grads
	Surveys         []*Survey
	ReferencePoints []ReferencePoint
	Diagnostics     []survey.Diagnostic
}

func (t *TxtFile) AddSurvey(s *Survey) { t.Surveys = append(t.Surveys, s) }

func (t *TxtFile) AddReferencePoint(station string, loc UTMLocation) {
	t.ReferencePoints = append(t.ReferencePoints, ReferencePoint{Station: station, Location: loc})
}

// Survey looks a survey up by its trip identifier.
func (t *TxtFile) Survey(id string) (*Survey, bool) {
	for _, s := range t.Surveys {
		if s.Name == id {
			return s, true
		}
	}
	return nil, false
}

// Length is the total surveyed length over all contained surveys,
// excluding splays.
func (t *TxtFile) Length() float64 {
	var total float64
	for _, s := range t.Surveys {
		total += s.Length()
	}
	return total
}

func (t *TxtFile) Len() int { return len(t.Surveys) }
