// Package convert maps parsed PocketTopo surveys onto the Compass data
// model, including the reconstruction of LRUD passage dimensions from
// unstructured splay shots.
package convert

import (
	"fmt"
	"math"

	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"

	"github.com/speleotools/caveconv/internal/compass"
	"github.com/speleotools/caveconv/internal/pockettopo"
	"github.com/speleotools/caveconv/pkg/geometry"
	"github.com/speleotools/caveconv/pkg/survey"
)

// compassFileFormat is the format string written on converted surveys:
// degrees and meters throughout, matching PocketTopo's native metric
// shots, LRUD order, length/azimuth/inclination item order, no
// backsights, LRUD at the from station.
const compassFileFormat = "DMMDLRUDLADNF"

// shotHeader is the column order converted shots are emitted in. Compass
// requires the LEFT UP DOWN RIGHT dimension order.
var shotHeader = []string{
	compass.FieldFrom, compass.FieldTo, compass.FieldLength,
	compass.FieldBearing, compass.FieldInc,
	compass.FieldLeft, compass.FieldUp, compass.FieldDown, compass.FieldRight,
	compass.FieldFlags, compass.FieldComments,
}

// Options control the conversion.
type Options struct {
	// ExcludeSplays drops splay shots from the output entirely instead of
	// carrying them as flagged zero-topology legs.
	ExcludeSplays bool
	// CalculateLRUD reconstructs LEFT/RIGHT/UP/DOWN passage dimensions
	// from the splay shots recorded at each from station.
	CalculateLRUD bool
	// LRUDCone is the total horizontal acceptance cone in degrees: a splay
	// is a LEFT/RIGHT candidate when its azimuth and inclination are each
	// within half this angle of the target.
	LRUDCone float64
	// VerticalThreshold is the minimum inclination magnitude in degrees
	// for a splay to count as an UP or DOWN candidate. It is deliberately
	// independent of LRUDCone: steep splays are rare and azimuth is not
	// discriminating near vertical.
	VerticalThreshold float64

	Log logrus.FieldLogger
}

func DefaultOptions() Options {
	return Options{LRUDCone: 60, VerticalThreshold: 30}
}

// Converter maps PocketTopo containers to Compass containers.
type Converter struct {
	opts Options
	log  logrus.FieldLogger
}

func New(opts Options) *Converter {
	if opts.LRUDCone == 0 {
		opts.LRUDCone = 60
	}
	if opts.VerticalThreshold == 0 {
		opts.VerticalThreshold = 30
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Converter{opts: opts, log: log}
}

// ConvertFile maps every survey of a parsed .TXT export onto a Compass
// DatFile. The input graph is never mutated.
func (c *Converter) ConvertFile(in *pockettopo.TxtFile) (*compass.DatFile, error) {
	out := &compass.DatFile{Name: in.Name}
	for _, sv := range in.Surveys {
		converted, err := c.convertSurvey(sv, in.AngleUnits)
		if err != nil {
			return nil, err
		}
		out.AddSurvey(converted)
	}
	return out, nil
}

// convertSurvey carries the survey metadata over field for field and
// converts each shot. Surveys recorded in grads are normalized to degrees
// on a snapshot first so the caller's graph stays untouched.
func (c *Converter) convertSurvey(in *pockettopo.Survey, angleUnits int) (*compass.Survey, error) {
	if angleUnits == pockettopo.AngleGrads {
		in = deepcopy.Copy(in).(*pockettopo.Survey)
		normalizeGrads(in)
	}

	out := &compass.Survey{
		Name:        in.Name,
		Date:        in.Date,
		Comment:     in.Comment,
		CaveName:    in.CaveName,
		Declination: in.Declination,
		FileFormat:  compassFileFormat,
		ShotHeader:  shotHeader,
	}

	splays := in.Splays()
	namer := newSplayNamer()
	for _, shot := range in.Shots {
		if shot.IsSplay() && c.opts.ExcludeSplays {
			continue
		}
		converted, err := c.convertShot(shot, splays[shot.From()], namer)
		if err != nil {
			return nil, fmt.Errorf("survey %s: %w", in.Name, err)
		}
		out.AddShot(converted)
	}
	return out, nil
}

// convertShot maps one PocketTopo shot onto a Compass shot. The raw,
// declination-free azimuth and the single inclination reading carry over
// directly; Compass BEARING/INC correspond to PocketTopo AZM/INC, the
// naming mismatch is cosmetic.
func (c *Converter) convertShot(in *pockettopo.Shot, splays []*pockettopo.Shot, namer *splayNamer) (*compass.Shot, error) {
	length, ok := in.Length()
	if !ok {
		return nil, fmt.Errorf("shot from %s has no length reading", in.From())
	}
	azm, _ := in.Float(pockettopo.FieldAzimuth)
	inc, _ := in.Float(pockettopo.FieldInc)

	var lrud *lrudValues
	if c.opts.CalculateLRUD && !in.IsSplay() && len(splays) > 0 {
		lrud = c.synthesizeLRUD(in.From(), azm, splays)
	}

	// Compass requires a named TO station; splays get a synthetic one.
	to := in.To()
	if to == "" {
		to = namer.next(in.From())
	}

	out := compass.NewShot()
	out.Set(compass.FieldFrom, survey.TextValue(in.From()))
	out.Set(compass.FieldTo, survey.TextValue(to))
	out.Set(compass.FieldLength, survey.Num(length))
	out.Set(compass.FieldBearing, survey.Num(azm))
	out.Set(compass.FieldInc, survey.Num(inc))
	out.Set(compass.FieldLeft, lrudValue(lrud, func(v *lrudValues) float64 { return v.left }))
	out.Set(compass.FieldUp, lrudValue(lrud, func(v *lrudValues) float64 { return v.up }))
	out.Set(compass.FieldDown, lrudValue(lrud, func(v *lrudValues) float64 { return v.down }))
	out.Set(compass.FieldRight, lrudValue(lrud, func(v *lrudValues) float64 { return v.right }))

	// Splay lengths are excluded from cave length and plotting, mirroring
	// PocketTopo's own treatment of splays.
	if in.IsSplay() {
		out.Set(compass.FieldFlags, survey.TextValue(string([]byte{compass.ExcludeLength, compass.ExcludePlot})))
	} else {
		out.Set(compass.FieldFlags, survey.TextValue(""))
	}
	out.Set(compass.FieldComments, survey.TextValue(in.Comment()))
	return out, nil
}

type lrudValues struct {
	left, right, up, down float64
}

// lrudValue renders one dimension: genuinely unmeasured dimensions get
// the Compass no-data sentinel, while a measured-but-empty direction is a
// zero extent.
func lrudValue(v *lrudValues, pick func(*lrudValues) float64) survey.Value {
	if v == nil {
		return survey.MissingValue()
	}
	return survey.Num(pick(v))
}

// synthesizeLRUD reconstructs the four passage dimensions at a station
// from its splay fan. Horizontal dimensions select, among splays within
// the acceptance cone of the perpendicular azimuth at inclination 0, the
// one with the greatest horizontal projection. Vertical dimensions select
// among steep splays by vertical projection. "No candidate" is a zero
// extent, not missing data.
func (c *Converter) synthesizeLRUD(station string, shotAzm float64, splays []*pockettopo.Shot) *lrudValues {
	leftAzm := geometry.NormalizeAzimuth(shotAzm - 90)
	rightAzm := geometry.NormalizeAzimuth(shotAzm + 90)

	v := &lrudValues{
		left:  c.bestHorizontal(splays, leftAzm),
		right: c.bestHorizontal(splays, rightAzm),
		up:    c.bestVertical(splays, +1),
		down:  c.bestVertical(splays, -1),
	}

	// All four dimensions must be non-negative extents. A violation is a
	// sign-convention defect in the candidate math, not bad input.
	if v.left < 0 || v.right < 0 || v.up < 0 || v.down < 0 {
		panic(fmt.Sprintf("convert: negative LRUD at station %s: %+v", station, *v))
	}

	c.log.WithFields(logrus.Fields{
		"station": station, "splays": len(splays),
		"left": v.left, "right": v.right, "up": v.up, "down": v.down,
	}).Debug("synthesized LRUD from splays")
	return v
}

// bestHorizontal returns the horizontal extent toward targetAzm: the
// largest horizontal projection among splays whose azimuth is within half
// the cone of the target and whose inclination is within half the cone
// of level.
func (c *Converter) bestHorizontal(splays []*pockettopo.Shot, targetAzm float64) float64 {
	half := c.opts.LRUDCone / 2
	best := 0.0
	for _, s := range splays {
		azm, aok := s.Float(pockettopo.FieldAzimuth)
		inc, iok := s.Float(pockettopo.FieldInc)
		length, lok := s.Length()
		if !aok || !iok || !lok {
			continue
		}
		if geometry.AngleDelta(azm, targetAzm) > half || geometry.AngleDelta(inc, 0) > half {
			continue
		}
		if hd := geometry.HorizontalDistance(inc, length); hd > best {
			best = hd
		}
	}
	return best
}

// bestVertical returns the vertical extent for sign +1 (UP, splays with
// inclination at or above the threshold) or -1 (DOWN, at or below the
// negated threshold). The DOWN magnitude is reported non-negative despite
// its negative source inclination.
func (c *Converter) bestVertical(splays []*pockettopo.Shot, sign float64) float64 {
	best := 0.0
	for _, s := range splays {
		inc, iok := s.Float(pockettopo.FieldInc)
		length, lok := s.Length()
		if !iok || !lok {
			continue
		}
		if sign*inc < c.opts.VerticalThreshold {
			continue
		}
		if vd := math.Abs(geometry.VerticalDistance(inc, length)); vd > best {
			best = vd
		}
	}
	return best
}

// normalizeGrads rescales every angular reading of a snapshot survey from
// grads to degrees so downstream cone math works in one unit.
func normalizeGrads(s *pockettopo.Survey) {
	const gradsToDegrees = 360.0 / 400.0
	for _, shot := range s.Shots {
		for _, key := range []string{pockettopo.FieldAzimuth, pockettopo.FieldInc} {
			if f, ok := shot.Float(key); ok {
				shot.Set(key, survey.Num(f*gradsToDegrees))
			}
		}
	}
}

// splayNamer invents TO station names for splays: a deterministic
// per-station sequence like T3.s001, T3.s002. Uniqueness against real
// station names is best effort; a survey could legitimately contain a
// station matching the pattern.
type splayNamer struct {
	counts map[string]int
}

func newSplayNamer() *splayNamer {
	return &splayNamer{counts: make(map[string]int)}
}

func (n *splayNamer) next(from string) string {
	n.counts[from]++
	return fmt.Sprintf("%s.s%03d", from, n.counts[from])
}
