package pockettopo

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"

	"github.com/speleotools/caveconv/pkg/survey"
	"github.com/speleotools/caveconv/pkg/util"
)

// ParseError is a terminal, structural parse failure carrying the
// offending raw text. It aborts the whole-file parse.
type ParseError struct {
	File string
	Line int
	Msg  string
	Raw  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("pockettopo: %s:%d: %s: %q", e.File, e.Line, e.Msg, e.Raw)
	}
	return fmt.Sprintf("pockettopo: %s: %s: %q", e.File, e.Msg, e.Raw)
}

// headerRe matches the first line: cave name followed by parenthesized
// length and angle unit tokens, e.g. `Test Cave (m,360`.
var headerRe = regexp.MustCompile(`^([\w\s]*)\(([\w\s]*),([\w\s]*)`)

const tripDateLayout = "2006/01/02"

// TxtParser parses PocketTopo .TXT export files.
type TxtParser struct {
	Log logrus.FieldLogger
}

func NewTxtParser() *TxtParser {
	return &TxtParser{Log: logrus.StandardLogger()}
}

// ParseTxt parses a .TXT file with a default parser.
func ParseTxt(path string) (*TxtFile, error) {
	return NewTxtParser().ParseFile(path)
}

// ParseFile reads and parses one .TXT export. PocketTopo exports are
// written in the Windows-1252 codepage, not UTF-8, so the file is decoded
// bit-exactly rather than assumed ASCII.
func (p *TxtParser) ParseFile(path string) (*TxtFile, error) {
	log := p.logger()
	log.WithField("file", path).Debug("parsing PocketTopo .TXT file")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode export file %s: %w", path, err)
	}
	lines := util.SplitLines(string(decoded))

	txt, err := p.parseHeader(path, lines)
	if err != nil {
		return nil, err
	}
	i := 1
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}

	// Trip metadata block: one bracketed line per survey, registering it
	// under its identifier for the shot block below.
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "[") {
			break
		}
		s, err := parseTripLine(path, i+1, line)
		if err != nil {
			return nil, err
		}
		s.CaveName = txt.Name
		txt.AddSurvey(s)
	}

	// Shot and reference-point block, interleaved, to end of file.
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if err := p.parseDataLine(txt, path, i+1, line); err != nil {
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"file": path, "surveys": txt.Len(), "reference_points": len(txt.ReferencePoints),
	}).Debug("parsed PocketTopo .TXT file")
	return txt, nil
}

func (p *TxtParser) parseHeader(path string, lines []string) (*TxtFile, error) {
	if len(lines) == 0 {
		return nil, &ParseError{File: path, Line: 1, Msg: "empty export file"}
	}
	m := headerRe.FindStringSubmatch(lines[0])
	if m == nil {
		return nil, &ParseError{File: path, Line: 1, Msg: "malformed header line", Raw: lines[0]}
	}
	lengthUnits := strings.TrimSpace(m[2])
	if lengthUnits != "m" && lengthUnits != "feet" {
		return nil, &ParseError{File: path, Line: 1, Msg: "length units must be 'm' or 'feet'", Raw: lines[0]}
	}
	angleUnits, err := strconv.Atoi(strings.TrimSpace(m[3]))
	if err != nil || (angleUnits != AngleDegrees && angleUnits != AngleGrads) {
		return nil, &ParseError{File: path, Line: 1, Msg: "angle units must be 360 or 400", Raw: lines[0]}
	}
	return &TxtFile{
		Name:        strings.TrimSpace(m[1]),
		LengthUnits: lengthUnits,
		AngleUnits:  angleUnits,
	}, nil
}

// parseTripLine decodes one `[id] YYYY/MM/DD declination "comment"` line.
func parseTripLine(path string, lineno int, line string) (*Survey, error) {
	toks := util.SplitMax(line, 3)
	if len(toks) < 3 {
		return nil, &ParseError{File: path, Line: lineno, Msg: "malformed trip metadata line", Raw: line}
	}
	id := strings.Trim(toks[0], "[]:")
	date, err := time.Parse(tripDateLayout, toks[1])
	if err != nil {
		return nil, &ParseError{File: path, Line: lineno, Msg: "unable to parse trip date", Raw: line}
	}
	declination, err := strconv.ParseFloat(toks[2], 64)
	if err != nil {
		return nil, &ParseError{File: path, Line: lineno, Msg: "unable to parse trip declination", Raw: line}
	}
	var comment string
	if len(toks) == 4 {
		comment = strings.Trim(toks[3], `"`)
	}
	return &Survey{Name: id, Date: date, Comment: comment, Declination: declination}, nil
}

// parseDataLine decodes one line of the shot/reference-point block. A
// bracketed survey-id suffix marks a shot; anything else is a reference
// point, a zero-length placeholder, or an unrecognized row to skip.
func (p *TxtParser) parseDataLine(txt *TxtFile, path string, lineno int, line string) error {
	// An embedded double quote starts an inline comment.
	var comment string
	hasComment := false
	if q := strings.IndexByte(line, '"'); q >= 0 {
		comment = strings.TrimRight(line[q+1:], `"`)
		hasComment = true
		line = strings.TrimSpace(line[:q])
	}

	if !strings.Contains(line, "[") {
		return p.parseReferencePoint(txt, path, lineno, line, comment)
	}

	body, idPart, _ := strings.Cut(line, "[")
	surveyID := strings.TrimSuffix(strings.TrimSpace(idPart), "]")
	toks := strings.Fields(body)
	if len(toks) < 3 {
		return &ParseError{File: path, Line: lineno, Msg: "malformed shot line", Raw: line}
	}
	nums := make([]float64, 3)
	for j, t := range toks[len(toks)-3:] {
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return &ParseError{File: path, Line: lineno, Msg: "unable to parse shot measurements", Raw: line}
		}
		nums[j] = f
	}
	length, azm, inc := nums[0], nums[1], nums[2]

	var from, to string
	stations := toks[:len(toks)-3]
	switch len(stations) {
	case 2:
		from, to = stations[0], stations[1]
	case 1:
		from = stations[0] // splay
	case 0:
		if length == 0 {
			return nil // junk zero-length placeholder
		}
		return &ParseError{File: path, Line: lineno, Msg: "shot with no stations", Raw: line}
	default:
		return &ParseError{File: path, Line: lineno, Msg: "unexpected station token count", Raw: line}
	}

	shot := NewShot()
	shot.Set(FieldFrom, survey.TextValue(from))
	if to != "" {
		shot.Set(FieldTo, survey.TextValue(to))
	}
	shot.Set(FieldLength, survey.Num(length))
	shot.Set(FieldAzimuth, survey.Num(azm))
	shot.Set(FieldInc, survey.Num(inc))
	if hasComment {
		shot.Set(FieldComment, survey.TextValue(comment))
	}

	// A shot referencing an unregistered trip id indicates file corruption.
	sv, ok := txt.Survey(surveyID)
	if !ok {
		return &ParseError{File: path, Line: lineno, Msg: "shot references unregistered survey id " + surveyID, Raw: line}
	}
	sv.AddShot(shot)
	return nil
}

// parseReferencePoint handles the non-bracketed rows: 4 tokens are either
// a fixed reference point or, when the first measurement is exactly zero,
// a degenerate placeholder row. Other shapes are skipped with a
// diagnostic; PocketTopo emits trip metadata rows this parser does not
// recognize.
func (p *TxtParser) parseReferencePoint(txt *TxtFile, path string, lineno int, line, comment string) error {
	skip := func(msg string) {
		p.logger().WithFields(logrus.Fields{"file": path, "line": lineno, "row": line}).Debug(msg)
		txt.Diagnostics = append(txt.Diagnostics, survey.Diagnostic{
			File: path, Line: lineno, Msg: msg, Raw: line,
		})
	}

	toks := strings.Fields(line)
	if len(toks) != 4 {
		skip("skipping unrecognized row")
		return nil
	}
	nums := make([]float64, 3)
	for j, t := range toks[1:] {
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			skip("skipping row with non-numeric measurement")
			return nil
		}
		nums[j] = f
	}
	if nums[0] == 0 {
		skip("skipping zero-length placeholder shot")
		return nil
	}
	txt.AddReferencePoint(toks[0], UTMLocation{
		Easting:   nums[0],
		Northing:  nums[1],
		Elevation: nums[2],
		Comment:   comment,
	})
	return nil
}

func (p *TxtParser) logger() logrus.FieldLogger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}
