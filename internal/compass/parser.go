package compass

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"

	"github.com/speleotools/caveconv/pkg/survey"
	"github.com/speleotools/caveconv/pkg/util"
)

// ParseError is a terminal, structural parse failure. It carries the
// offending raw text and aborts the whole-file parse; there is no
// partial-survey recovery.
type ParseError struct {
	File string
	Msg  string
	Raw  string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("compass: %s: %s: %q", e.File, e.Msg, e.Raw)
	}
	return fmt.Sprintf("compass: %s: %q", e.Msg, e.Raw)
}

// coercer holds the .DAT field coercion table. LRUD fields have passage
// sentinels that decode to +Inf rather than "missing".
var coercer = survey.Coercer{
	FloatFields: map[string]bool{
		FieldLength: true, FieldBearing: true, FieldAzm2: true,
		FieldInc: true, FieldInc2: true,
		FieldLeft: true, FieldRight: true, FieldUp: true, FieldDown: true,
	},
	PassageFields: map[string]bool{
		FieldLeft: true, FieldRight: true, FieldUp: true, FieldDown: true,
	},
	NoDataSentinels:  []string{NoDataSentinel},
	PassageSentinels: []string{PassageSentinel, PassageSentinel2},
}

var dateLayouts = []string{"1 2 2006", "1 2 06"}

// record separators used by the .DAT format
const (
	formFeed = "\x0c" // one survey record per form-feed-separated chunk
	softEOF  = "\x1a" // legacy SUB character some writers place at EOF
)

// DatParser parses Compass .DAT data files.
type DatParser struct {
	Log logrus.FieldLogger
}

func NewDatParser() *DatParser {
	return &DatParser{Log: logrus.StandardLogger()}
}

// ParseDat parses a .DAT file with a default parser.
func ParseDat(path string) (*DatFile, error) {
	return NewDatParser().ParseFile(path)
}

// ParseFile reads and parses one .DAT file. The file is nominally ASCII
// but team names are known to carry Windows-1252 bytes, so the whole file
// is decoded tolerantly rather than rejected.
func (p *DatParser) ParseFile(path string) (*DatFile, error) {
	p.logger().WithField("file", path).Debug("parsing Compass .DAT file")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data file %s: %w", path, err)
	}

	dat := &DatFile{Name: util.NameFromFilename(path)}
	chunks := strings.Split(string(decoded), formFeed)
	for i, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		if i == len(chunks)-1 && chunk == softEOF {
			continue // soft EOF marker, not a survey record
		}
		s, err := p.parseSurvey(chunk)
		if err != nil {
			if pe, ok := err.(*ParseError); ok && pe.File == "" {
				pe.File = path
			}
			return nil, err
		}
		dat.AddSurvey(s)
	}
	p.logger().WithFields(logrus.Fields{"file": path, "surveys": dat.Len()}).
		Debug("parsed Compass .DAT file")
	return dat, nil
}

// parseSurvey decodes one form-feed-delimited survey record: a fixed
// header block followed by a column header line and shot rows.
func (p *DatParser) parseSurvey(chunk string) (*Survey, error) {
	lines := util.SplitLines(chunk)
	if len(lines) < 10 {
		return nil, &ParseError{
			Msg: fmt.Sprintf("expected at least 10 lines in a Compass survey, found %d", len(lines)),
			Raw: chunk,
		}
	}

	s := &Survey{}
	idx := 0

	// The undelimited cave name line may be empty, in which case the
	// record starts with the SURVEY NAME label directly.
	first := strings.TrimSpace(lines[idx])
	idx++
	if strings.HasPrefix(first, "SURVEY NAME:") {
		s.CaveName = ""
		s.Name = strings.TrimSpace(strings.TrimPrefix(first, "SURVEY NAME:"))
	} else {
		s.CaveName = first
		parts := strings.SplitN(lines[idx], "SURVEY NAME:", 2)
		idx++
		if len(parts) < 2 {
			return nil, &ParseError{Msg: "missing SURVEY NAME line", Raw: lines[idx-1]}
		}
		s.Name = strings.TrimSpace(parts[1])
	}

	// Date and optional comment share one line.
	dateLine := lines[idx]
	idx++
	parts := strings.SplitN(dateLine, "SURVEY DATE:", 2)
	if len(parts) < 2 {
		return nil, &ParseError{Msg: "missing SURVEY DATE line", Raw: dateLine}
	}
	dateComment := strings.SplitN(parts[1], "COMMENT:", 2)
	date, err := parseDate(dateComment[0])
	if err != nil {
		return nil, &ParseError{Msg: "unable to parse SURVEY DATE", Raw: dateLine}
	}
	s.Date = date
	if len(dateComment) > 1 {
		s.Comment = strings.TrimSpace(dateComment[1])
	}

	idx++ // SURVEY TEAM: label line
	for _, member := range strings.Split(lines[idx], ",") {
		s.Team = append(s.Team, strings.TrimSpace(member))
	}
	idx++

	s.Declination, s.FileFormat, s.Corrections = parseDeclinationLine(lines[idx])
	idx++

	idx++ // blank separator
	s.ShotHeader = strings.Fields(lines[idx])
	idx++
	idx++ // blank separator

	for ; idx < len(lines); idx++ {
		row := strings.TrimSpace(lines[idx])
		if row == "" {
			continue
		}
		s.AddShot(p.parseShotRow(row, s.ShotHeader))
	}
	return s, nil
}

// parseShotRow tokenizes one data row against the column header. The last
// two header columns are always FLAGS and COMMENTS; the row is split by
// the header arity minus two so a trailing flags/comment blob survives
// embedded spaces, then the blob is decoded with the "#|<flags>#<comment>"
// convention. A blob without the marker is comment-only with no flags.
func (p *DatParser) parseShotRow(row string, header []string) *Shot {
	vals := util.SplitMax(row, len(header)-2)
	if len(vals) > len(header)-2 {
		blob := vals[len(vals)-1]
		vals = vals[:len(vals)-1]
		var flags, comment string
		if strings.HasPrefix(blob, "#|") {
			flags, comment, _ = strings.Cut(blob[2:], "#")
		} else {
			comment = blob
		}
		vals = append(vals, flags, strings.TrimSpace(comment))
	}

	shot := NewShot()
	for i, key := range header {
		if i >= len(vals) {
			break
		}
		shot.Set(key, coercer.CoerceWith(p.logger(), key, vals[i]))
	}
	return shot
}

func (p *DatParser) logger() logrus.FieldLogger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

// ProjectParser parses Compass .MAK project files and recursively parses
// every linked .DAT file.
type ProjectParser struct {
	Log logrus.FieldLogger
}

func NewProjectParser() *ProjectParser {
	return &ProjectParser{Log: logrus.StandardLogger()}
}

// ParseProject parses a .MAK file with a default parser.
func ParseProject(path string) (*Project, error) {
	return NewProjectParser().ParseFile(path)
}

// ParseFile reads one .MAK project file and parses every linked data
// file, resolved relative to the project file's directory. Resolution is
// case-sensitive on case-sensitive filesystems; linked names that differ
// from the on-disk name only by case are a known gap and will fail to
// open. A malformed linked file aborts the whole project parse.
func (p *ProjectParser) ParseFile(path string) (*Project, error) {
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithField("file", path).Debug("parsing Compass .MAK file")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open project file: %w", err)
	}

	proj := &Project{Name: util.NameFromFilename(path), FileParams: make(map[byte]bool)}

	// Prefix-dispatched records. A record not ending in the terminator
	// continues on the next physical line; the assembled record is
	// dispatched once terminated.
	var pending string
	dispatch := func(rec string) error {
		head, value := rec[0], strings.TrimSuffix(rec[1:], ";")
		switch head {
		case '@':
			loc, err := parseBaseLocation(value)
			if err != nil {
				return &ParseError{File: path, Msg: "invalid base location", Raw: rec}
			}
			proj.BaseLocation = loc
		case '&':
			if proj.BaseLocation == nil {
				proj.BaseLocation = &UTMLocation{}
			}
			proj.BaseLocation.Datum = value
		case '%':
			conv, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return &ParseError{File: path, Msg: "invalid convergence", Raw: rec}
			}
			if proj.BaseLocation == nil {
				proj.BaseLocation = &UTMLocation{}
			}
			proj.BaseLocation.Convergence = conv
		case '!':
			for _, c := range strings.ToUpper(value) {
				proj.FileParams[byte(c)] = true
			}
		case '#':
			// Linked-file values may carry station-linking parameters
			// after the filename; only the filename is used for now.
			name, _, _ := strings.Cut(value, ",")
			proj.LinkedFileNames = append(proj.LinkedFileNames, name)
		default:
			log.WithFields(logrus.Fields{"file": path, "record": rec}).
				Debug("ignoring unrecognized .MAK record")
		}
		return nil
	}

	for _, line := range util.SplitLines(string(raw)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pending += line
		if pending[0] == '/' {
			pending = "" // comment
			continue
		}
		if !strings.HasSuffix(pending, ";") {
			continue // record continues on the next line
		}
		rec := pending
		pending = ""
		if err := dispatch(rec); err != nil {
			return nil, err
		}
	}
	if pending != "" {
		if err := dispatch(pending); err != nil {
			return nil, err
		}
	}

	dir := filepath.Dir(path)
	for _, name := range proj.LinkedFileNames {
		linked := filepath.Join(dir, filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))
		dat, err := (&DatParser{Log: log}).ParseFile(linked)
		if err != nil {
			return nil, err
		}
		proj.AddLinkedFile(dat)
	}

	log.WithFields(logrus.Fields{
		"file": path, "linked_files": proj.Len(), "params": len(proj.FileParams),
	}).Debug("parsed Compass .MAK file")
	return proj, nil
}

// parseBaseLocation decodes the '@' record: easting, northing, elevation
// and UTM zone, with an optional trailing convergence.
func parseBaseLocation(value string) (*UTMLocation, error) {
	toks := strings.Split(value, ",")
	if len(toks) < 4 {
		return nil, fmt.Errorf("expected at least 4 fields, got %d", len(toks))
	}
	nums := make([]float64, 0, len(toks))
	for _, t := range toks {
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, err
		}
		nums = append(nums, f)
	}
	loc := &UTMLocation{
		Easting:   nums[0],
		Northing:  nums[1],
		Elevation: nums[2],
		Zone:      int(nums[3]),
	}
	if len(nums) > 4 {
		loc.Convergence = nums[4]
	}
	return loc, nil
}

// parseDeclinationLine decodes the "DECLINATION: ... FORMAT: ...
// CORRECTIONS: ..." header line. Every segment is optional; instrument
// corrections are retained verbatim, reserved for future correction rules.
func parseDeclinationLine(line string) (decl float64, format, corrections string) {
	if rest, ok := cutAfter(line, "DECLINATION:"); ok {
		if toks := strings.Fields(rest); len(toks) > 0 {
			decl, _ = strconv.ParseFloat(toks[0], 64)
		}
	}
	if rest, ok := cutAfter(line, "FORMAT:"); ok {
		if toks := strings.Fields(rest); len(toks) > 0 {
			format = toks[0]
		}
	}
	if rest, ok := cutAfter(line, "CORRECTIONS:"); ok {
		corrections = strings.TrimSpace(rest)
	}
	return decl, format, corrections
}

func cutAfter(s, label string) (string, bool) {
	i := strings.Index(s, label)
	if i < 0 {
		return "", false
	}
	return s[i+len(label):], true
}

func parseDate(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
