package compass

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/speleotools/caveconv/pkg/survey"
)

// Serialize renders the DatFile back to Compass .DAT text: CRLF line
// endings, one form-feed-terminated record per survey and a trailing SUB
// soft-EOF marker.
func (d *DatFile) Serialize() string {
	var b strings.Builder
	for _, s := range d.Surveys {
		b.WriteString(s.serialize())
		b.WriteString("\x0c\r\n")
	}
	b.WriteString(softEOF)
	return b.String()
}

// WriteFile writes the serialized .DAT text, encoded to the Windows-1252
// codepage Compass expects.
func (d *DatFile) WriteFile(path string) error {
	data, err := charmap.Windows1252.NewEncoder().Bytes([]byte(d.Serialize()))
	if err != nil {
		return fmt.Errorf("failed to encode data file %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write data file: %w", err)
	}
	return nil
}

func (s *Survey) serialize() string {
	var b strings.Builder
	if s.CaveName != "" {
		b.WriteString(s.CaveName)
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "SURVEY NAME: %s\r\n", s.Name)
	fmt.Fprintf(&b, "SURVEY DATE: %d %d %d  COMMENT: %s\r\n",
		int(s.Date.Month()), s.Date.Day(), s.Date.Year(), s.Comment)
	b.WriteString("SURVEY TEAM:\r\n")
	b.WriteString(strings.Join(s.Team, ","))
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "DECLINATION: %8.2f", s.Declination)
	if s.FileFormat != "" {
		fmt.Fprintf(&b, "  FORMAT: %s", s.FileFormat)
	}
	if s.Corrections != "" {
		fmt.Fprintf(&b, "  CORRECTIONS: %s", s.Corrections)
	}
	b.WriteString("\r\n\r\n")

	header := s.ShotHeader
	if len(header) == 0 {
		header = []string{
			FieldFrom, FieldTo, FieldLength, FieldBearing, FieldInc,
			FieldLeft, FieldUp, FieldDown, FieldRight, FieldFlags, FieldComments,
		}
	}
	for i, h := range header {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "%-9s", h)
	}
	b.WriteString("\r\n\r\n")

	for _, shot := range s.Shots {
		b.WriteString(serializeShot(shot, header))
		b.WriteString("\r\n")
	}
	return b.String()
}

// serializeShot renders one data row in header order. Flags and comment
// collapse into the trailing "#|<flags>#<comment>" blob; a comment with no
// flags is written bare.
func serializeShot(shot *Shot, header []string) string {
	var cols []string
	var flags, comment string
	for _, key := range header {
		switch key {
		case FieldFlags:
			flags = shot.FlagString()
		case FieldComments:
			comment = shot.Str(FieldComments)
		default:
			v, _ := shot.Get(key)
			cols = append(cols, renderValue(key, v))
		}
	}
	row := strings.Join(cols, "  ")
	switch {
	case flags != "":
		row += fmt.Sprintf("  #|%s#%s", flags, comment)
	case comment != "":
		row += "  " + comment
	}
	return row
}

func renderValue(field string, v survey.Value) string {
	switch {
	case v.IsMissing():
		return fmt.Sprintf("%9s", NoDataSentinel)
	case v.IsPassage():
		return fmt.Sprintf("%9s", PassageSentinel)
	case v.Kind == survey.Number:
		return fmt.Sprintf("%9.2f", v.Num)
	}
	if field == FieldFrom || field == FieldTo {
		return fmt.Sprintf("%-9s", v.Str)
	}
	return fmt.Sprintf("%9s", v.Str)
}
