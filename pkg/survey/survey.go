// Package survey holds the format-agnostic pieces of the cave survey data
// model: ordered field records, raw-value coercion and the corrected-reading
// math shared by the Compass and PocketTopo packages.
package survey

import (
	"fmt"
	"math"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Kind discriminates the decoded forms a raw field value can take.
type Kind int

const (
	// Missing means the file carried a "no reading" sentinel for this field.
	// It is distinct from a true zero reading.
	Missing Kind = iota
	Number
	Text
)

// Value is one decoded shot field. A numeric field that failed coercion is
// retained as Text so a bad value never aborts a whole record.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
}

func MissingValue() Value        { return Value{Kind: Missing} }
func Num(f float64) Value        { return Value{Kind: Number, Num: f} }
func TextValue(s string) Value   { return Value{Kind: Text, Str: s} }
func (v Value) IsMissing() bool  { return v.Kind == Missing }
func (v Value) IsPassage() bool  { return v.Kind == Number && math.IsInf(v.Num, 1) }

// Float returns the numeric value, reporting false for missing or text values.
func (v Value) Float() (float64, bool) {
	if v.Kind != Number {
		return 0, false
	}
	return v.Num, true
}

func (v Value) String() string {
	switch v.Kind {
	case Missing:
		return ""
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return v.Str
	}
}

// Record is an ordered field -> value mapping for a single measured leg,
// plus the magnetic declination applied by its owning survey. Insertion
// order is preserved and keys are unique. Fields are exported so a record
// can be snapshotted with reflection-based deep copies.
type Record struct {
	Order       []string
	Values      map[string]Value
	Declination float64
}

func NewRecord() *Record {
	return &Record{Values: make(map[string]Value)}
}

// Set stores a value under key, appending the key on first insert and
// keeping its original position on overwrite.
func (r *Record) Set(key string, v Value) {
	if r.Values == nil {
		r.Values = make(map[string]Value)
	}
	if _, ok := r.Values[key]; !ok {
		r.Order = append(r.Order, key)
	}
	r.Values[key] = v
}

func (r *Record) Get(key string) (Value, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// Float returns the numeric reading for key, false when the field is
// absent, missing or textual.
func (r *Record) Float(key string) (float64, bool) {
	v, ok := r.Values[key]
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Str returns the textual rendering of key, or "" when absent.
func (r *Record) Str(key string) string {
	v, ok := r.Values[key]
	if !ok {
		return ""
	}
	return v.String()
}

func (r *Record) Keys() []string { return r.Order }
func (r *Record) Len() int       { return len(r.Order) }

// CorrectedAzimuth combines a forward compass reading with an optional
// backsight (reciprocal, offset 180 degrees, modulo 360) and adds the
// declination. With both readings present the two are averaged. Reports
// false when neither reading exists.
func CorrectedAzimuth(fwd, back Value, declination float64) (float64, bool) {
	f, fok := fwd.Float()
	b, bok := back.Float()
	switch {
	case !fok && !bok:
		return 0, false
	case !bok:
		return f + declination, true
	case !fok:
		return math.Mod(b+180, 360) + declination, true
	}
	return (f+math.Mod(b+180, 360))/2 + declination, true
}

// CorrectedInclination averages a forward clino reading with a negated
// backsight reading, or returns whichever single reading exists. Reports
// false when neither reading exists.
func CorrectedInclination(fwd, back Value) (float64, bool) {
	f, fok := fwd.Float()
	b, bok := back.Float()
	switch {
	case !fok && !bok:
		return 0, false
	case !bok:
		return f, true
	case !fok:
		return -b, true
	}
	return (f - b) / 2, true
}

// Coercer decodes raw textual field values into typed values. The rules
// are table-driven: FloatFields names the numeric fields, PassageFields
// the directional/LRUD fields whose passage sentinels decode to +Inf
// ("passage continues beyond instrument range", not "missing").
type Coercer struct {
	FloatFields      map[string]bool
	PassageFields    map[string]bool
	NoDataSentinels  []string
	PassageSentinels []string
	Log              logrus.FieldLogger
}

// Coerce decodes one raw value. Coercion failure on a numeric field is
// logged and the raw string is retained; it never aborts the record.
func (c *Coercer) Coerce(field, raw string) Value {
	return c.CoerceWith(c.Log, field, raw)
}

// CoerceWith is Coerce with an explicit logger, for parsers that carry
// their own.
func (c *Coercer) CoerceWith(log logrus.FieldLogger, field, raw string) Value {
	for _, s := range c.NoDataSentinels {
		if raw == s {
			return MissingValue()
		}
	}
	if c.PassageFields[field] {
		for _, s := range c.PassageSentinels {
			if raw == s {
				return Num(math.Inf(1))
			}
		}
	}
	if c.FloatFields[field] {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			if log == nil {
				log = logrus.StandardLogger()
			}
			log.WithFields(logrus.Fields{"field": field, "value": raw}).
				Warn("unable to coerce field to float, keeping raw text")
			return TextValue(raw)
		}
		return Num(f)
	}
	return TextValue(raw)
}

// Diagnostic is a non-fatal parse finding (skipped row, degraded field).
// Parsers record these on the container they produce so a host application
// decides how to surface them.
type Diagnostic struct {
	File string
	Line int
	Msg  string
	Raw  string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %q", d.File, d.Line, d.Msg, d.Raw)
	}
	return fmt.Sprintf("%s: %s: %q", d.File, d.Msg, d.Raw)
}
