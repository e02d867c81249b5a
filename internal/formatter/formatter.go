package formatter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/mcncl/enphase-api/internal/models"
)

// Formatter turns JSON values back into text for the example blocks of a
// document. Keys keep their source order and the layout matches what the
// existing documentation was generated with: ", " and ": " separators and
// every non-ASCII character escaped.
type Formatter struct {
	indent int
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithIndent pretty prints with the given number of spaces per level.
func WithIndent(spaces int) Option {
	return func(f *Formatter) {
		if spaces > 0 {
			f.indent = spaces
		}
	}
}

// NewFormatter creates a new Formatter instance
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders v as JSON text.
func (f *Formatter) Format(v models.JSONValue) (string, error) {
	var sb strings.Builder
	if err := f.write(&sb, v, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (f *Formatter) write(sb *strings.Builder, v models.JSONValue, depth int) error {
	switch val := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		sb.WriteString(strconv.FormatBool(val))
	case string:
		writeString(sb, val)
	case json.Number:
		sb.WriteString(val.String())
	case float64:
		sb.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	case int:
		sb.WriteString(strconv.Itoa(val))
	case models.JSONArray:
		if len(val) == 0 {
			sb.WriteString("[]")
			return nil
		}
		sb.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				f.separator(sb)
			}
			f.newline(sb, depth+1)
			if err := f.write(sb, item, depth+1); err != nil {
				return err
			}
		}
		f.newline(sb, depth)
		sb.WriteByte(']')
	case *models.JSONObject:
		if val.Len() == 0 {
			sb.WriteString("{}")
			return nil
		}
		sb.WriteByte('{')
		first := true
		err := val.Range(func(key string, item models.JSONValue) error {
			if !first {
				f.separator(sb)
			}
			first = false
			f.newline(sb, depth+1)
			writeString(sb, key)
			sb.WriteString(": ")
			return f.write(sb, item, depth+1)
		})
		if err != nil {
			return err
		}
		f.newline(sb, depth)
		sb.WriteByte('}')
	default:
		return fmt.Errorf("cannot format value of type %T", v)
	}
	return nil
}

func (f *Formatter) separator(sb *strings.Builder) {
	if f.indent > 0 {
		sb.WriteByte(',')
		return
	}
	sb.WriteString(", ")
}

func (f *Formatter) newline(sb *strings.Builder, depth int) {
	if f.indent == 0 {
		return
	}
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat(" ", f.indent*depth))
}

func writeString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			sb.WriteString(`\"`)
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\b':
			sb.WriteString(`\b`)
		case r == '\f':
			sb.WriteString(`\f`)
		case r >= 0x20 && r <= 0x7e:
			sb.WriteRune(r)
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(sb, `\u%04x\u%04x`, hi, lo)
		default:
			fmt.Fprintf(sb, `\u%04x`, r)
		}
	}
	sb.WriteByte('"')
}
