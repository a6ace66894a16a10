// Package widestr converts narrow text into the NUL-terminated UTF-16
// buffers taken by the ODBC wide-character API, and back.
package widestr

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// ErrConversion is returned when text cannot be represented in the target encoding.
var ErrConversion = errors.New("cannot convert text to wide string")

const (
	LocaleUTF8  = "utf-8"
	LocaleASCII = "us-ascii"
)

// Buffer is a NUL-terminated UTF-16 string. The buffer belongs to whoever
// holds it; there is nothing to free.
type Buffer []uint16

// Len returns the number of UTF-16 code units before the terminator.
func (b Buffer) Len() int {
	for i, v := range b {
		if v == 0 {
			return i
		}
	}
	return len(b)
}

// String decodes the buffer up to its terminator as UTF-8.
func (b Buffer) String() string {
	return string(utf16.Decode(b[:b.Len()]))
}

// Ptr returns a pointer to the first code unit, or nil for an empty buffer.
func (b Buffer) Ptr() *uint16 {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

// Converter performs narrow/wide conversion for one locale.
type Converter struct {
	locale string
	ascii  bool
	enc    encoding.Encoding // nil for UTF-8 and ASCII
}

var defaultConverter = &Converter{locale: LocaleUTF8}

// NewConverter returns a converter for the named locale. Accepted names are
// utf-8, ascii and any IANA charset known to golang.org/x/text.
func NewConverter(locale string) (*Converter, error) {
	name := strings.ToLower(strings.TrimSpace(locale))
	switch name {
	case "", "utf-8", "utf8":
		return defaultConverter, nil
	case "ascii", "us-ascii":
		return &Converter{locale: LocaleASCII, ascii: true}, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown locale %q: %w", locale, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("locale %q is not supported", locale)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = name
	}
	return &Converter{locale: strings.ToLower(canonical), enc: enc}, nil
}

// Locale returns the canonical locale name.
func (c *Converter) Locale() string {
	return c.locale
}

// ToWide converts text using the UTF-8 locale.
func ToWide(text string) (Buffer, error) {
	return defaultConverter.ToWide(text)
}

// ToWide converts narrow text to a newly allocated, NUL-terminated buffer.
// On failure no buffer is returned.
func (c *Converter) ToWide(text string) (Buffer, error) {
	if i := strings.IndexByte(text, 0); i >= 0 {
		return nil, fmt.Errorf("%w: embedded NUL at byte %d", ErrConversion, i)
	}

	runes, err := c.decode(text)
	if err != nil {
		return nil, err
	}

	units := utf16.Encode(runes)
	buf := make(Buffer, len(units)+1)
	copy(buf, units)
	return buf, nil
}

// ToNarrow converts a wide buffer back into text of the converter's locale.
func (c *Converter) ToNarrow(buf Buffer) (string, error) {
	s := buf.String()
	switch {
	case c.ascii:
		for i, r := range s {
			if r >= utf8.RuneSelf {
				return "", fmt.Errorf("%w: %q at %d is not ASCII", ErrConversion, r, i)
			}
		}
		return s, nil
	case c.enc == nil:
		return s, nil
	}

	if cm, ok := c.enc.(*charmap.Charmap); ok {
		out := make([]byte, 0, len(s))
		for _, r := range s {
			b, ok := cm.EncodeRune(r)
			if !ok {
				return "", fmt.Errorf("%w: %q has no %s encoding", ErrConversion, r, c.locale)
			}
			out = append(out, b)
		}
		return string(out), nil
	}

	out, err := c.enc.NewEncoder().String(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return out, nil
}

func (c *Converter) decode(text string) ([]rune, error) {
	switch {
	case c.ascii:
		runes := make([]rune, len(text))
		for i := 0; i < len(text); i++ {
			if text[i] >= utf8.RuneSelf {
				return nil, fmt.Errorf("%w: byte 0x%02x at %d is not ASCII", ErrConversion, text[i], i)
			}
			runes[i] = rune(text[i])
		}
		return runes, nil

	case c.enc == nil:
		runes := make([]rune, 0, len(text))
		for i := 0; i < len(text); {
			r, size := utf8.DecodeRuneInString(text[i:])
			if r == utf8.RuneError && size == 1 {
				return nil, fmt.Errorf("%w: invalid UTF-8 byte 0x%02x at %d", ErrConversion, text[i], i)
			}
			runes = append(runes, r)
			i += size
		}
		return runes, nil
	}

	if cm, ok := c.enc.(*charmap.Charmap); ok {
		runes := make([]rune, len(text))
		for i := 0; i < len(text); i++ {
			r := cm.DecodeByte(text[i])
			if r == utf8.RuneError {
				return nil, fmt.Errorf("%w: byte 0x%02x at %d is undefined in %s", ErrConversion, text[i], i, c.locale)
			}
			runes[i] = r
		}
		return runes, nil
	}

	s, err := c.enc.NewDecoder().String(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if strings.ContainsRune(s, utf8.RuneError) {
		return nil, fmt.Errorf("%w: text is not valid %s", ErrConversion, c.locale)
	}
	return []rune(s), nil
}
