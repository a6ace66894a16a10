package config

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/text/encoding/unicode"
)

// GenerateKey returns a printable random key suitable for DBSEED_KEY.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// SaveEnvValues sets keys in the .env file at filename, creating it if
// needed and keeping every other line. Files saved as UTF-16LE (as some
// Windows editors do) are rewritten as UTF-8.
func SaveEnvValues(filename string, values map[string]string) error {
	content, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		content = nil
	} else if err != nil {
		return err
	}

	text, err := decodeEnvFile(content)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}

	var lines []string
	if text != "" {
		lines = strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	}

	// only lines for keys in values are rewritten; the rest stay as they are
	eol := ""
	written := map[string]bool{}
	for i, line := range lines {
		body := strings.TrimSuffix(line, "\r")
		if len(body) < len(line) {
			eol = "\r"
		}
		key, _, found := strings.Cut(strings.TrimSpace(body), "=")
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		if v, ok := values[key]; found && ok {
			lines[i] = formatEnvLine(key, v) + line[len(body):]
			written[key] = true
		}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if !written[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, formatEnvLine(k, values[k])+eol)
	}

	return os.WriteFile(filename, []byte(strings.Join(lines, "\n")+"\n"), 0600)
}

// ReadEnvFile parses a .env file, including UTF-16LE ones.
func ReadEnvFile(filename string) (map[string]string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	text, err := decodeEnvFile(content)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return godotenv.Unmarshal(strings.ReplaceAll(text, "\x00", ""))
}

func formatEnvLine(key, value string) string {
	line, err := godotenv.Marshal(map[string]string{key: value})
	if err != nil {
		return fmt.Sprintf("%s=%q", key, value)
	}
	return line
}

// decodeEnvFile handles UTF-16LE with a BOM and the BOM-less variant, which
// shows up as a large share of NUL bytes.
func decodeEnvFile(content []byte) (string, error) {
	hasBOM := len(content) >= 2 && content[0] == 0xff && content[1] == 0xfe

	isImplicitUTF16 := false
	if !hasBOM && len(content) > 10 {
		nulls := bytes.Count(content, []byte{0})
		isImplicitUTF16 = float64(nulls)/float64(len(content)) > 0.3
	}

	if !hasBOM && !isImplicitUTF16 {
		return string(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))), nil
	}

	data := content
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	out, err := dec.Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
