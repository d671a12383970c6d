package kb

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
)

// FieldID is the optional explicit id column of a TSV file. Without it an
// entity's id is its 1-based data row number.
const FieldID = "ID"

const versionPrefix = "# version:"

// ReadTSV parses a knowledge base dump. The first non-comment line is the
// header; it must contain a TYPE column. A leading "# version: X" comment sets
// the version.
func ReadTSV(r io.Reader) (version string, entities []*Entity, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var header []string
	row := 0
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(text, "#") {
			if header == nil && strings.HasPrefix(text, versionPrefix) {
				version = strings.TrimSpace(strings.TrimPrefix(text, versionPrefix))
			}
			continue
		}
		if header == nil {
			if strings.TrimSpace(text) == "" {
				continue
			}
			header = strings.Split(text, "\t")
			if indexOf(header, FieldType) < 0 {
				return "", nil, fmt.Errorf("kb header has no %s column: %w", FieldType, pferrors.ErrMalformedRecord)
			}
			continue
		}
		if text == "" {
			continue
		}
		row++
		e, err := entityFromRow(header, strings.Split(text, "\t"), row)
		if err != nil {
			return "", nil, fmt.Errorf("kb line %d: %w", line, err)
		}
		entities = append(entities, e)
	}
	if err := sc.Err(); err != nil {
		return "", nil, fmt.Errorf("failed to read kb: %w", err)
	}
	if header == nil {
		return "", nil, fmt.Errorf("kb has no header: %w", pferrors.ErrMalformedRecord)
	}
	return version, entities, nil
}

// LoadTSVFile reads a TSV knowledge base from disk into a Memory store.
func LoadTSVFile(path string, opts ...Option) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open kb: %w", err)
	}
	defer f.Close()

	version, entities, err := ReadTSV(f)
	if err != nil {
		return nil, err
	}
	return NewMemory(version, entities, opts...), nil
}

// WriteTSV writes entities in the format ReadTSV accepts. Columns are the
// union of all field names in first-seen order after ID and TYPE.
func WriteTSV(w io.Writer, version string, entities []*Entity) error {
	cols := []string{FieldID, FieldType}
	seen := map[string]bool{FieldID: true, FieldType: true}
	for _, e := range entities {
		for _, k := range sortedKeys(e.Fields) {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}

	bw := bufio.NewWriter(w)
	if version != "" {
		fmt.Fprintf(bw, "%s %s\n", versionPrefix, version)
	}
	bw.WriteString(strings.Join(cols, "\t") + "\n")
	for _, e := range entities {
		vals := make([]string, len(cols))
		vals[0] = strconv.Itoa(e.ID)
		vals[1] = e.Types.String()
		for i := 2; i < len(cols); i++ {
			vals[i] = e.Fields[cols[i]]
		}
		bw.WriteString(strings.Join(vals, "\t") + "\n")
	}
	return bw.Flush()
}

func entityFromRow(header, values []string, row int) (*Entity, error) {
	e := &Entity{ID: row, Fields: make(map[string]string, len(header))}
	for i, col := range header {
		if i >= len(values) {
			break
		}
		v := values[i]
		switch col {
		case FieldID:
			id, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("invalid id %q: %w", v, pferrors.ErrMalformedRecord)
			}
			e.ID = id
		case FieldType:
			e.Types = ParseTypeSet(v)
		default:
			if v != "" {
				e.Fields[col] = v
			}
		}
	}
	return e, nil
}

// Versions is the VERSIONS.json file shipped next to a matcher dictionary.
type Versions struct {
	KB         string `json:"KB"`
	Dictionary string `json:"DICTIONARY,omitempty"`
}

// ReadVersionsFile reads the KB version a dictionary was built against.
func ReadVersionsFile(path string) (*Versions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read versions file: %w", err)
	}
	var v Versions
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse versions file: %w", err)
	}
	return &v, nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
