// Package parser loads the obfuscated-to-readable name table used by the remapper.
// The file format is deliberately loose: one `key,value[,ignored...]` entry per
// line with no header, no quoting and no escaping of commas.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"remapflame/internal/errors"
)

// maxLineSize bounds a single mapping line.
const maxLineSize = 1024 * 1024

// Mapping is a single obfuscated name and its readable replacement.
type Mapping struct {
	From string
	To   string
}

// MappingTable is the immutable lookup table built from a mapping file.
type MappingTable struct {
	entries    map[string]string
	duplicates int
}

// NewMappingTable builds a table from mappings in order. When a key repeats,
// the later mapping wins.
func NewMappingTable(mappings []Mapping) *MappingTable {
	mt := &MappingTable{
		entries: make(map[string]string, len(mappings)),
	}
	for _, m := range mappings {
		if _, seen := mt.entries[m.From]; seen {
			mt.duplicates++
		}
		mt.entries[m.From] = m.To
	}
	return mt
}

// Lookup returns the readable name for an obfuscated one.
func (mt *MappingTable) Lookup(from string) (string, bool) {
	to, ok := mt.entries[from]
	return to, ok
}

// Size returns the number of distinct keys in the table.
func (mt *MappingTable) Size() int {
	return len(mt.entries)
}

// Duplicates returns how many entries overwrote an earlier one with the same key.
func (mt *MappingTable) Duplicates() int {
	return mt.duplicates
}

// LoadMappingTable opens filePath and parses it as a mapping file.
func LoadMappingTable(filePath string) (*MappingTable, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.WrapReadError(filePath, err)
	}
	defer file.Close()

	return ParseMappings(file, filePath)
}

// ParseMappings reads mapping lines from reader. Only the first two
// comma-separated fields are used. A line without a comma aborts the whole
// load: no partial table is ever returned.
func ParseMappings(reader io.Reader, filePath string) (*MappingTable, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var mappings []Mapping
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		mapping, ok := parseLine(scanner.Text())
		if !ok {
			return nil, errors.NewParsingErrorAtLine(filePath, lineNum, "expected key,value but found no comma")
		}
		mappings = append(mappings, mapping)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.WrapReadError(filePath, err)
	}

	return NewMappingTable(mappings), nil
}

func parseLine(line string) (Mapping, bool) {
	parts := strings.SplitN(line, ",", 3)
	if len(parts) < 2 {
		return Mapping{}, false
	}
	return Mapping{From: parts[0], To: parts[1]}, true
}
