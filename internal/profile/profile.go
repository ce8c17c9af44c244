// Package profile remaps obfuscated function names inside pprof profiles,
// so a profile can be remapped once and rendered into any number of flame graphs.
package profile

import (
	"io"
	"strings"

	"github.com/google/pprof/profile"

	"remapflame/internal/parser"
	"remapflame/internal/replacement"
)

// Extensions stripped from a profile name before the suffix is added, longest first.
var Extensions = []string{".pb.gz", ".pprof"}

// OutputExtension is used for every remapped profile.
const OutputExtension = ".pb.gz"

// OutputPath derives `<stem>-remapped.pb.gz` for a profile path. A name
// without a known profile extension keeps its full name as the stem.
func OutputPath(path string) string {
	stem := path
	for _, ext := range Extensions {
		if strings.HasSuffix(path, ext) {
			stem = strings.TrimSuffix(path, ext)
			break
		}
	}
	return stem + "-remapped" + OutputExtension
}

// Remapper rewrites function names in a parsed profile.
type Remapper struct {
	marker   string
	mappings *parser.MappingTable
}

// NewRemapper creates a Remapper for names whose token starts with marker.
func NewRemapper(marker string, mappings *parser.MappingTable) *Remapper {
	return &Remapper{marker: marker, mappings: mappings}
}

// Remap rewrites Name and SystemName of every function in p in place.
// A profile has no text lines, so only Functions and the token counters
// of the returned stats are filled in.
func (r *Remapper) Remap(p *profile.Profile) replacement.Stats {
	var stats replacement.Stats
	for _, fn := range p.Function {
		stats.Functions++
		fn.Name = r.remapName(fn.Name, &stats)
		fn.SystemName = r.remapName(fn.SystemName, &stats)
	}
	return stats
}

// remapName looks up the whole name first, then its last dot-separated
// segment, which is where JVM frames such as `pkg.Class.func_1_a` keep it.
func (r *Remapper) remapName(name string, stats *replacement.Stats) string {
	if name == "" {
		return name
	}

	if readable, ok := r.mappings.Lookup(name); ok {
		stats.Matches++
		stats.Replaced++
		return readable
	}

	idx := strings.LastIndexByte(name, '.')
	segment := name[idx+1:]
	if !strings.HasPrefix(segment, r.marker) {
		return name
	}

	stats.Matches++
	readable, ok := r.mappings.Lookup(segment)
	if !ok {
		stats.Unmapped++
		return name
	}
	stats.Replaced++
	return name[:idx+1] + readable
}

// Process parses a profile from src, remaps it and writes it gzip-encoded to dst.
func (r *Remapper) Process(src io.Reader, dst io.Writer) (replacement.Stats, error) {
	p, err := profile.Parse(src)
	if err != nil {
		return replacement.Stats{}, &replacement.StreamError{Op: "read", Err: err}
	}

	stats := r.Remap(p)

	if err := p.Write(dst); err != nil {
		return stats, &replacement.StreamError{Op: "write", Err: err}
	}
	return stats, nil
}
