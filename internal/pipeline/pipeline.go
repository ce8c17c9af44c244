// Package pipeline drives a remap run: load the mapping, transform the target
// into a sibling output file, done. Output is staged in a temp file and only
// renamed into place once the whole target has been transformed.
package pipeline

import (
	goerrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"remapflame/internal/backup"
	"remapflame/internal/config"
	"remapflame/internal/errors"
	"remapflame/internal/log"
	"remapflame/internal/parser"
	"remapflame/internal/profile"
	"remapflame/internal/replacement"
)

// GraphExtension is stripped from the target name before the suffix is added.
const GraphExtension = ".svg"

// Suffix is inserted between the target's stem and its extension.
const Suffix = "-remapped"

const outputMode = 0644

// State is the position of a Pipeline in its LOAD_MAPPING -> TRANSFORM -> DONE sequence.
type State int

const (
	StateLoadMapping State = iota
	StateTransform
	StateDone
)

func (s State) String() string {
	switch s {
	case StateLoadMapping:
		return "load_mapping"
	case StateTransform:
		return "transform"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// OutputPath derives the flame graph output file for target. `foo.svg`
// becomes `foo-remapped.svg`; any other name, `cpu.pprof` included, gets
// `-remapped.svg` appended whole.
func OutputPath(target string) string {
	return strings.TrimSuffix(target, GraphExtension) + Suffix + GraphExtension
}

// transformer is satisfied by both the line engine and the profile remapper.
type transformer interface {
	Process(src io.Reader, dst io.Writer) (replacement.Stats, error)
}

// Pipeline owns the mapping table and file handles for a run.
type Pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	backup   *backup.Manager
	mappings *parser.MappingTable
	state    State
}

// New creates a Pipeline in the LOAD_MAPPING state.
func New(cfg *config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		logger: logger,
		backup: backup.NewBackupManager(cfg.Backup),
		state:  StateLoadMapping,
	}
}

// State returns the current state.
func (p *Pipeline) State() State {
	return p.state
}

// Mappings returns the loaded table, or nil before LoadMapping succeeds.
func (p *Pipeline) Mappings() *parser.MappingTable {
	return p.mappings
}

// Run performs LoadMapping then Transform.
func (p *Pipeline) Run() (log.Summary, error) {
	if err := p.LoadMapping(); err != nil {
		return log.Summary{}, err
	}
	return p.Transform()
}

// LoadMapping reads the mapping file and advances to TRANSFORM.
func (p *Pipeline) LoadMapping() error {
	mappings, err := parser.LoadMappingTable(p.cfg.MappingFile)
	if err != nil {
		return err
	}

	p.mappings = mappings
	p.state = StateTransform
	p.logger.Info("loaded mappings",
		slog.Int("count", mappings.Size()),
		slog.Int("duplicates", mappings.Duplicates()))
	return nil
}

// Transform rewrites the target into its output path and advances to DONE.
// The target is treated as flame graph text unless the run was configured
// for pprof, whatever its file name. Output is staged in a temp file and
// renamed over the output path only after the whole target was read, so a
// failure leaves any previous output untouched.
//
// Transform may be called again after DONE; the loaded mapping is reused.
func (p *Pipeline) Transform() (log.Summary, error) {
	if p.mappings == nil {
		return log.Summary{}, errors.NewConfigError("transform requested before mapping was loaded", nil)
	}

	start := time.Now()
	target := p.cfg.TargetFile
	output := p.outputPath()
	summary := log.Summary{Target: target, Output: output, DryRun: p.cfg.DryRun}

	src, err := os.Open(target)
	if err != nil {
		return summary, errors.WrapReadError(target, err)
	}
	defer src.Close()

	tr := p.transformer()
	var stats replacement.Stats
	if p.cfg.DryRun {
		stats, err = tr.Process(src, io.Discard)
	} else {
		stats, err = p.writeAtomically(output, func(dst io.Writer) (replacement.Stats, error) {
			return tr.Process(src, dst)
		})
	}
	summary.Stats = stats
	if err != nil {
		return summary, classify(target, output, p.cfg.Pprof, err)
	}

	summary.ProcessingTime = time.Since(start)
	p.state = StateDone
	return summary, nil
}

func (p *Pipeline) outputPath() string {
	if p.cfg.Pprof {
		return profile.OutputPath(p.cfg.TargetFile)
	}
	return OutputPath(p.cfg.TargetFile)
}

func (p *Pipeline) transformer() transformer {
	if p.cfg.Pprof {
		return profile.NewRemapper(p.cfg.Marker, p.mappings)
	}
	return replacement.NewEngine(p.cfg.Marker, p.mappings)
}

// writeAtomically stages output next to its final path so that a failed run
// never leaves a partial file under the output name.
func (p *Pipeline) writeAtomically(output string, write func(io.Writer) (replacement.Stats, error)) (replacement.Stats, error) {
	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".tmp-*")
	if err != nil {
		return replacement.Stats{}, errors.WrapWriteError(output, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	stats, err := write(tmp)
	if err != nil {
		return stats, err
	}
	if err := tmp.Chmod(outputMode); err != nil {
		return stats, errors.WrapWriteError(output, err)
	}
	if err := tmp.Close(); err != nil {
		return stats, errors.WrapWriteError(output, err)
	}

	backupPath, err := p.backup.BackupFile(output)
	if err != nil {
		return stats, err
	}
	if backupPath != "" {
		p.logger.Info("backed up existing output", slog.String("backup", backupPath))
	}

	if err := os.Rename(tmpPath, output); err != nil {
		return stats, errors.WrapWriteError(output, err)
	}
	committed = true
	return stats, nil
}

// classify turns a stream failure into the typed error for the side that broke.
func classify(target, output string, pprof bool, err error) error {
	var se *replacement.StreamError
	if !goerrors.As(err, &se) {
		return err
	}
	if se.Op == "write" {
		return errors.NewReplacementError(output, "failed to write remapped output", se)
	}
	if pprof {
		return errors.NewParsingError(target, "invalid pprof profile", se)
	}
	return errors.NewFileNotReadableError(target, se)
}
