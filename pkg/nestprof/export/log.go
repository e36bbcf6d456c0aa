package export

import (
	"github.com/rs/zerolog"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
)

// LogExporter writes one structured log event per region.
type LogExporter struct {
	logger zerolog.Logger
	level  zerolog.Level
}

func NewLogExporter(logger zerolog.Logger, level zerolog.Level) *LogExporter {
	return &LogExporter{logger: logger, level: level}
}

func (e *LogExporter) Export(s nestprof.Snapshot) error {
	s.Walk(func(r nestprof.Region) {
		e.logger.WithLevel(e.level).
			Str("path", r.Path).
			Int("depth", r.Depth).
			Int("calls", r.Calls).
			Float64("cpu_s", r.CPUTotal.Seconds()).
			Float64("wall_s", r.WallTotal.Seconds()).
			Bool("active", r.Active).
			Msg(r.Label())
	})
	return nil
}

func (e *LogExporter) Close() error { return nil }
