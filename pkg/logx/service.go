package logx

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	timeFormat      = "2006-01-02T15:04:05.000Z07:00"
	defaultFilePath = "./logs/netoptimizer.log"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

// FileConfig enables the JSON file sink. Zero rotation knobs keep
// lumberjack defaults (100MB, keep all, no age limit).
type FileConfig struct {
	Enabled    bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Service owns the sinks and lets config reloads swap them under live
// Loggers.
type Service struct {
	mu   sync.Mutex
	file *lumberjack.Logger
	root atomic.Pointer[zerolog.Logger]
}

// New builds a Service from cfg and returns it with its root Logger.
func New(cfg Config) (*Service, Logger) {
	setGlobals()
	s := &Service{}
	s.Apply(cfg)
	return s, s.Logger()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Apply rebuilds sinks and level. With no sink enabled the console is used.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}
	prev := s.file
	s.file = nil
	if cfg.File.Enabled {
		s.file = rotatingFile(cfg.File)
		sinks = append(sinks, zerolog.SyncWriter(s.file))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(ParseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()
	s.root.Store(&zl)

	if prev != nil {
		_ = prev.Close()
	}
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func rotatingFile(fc FileConfig) *lumberjack.Logger {
	path := strings.TrimSpace(fc.Path)
	if path == "" {
		path = defaultFilePath
	}
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
	}
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:          w,
		TimeFormat:   timeFormat,
		FormatCaller: func(i any) string { s, _ := i.(string); return s },
	}
}

func setGlobals() {
	zerolog.TimeFieldFormat = timeFormat
	zerolog.ErrorFieldName = "err"
}

// ParseLevel maps a config string to a level; unknown strings give def.
func ParseLevel(s string, def Level) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	if s == "" {
		return def
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return def
	}
	return lvl
}
