package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger returns the logger for component, configured from the "logging"
// section of orion.yml and the ORION_LOG_* environment. Loggers are cached
// per component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	entry := New(component, logCfg)
	loggers[component] = entry
	return entry
}

// New builds an uncached logger for component from logCfg.
func New(component string, logCfg Config) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(resolveLevel(component, logCfg))
	if os.Getenv("ORION_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}
	logger.SetFormatter(formatterFor(logCfg.Format))

	var writers []io.Writer
	if file := openLogFile(component, logCfg.File, logger); file != nil {
		writers = append(writers, file)
	}
	if logToStderr(logCfg.Format.StructuredToStderr, logger.GetLevel()) {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

// resolveLevel picks, in order: ORION_LOG_LEVEL, the component's entry in
// logging.components (matched with or without the "orion-" prefix), then
// logging.level. Unparseable levels fall back to info.
func resolveLevel(component string, logCfg Config) logrus.Level {
	levelStr := os.Getenv("ORION_LOG_LEVEL")
	if levelStr == "" {
		levelStr = logCfg.LevelFor(component)
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func formatterFor(format FormatConfig) logrus.Formatter {
	switch format.Preset {
	case "json":
		return &logrus.JSONFormatter{}
	case "simple":
		return &TextFormatter{Config: FormatConfig{DisableTimestamp: true, DisableComponent: true}}
	default:
		return &TextFormatter{Config: format}
	}
}

// openLogFile opens the configured file sink, or the dated default under the
// log directory. Failures are only reported when the sink was configured.
func openLogFile(component string, sink FileSinkConfig, logger *logrus.Logger) *os.File {
	var path string
	if sink.Enabled && sink.Path != "" {
		path = ExpandPath(sink.Path)
	} else if dir := paths.LogDir(); dir != "" {
		path = filepath.Join(dir, fmt.Sprintf("%s-%s.log", component, time.Now().Format("2006-01-02")))
	}
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		if sink.Enabled {
			logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(path), err)
		}
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		if sink.Enabled {
			logger.Warnf("Failed to open log file %s: %v", path, err)
		}
		return nil
	}
	return file
}

// logToStderr applies structured_to_stderr. In "auto" mode logs reach
// stderr when debugging or when stderr is not a terminal.
func logToStderr(mode string, level logrus.Level) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("ORION_DEBUG") == "1" || level >= logrus.DebugLevel {
		return true
	}
	fd := os.Stderr.Fd()
	return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
}

// ExpandPath expands a leading tilde to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
