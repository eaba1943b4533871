package logging

import (
	"strconv"
	"sync"
)

var globalLoggerRegistry = newRegistry()

type registeredLogger struct {
	logger Logger
	// level the logger had when it was created, restored once no pattern matches it.
	base Level
}

// Registry tracks subloggers by name so their levels can be changed by pattern at runtime.
type Registry struct {
	mu        sync.RWMutex
	loggers   map[string]registeredLogger
	logConfig []LoggerPatternConfig
}

func newRegistry() *Registry {
	return &Registry{
		loggers: make(map[string]registeredLogger),
	}
}

// register records the logger under name, replacing any logger previously registered with the
// same name, and applies the current patterns to it.
func (lr *Registry) register(name string, logger Logger) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.loggers[name] = registeredLogger{logger: logger, base: logger.GetLevel()}
	if level, ok := levelFor(name, lr.logConfig); ok {
		logger.SetLevel(level)
	}
}

func (lr *Registry) loggerNamed(name string) (Logger, bool) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	entry, ok := lr.loggers[name]
	return entry.logger, ok
}

// UpdateConfig applies the patterns to every registered logger. When several patterns match the
// last one wins; loggers no pattern matches go back to the level they were created with. Invalid
// patterns are skipped with a warning.
func (lr *Registry) UpdateConfig(logConfig []LoggerPatternConfig, errorLogger Logger) {
	valid := make([]LoggerPatternConfig, 0, len(logConfig))
	for i, lpc := range logConfig {
		if err := lpc.Validate("log." + strconv.Itoa(i)); err != nil {
			errorLogger.Warnw("ignoring logger pattern", "pattern", lpc.Pattern, "error", err)
			continue
		}
		valid = append(valid, lpc)
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.logConfig = valid
	for name, entry := range lr.loggers {
		level, ok := levelFor(name, valid)
		if !ok {
			level = entry.base
		}
		entry.logger.SetLevel(level)
	}
}

func (lr *Registry) currentConfig() []LoggerPatternConfig {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	return lr.logConfig
}

// levelFor expects validated patterns.
func levelFor(name string, logConfig []LoggerPatternConfig) (Level, bool) {
	var (
		found bool
		level Level
	)
	for _, lpc := range logConfig {
		if !lpc.matcher().MatchString(name) {
			continue
		}
		parsed, err := LevelFromString(lpc.Level)
		if err != nil {
			continue
		}
		level, found = parsed, true
	}
	return level, found
}

// UpdateLoggerLevels applies the patterns to every sublogger created so far and to those created
// afterwards.
func UpdateLoggerLevels(logConfig []LoggerPatternConfig, errorLogger Logger) {
	globalLoggerRegistry.UpdateConfig(logConfig, errorLogger)
}
