package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager builds and caches module-bound loggers
// One zap core is shared; each module gets a logger with a module field attached
type Manager struct {
	mu      sync.RWMutex
	config  Config
	base    *zap.Logger
	loggers map[string]*CtxZapLogger
}

var (
	globalMu      sync.RWMutex
	globalManager *Manager
)

// NewManager creates a logger manager from config
func NewManager(cfg Config) (*Manager, error) {
	cfg.ApplyDefaults()

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var syncers []zapcore.WriteSyncer
	switch cfg.Output {
	case "file":
		syncers = append(syncers, fileSyncer(cfg))
	case "both":
		syncers = append(syncers, zapcore.AddSync(os.Stdout), fileSyncer(cfg))
	default:
		syncers = append(syncers, zapcore.AddSync(os.Stdout))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(syncers...), level)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &Manager{
		config:  cfg,
		base:    base,
		loggers: make(map[string]*CtxZapLogger),
	}, nil
}

// fileSyncer builds the rotating file sink
func fileSyncer(cfg Config) zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// GetLogger returns the logger bound to module, creating it on first use
func (m *Manager) GetLogger(module string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[module]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.loggers[module]; ok {
		return l
	}

	l := &CtxZapLogger{
		base:   m.base.With(zap.String("module", module)),
		module: module,
		config: &m.config,
	}
	m.loggers[module] = l
	return l
}

// Sync flushes buffered records
func (m *Manager) Sync() error {
	return m.base.Sync()
}

// Init installs the global manager
// Called once at application startup; GetLogger falls back to defaults before Init
func Init(cfg Config) error {
	mgr, err := NewManager(cfg)
	if err != nil {
		return err
	}
	globalMu.Lock()
	globalManager = mgr
	globalMu.Unlock()
	return nil
}

// GetLogger returns a module logger from the global manager
// Before Init it lazily creates a manager with default config
func GetLogger(module string) *CtxZapLogger {
	globalMu.RLock()
	mgr := globalManager
	globalMu.RUnlock()

	if mgr == nil {
		globalMu.Lock()
		if globalManager == nil {
			globalManager, _ = NewManager(DefaultConfig())
		}
		mgr = globalManager
		globalMu.Unlock()
	}

	return mgr.GetLogger(module)
}
