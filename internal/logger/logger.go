package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the logging facade handed to every service. Services
// derive their own tagged zerolog.Logger via With().
type Logger interface {
	Log() *zerolog.Event
	Fatal() *zerolog.Event
	Err(err error) *zerolog.Event
	Error() *zerolog.Event
	Warn() *zerolog.Event
	Info() *zerolog.Event
	Debug() *zerolog.Event
	With() zerolog.Context
	// RegisterSSEWriter additionally streams every event on the "logs"
	// SSE stream so the diagnostics API can tail the agent live.
	RegisterSSEWriter(sse *sse.Server)
	SetLogLevel(level string)
}

type agentLogger struct {
	m       sync.Mutex
	log     zerolog.Logger
	level   zerolog.Level
	writers []io.Writer
}

// New builds the process logger: console output (pretty in dev), plus
// a dated log file under logging.path when one is configured.
func New(cfg *domain.Config) Logger {
	l := &agentLogger{}
	l.SetLogLevel(cfg.Logging.Level)

	if cfg.Version == "dev" {
		l.writers = append(l.writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		l.writers = append(l.writers, os.Stderr)
	}

	if dir := cfg.Logging.Path; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "could not create log directory %s: %v\n", dir, err)
		} else {
			l.writers = append(l.writers, newDailyFile(dir, cfg.Logging))
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	l.rebuild()
	return l
}

// Mock returns a Logger that discards everything. For tests.
func Mock() Logger {
	return &agentLogger{log: zerolog.Nop(), level: zerolog.Disabled}
}

// rebuild recreates the underlying zerolog.Logger over the current
// writer set. Callers hold l.m or have exclusive access.
func (l *agentLogger) rebuild() {
	l.log = zerolog.New(io.MultiWriter(l.writers...)).With().Stack().Timestamp().Logger()
}

func (l *agentLogger) RegisterSSEWriter(srv *sse.Server) {
	l.m.Lock()
	l.writers = append(l.writers, NewSSEWriter(srv))
	l.rebuild()
	l.m.Unlock()

	l.Info().Msg("log stream attached to event server")
}

// SetLogLevel applies a level name from the config file, case
// insensitively. Unknown names disable logging rather than guessing.
func (l *agentLogger) SetLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		parsed = zerolog.Disabled
	}

	l.level = parsed
	zerolog.SetGlobalLevel(parsed)
}

func (l *agentLogger) Log() *zerolog.Event { return l.log.Log() }

func (l *agentLogger) Fatal() *zerolog.Event { return l.log.Fatal() }

func (l *agentLogger) Err(err error) *zerolog.Event { return l.log.Err(err) }

func (l *agentLogger) Error() *zerolog.Event { return l.log.Error() }

func (l *agentLogger) Warn() *zerolog.Event { return l.log.Warn() }

func (l *agentLogger) Info() *zerolog.Event { return l.log.Info() }

func (l *agentLogger) Debug() *zerolog.Event { return l.log.Debug() }

func (l *agentLogger) With() zerolog.Context { return l.log.With() }

// dailyFile funnels log lines into one file per calendar day under
// dir. Size-based rotation within a day is lumberjack's; the date
// rollover happens lazily on the first write of the new day, so an
// agent that slept through midnight still lands in the right file.
type dailyFile struct {
	m    sync.Mutex
	dir  string
	date string
	out  *lumberjack.Logger
}

func newDailyFile(dir string, cfg domain.LoggingConfig) *dailyFile {
	f := &dailyFile{
		dir: dir,
		out: &lumberjack.Logger{
			MaxSize:    cfg.MaxFileSize,
			MaxBackups: cfg.MaxBackupCount,
		},
	}
	f.roll(time.Now())
	return f
}

func (f *dailyFile) roll(now time.Time) {
	f.date = now.Format("2006-01-02")
	f.out.Filename = filepath.Join(f.dir, "agrisync-"+f.date+".log")
}

func (f *dailyFile) Write(p []byte) (int, error) {
	f.m.Lock()
	defer f.m.Unlock()

	now := time.Now()
	if now.Format("2006-01-02") != f.date {
		_ = f.out.Close()
		f.roll(now)
	}

	return f.out.Write(p)
}
