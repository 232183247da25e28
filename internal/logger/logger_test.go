package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loggingConfig(dir string) *domain.Config {
	return &domain.Config{
		Version: "1.0.0",
		Logging: domain.LoggingConfig{
			Level:          "INFO",
			Path:           dir,
			MaxFileSize:    1,
			MaxBackupCount: 1,
		},
	}
}

func TestNew_WritesDatedLogFile(t *testing.T) {
	dir := t.TempDir()
	log := New(loggingConfig(dir))

	log.Info().Str("module", "test").Msg("field visit recorded")

	name := filepath.Join(dir, "agrisync-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "field visit recorded")
	assert.Contains(t, string(data), `"module":"test"`)
}

func TestNew_NoPathMeansNoFile(t *testing.T) {
	dir := t.TempDir()
	cfg := loggingConfig("")
	cfg.Version = "dev"

	log := New(cfg)
	log.Info().Msg("console only")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSetLogLevel(t *testing.T) {
	l := New(loggingConfig("")).(*agentLogger)
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	for name, want := range map[string]zerolog.Level{
		"TRACE": zerolog.TraceLevel,
		"DEBUG": zerolog.DebugLevel,
		"INFO":  zerolog.InfoLevel,
		"WARN":  zerolog.WarnLevel,
		"ERROR": zerolog.ErrorLevel,
		"info":  zerolog.InfoLevel,
		"bogus": zerolog.Disabled,
		"":      zerolog.Disabled,
	} {
		l.SetLogLevel(name)
		assert.Equal(t, want, l.level, "level name %q", name)
	}
}

func TestDailyFile_RollsOnDateChange(t *testing.T) {
	dir := t.TempDir()
	f := newDailyFile(dir, domain.LoggingConfig{MaxFileSize: 1, MaxBackupCount: 1})

	// pretend the previous write happened on an earlier day
	f.date = "2000-01-01"
	f.out.Filename = filepath.Join(dir, "agrisync-2000-01-01.log")

	_, err := f.Write([]byte("rolled over\n"))
	require.NoError(t, err)

	want := filepath.Join(dir, "agrisync-"+time.Now().Format("2006-01-02")+".log")
	assert.Equal(t, want, f.out.Filename)
	assert.FileExists(t, want)
}

func TestRegisterSSEWriter(t *testing.T) {
	srv := sse.New()
	defer srv.Close()
	srv.CreateStream("logs")

	dir := t.TempDir()
	log := New(loggingConfig(dir))
	log.RegisterSSEWriter(srv)

	assert.NotPanics(t, func() {
		log.Info().Msg("streamed and filed")
	})

	// the file writer keeps receiving events after the stream attaches
	name := filepath.Join(dir, "agrisync-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "streamed and filed")
}

func TestMock_DiscardsEverything(t *testing.T) {
	log := Mock()

	assert.NotPanics(t, func() {
		log.Info().Msg("dropped")
		log.Err(nil).Msg("dropped")
		log.Debug().Str("key", "value").Msg("dropped")
		derived := log.With().Str("module", "test").Logger()
		derived.Warn().Msg("dropped")
	})
}
