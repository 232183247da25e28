package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"
)

const defaultTimeFormat = time.RFC3339

// SSEPublisher is the part of sse.Server the writer needs.
type SSEPublisher interface {
	Publish(topic string, event *sse.Event)
}

// Formatter transforms one decoded log field into a display string.
type Formatter func(interface{}) string

// LogMessage is the JSON shape published on the "logs" SSE stream.
type LogMessage struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (lm LogMessage) Bytes() ([]byte, error) {
	return json.Marshal(lm)
}

// SSEWriter is an io.Writer that decodes zerolog's JSON output and
// republishes each event on an SSE stream for the diagnostics API.
type SSEWriter struct {
	SSE        SSEPublisher
	TimeFormat string
	PartsOrder []string
}

func NewSSEWriter(srv SSEPublisher, options ...func(w *SSEWriter)) SSEWriter {
	w := SSEWriter{
		SSE:        srv,
		TimeFormat: defaultTimeFormat,
		PartsOrder: defaultPartsOrder(),
	}

	for _, opt := range options {
		opt(&w)
	}

	return w
}

func defaultPartsOrder() []string {
	return []string{
		zerolog.TimestampFieldName,
		zerolog.LevelFieldName,
		zerolog.CallerFieldName,
		zerolog.MessageFieldName,
	}
}

func (w SSEWriter) Write(p []byte) (n int, err error) {
	if w.SSE == nil {
		return 0, nil
	}

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	if err := d.Decode(&evt); err != nil {
		return n, fmt.Errorf("cannot decode log event: %s", err)
	}

	var buf bytes.Buffer
	for _, part := range w.PartsOrder {
		// time and level get dedicated fields in the published message
		if part == zerolog.TimestampFieldName || part == zerolog.LevelFieldName {
			continue
		}
		w.writePart(&buf, evt, part)
	}
	w.writeFields(&buf, evt)

	msg := LogMessage{
		Time:    defaultFormatTimestamp(w.TimeFormat)(evt[zerolog.TimestampFieldName]),
		Level:   defaultFormatLevel()(evt[zerolog.LevelFieldName]),
		Message: strings.TrimSpace(buf.String()),
	}

	data, err := msg.Bytes()
	if err != nil {
		return 0, err
	}

	w.SSE.Publish("logs", &sse.Event{Data: data})

	return len(p), nil
}

// writePart appends a formatted part of the log event to the buffer.
func (w SSEWriter) writePart(buf *bytes.Buffer, evt map[string]interface{}, p string) {
	var f Formatter

	switch p {
	case zerolog.TimestampFieldName:
		f = defaultFormatTimestamp(w.TimeFormat)
	case zerolog.LevelFieldName:
		f = defaultFormatLevel()
	case zerolog.CallerFieldName:
		f = defaultFormatCaller()
	case zerolog.MessageFieldName:
		f = defaultFormatMessage
	default:
		f = defaultFormatFieldValue
	}

	if _, ok := evt[p]; !ok {
		return
	}

	s := f(evt[p])
	if s != "" {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(s)
	}
}

// writeFields appends every non-standard field of the event in sorted
// order.
func (w SSEWriter) writeFields(buf *bytes.Buffer, evt map[string]interface{}) {
	fields := make([]string, 0, len(evt))
	for field := range evt {
		switch field {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName, zerolog.CallerFieldName:
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}

		if field == zerolog.ErrorFieldName {
			buf.WriteString(defaultFormatErrFieldName()(field))
			buf.WriteString(defaultFormatErrFieldValue()(formatFieldValue(evt[field])))
			continue
		}

		buf.WriteString(defaultFormatFieldName()(field))
		buf.WriteString(formatFieldValue(evt[field]))
	}
}

func formatFieldValue(i interface{}) string {
	switch v := i.(type) {
	case string:
		if needsQuote(v) {
			return strconv.Quote(v)
		}
		return v
	case json.Number:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("[error: %v]", err)
		}
		return string(b)
	}
}

// needsQuote reports whether the string requires quoting to stay
// readable in a flat key=value rendering.
func needsQuote(s string) bool {
	for i := range s {
		if s[i] < 0x20 || s[i] > 0x7e || s[i] == ' ' || s[i] == '\\' || s[i] == '"' {
			return true
		}
	}
	return false
}

func defaultFormatTimestamp(timeFormat string) Formatter {
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}
	return func(i interface{}) string {
		switch tt := i.(type) {
		case string:
			ts, err := time.ParseInLocation(zerolog.TimeFieldFormat, tt, time.Local)
			if err != nil {
				return tt
			}
			return ts.Local().Format(timeFormat)
		case json.Number:
			n, err := tt.Int64()
			if err != nil {
				return tt.String()
			}
			return time.Unix(n, 0).Local().Format(timeFormat)
		default:
			return fmt.Sprintf("%v", i)
		}
	}
}

func defaultFormatLevel() Formatter {
	return func(i interface{}) string {
		if i == nil {
			return "???"
		}
		ll, ok := i.(string)
		if !ok {
			return fmt.Sprintf("%v", i)
		}
		switch ll {
		case zerolog.LevelTraceValue:
			return "TRC"
		case zerolog.LevelDebugValue:
			return "DBG"
		case zerolog.LevelInfoValue:
			return "INF"
		case zerolog.LevelWarnValue:
			return "WRN"
		case zerolog.LevelErrorValue:
			return "ERR"
		case zerolog.LevelFatalValue:
			return "FTL"
		case zerolog.LevelPanicValue:
			return "PNC"
		default:
			return ll
		}
	}
}

func defaultFormatCaller() Formatter {
	return func(i interface{}) string {
		var c string
		if cc, ok := i.(string); ok {
			c = cc
		}
		if c == "" {
			return c
		}
		if cwd, err := os.Getwd(); err == nil {
			if rel, err := filepath.Rel(cwd, c); err == nil {
				c = rel
			}
		}
		return c + " >"
	}
}

func defaultFormatMessage(i interface{}) string {
	if i == nil {
		return ""
	}
	return fmt.Sprintf("%s", i)
}

func defaultFormatFieldName() Formatter {
	return func(i interface{}) string {
		return fmt.Sprintf("%s=", i)
	}
}

func defaultFormatFieldValue(i interface{}) string {
	return fmt.Sprintf("%s", i)
}

func defaultFormatErrFieldName() Formatter {
	return func(i interface{}) string {
		return fmt.Sprintf("%s=", i)
	}
}

func defaultFormatErrFieldValue() Formatter {
	return func(i interface{}) string {
		return fmt.Sprintf("%s=", i)
	}
}
