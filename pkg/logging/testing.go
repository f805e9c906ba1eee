package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// TestLogger captures JSON log output for assertions. It is safe for use by
// concurrent writers such as cleanup workers.
type TestLogger struct {
	*zerolog.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// Entry is one decoded log line.
type Entry map[string]any

// Str returns the string field key, or "".
func (e Entry) Str(key string) string {
	s, _ := e[key].(string)
	return s
}

// NewTestLogger creates a logger capturing every level for the test.
func NewTestLogger(t testing.TB) *TestLogger {
	t.Helper()

	// Capture everything; restored on cleanup
	oldLevel := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(oldLevel)
	})

	tl := &TestLogger{}
	logger := zerolog.New(tl).
		Level(zerolog.TraceLevel).
		With().
		Timestamp().
		Logger()
	tl.Logger = &logger
	return tl
}

// NewTestContext returns a context carrying a fresh test logger.
func NewTestContext(t testing.TB) (context.Context, *TestLogger) {
	t.Helper()
	tl := NewTestLogger(t)
	return WithLogger(context.Background(), tl.Logger), tl
}

// Write implements io.Writer.
func (tl *TestLogger) Write(p []byte) (int, error) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buf.Write(p)
}

// Output returns the captured log output as a string
func (tl *TestLogger) Output() string {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.buf.String()
}

// Lines returns the captured log output as individual lines
func (tl *TestLogger) Lines() []string {
	output := strings.TrimSpace(tl.Output())
	if output == "" {
		return []string{}
	}
	return strings.Split(output, "\n")
}

// Entries decodes the captured lines. Lines that are not JSON are skipped.
func (tl *TestLogger) Entries() []Entry {
	var out []Entry
	for _, line := range tl.Lines() {
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// EntriesFor returns the entries logged for one entity.
func (tl *TestLogger) EntriesFor(entityID string) []Entry {
	var out []Entry
	for _, e := range tl.Entries() {
		if e.Str("entity_id") == entityID {
			out = append(out, e)
		}
	}
	return out
}

// Contains checks if the log output contains the given string
func (tl *TestLogger) Contains(substr string) bool {
	return strings.Contains(tl.Output(), substr)
}

// ContainsAll checks if the log output contains all given strings
func (tl *TestLogger) ContainsAll(substrs ...string) bool {
	output := tl.Output()
	for _, substr := range substrs {
		if !strings.Contains(output, substr) {
			return false
		}
	}
	return true
}

// Count returns the number of log entries
func (tl *TestLogger) Count() int {
	return len(tl.Lines())
}

// Clear clears the captured log output
func (tl *TestLogger) Clear() {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.buf.Reset()
}

// AssertContains asserts that the log contains the given string
func (tl *TestLogger) AssertContains(t testing.TB, substr string) {
	t.Helper()
	if !tl.Contains(substr) {
		t.Errorf("Log output does not contain %q\nOutput:\n%s", substr, tl.Output())
	}
}

// AssertNotContains asserts that the log does not contain the given string
func (tl *TestLogger) AssertNotContains(t testing.TB, substr string) {
	t.Helper()
	if tl.Contains(substr) {
		t.Errorf("Log output should not contain %q\nOutput:\n%s", substr, tl.Output())
	}
}

// AssertCount asserts that the log has the expected number of entries
func (tl *TestLogger) AssertCount(t testing.TB, expected int) {
	t.Helper()
	if actual := tl.Count(); actual != expected {
		t.Errorf("Expected %d log entries, got %d\nOutput:\n%s", expected, actual, tl.Output())
	}
}

// AssertLogged asserts that entityID has an entry at level with message msg.
func (tl *TestLogger) AssertLogged(t testing.TB, entityID, level, msg string) {
	t.Helper()
	for _, e := range tl.EntriesFor(entityID) {
		if e.Str(zerolog.LevelFieldName) == level && e.Str(zerolog.MessageFieldName) == msg {
			return
		}
	}
	t.Errorf("No %s entry %q for entity %q\nOutput:\n%s", level, msg, entityID, tl.Output())
}

// CaptureLoggingForTest captures default-logger output for the duration of a test
func CaptureLoggingForTest(t testing.TB) *TestLogger {
	t.Helper()

	original := *Default()
	testLogger := NewTestLogger(t)
	SetDefault(*testLogger.Logger)

	t.Cleanup(func() {
		SetDefault(original)
	})

	return testLogger
}
