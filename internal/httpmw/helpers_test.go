package httpmw

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/keithlinneman/linnemanlabs-opengraph/internal/log"
)

type logSink struct {
	buf bytes.Buffer
}

func newLogSink(t *testing.T) (log.Logger, *logSink) {
	t.Helper()
	s := &logSink{}
	l, err := log.New(log.Options{App: "httpmw-test", JsonFormat: true, Writer: &s.buf})
	if err != nil {
		t.Fatalf("log.New: %v", err)
	}
	return l, s
}

func (s *logSink) records(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(s.buf.String()), "\n") {
		if ln == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			t.Fatalf("bad log line %q: %v", ln, err)
		}
		out = append(out, m)
	}
	return out
}
