package api

import (
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"giggleglitch/pkg/logging"
)

// key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// maxAttrLen drops long attributes (errors, prompts) from the status line.
const maxAttrLen = 24

// LogLineResponse is the body of GET /api/log/latest.
type LogLineResponse struct {
	Log   string `json:"log"`
	Level string `json:"level,omitempty"`
}

// handleLatestLog returns the last captured server log line, condensed
// for a status bar.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	line := parseLogLine(logging.GlobalLogCapture.GetLastLine())
	writeJSON(w, http.StatusOK, LogLineResponse{Log: line.String(), Level: line.level})
}

type logLine struct {
	raw   string
	clock string
	level string
	msg   string
	attrs []string
}

func parseLogLine(raw string) logLine {
	l := logLine{raw: raw}
	for _, m := range logRegex.FindAllStringSubmatch(raw, -1) {
		key, val := m[1], m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				l.clock = t.Format("15:04:05")
			}
		case "level":
			l.level = val
		case "msg":
			l.msg = val
		default:
			if len(val) <= maxAttrLen {
				l.attrs = append(l.attrs, key+"="+val)
			}
		}
	}
	sort.Strings(l.attrs)
	return l
}

// String renders "HH:MM:SS Message (key=value, ...)", or the raw line when
// it has no message.
func (l logLine) String() string {
	if l.msg == "" {
		return l.raw
	}
	out := l.msg
	if l.clock != "" {
		out = l.clock + " " + out
	}
	if len(l.attrs) > 0 {
		out += " (" + strings.Join(l.attrs, ", ") + ")"
	}
	return out
}
