package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PromptHistory appends model prompts and replies to a plain text file.
// A zero value or empty path discards everything.
type PromptHistory struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewPromptHistory returns a history writer for path.
func NewPromptHistory(path string) *PromptHistory {
	return &PromptHistory{path: path, now: time.Now}
}

// Record writes one exchange. Errors are swallowed, history is best effort.
func (h *PromptHistory) Record(name, prompt, response string) {
	if h == nil || h.path == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	entry := fmt.Sprintf("[%s] PROMPT: %s\nPROMPT_TEXT:\n%s\n\nRESPONSE:\n%s\n%s\n",
		h.now().Format("2006-01-02 15:04:05"), name, WordWrap(prompt, 80), WordWrap(response, 80), strings.Repeat("-", 80))
	_, _ = f.WriteString(entry)
}

// WordWrap breaks lines on word boundaries at width columns.
func WordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		col := 0
		for j, word := range strings.Fields(line) {
			if j > 0 {
				if col+len(word)+1 > width {
					b.WriteByte('\n')
					col = 0
				} else {
					b.WriteByte(' ')
					col++
				}
			}
			b.WriteString(word)
			col += len(word)
		}
	}
	return b.String()
}
