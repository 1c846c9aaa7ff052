package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
)

// streamEvent is one line of the agent's stream-json output
type streamEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Model   string `json:"model,omitempty"`
	Message struct {
		Content json.RawMessage `json:"content,omitempty"`
	} `json:"message,omitempty"`
	Result   string  `json:"result,omitempty"`
	IsError  bool    `json:"is_error,omitempty"`
	NumTurns int     `json:"num_turns,omitempty"`
	CostUSD  float64 `json:"total_cost_usd,omitempty"`
}

type contentBlock struct {
	Type  string                 `json:"type"`
	Text  string                 `json:"text,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

// StreamRenderer turns stream-json lines into readable progress output
// and keeps the agent's final result. It is an io.Writer so it can sit
// directly on the process's stdout.
type StreamRenderer struct {
	out io.Writer

	mu       sync.Mutex
	pending  []byte
	result   string
	messages []string
}

// NewStreamRenderer writes rendered lines to out
func NewStreamRenderer(out io.Writer) *StreamRenderer {
	if out == nil {
		out = io.Discard
	}
	return &StreamRenderer{out: out}
}

func (s *StreamRenderer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, p...)
	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}
		line := string(s.pending[:i])
		s.pending = s.pending[i+1:]
		s.handleLine(line)
	}
	return len(p), nil
}

// Flush handles a trailing line without a newline
func (s *StreamRenderer) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > 0 {
		s.handleLine(string(s.pending))
		s.pending = nil
	}
}

// Result returns the final result message, falling back to the joined
// assistant text when the stream carried no result event.
func (s *StreamRenderer) Result() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != "" {
		return s.result
	}
	return strings.Join(s.messages, "\n")
}

func (s *StreamRenderer) handleLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	ev, ok := decodeEvent(line)
	if !ok {
		fmt.Fprintln(s.out, line)
		return
	}

	switch ev.Type {
	case "system":
		if ev.Subtype == "init" {
			fmt.Fprintf(s.out, "[agent] session started (model %s)\n", ev.Model)
		}
	case "assistant":
		for _, b := range contentBlocks(ev.Message.Content) {
			switch b.Type {
			case "text":
				if t := strings.TrimSpace(b.Text); t != "" {
					s.messages = append(s.messages, t)
					fmt.Fprintln(s.out, t)
				}
			case "tool_use":
				fmt.Fprintf(s.out, "[tool] %s%s\n", b.Name, toolSummary(b.Input))
			}
		}
	case "result":
		if ev.Result != "" {
			s.result = ev.Result
		}
		fmt.Fprintf(s.out, "[agent] %s after %d turns (cost $%.4f)\n", resultLabel(ev), ev.NumTurns, ev.CostUSD)
	}
}

// decodeEvent parses one line, repairing truncated or sloppy JSON once
func decodeEvent(line string) (streamEvent, bool) {
	var ev streamEvent
	if err := json.Unmarshal([]byte(line), &ev); err == nil {
		return ev, ev.Type != ""
	}
	if !strings.HasPrefix(line, "{") {
		return ev, false
	}
	repaired, err := jsonrepair.JSONRepair(line)
	if err != nil {
		log.Debug().Err(err).Msg("Skipping unparseable agent output line")
		return ev, false
	}
	if err := json.Unmarshal([]byte(repaired), &ev); err != nil {
		return ev, false
	}
	return ev, ev.Type != ""
}

// contentBlocks accepts both a plain string and a list of blocks
func contentBlocks(raw json.RawMessage) []contentBlock {
	if len(raw) == 0 {
		return nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []contentBlock{{Type: "text", Text: text}}
	}
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}
	return blocks
}

func toolSummary(input map[string]interface{}) string {
	for _, key := range []string{"command", "file_path", "pattern", "path"} {
		if v, ok := input[key].(string); ok && v != "" {
			if len(v) > 120 {
				v = v[:120] + "..."
			}
			return ": " + v
		}
	}
	return ""
}

func resultLabel(ev streamEvent) string {
	if ev.IsError {
		return "finished with error"
	}
	return "finished"
}
