// ABOUTME: Outbound reply delivery - chunks long replies and posts them to the delivery endpoint
// ABOUTME: Delivery failures are logged and absorbed so the debounce worker never stalls on them

package outbound

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultMaxChunk keeps messages short enough to read as chat, not essays.
const DefaultMaxChunk = 500

// defaultChunkDelay spaces consecutive chunks out a little.
const defaultChunkDelay = time.Second

// Recorder persists delivered replies to the transcript. Optional.
type Recorder interface {
	Save(ctx context.Context, conversation, author, text string) error
}

// sendRequest is the JSON body posted per chunk.
type sendRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// Sender delivers reply text to the messaging endpoint, splitting long
// replies into chunks. It satisfies the debounce coordinator's Deliverer
// interface.
type Sender struct {
	endpoint   string
	maxChunk   int
	chunkDelay time.Duration
	client     *http.Client
	recorder   Recorder
	logger     *slog.Logger
}

// NewSender creates a Sender. maxChunk <= 0 uses DefaultMaxChunk; recorder
// may be nil; pass nil logger for default.
func NewSender(endpoint string, maxChunk int, recorder Recorder, logger *slog.Logger) *Sender {
	if maxChunk <= 0 {
		maxChunk = DefaultMaxChunk
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		endpoint:   endpoint,
		maxChunk:   maxChunk,
		chunkDelay: defaultChunkDelay,
		client:     &http.Client{Timeout: 10 * time.Second},
		recorder:   recorder,
		logger:     logger.With("component", "outbound"),
	}
}

// Deliver records the reply and posts it chunk by chunk. Only the transcript
// write and the individual posts can fail, and both are logged rather than
// returned: by the time a reply exists, there is nobody upstream to retry.
func (s *Sender) Deliver(ctx context.Context, conversation, reply string) error {
	if s.recorder != nil {
		if err := s.recorder.Save(ctx, conversation, "agent", reply); err != nil {
			s.logger.Warn("transcript write failed", "conversation", conversation, "error", err)
		}
	}

	chunks := Chunk(reply, s.maxChunk)
	for i, chunk := range chunks {
		if err := s.post(ctx, conversation, chunk); err != nil {
			s.logger.Error("chunk delivery failed",
				"conversation", conversation,
				"chunk", i+1,
				"chunks", len(chunks),
				"error", err)
			continue
		}
		if i < len(chunks)-1 {
			time.Sleep(s.chunkDelay)
		}
	}

	s.logger.Info("reply delivered", "conversation", conversation, "chunks", len(chunks))
	return nil
}

func (s *Sender) post(ctx context.Context, conversation, text string) error {
	body, err := json.Marshal(sendRequest{Number: conversation, Text: text})
	if err != nil {
		return fmt.Errorf("encoding send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("delivery endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Chunk splits text into pieces of at most max characters, preferring
// paragraph boundaries and falling back to line boundaries. A single line
// longer than max is emitted whole rather than split mid-line.
func Chunk(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	var curr strings.Builder

	flush := func() {
		if c := strings.TrimSpace(curr.String()); c != "" {
			chunks = append(chunks, c)
		}
		curr.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		if len(para) > max {
			// Oversized paragraph: pack its lines instead
			flush()
			for _, line := range strings.Split(para, "\n") {
				if curr.Len() > 0 && curr.Len()+len(line)+1 > max {
					flush()
				}
				if curr.Len() > 0 {
					curr.WriteString("\n")
				}
				curr.WriteString(line)
			}
			flush()
			continue
		}

		if curr.Len() > 0 && curr.Len()+len(para)+2 > max {
			flush()
		}
		if curr.Len() > 0 {
			curr.WriteString("\n\n")
		}
		curr.WriteString(para)
	}
	flush()

	return chunks
}
