package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// DefaultServerURL is the data socket of a local RealtimeSTT-style
// transcription daemon.
const DefaultServerURL = "ws://localhost:8012"

const dialTimeout = 10 * time.Second

// serverEvent is one JSON message from the daemon. "realtime" events carry
// in-progress partials; "fullSentence" marks an endpointed utterance.
type serverEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Socket talks to a transcription daemon over a WebSocket. The daemon owns
// the microphone and voice-activity detection; this client only consumes
// its event stream.
type Socket struct {
	url       string
	conn      *websocket.Conn
	ctx       context.Context
	cancel    context.CancelFunc
	onPartial PartialFunc
	finals    chan string
	readErr   chan error
	stopOnce  sync.Once
}

func NewSocket(url string) *Socket {
	return &Socket{
		url:     url,
		finals:  make(chan string, 1),
		readErr: make(chan error, 1),
	}
}

func (s *Socket) Name() string { return "socket" }

func (s *Socket) Start(ctx context.Context, onPartial PartialFunc) error {
	s.onPartial = onPartial
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		s.cancel()
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.conn = conn

	go s.readLoop()
	return nil
}

func (s *Socket) readLoop() {
	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			select {
			case s.readErr <- err:
			default:
			}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue // daemon may emit events we don't know
		}

		switch ev.Type {
		case "realtime":
			if s.onPartial != nil {
				s.onPartial(ev.Text)
			}
		case "fullSentence":
			// Keep only the newest endpointed utterance; anything the
			// caller never collected is stale.
			select {
			case s.finals <- ev.Text:
			default:
				select {
				case <-s.finals:
				default:
				}
				s.finals <- ev.Text
			}
		}
	}
}

func (s *Socket) Record(ctx context.Context) (string, error) {
	// Discard utterances endpointed before this call started.
	select {
	case <-s.finals:
	default:
	}

	select {
	case text := <-s.finals:
		return text, nil
	case err := <-s.readErr:
		return "", fmt.Errorf("engine stream: %w", err)
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.ctx.Done():
		return "", s.ctx.Err()
	}
}

func (s *Socket) Stop() error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.conn != nil {
			s.conn.Close(websocket.StatusNormalClosure, "")
		}
	})
	return nil
}
