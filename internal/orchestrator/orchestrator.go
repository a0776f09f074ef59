package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/mlavrik/sigscout/internal/agent"
	"github.com/mlavrik/sigscout/internal/signal"
)

// visualizationFunction is the structured action the agent emits when it
// wants a signal rendered as a card.
const visualizationFunction = "display_signal_card"

// terminateWithoutAck: when the agent requests a card, the turn ends
// immediately after rendering, without submitting tool outputs back. This
// saves a second round-trip but abandons the upstream run in a non-terminal
// state; it stays allocated until the provider expires it.
const terminateWithoutAck = true

// ActionKind classifies a requested structured action by function name.
// Unknown covers actions this relay does not handle; they are left pending
// and polling continues.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionDisplaySignalCard
)

func actionKind(name string) ActionKind {
	if name == visualizationFunction {
		return ActionDisplaySignalCard
	}
	return ActionUnknown
}

// AgentClient is the slice of the agent API the orchestrator drives.
type AgentClient interface {
	CreateThreadAndRun(ctx context.Context, assistantID, message string) (agent.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (agent.Run, error)
	ListMessages(ctx context.Context, threadID string) ([]agent.Message, error)
}

// Recorder appends one visualized signal to the durable log.
type Recorder interface {
	Append(rec signal.Record) error
}

// TitleLister supplies recently saved titles for the prompt blocklist.
type TitleLister interface {
	RecentTitles(limit int) ([]string, error)
}

// TextReply is the plain-text outcome of a completed run.
type TextReply struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the outcome of one orchestration cycle: exactly one of Card or
// Reply is set.
type Result struct {
	Card  *signal.Node
	Reply *TextReply
}

// Config bounds one orchestration cycle.
type Config struct {
	AssistantID  string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// Service drives one request/response cycle against the agent. Stateless
// across requests; each call owns its own run.
type Service struct {
	agent  AgentClient
	log    Recorder
	titles TitleLister
	cfg    Config

	seed func() int
}

// New creates a Service. titles may be nil to disable the prompt blocklist.
func New(client AgentClient, log Recorder, titles TitleLister, cfg Config) (*Service, error) {
	if client == nil {
		return nil, errors.New("orchestrator: agent client must not be nil")
	}
	if log == nil {
		return nil, errors.New("orchestrator: signal log must not be nil")
	}
	if cfg.AssistantID == "" {
		return nil, errors.New("orchestrator: assistant ID must not be empty")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Minute
	}
	return &Service{
		agent:  client,
		log:    log,
		titles: titles,
		cfg:    cfg,
		seed:   func() int { return rand.IntN(9000) + 1000 },
	}, nil
}

// Scan runs one full cycle for a widget request: extract the user message,
// fold in constraints and the saved-title blocklist, then drive the run.
func (s *Service) Scan(ctx context.Context, req ChatRequest) (Result, error) {
	userMessage := req.UserMessage()

	var blocklist []string
	if s.titles != nil {
		titles, err := s.titles.RecentTitles(blocklistLimit)
		if err != nil {
			// Dedupe is best effort; a broken archive must not block the scan.
			slog.Warn("could not load saved titles for blocklist", "error", err)
		} else {
			blocklist = titles
		}
	}

	prompt := BuildPrompt(req, userMessage, blocklist, s.seed())
	return s.Handle(ctx, prompt)
}

// Handle submits the message to the agent and polls the run until it either
// requests a signal card, completes with a text reply, fails, or the poll
// deadline passes. Cancellation of ctx aborts the poll.
func (s *Service) Handle(ctx context.Context, userMessage string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	defer cancel()

	run, err := s.agent.CreateThreadAndRun(ctx, s.cfg.AssistantID, userMessage)
	if err != nil {
		return Result{}, upstreamError("create_run", err)
	}
	slog.Debug("run started", "thread_id", run.ThreadID, "run_id", run.ID)

	for {
		switch {
		case run.Status == agent.StatusRequiresAction:
			res, handled, err := s.visualize(run)
			if err != nil {
				return Result{}, err
			}
			if handled {
				return res, nil
			}
			// No known action among the requested calls; presumed transient,
			// keep polling until the deadline.

		case run.Status.TerminalFailure():
			return Result{}, newError(ErrorUpstream, fmt.Sprintf("run_%s", run.Status), nil)

		case run.Status == agent.StatusCompleted:
			return s.textReply(ctx, run.ThreadID)
		}

		select {
		case <-ctx.Done():
			return Result{}, pollError(ctx.Err())
		case <-time.After(s.cfg.PollInterval):
		}

		run, err = s.agent.RetrieveRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			return Result{}, upstreamError("retrieve_run", err)
		}
	}
}

// visualize scans the run's requested actions for the visualization call.
// When found, the record is logged and rendered; the run is then abandoned
// (terminateWithoutAck).
func (s *Service) visualize(run agent.Run) (Result, bool, error) {
	for _, call := range run.ToolCalls() {
		if actionKind(call.Function.Name) != ActionDisplaySignalCard {
			slog.Debug("ignoring unknown action", "function", call.Function.Name)
			continue
		}

		rec, err := signal.ParseRecord([]byte(call.Function.Arguments))
		if err != nil {
			return Result{}, false, newError(ErrorMalformedPayload, "parse_signal_args", err)
		}
		if err := s.log.Append(rec); err != nil {
			return Result{}, false, newError(ErrorStore, "append_signal", err)
		}

		card := signal.Render(rec)
		if terminateWithoutAck {
			slog.Debug("card rendered, abandoning run", "run_id", run.ID, "title", rec.Title)
			return Result{Card: &card}, true, nil
		}
	}
	return Result{}, false, nil
}

func (s *Service) textReply(ctx context.Context, threadID string) (Result, error) {
	msgs, err := s.agent.ListMessages(ctx, threadID)
	if err != nil {
		return Result{}, upstreamError("list_messages", err)
	}

	content := "Scan complete, but no signals generated."
	if len(msgs) > 0 {
		if text := msgs[0].Text(); text != "" {
			content = text
		}
	}
	return Result{Reply: &TextReply{Role: "assistant", Content: content}}, nil
}

// upstreamError classifies a failed agent call: deadline and cancellation
// are reported as poll outcomes, everything else as an upstream fault.
func upstreamError(reason string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pollError(err)
	}
	return newError(ErrorUpstream, reason, err)
}

func pollError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrorTimeout, "poll_deadline_exceeded", err)
	}
	return newError(ErrorCanceled, "request_canceled", err)
}
