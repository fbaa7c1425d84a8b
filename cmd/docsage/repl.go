package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/docsage/docsage/agent"
	"github.com/docsage/docsage/approval"
	"github.com/docsage/docsage/workspace"
)

var (
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
)

type repl struct {
	session       *agent.Session
	newSession    func() (*agent.Session, error)
	guard         *workspace.Guard
	tracker       *approval.Tracker
	in            *approval.LineSource
	out           io.Writer
	showToolCalls bool
	showReasoning bool
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, bannerStyle.Render("docsage — document analysis agent"))
	fmt.Fprintln(r.out, dimStyle.Render("workspace: "+r.guard.Root()))
	fmt.Fprintln(r.out, dimStyle.Render("session:   "+r.session.ID()))
	fmt.Fprintln(r.out, dimStyle.Render("commands: help, history, clear, exit — Ctrl-C interrupts a running turn"))
	fmt.Fprintln(r.out)

	r.consumeEvents()

	for {
		fmt.Fprint(r.out, promptStyle.Render("you> "))
		line, err := r.in.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		input := strings.TrimSpace(line)

		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			r.printHelp()
			continue
		case "history":
			r.printHistory()
			continue
		case "clear":
			// Stored turns are never destroyed; clear starts a fresh
			// session id and the old one stays resumable.
			fresh, err := r.newSession()
			if err != nil {
				fmt.Fprintln(r.out, errStyle.Render("clear failed: "+err.Error()))
				continue
			}
			r.session.Close()
			r.session = fresh
			r.consumeEvents()
			if r.tracker != nil {
				r.tracker.Clear()
			}
			fmt.Fprintln(r.out, dimStyle.Render("started fresh session "+r.session.ID()))
			continue
		}

		if err := r.submit(ctx, input); err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(r.out, dimStyle.Render("\n(interrupted)"))
				continue
			}
			if errors.Is(err, agent.ErrStorePersist) {
				return err
			}
			fmt.Fprintln(r.out, errStyle.Render("error: "+err.Error()))
		}
		fmt.Fprintln(r.out)
	}
}

// consumeEvents drains the current session's event channel; the goroutine
// exits when the session is closed.
func (r *repl) consumeEvents() {
	events := r.session.Events()
	go func() {
		for ev := range events {
			r.renderEvent(ev)
		}
	}()
}

// submit runs one turn, cancelling it on Ctrl-C instead of exiting.
func (r *repl) submit(ctx context.Context, input string) error {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-turnCtx.Done():
		}
	}()

	return r.session.Submit(turnCtx, input)
}

func (r *repl) renderEvent(ev agent.SessionEvent) {
	switch ev.Kind {
	case agent.EventAssistantTextDelta:
		if delta, ok := ev.Data["delta"].(string); ok {
			fmt.Fprint(r.out, delta)
		}
	case agent.EventAssistantTextEnd:
		fmt.Fprintln(r.out)
	case agent.EventReasoningDelta:
		if !r.showReasoning {
			return
		}
		if delta, ok := ev.Data["delta"].(string); ok {
			fmt.Fprint(r.out, dimStyle.Render(delta))
		}
	case agent.EventToolCallStart:
		if !r.showToolCalls {
			return
		}
		if name, ok := ev.Data["tool_name"].(string); ok {
			fmt.Fprintln(r.out, dimStyle.Render("→ "+name))
		}
	case agent.EventToolCallEnd:
		if errMsg, ok := ev.Data["error"].(string); ok {
			fmt.Fprintln(r.out, errStyle.Render("  "+errMsg))
		}
	case agent.EventLoopDetection, agent.EventWarning:
		if msg, ok := ev.Data["message"].(string); ok {
			fmt.Fprintln(r.out, dimStyle.Render("! "+msg))
		}
	case agent.EventRoundLimit:
		fmt.Fprintln(r.out, dimStyle.Render("! tool round limit reached for this input"))
	case agent.EventError:
		if msg, ok := ev.Data["error"].(string); ok && msg != "cancelled" {
			fmt.Fprintln(r.out, errStyle.Render("! "+msg))
		}
	}
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, `Commands:
  help     show this help
  history  show the conversation so far
  clear    start a fresh session (and forget remembered approvals)
  exit     quit

Anything else is sent to the agent. Document paths are relative to the
workspace root; every edit shows a diff and asks for approval first.`)
}

func (r *repl) printHistory() {
	history := r.session.History()
	if len(history) == 0 {
		fmt.Fprintln(r.out, dimStyle.Render("(empty)"))
		return
	}
	for _, turn := range history {
		switch turn.Kind {
		case agent.TurnUser:
			fmt.Fprintln(r.out, promptStyle.Render("you: ")+turn.TextContent())
		case agent.TurnAssistant:
			text := turn.TextContent()
			if text != "" {
				fmt.Fprintln(r.out, "assistant: "+text)
			}
			if turn.Assistant != nil {
				for _, tc := range turn.Assistant.ToolCalls {
					fmt.Fprintln(r.out, dimStyle.Render("  → "+tc.Name))
				}
			}
		case agent.TurnSystem:
			fmt.Fprintln(r.out, dimStyle.Render("note: "+turn.TextContent()))
		}
	}
}
