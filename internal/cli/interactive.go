package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
)

// InteractiveCLI handles interactive command-line interface
type InteractiveCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
}

// NewInteractiveCLI creates a new interactive CLI
func NewInteractiveCLI(handler *CommandHandler) *InteractiveCLI {
	return &InteractiveCLI{
		handler: handler,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
}

// Run starts the interactive CLI loop
func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.printWelcome()
	defer cli.handler.Close()

	// Subscribe to events in background
	eventChan := cli.handler.SubscribeEvents([]domain.EventType{
		domain.EventTypeConnectionStatus,
		domain.EventTypeMessagePending,
		domain.EventTypeMessageConfirmed,
		domain.EventTypeMessagesRead,
		domain.EventTypePeerTyping,
		domain.EventTypeSessionsChanged,
	})

	go cli.handleEvents(eventChan)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			cli.print("\n> ")
			line, err := cli.reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if err := cli.processLine(ctx, line); err != nil {
				if err.Error() == "quit" {
					cli.println("Goodbye!")
					return nil
				}
				cli.printf("Error: %s\n", err)
			}
		}
	}
}

func (cli *InteractiveCLI) printWelcome() {
	cli.println("===========================================")
	cli.println("  ShopStack Support Bridge CLI")
	cli.println("===========================================")
	cli.println("Type /help for available commands")
	cli.println("Bare text sends a message (to the focused session, or your own)")
	cli.println("")

	// Show current status
	status, _ := cli.handler.cmdStatus()
	if s, ok := status.(ConnectionStatus); ok {
		cli.printf("Status: %s\n", s.Status)
	}
}

func (cli *InteractiveCLI) processLine(ctx context.Context, input string) error {
	// Bare text is a send, routed to the focused session if any.
	if !strings.HasPrefix(input, "/") {
		result, err := cli.handler.Send(ctx, input)
		if err != nil {
			return err
		}
		cli.displayResult("send", result)
		return nil
	}

	cmd, err := ParseCommand(input)
	if err != nil {
		return err
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	// Check for quit command
	if m, ok := result.(map[string]bool); ok && m["quit"] {
		return fmt.Errorf("quit")
	}

	cli.displayResult(cmd.Name, result)
	return nil
}

func (cli *InteractiveCLI) displayResult(cmdName string, result interface{}) {
	switch cmdName {
	case "help", "h":
		if m, ok := result.(map[string]string); ok {
			cli.println(m["help"])
		}

	case "status", "s":
		if s, ok := result.(ConnectionStatus); ok {
			cli.printf("Relay Status: %s\n", s.Status)
			cli.printf("  Connected: %v\n", s.Connected)
		}

	case "sessions", "ls":
		if m, ok := result.(map[string]interface{}); ok {
			sessions, _ := m["sessions"].([]SessionInfo)
			cli.printf("Found %d session(s):\n\n", len(sessions))
			for i, sess := range sessions {
				unread := ""
				if sess.UnreadCount > 0 {
					unread = fmt.Sprintf(" [%d unread]", sess.UnreadCount)
				}
				cli.printf("%d. %s (%s, %s)%s\n", i+1, sess.ParticipantName, sess.ParticipantKind, sess.Status, unread)
				cli.printf("   ID: %s\n", sess.ID)
				if sess.LastMessageText != "" {
					preview := sess.LastMessageText
					if len(preview) > 50 {
						preview = preview[:50] + "..."
					}
					cli.printf("   Last: %s\n", preview)
				}
			}
		}

	case "messages", "msg":
		if m, ok := result.(map[string]interface{}); ok {
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Found %d message(s):\n\n", len(messages))
			for _, msg := range messages {
				cli.printMessage(msg)
			}
		}

	case "focus":
		if m, ok := result.(map[string]interface{}); ok {
			if sess, ok := m["session"].(SessionInfo); ok {
				cli.printf("Focused on %s (%s)\n\n", sess.ParticipantName, sess.ID)
			}
			messages, _ := m["messages"].([]MessageInfo)
			for _, msg := range messages {
				cli.printMessage(msg)
			}
		}

	case "send", "reply":
		if m, ok := result.(map[string]string); ok {
			cli.printf("Sending... (pending as %s)\n", m["local_id"])
		}

	case "init":
		if sess, ok := result.(SessionInfo); ok {
			cli.printf("Your session: %s (%s)\n", sess.ID, sess.Status)
		}

	case "search":
		if m, ok := result.(map[string]interface{}); ok {
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Found %d message(s):\n\n", len(messages))
			for i, msg := range messages {
				text := msg.Text
				if len(text) > 80 {
					text = text[:80] + "..."
				}
				cli.printf("%d. [%s] %s:\n", i+1, msg.CreatedAt.Format("2006-01-02 15:04"), msg.SenderName)
				cli.printf("   %s\n", text)
				cli.printf("   Session: %s | ID: %s\n\n", msg.SessionID, msg.ID)
			}
		}

	default:
		// Generic JSON output for other commands
		if m, ok := result.(map[string]string); ok {
			if msg, exists := m["message"]; exists {
				cli.println(msg)
				return
			}
		}
		// Pretty print JSON
		data, _ := json.MarshalIndent(result, "", "  ")
		cli.println(string(data))
	}
}

func (cli *InteractiveCLI) printMessage(msg MessageInfo) {
	sender := msg.SenderName
	if sender == "" {
		sender = msg.SenderType
	}

	marker := ""
	if msg.State == string(domain.MessagePending) {
		marker = " (sending...)"
	} else if msg.ReadAt != nil {
		marker = " [read]"
	}

	cli.printf("[%s] %s%s:\n", msg.CreatedAt.Format("2006-01-02 15:04"), sender, marker)
	cli.printf("  %s\n", msg.Text)
	if msg.ID != "" {
		cli.printf("  ID: %s\n\n", msg.ID)
	} else {
		cli.printf("  Local: %s\n\n", msg.LocalID)
	}
}

func (cli *InteractiveCLI) handleEvents(eventChan <-chan Event) {
	for event := range eventChan {
		switch event.Type {
		case string(domain.EventTypeMessageConfirmed):
			if data, ok := event.Data.(map[string]interface{}); ok {
				if msg, ok := data["message"].(MessageInfo); ok {
					cli.printf("\n[%s] %s: %s\n", msg.CreatedAt.Format("15:04"), msg.SenderName, msg.Text)
					cli.print("> ")
				}
			}
		case string(domain.EventTypePeerTyping):
			if data, ok := event.Data.(map[string]interface{}); ok {
				peer, _ := data["peer"].(string)
				if typing, _ := data["typing"].(bool); typing {
					cli.printf("\n[%s is typing...]\n> ", peer)
				}
			}
		case string(domain.EventTypeMessagesRead):
			if data, ok := event.Data.(map[string]interface{}); ok {
				ids, _ := data["message_ids"].([]string)
				cli.printf("\n[%d message(s) read by peer]\n> ", len(ids))
			}
		case string(domain.EventTypeSessionsChanged):
			cli.print("\n[New customer session started; list refreshing]\n> ")
		case string(domain.EventTypeConnectionStatus):
			if data, ok := event.Data.(map[string]interface{}); ok {
				connected, _ := data["connected"].(bool)
				if connected {
					cli.println("\n[Connected to chat relay]")
				} else {
					reason, _ := data["reason"].(string)
					cli.printf("\n[Disconnected: %s]\n", reason)
				}
				cli.print("> ")
			}
		}
	}
}

func (cli *InteractiveCLI) print(s string) {
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.writer, format, args...)
}
