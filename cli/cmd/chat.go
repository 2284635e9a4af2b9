/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

const chatHelp = `[yellow]/dm <id> <text>[white]  private message   [yellow]/react <msg> <emoji>[white]  react   [yellow]/who[white]  list users   [yellow]/quit[white]`

var chatCmd = &cobra.Command{
	Use:     "chat [room]",
	Aliases: []string{"vim"},
	Short:   "Starts a chat session in a tview-based interface",
	Long: `Joins a room and opens a full screen chat. Past messages are shown above,
the input line is at the bottom. Other users see when you type, and
messages you see are marked as read.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: RoomCompletionFunc,
	Run: func(cmd *cobra.Command, args []string) {
		name, err := displayName()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		if err := runChatUI(name, roomArg(args, 0)); err != nil {
			fmt.Fprintf(os.Stderr, "Chat UI error: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChatUI(userName, room string) error {
	app := tview.NewApplication()

	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true).
		ScrollToEnd()

	statusView := tview.NewTextView().SetDynamicColors(true)

	inputField := tview.NewInputField().
		SetLabel(userName + " ❯❯ ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(2000))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(textView, 0, 1, false).
		AddItem(statusView, 1, 0, false).
		AddItem(inputField, 1, 0, true)

	app.SetRoot(flex, true).SetFocus(inputField)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	histCtx, histCancel := context.WithTimeout(ctx, 10*time.Second)
	past, err := fetchMessages(histCtx, map[string]any{"room": room, "limit": 50})
	histCancel()
	if err != nil {
		fmt.Fprintf(textView, "[red]Error loading past messages: %v\n", err)
	}
	for _, m := range past {
		fmt.Fprintln(textView, colorize(m, false))
	}

	s, err := openSession(ctx, userName, room)
	if err != nil {
		return err
	}
	defer s.close()
	fmt.Fprintf(textView, "[green]Welcome to %s! You are %s. (Ctrl+C to exit)\n%s\n", room, userName, chatHelp)

	var (
		members []gjson.Result
		typing  []string
	)
	renderStatus := func() {
		others := slices.DeleteFunc(slices.Clone(typing), func(n string) bool { return n == userName })
		status := fmt.Sprintf("[gray]%s · %d online", room, len(members))
		if len(others) > 0 {
			status += " · [yellow]" + strings.Join(others, ", ") + " typing…"
		}
		statusView.SetText(status)
	}
	renderStatus()

	go func() {
		for {
			event, f, err := s.recv()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				app.QueueUpdateDraw(func() {
					fmt.Fprintf(textView, "[red]Stream closed: %v\n", err)
				})
				return
			}
			p := f.Get("payload")
			own := s.isOwn(p)
			app.QueueUpdateDraw(func() {
				switch event {
				case "receive_message":
					fmt.Fprintln(textView, colorize(p, own))
					if !own {
						s.markRead(p.Get("id").Int())
					}
				case "private_message":
					fmt.Fprintln(textView, colorize(p, own))
				case "userNotification":
					fmt.Fprintf(textView, "[gray]* %s\n", tview.Escape(p.Get("message").String()))
				case "user_list":
					members = p.Array()
				case "typing_users":
					typing = typing[:0]
					for _, n := range p.Array() {
						typing = append(typing, n.String())
					}
				case "message:reaction:update":
					fmt.Fprintf(textView, "[gray]* %s reacted %s to #%d\n",
						memberName(members, p.Get("userId").String()), tview.Escape(p.Get("reaction").String()), p.Get("messageId").Int())
				case "error":
					fmt.Fprintf(textView, "[red]Error: %s\n", tview.Escape(p.Get("error").String()))
				}
				renderStatus()
				textView.ScrollToEnd()
			})
		}
	}()

	typingOn := false
	setTyping := func(on bool) {
		if on != typingOn {
			typingOn = on
			s.typing(on)
		}
	}
	inputField.SetChangedFunc(func(text string) {
		setTyping(text != "")
	})

	inputField.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(inputField.GetText())
		inputField.SetText("")
		setTyping(false)
		if text == "" {
			return
		}
		if strings.HasPrefix(text, "/") {
			if quit := runChatCommand(s, text, members, textView); quit {
				cancel()
				app.Stop()
			}
			return
		}
		if _, err := s.say(text); err != nil {
			fmt.Fprintf(textView, "[red]Failed to send message: %v\n", err)
		}
	})

	// Leave and exit on Ctrl+C
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			cancel()
			app.Stop()
			return nil
		}
		return event
	})

	return app.Run()
}

// runChatCommand executes a slash command typed into the chat input and
// reports whether the session should end.
func runChatCommand(s *chatSession, line string, members []gjson.Result, out *tview.TextView) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/who":
		for _, m := range members {
			fmt.Fprintf(out, "[gray]  %s (%s)\n", tview.Escape(m.Get("username").String()), m.Get("id").String())
		}
	case "/dm":
		if len(fields) < 3 {
			fmt.Fprintln(out, "[red]usage: /dm <id> <text>")
			return false
		}
		body := strings.TrimSpace(strings.TrimPrefix(line, fields[0]+" "+fields[1]))
		if _, err := s.whisper(fields[1], body); err != nil {
			fmt.Fprintf(out, "[red]Failed to send private message: %v\n", err)
		}
	case "/react":
		if len(fields) != 3 {
			fmt.Fprintln(out, "[red]usage: /react <message id> <emoji>")
			return false
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(fields[1], "#"), 10, 64)
		if err != nil {
			fmt.Fprintf(out, "[red]Invalid message id %q\n", fields[1])
			return false
		}
		if err := s.react(id, fields[2]); err != nil {
			fmt.Fprintf(out, "[red]Failed to react: %v\n", err)
		}
	default:
		fmt.Fprintln(out, chatHelp)
	}
	return false
}

func colorize(m gjson.Result, own bool) string {
	color := "blue"
	switch {
	case m.Get("isPrivate").Bool():
		color = "fuchsia"
	case own:
		color = "green"
	}
	return fmt.Sprintf("[%s]%s[white]", color, tview.Escape(formatMessage(m)))
}

func memberName(members []gjson.Result, id string) string {
	for _, m := range members {
		if m.Get("id").String() == id {
			return m.Get("username").String()
		}
	}
	return id
}
