package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/action"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/session"
)

// #region repl

const chatHelp = `Type what you say. Wrap a gesture in asterisks: *waves* hi there
Commands: /continue  /ff  /retry  /pin [text]  /unpin  /state  /end  /quit`

func runChat(ctx context.Context, rt *runtime, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s := rt.session
	sc := s.State().Scenario

	fmt.Fprintf(out, "You meet %s (%s).\n", sc.Persona.Name, sc.Environment.Label())
	fmt.Fprintln(out, chatHelp)
	printRecords(out, s.State().History.Records())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "quit" || line == "exit" {
			break
		}

		if strings.HasPrefix(line, "/") {
			runCommand(ctx, s, line, out)
		} else {
			dialogue, gesture := splitGesture(line)
			res, err := s.SubmitUserTurn(ctx, dialogue, gesture)
			printTurn(out, res, err)
		}

		if s.State().Ended {
			printEnd(out, s.State())
			break
		}
	}
	return scanner.Err()
}

func runCommand(ctx context.Context, s *session.Session, line string, out io.Writer) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/continue":
		res, err := s.SubmitSilentContinue(ctx)
		printTurn(out, res, err)
	case "/ff":
		res, err := s.SubmitFastForward(ctx)
		printTurn(out, res, err)
	case "/retry":
		res, err := s.RetryLastFailedTurn(ctx)
		printTurn(out, res, err)
	case "/pin":
		st, err := s.PinGoal(arg)
		if err != nil {
			fmt.Fprintf(out, "  cannot pin: %v\n", err)
			return
		}
		printStatus(out, st)
	case "/unpin":
		st, err := s.UnpinGoal()
		if err != nil {
			fmt.Fprintf(out, "  cannot unpin: %v\n", err)
			return
		}
		printStatus(out, st)
	case "/state":
		printStatus(out, s.State())
	case "/end":
		s.EndConversation(true)
	default:
		fmt.Fprintln(out, chatHelp)
	}
}

// splitGesture pulls a *gesture* out of the line; the rest, with its spacing
// collapsed, is dialogue.
func splitGesture(line string) (dialogue, gesture string) {
	start := strings.Index(line, "*")
	if start < 0 {
		return line, ""
	}
	end := strings.Index(line[start+1:], "*")
	if end < 0 {
		return line, ""
	}
	end += start + 1
	gesture = strings.TrimSpace(line[start+1 : end])
	dialogue = strings.Join(strings.Fields(line[:start]+" "+line[end+1:]), " ")
	return dialogue, gesture
}

// #endregion repl

// #region render

func printTurn(out io.Writer, res orchestrator.TurnResult, err error) {
	if err != nil {
		var svcErr *session.ServiceError
		if errors.As(err, &svcErr) {
			fmt.Fprintf(out, "  ! %v (type /retry to resend)\n", svcErr.Err)
			return
		}
		fmt.Fprintf(out, "  ! %v\n", err)
		return
	}

	if rec, ok := res.State.History.Find(res.AIRecordID); ok {
		printRecords(out, []history.TurnRecord{rec})
	}
	if pf := res.State.PendingFeedback; pf != nil {
		fb := pf.Feedback
		fmt.Fprintf(out, "  [feedback] delta=%+d effectiveness=%d/10", fb.EngagementDelta, fb.EffectivenessScore)
		if fb.NextStep != "" {
			fmt.Fprintf(out, " next: %s", fb.NextStep)
		}
		fmt.Fprintln(out)
	}
	if res.Annotation != nil {
		fmt.Fprintf(out, "  [goal %s] %s -> %s\n", res.Annotation.Kind, res.Annotation.From, res.Annotation.To)
	}
	if res.Achievement != nil && res.Achievement.Toast {
		fmt.Fprintf(out, "  [achieved] %s\n", res.Achievement.Text)
	}
	if res.ActionEvent != action.EventNone && res.ActionEvent != "" {
		fmt.Fprintf(out, "  [action %s]\n", res.ActionEvent)
	}
	if res.UserActionSuggested {
		fmt.Fprintln(out, "  [hint] try doing something, not just saying it")
	}
	printStatus(out, res.State)
}

func printRecords(out io.Writer, records []history.TurnRecord) {
	for _, r := range records {
		switch r.Role {
		case history.RoleBackstory:
			fmt.Fprintf(out, "  (%s)\n", r.Text)
		case history.RoleAI:
			for _, seg := range r.Segments {
				switch seg.Kind {
				case history.SegmentDialogue:
					fmt.Fprintf(out, "  \"%s\"\n", seg.Text)
				case history.SegmentThought:
					fmt.Fprintf(out, "  (thinks: %s)\n", seg.Text)
				default:
					fmt.Fprintf(out, "  %s\n", seg.Text)
				}
			}
			if r.BodyLanguage != "" {
				fmt.Fprintf(out, "  *%s*\n", r.BodyLanguage)
			}
		}
	}
}

func printStatus(out io.Writer, st orchestrator.ConversationState) {
	fmt.Fprintf(out, "  engagement=%d", st.Score.Engagement)
	if st.Action != nil {
		state := "running"
		if st.Action.Paused {
			state = "paused, /ff to finish"
		}
		fmt.Fprintf(out, " action=%q %d%% (%s)", st.Action.Description, st.Action.Progress, state)
	} else if g := st.DisplayedGoal(); g != nil {
		pin := ""
		if g.Pinned {
			pin = " pinned"
		}
		fmt.Fprintf(out, " goal=%q %d%%%s", g.Text, g.Progress, pin)
	}
	fmt.Fprintln(out)
}

func printEnd(out io.Writer, st orchestrator.ConversationState) {
	fmt.Fprintf(out, "Conversation ended (%s). Final engagement %d.\n", st.EndReason, st.Score.Engagement)
}

// #endregion render
