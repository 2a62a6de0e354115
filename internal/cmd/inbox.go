package cmd

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/zfogg/feedsync/pkg/config"
	"github.com/zfogg/feedsync/pkg/entity"
	"github.com/zfogg/feedsync/pkg/output"
	"github.com/zfogg/feedsync/pkg/prompter"
	"github.com/zfogg/feedsync/pkg/realtime"
)

var inboxCmd = &cobra.Command{
	Use:     "inbox",
	Aliases: []string{"chat", "dm"},
	Short:   "Direct message commands",
}

var inboxThreadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List your conversations",
	RunE: withSession(func(ctx context.Context, s *session) error {
		threads, err := s.core.Inbox().Threads(ctx)
		if err != nil {
			return err
		}
		return output.PrintThreads(threads)
	}),
}

var inboxOpenCmd = &cobra.Command{
	Use:   "open <user-id>",
	Short: "Find or start a conversation with a user",
	Args:  cobra.ExactArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		if _, err := s.core.Inbox().Threads(ctx); err != nil {
			return err
		}
		thread, err := s.core.Inbox().OpenWith(ctx, args[0])
		if err != nil {
			return err
		}
		return output.PrintThreads([]entity.Thread{thread})
	}),
}

var inboxReadCmd = &cobra.Command{
	Use:   "read <thread-id>",
	Short: "Show the messages in a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		p, err := s.core.Inbox().Select(args[0])
		if err != nil {
			return err
		}
		if err := p.PollNow(ctx); err != nil {
			return err
		}
		return output.PrintMessages(p.Messages(), s.creds.Viewer())
	}),
}

var inboxSendCmd = &cobra.Command{
	Use:   "send <thread-id> <text>...",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: withArgs(func(ctx context.Context, s *session, args []string) error {
		msg, err := s.core.SendMessage(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.PrintJSON(msg)
		}
		output.PrintSuccess("Sent")
		return nil
	}),
}

var inboxChatCmd = &cobra.Command{
	Use:   "chat <thread-id>",
	Short: "Open a live conversation",
	Long: `Open a live conversation. Type a line to send it.
Commands: /retry <id> re-sends a failed message, /discard <id> drops it, /quit leaves.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := interruptContext(cmd.Context())
		defer cancel()

		inbox := s.core.Inbox()
		viewerID := s.creds.Viewer()

		var mu sync.Mutex
		shown := map[string]entity.MessageStatus{}
		unsubscribe := inbox.Subscribe(func(msgs []entity.Message) {
			mu.Lock()
			defer mu.Unlock()
			var fresh []entity.Message
			for _, m := range msgs {
				if status, ok := shown[m.ID]; ok && status == m.Status {
					continue
				}
				shown[m.ID] = m.Status
				if m.Status != entity.StatusSending {
					fresh = append(fresh, m)
				}
			}
			if len(fresh) > 0 {
				_ = output.PrintMessages(fresh, viewerID)
			}
		})
		defer unsubscribe()

		if err := s.core.SelectThread(args[0]); err != nil {
			return err
		}

		if config.GetBool("realtime.enabled") {
			rt := realtime.NewClient(realtime.ConfigFromConfig())
			if err := rt.Connect(s.creds.AccessToken); err == nil {
				detach := realtime.Bridge(rt, s.core, 0)
				defer rt.Disconnect()
				defer detach()
			}
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			p := prompter.Default()
			for {
				line, err := p.String("")
				if err != nil {
					return
				}
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
		}()

		output.PrintInfo("Connected. /quit to leave")
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok || line == "/quit" {
					return nil
				}
				if err := chatCommand(ctx, s, line); err != nil {
					output.PrintError("%v", err)
				}
			}
		}
	},
}

func chatCommand(ctx context.Context, s *session, line string) error {
	inbox := s.core.Inbox()
	switch {
	case line == "":
		return nil
	case strings.HasPrefix(line, "/retry "):
		_, err := inbox.Retry(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/retry ")))
		return err
	case strings.HasPrefix(line, "/discard "):
		if !inbox.Discard(strings.TrimSpace(strings.TrimPrefix(line, "/discard "))) {
			output.PrintWarning("No failed message with that id")
		}
		return nil
	default:
		p := inbox.Active()
		if p == nil {
			return nil
		}
		_, err := inbox.Send(ctx, p.ThreadID(), line)
		return err
	}
}

func init() {
	inboxCmd.AddCommand(inboxThreadsCmd)
	inboxCmd.AddCommand(inboxOpenCmd)
	inboxCmd.AddCommand(inboxReadCmd)
	inboxCmd.AddCommand(inboxSendCmd)
	inboxCmd.AddCommand(inboxChatCmd)
}
