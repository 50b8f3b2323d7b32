package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/campus-chat/api"
	"github.com/linesmerrill/campus-chat/api/scheduler"
	"github.com/linesmerrill/campus-chat/chat"
	"github.com/linesmerrill/campus-chat/config"
	"github.com/linesmerrill/campus-chat/models"
	"github.com/linesmerrill/campus-chat/realtime"
	"github.com/linesmerrill/campus-chat/services"
)

type options struct {
	room       string
	email      string
	password   string
	list       bool
	assignment string
	join       bool
	remind     bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("campus-chat", flag.ContinueOnError)
	fs.StringVar(&o.room, "room", "", "group chat id to open")
	fs.StringVar(&o.email, "email", "", "log in with this email instead of AUTH_TOKEN")
	fs.StringVar(&o.password, "password", "", "password used with -email")
	fs.BoolVar(&o.list, "list", false, "list the group chats you belong to")
	fs.StringVar(&o.assignment, "assignment", "", "only list group chats of this assignment title")
	fs.BoolVar(&o.join, "join", false, "join the room before opening it")
	fs.BoolVar(&o.remind, "remind", false, "report assignments that are due soon")
	err := fs.Parse(args)
	return o, err
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	conf, err := config.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer zap.L().Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, opts, os.Stdin, os.Stdout); err != nil {
		config.ErrorNotice("campus-chat", os.Stderr, err)
		os.Exit(1)
	}
}

// lockedWriter serialises output from the chat loop and the realtime listener
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func run(ctx context.Context, conf *config.Config, opts options, in io.Reader, out io.Writer) error {
	out = &lockedWriter{w: out}
	tokens := api.NewTokenStore(conf.AuthToken)
	metrics := api.NewMetricsCollector(0)
	client, err := api.NewClient(conf.APIBaseURL,
		api.WithTokenSource(tokens),
		api.WithTimeout(conf.RequestTimeout),
		api.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}
	defer func() {
		zap.S().Infow("api usage", "summary", metrics.GetSummary())
	}()

	if opts.email != "" {
		resp, err := services.NewAuthService(client, tokens).Login(ctx, models.Credentials{Email: opts.email, Password: opts.password})
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		zap.S().Infow("logged in", "role", resp.Role)
	}
	identity, err := services.IdentityFromToken(tokens.Token())
	if err != nil {
		return err
	}

	chats := services.NewGroupChatService(client)
	if opts.list {
		rooms, err := chats.List(ctx, opts.assignment)
		if err != nil {
			return fmt.Errorf("list rooms: %w", err)
		}
		for _, r := range rooms {
			fmt.Fprintf(out, "%s\t%s\t%s\t%d members\n", r.ID, r.Name, r.AssignmentTitle, len(r.Members))
		}
	}

	if opts.remind {
		reminder := scheduler.NewDeadlineReminder(services.NewAssignmentService(client), conf.ReminderWindow,
			func(a models.Assignment, deadline time.Time) {
				fmt.Fprintf(out, "reminder: %s is due %s\n", a.Title, deadline.Local().Format("Mon Jan 2 15:04"))
			},
			scheduler.WithSchedule(conf.ReminderSchedule),
		)
		if _, err := reminder.Check(ctx); err != nil {
			config.ErrorNotice("deadline reminder", out, err)
		}
		if err := reminder.Start(); err != nil {
			return err
		}
		defer reminder.Stop()
	}

	if opts.room == "" {
		if opts.remind {
			<-ctx.Done()
		}
		return nil
	}

	if opts.join {
		if _, err := chats.Join(ctx, opts.room); err != nil {
			return fmt.Errorf("join room: %w", err)
		}
	}

	factory, err := realtime.NewSocketIOFactory(conf.SocketURL,
		realtime.WithTokens(tokens),
		realtime.WithJoinEvent(conf.JoinEvent),
		realtime.WithHandshakeTimeout(conf.RequestTimeout),
	)
	if err != nil {
		return err
	}

	sessionOpts := []chat.Option{chat.WithIdentity(identity)}
	if conf.Deduplicate {
		sessionOpts = append(sessionOpts, chat.WithDeduplication())
	}
	if conf.Reconnect {
		policy := chat.DefaultReconnectPolicy
		policy.MaxElapsedTime = conf.ReconnectMaxElapsed
		sessionOpts = append(sessionOpts, chat.WithReconnect(policy))
	}

	session := chat.NewSession(chats, factory, sessionOpts...)
	if err := session.Open(ctx, opts.room); err != nil {
		return err
	}

	// live messages wait until the history is on screen
	var printMu sync.Mutex
	printMu.Lock()
	history := session.Follow(func(m models.Message) {
		printMu.Lock()
		defer printMu.Unlock()
		fmt.Fprintln(out, formatMessage(m, session.IsOwn(m)))
	})
	for _, m := range history {
		fmt.Fprintln(out, formatMessage(m, session.IsOwn(m)))
	}
	printMu.Unlock()

	chatLoop(ctx, session, in, out)

	// the signal context may already be done, leave with a fresh deadline
	leaveCtx, cancel := api.WithRequestTimeout(context.Background(), conf.RequestTimeout)
	defer cancel()
	if err := session.Leave(leaveCtx); err != nil {
		config.ErrorNotice("failed to leave room", out, err)
	}
	return nil
}

// chatLoop sends every input line until /leave, end of input or cancellation
func chatLoop(ctx context.Context, session *chat.Session, in io.Reader, out io.Writer) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/leave" {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := session.Send(ctx, line); err != nil {
				config.ErrorNotice("message not sent", out, err)
				fmt.Fprintf(out, "unsent: %s\n", line)
			}
		}
	}
}

func formatMessage(m models.Message, own bool) string {
	name := m.Sender.Name
	if name == "" {
		name = m.Sender.ID
	}
	if own {
		name = "you"
	}
	stamp := "--:--"
	if t := m.Time(); !t.IsZero() {
		stamp = t.Local().Format("15:04")
	}
	return fmt.Sprintf("[%s] %s: %s", stamp, name, m.Body())
}
