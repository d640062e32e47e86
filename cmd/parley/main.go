// ABOUTME: Entry point for the parley conversation sync CLI
// ABOUTME: Streams live messages, lists threads, and sends from the terminal

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/parley/internal/api"
	"github.com/2389/parley/internal/chat"
	"github.com/2389/parley/internal/config"
	"github.com/2389/parley/internal/gateway"
	"github.com/2389/parley/internal/prefs"
	"github.com/2389/parley/internal/session"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                   _
 _ __   __ _ _ __| | ___ _   _
| '_ \ / _' | '__| |/ _ \ | | |
| |_) | (_| | |  | |  __/ |_| |
| .__/ \__,_|_|  |_|\___|\__, |
|_|                      |___/
`

// getConfigPath returns the path to the parley config file.
// Priority: PARLEY_CONFIG env var > XDG_CONFIG_HOME/parley/config.yaml > ~/.config/parley/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PARLEY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "parley", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "watch":
		err = runWatch(ctx)
	case "threads":
		err = runThreads(ctx, os.Args[2:])
	case "send":
		err = runSend(ctx, os.Args[2:])
	case "unread":
		err = runUnread(ctx)
	case "search":
		err = runSearch(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: parley <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  watch                   Stream live messages to the terminal")
	fmt.Println("  threads [tab]           List threads (all, favorites, archived)")
	fmt.Println("  send <thread-id> <msg>  Send a message to a thread")
	fmt.Println("  unread                  Show the global unread count")
	fmt.Println("  search <query>          Search users to start a thread with")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  PARLEY_CONFIG           Config file path (default: ~/.config/parley/config.yaml)")
	fmt.Println("  PARLEY_TOKEN            Bearer token, referenced as ${PARLEY_TOKEN} in the config")
	fmt.Println()
}

// staticCredentials serves a fixed token for both the REST client and
// the push channel. Refresh re-reads the token file when one is
// configured; with a literal token there is nothing fresher to get.
type staticCredentials struct {
	token     string
	tokenFile string
}

func (c *staticCredentials) Token(_ context.Context) (string, error) {
	return c.token, nil
}

func (c *staticCredentials) Refresh(_ context.Context) (string, error) {
	if c.tokenFile == "" {
		return c.token, nil
	}
	raw, err := os.ReadFile(c.tokenFile)
	if err != nil {
		return "", fmt.Errorf("re-reading token file: %w", err)
	}
	c.token = strings.TrimSpace(string(raw))
	return c.token, nil
}

// selfIdentity extracts the signed-in user id from the JWT subject.
// Opaque tokens yield an empty identity; own-echo detection then relies
// on clientMessageId reconciliation alone.
func selfIdentity(token string) chat.Identity {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return chat.Identity(sub)
}

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *api.Client
	gateway *gateway.Gateway
	prefs   *prefs.Repository
	session *session.Session
}

func buildApp() (*app, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	creds := &staticCredentials{token: cfg.Auth.Token, tokenFile: cfg.Auth.TokenFile}
	client := api.New(cfg.Server.BaseURL, creds, logger)

	gw := gateway.New(
		&gateway.WSTransport{URL: cfg.Server.WSURL, Logger: logger},
		creds,
		&gateway.Options{
			BackoffMin: cfg.Sync.ReconnectBackoffMin,
			BackoffMax: cfg.Sync.ReconnectBackoffMax,
			DedupeTTL:  cfg.Sync.DedupeTTL,
		},
		logger,
	)

	repo, err := prefs.Open(cfg.Prefs.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening preference store: %w", err)
	}

	sess := session.New(client, gw, repo, selfIdentity(cfg.Auth.Token), logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		gateway: gw,
		prefs:   repo,
		session: sess,
	}, nil
}

func (a *app) close() {
	if err := a.prefs.Close(); err != nil {
		a.logger.Warn("closing preference store", "error", err)
	}
}

func runWatch(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.gateway.Connect(ctx); err != nil {
		return fmt.Errorf("connecting push channel: %w", err)
	}
	defer a.gateway.Close()

	if err := a.session.Attach(ctx); err != nil {
		return fmt.Errorf("attaching session: %w", err)
	}
	defer a.session.Detach()

	if err := a.session.RefreshThreads(ctx); err != nil {
		return fmt.Errorf("loading threads: %w", err)
	}

	unsubscribe := a.gateway.Subscribe(printEvent(a.session))
	defer unsubscribe()

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Server:  %s\n", a.cfg.Server.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Threads: %d\n", len(a.session.Threads(chat.TabAll)))
	green.Print("    ▶ ")
	fmt.Printf("Unread:  %d\n", a.session.Unread())
	fmt.Println()

	<-ctx.Done()
	return nil
}

// printEvent renders push traffic as it is dispatched. The session has
// already folded the event into its stores by subscription order.
func printEvent(sess *session.Session) gateway.Handler {
	gray := color.New(color.FgHiBlack)
	magenta := color.New(color.FgMagenta)
	yellow := color.New(color.FgYellow)

	return func(e *gateway.Event) {
		switch e.Type {
		case gateway.EventNewMessage:
			msg, err := api.DecodeMessage(e.Payload)
			if err != nil {
				return
			}
			threadID := msg.ThreadID
			if threadID == "" {
				threadID = e.ThreadID
			}
			name := string(msg.AuthorID)
			if t, ok := sess.Thread(threadID); ok && t.OtherParty.ID.Equal(msg.AuthorID) {
				name = t.OtherParty.DisplayName
			}
			gray.Printf("%s ", time.Now().Format("15:04:05"))
			magenta.Printf("%s", name)
			gray.Printf(" [%s] ", threadID)
			fmt.Println(msg.Text)
		case gateway.EventNotification:
			gray.Printf("%s ", time.Now().Format("15:04:05"))
			yellow.Printf("• notification")
			if e.ThreadID != "" {
				gray.Printf(" [%s]", e.ThreadID)
			}
			fmt.Println()
		case gateway.EventReconnect:
			gray.Printf("%s reconnected\n", time.Now().Format("15:04:05"))
		case gateway.EventDisconnect:
			gray.Printf("%s disconnected\n", time.Now().Format("15:04:05"))
		}
	}
}

func runThreads(ctx context.Context, args []string) error {
	tab := chat.TabAll
	if len(args) > 0 {
		switch args[0] {
		case "all":
			tab = chat.TabAll
		case "favorites":
			tab = chat.TabFavorites
		case "archived":
			tab = chat.TabArchived
		default:
			return fmt.Errorf("unknown tab %q (want all, favorites, or archived)", args[0])
		}
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.session.Attach(ctx); err != nil {
		return fmt.Errorf("attaching session: %w", err)
	}
	if err := a.session.RefreshThreads(ctx); err != nil {
		return fmt.Errorf("loading threads: %w", err)
	}

	threads := a.session.Threads(tab)
	if len(threads) == 0 {
		fmt.Println("No threads.")
		return nil
	}

	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)
	bold := color.New(color.Bold)

	for _, t := range threads {
		marker := "  "
		if t.IsPinned {
			marker = "📌"
		}
		fmt.Printf("%s ", marker)
		if t.IsFavorite {
			yellow.Print("★ ")
		} else {
			fmt.Print("  ")
		}
		bold.Printf("%-24s", t.OtherParty.DisplayName)
		gray.Printf(" %s", t.ID)
		if t.UnreadCount > 0 {
			color.New(color.FgRed).Printf(" (%d unread)", t.UnreadCount)
		}
		if !t.LastMessageAt.IsZero() {
			gray.Printf("  %s", t.LastMessageAt.Format("Jan 2 15:04"))
		}
		fmt.Println()
	}
	return nil
}

func runSend(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: parley send <thread-id> <message>")
	}
	threadID := args[0]
	text := strings.Join(args[1:], " ")

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.session.Attach(ctx); err != nil {
		return fmt.Errorf("attaching session: %w", err)
	}

	clientMessageID, err := a.session.Send(ctx, threadID, text, nil)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}

	color.Green("Sent (%s)", clientMessageID)
	return nil
}

func runUnread(ctx context.Context) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	count, err := a.client.UnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("fetching unread count: %w", err)
	}

	if count == 0 {
		fmt.Println("No unread messages.")
		return nil
	}
	color.New(color.FgRed, color.Bold).Printf("%d", count)
	fmt.Println(" unread")
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parley search <query>")
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	users, err := a.client.SearchUsers(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("searching users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	gray := color.New(color.FgHiBlack)
	for _, u := range users {
		fmt.Printf("%-24s", u.DisplayName)
		gray.Printf(" %s\n", u.ID)
	}
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
