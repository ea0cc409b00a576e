package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/raf-os/signalR-client/internal/bus"
	"github.com/raf-os/signalR-client/internal/chat"
	"github.com/raf-os/signalR-client/internal/config"
	"github.com/raf-os/signalR-client/internal/store"
)

// reauthGrace is how long the silent token re-auth gets to land before we
// prompt for credentials.
const reauthGrace = 2 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	urlFlag := flag.String("url", "", "Override chat server WebSocket URL")
	user := flag.String("user", "", "Username to log in with")
	register := flag.Bool("register", false, "Create the account before logging in")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *urlFlag != "" {
		cfg.Server.URL = *urlFlag
	}

	tokens, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open credential store: %v", err)
	}
	defer tokens.Close()

	events := bus.New()
	client := chat.New(cfg.Server.URL, events, tokens, chat.Options{
		InvokeTimeout: cfg.Client.InvokeTimeout,
		PingInterval:  cfg.Client.PingInterval,
	})

	loggedIn := make(chan chat.Session, 1)
	closed := make(chan struct{}, 1)

	bus.Listen(events, func(e chat.SuccessfulLogin) {
		select {
		case loggedIn <- e.Session:
		default:
		}
	})
	bus.Listen(events, func(e chat.MessageReceived) {
		if e.Type == chat.MessageSystem {
			fmt.Printf("* %s\n", e.Body)
			return
		}
		fmt.Printf("<%s> %s\n", e.Sender, e.Body)
	})
	bus.Listen(events, func(e chat.UserListUpdate) {
		names := make([]string, 0, len(e.Users))
		for _, u := range e.Users {
			names = append(names, u.Name)
		}
		fmt.Printf("* online: %s\n", strings.Join(names, ", "))
	})
	bus.Listen(events, func(e chat.ConnectionClosed) {
		select {
		case closed <- struct{}{}:
		default:
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Client.DialTimeout)
	err = client.Connect(dialCtx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Disconnect()

	var sess chat.Session
	select {
	case sess = <-loggedIn:
	case <-time.After(reauthGrace):
		if err := authenticate(ctx, client, *user, *register); err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		sess = <-loggedIn
	case <-closed:
		log.Fatal("Connection closed before login")
	case <-ctx.Done():
		return
	}
	fmt.Printf("* logged in as %s (%s)\n", sess.Username, sess.Auth)

	go inputLoop(client, sess.Username)

	select {
	case <-ctx.Done():
	case <-closed:
	}
}

// authenticate prompts for credentials and performs register and/or login.
func authenticate(ctx context.Context, client *chat.Client, username string, register bool) error {
	reader := bufio.NewReader(os.Stdin)
	if username == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	if register {
		if err := client.Register(ctx, username, string(password)); err != nil {
			return err
		}
	}
	return client.Login(ctx, username, string(password))
}

// inputLoop feeds stdin lines to the chat until EOF or /quit.
func inputLoop(client *chat.Client, username string) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "/quit" {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := client.SendMessage(username, line); err != nil {
			log.Printf("send: %v", err)
		}
	}
	if err := client.Logout(); err != nil && err != chat.ErrNotLoggedIn {
		log.Printf("logout: %v", err)
	}
	client.Disconnect()
}
