// Command chatclient joins the support chat from a terminal. Each stdin line is sent
// as a message; broadcasts are printed as they arrive.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"

	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/features/chat/client"
	"lunaexecutor-backend/internal/features/chat/models"
)

type clientConfig struct {
	URL        string        `env:"CHAT_URL" envDefault:"ws://localhost:8080/ws"`
	Session    string        `env:"CHAT_SESSION"`
	CookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"luna_sid"`
	RetryDelay time.Duration `env:"CHAT_RETRY_DELAY" envDefault:"3s"`
	Debug      bool          `env:"DEBUG" envDefault:"false"`
}

func main() {
	cfg := clientConfig{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse env: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("chatclient", flag.ExitOnError)
	fs.StringVar(&cfg.URL, "url", cfg.URL, "websocket endpoint")
	fs.StringVar(&cfg.Session, "session", cfg.Session, "session id to join as a logged-in user")
	fs.DurationVar(&cfg.RetryDelay, "retry", cfg.RetryDelay, "delay between reconnect attempts")
	_ = fs.Parse(os.Args[1:])

	logger.InitWithWriter(os.Stderr, "chatclient", cfg.Debug)

	header := http.Header{}
	if cfg.Session != "" {
		header.Set("Cookie", (&http.Cookie{Name: cfg.CookieName, Value: cfg.Session}).String())
	}

	c := client.New(client.Config{
		URL:        cfg.URL,
		Header:     header,
		RetryDelay: cfg.RetryDelay,
		OnMessage:  printMessage,
		OnStateChange: func(s client.State) {
			logger.Info().Str("state", s.String()).Msg("Chat connection state")
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go readInput(ctx, c)

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Chat client stopped")
		os.Exit(1)
	}
}

func readInput(ctx context.Context, c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := c.Send(line); err != nil {
			logger.Warn().Err(err).Msg("Message not sent")
		}
	}
}

func printMessage(msg *models.ChatMessage) {
	who := "guest"
	if msg.UserID != 0 {
		who = fmt.Sprintf("user#%d", msg.UserID)
	}
	if msg.IsAdmin {
		who += " (admin)"
	}
	fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04:05"), who, msg.Content)
}
