// Command chat is a terminal client for a running assistant server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/agente-metalurgico/server/internal/chatclient"
	"github.com/agente-metalurgico/server/internal/tui"
)

type config struct {
	ServerURL string        `envconfig:"CHAT_SERVER_URL" default:"http://127.0.0.1:8000"`
	ChatID    string        `envconfig:"CHAT_ID" default:"1"`
	Timeout   time.Duration `envconfig:"CHAT_TIMEOUT" default:"120s"`
}

func main() {
	_ = godotenv.Load(".env")

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.ServerURL, "url", cfg.ServerURL, "assistant server base URL")
	flag.StringVar(&cfg.ChatID, "chat-id", cfg.ChatID, "conversation id")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-message timeout")
	flag.Parse()

	client := chatclient.New(cfg.ServerURL, cfg.ChatID, cfg.Timeout)
	title := fmt.Sprintf("Agente metalúrgico · %s · chat %s", cfg.ServerURL, client.ChatID())

	if _, err := tea.NewProgram(tui.New(client, title, cfg.Timeout), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
}
