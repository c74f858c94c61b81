// chattester is a terminal client for poking a live dialogue service through
// the same session controller the API uses. Type a message and read the
// reply; /reset restarts the session, /quit exits.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lawofthedmz/Therabot/internal/config"
	"github.com/lawofthedmz/Therabot/internal/model/chat"
	"github.com/lawofthedmz/Therabot/internal/service/dialogue"
	"github.com/lawofthedmz/Therabot/internal/service/session"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[warn] no .env file, using system environment: %v", err)
	}

	baseURL := flag.String("base-url", "", "dialogue service base URL (defaults to DIALOGUE_BASE_URL)")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request timeout")
	flag.Parse()

	target := strings.TrimSpace(*baseURL)
	if target == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("no -base-url given and configuration unusable: %v", err)
		}
		target = cfg.Dialogue.BaseURL
	}

	client := dialogue.NewClient(target, &http.Client{Timeout: *timeout})
	controller := session.New(client, nil, nil)

	ctx := context.Background()
	if err := controller.Start(ctx); err != nil {
		log.Printf("[warn] greeting unavailable: %v", err)
	}
	printLast(controller)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "/quit", "/exit":
			return
		case "/reset":
			if err := controller.Reset(ctx); err != nil {
				log.Printf("[warn] reset: %v", err)
			}
			printLast(controller)
			continue
		case "":
			continue
		}

		if err := controller.Submit(ctx, line); err != nil {
			log.Printf("[warn] turn failed: %v", err)
			continue
		}
		printLast(controller)
	}
}

// printLast shows the newest bot message, if there is one.
func printLast(controller *session.Controller) {
	messages := controller.Transcript()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Sender == chat.SenderBot {
			fmt.Printf("bot: %s\n", messages[i].Text)
			return
		}
	}
}
