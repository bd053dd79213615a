package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
)

const shortLinkHost = "maps.app.goo.gl/"

const (
	startReply = "Send me a Google Maps share link (maps.app.goo.gl/…), and I'll return a Waze link.\n" +
		"Works with both coordinate links and place links!"
	expandFailureReply = "❗️ Couldn't expand that Google Maps link."
	parseFailureReply  = "❗️ Couldn't parse coordinates from the Maps URL.\n" +
		"Make sure the link contains numeric latitude/longitude or try a different link format."
)

func main() {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("telegram: %v", err)
	}

	jrnl, err := openJournal(context.Background(), cfg)
	if err != nil {
		log.Printf("warning: resolution journal disabled: %v", err)
	}
	defer jrnl.close()

	log.Println("Performing browser health check...")
	healthy := checkBrowserHealth(cfg)
	if healthy {
		log.Println("Browser health check PASSED - browser resolution enabled")
	} else {
		log.Println("Browser health check FAILED - browser resolution disabled (install chromium and its system libraries to enable)")
	}

	resolver := newResolver(cfg, healthy, jrnl)

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := bot.GetUpdatesChan(updateCfg)

	log.Printf("Bot @%s is polling...", bot.Self.UserName)
	for update := range updates {
		if update.Message == nil {
			continue
		}
		go handleMessage(bot, resolver, update.Message)
	}
}

func handleMessage(bot *tgbotapi.BotAPI, r *resolver, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		if msg.Command() == "start" {
			reply(bot, msg, startReply)
		}
		return
	}

	shortURL, ok := findShortLink(msg.Text)
	if !ok {
		return
	}
	log.Printf("received short URL: %s", shortURL)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := r.Resolve(ctx, shortURL)
	reply(bot, msg, replyText(res, err))
}

// findShortLink returns the first whitespace-delimited token containing the
// recognized short-link substring.
func findShortLink(text string) (string, bool) {
	if !strings.Contains(text, shortLinkHost) {
		return "", false
	}
	for _, token := range strings.Fields(text) {
		if strings.Contains(token, shortLinkHost) {
			return token, true
		}
	}
	return "", false
}

func replyText(res result, err error) string {
	if err != nil {
		log.Printf("expansion failed: %v", err)
		return expandFailureReply
	}
	if !res.Resolved {
		return parseFailureReply
	}
	if res.PlaceName != "" {
		return fmt.Sprintf("Here's your Waze link for %s:\n%s", res.PlaceName, wazeLink(res.Coord))
	}
	return "Here's your Waze link:\n" + wazeLink(res.Coord)
}

func reply(bot *tgbotapi.BotAPI, msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := bot.Send(out); err != nil {
		log.Printf("   error sending reply: %v", err)
	}
}
