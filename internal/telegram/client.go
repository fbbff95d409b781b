// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/numatrix/numatrix/internal/models"
)

// LatestRunFunc returns the most recent run, or nil when none exists.
type LatestRunFunc func() (*models.Run, error)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	sleep          func(time.Duration)
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		sleep:          time.Sleep,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, latest LatestRunFunc) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, latest)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, latest LatestRunFunc) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	case "last":
		text := "No analysis runs yet\\."
		if latest != nil {
			run, err := latest()
			switch {
			case err != nil:
				text = fmt.Sprintf("⚠️ `%s`", escapeMarkdownV2(err.Error()))
			case run != nil:
				text = formatRun(run)
			}
		}
		reply := tgbotapi.NewMessage(msg.Chat.ID, text)
		reply.ParseMode = "MarkdownV2"
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i < c.maxRetries-1 {
			c.sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends an analysis error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(runErr error) error {
	text := fmt.Sprintf("⚠️ *Analysis error*\n`%s`", escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Analysis recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendRun sends a summary of a completed analysis run.
func (c *Client) SendRun(run *models.Run) error {
	return c.sendMarkdownV2(formatRun(run))
}

// formatRun formats a run summary into a Telegram MarkdownV2 message.
func formatRun(run *models.Run) string {
	h := run.Hypothesis
	sig := run.Significance

	var b strings.Builder
	b.WriteString("🔢 *Personal year distribution*\n\n")
	fmt.Fprintf(&b, "📅 %s\n", escapeMarkdownV2(run.CreatedAt.UTC().Format("2006-01-02 15:04:05")))
	fmt.Fprintf(&b, "Sources: %s\n", escapeMarkdownV2(strings.Join(run.Sources, ", ")))
	fmt.Fprintf(&b, "Reference: %s\n", escapeMarkdownV2(run.ReferenceDate.String()))
	fmt.Fprintf(&b, "Events: *%d* \\(%d skipped\\)\n\n", h.Total, run.Skipped)

	codes := make([]int, 0, len(h.Counts))
	for code := range h.Counts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		marker := ""
		if code == h.TargetCode {
			marker = " ◀"
		}
		fmt.Fprintf(&b, "`%d` %d%s\n", code, h.Counts[code], marker)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Code %d: *%d* observed vs %s expected \\(%s\\)\n",
		h.TargetCode, h.Observed,
		escapeMarkdownV2(fmt.Sprintf("%.1f", h.Expected)),
		escapeMarkdownV2(fmt.Sprintf("%.1f%%", h.Percentage)))
	fmt.Fprintf(&b, "χ² %s, p %s\n",
		escapeMarkdownV2(fmt.Sprintf("%.2f", sig.ChiSquare)),
		escapeMarkdownV2(fmt.Sprintf("%.4f", sig.PValue)))

	verdict := "❌ Hypothesis not supported"
	if h.Supported {
		verdict = "✅ Hypothesis supported"
	}
	b.WriteString(verdict)
	if !sig.Uniform {
		b.WriteString(" · distribution not uniform")
	}
	b.WriteString("\n")
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
