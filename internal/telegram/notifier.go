package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"meal-planner/internal/config"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLen is Telegram's limit for a single text message.
const maxMessageLen = 4096

// Notifier sends operator alerts and plan summaries to one Telegram chat.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewNotifier authorizes the bot configured by TELEGRAM_BOT_TOKEN.
func NewNotifier(cfg *config.Config, logger *slog.Logger) (*Notifier, error) {
	return NewNotifierWithEndpoint(cfg.TelegramBotToken, cfg.TelegramAlertChatID, tgbotapi.APIEndpoint, &http.Client{}, logger)
}

// NewNotifierWithEndpoint is NewNotifier against a custom Bot API endpoint.
func NewNotifierWithEndpoint(token string, chatID int64, endpoint string, client *http.Client, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("telegram notifier authorized", "account", bot.Self.UserName, "chat_id", chatID)
	return &Notifier{api: bot, chatID: chatID, logger: logger.With("component", "telegram")}, nil
}

// Alert reports a problem that needs operator attention.
func (n *Notifier) Alert(ctx context.Context, title, detail string) error {
	return n.send(ctx, formatAlert(title, detail))
}

// SendPlan posts a plan summary.
func (n *Notifier) SendPlan(ctx context.Context, plan planner.MealPlan) error {
	return n.send(ctx, formatPlanMarkdown(plan))
}

// SendReport posts recent sync activity and system health.
func (n *Notifier) SendReport(ctx context.Context, days []metrics.DailySyncs, health metrics.SysHealth) error {
	return n.send(ctx, formatReport(days, health))
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(text) > maxMessageLen {
		text = truncate(text, maxMessageLen)
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func formatAlert(title, detail string) string {
	safe := strings.ReplaceAll(detail, "`", "'")
	return fmt.Sprintf("⚠️ *%s*\n```\n%s\n```", title, safe)
}

// escape quotes catalog and inventory text placed outside an entity.
func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatPlanMarkdown(plan planner.MealPlan) string {
	var pb strings.Builder
	fmt.Fprintf(&pb, "🍽 *Meal Plan* (inventory v%d)\n\n", plan.SnapshotVersion)

	if plan.Stale {
		fmt.Fprintf(&pb, "⚠️ _Stale inventory, %s old_\n\n", plan.StaleAge.Round(time.Second))
	}

	if len(plan.SelectedRecipes) == 0 {
		pb.WriteString("_No recipe can be cooked from the current stock_\n")
	}
	for i, r := range plan.SelectedRecipes {
		name := r.Name
		if name == "" {
			name = r.ID
		}
		fmt.Fprintf(&pb, "%d. %s", i+1, escape(name))
		if r.Duration != "" {
			fmt.Fprintf(&pb, " (%s)", escape(r.Duration))
		}
		pb.WriteString("\n")
	}

	if len(plan.UnmetIngredients) > 0 {
		pb.WriteString("\n🛒 *Missing*\n")
		for _, id := range plan.UnmetIngredients {
			fmt.Fprintf(&pb, "• %s\n", escape(id))
		}
	}
	return pb.String()
}

func formatReport(days []metrics.DailySyncs, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Sync & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Syncs*\n")
	if len(days) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range days {
		fmt.Fprintf(&sb, "• *%s*: %d runs, %d new, %d failed (avg %dms)\n", d.Date, d.Total, d.Committed, d.Failed, d.AvgLatencyMS)
	}

	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", health.Goroutines)
	fmt.Fprintf(&sb, "• Disk Data: %s\n", escape(health.DataDiskSize))
	return sb.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	const marker = "\n…"
	cut := n - len(marker)
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
