package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/apperr"
	"meal-planner/internal/inventory"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/syncer"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// commandTimeout bounds one chat command, including a forced sync.
const commandTimeout = 2 * time.Minute

// Planner is the part of the planning facade the bot drives.
type Planner interface {
	RequestPlan(ctx context.Context, req app.PlanRequest) (planner.MealPlan, error)
	Sync(ctx context.Context) (syncer.Result, error)
	Snapshot(ctx context.Context, version int64) (inventory.Snapshot, error)
}

// ReportSource provides daily sync totals for /report.
type ReportSource interface {
	GetDailySyncs(ctx context.Context, days int) ([]metrics.DailySyncs, error)
}

// Bot answers operator commands sent to the alert chat through a webhook.
type Bot struct {
	notifier *Notifier
	planner  Planner
	reports  ReportSource
	dataDir  string
	now      func() time.Time

	wg sync.WaitGroup
}

// NewBot creates a Bot that replies through n. reports may be nil.
func NewBot(n *Notifier, p Planner, reports ReportSource, dataDir string) *Bot {
	return &Bot{
		notifier: n,
		planner:  p,
		reports:  reports,
		dataDir:  dataDir,
		now:      time.Now,
	}
}

// SetWebhook points Telegram at url.
func (b *Bot) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url %s: %w", url, err)
	}
	resp, err := b.notifier.api.Request(wh)
	if err != nil {
		return fmt.Errorf("failed to set webhook to %s: %w", url, err)
	}
	b.notifier.logger.Info("telegram webhook set", "url", url, "description", resp.Description)
	return nil
}

// HandleWebhook acknowledges the update at once and runs the command in the
// background. Messages from any chat other than the alert chat are ignored.
func (b *Bot) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.notifier.api.HandleUpdate(r)
	if err != nil {
		b.notifier.logger.Warn("failed to parse telegram update", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return
	}
	if chatID := msg.Chat.ID; chatID != b.notifier.chatID {
		from := ""
		if msg.From != nil {
			from = msg.From.UserName
		}
		b.notifier.logger.Warn("ignoring message from unauthorized chat", "chat_id", chatID, "from", from)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		reply := b.HandleCommand(ctx, msg.Text)
		if err := b.notifier.send(ctx, reply); err != nil {
			b.notifier.logger.Error("failed to send command reply", "error", err)
		}
	}()
}

// Wait blocks until in-flight commands have replied.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// HandleCommand runs one chat command and returns the Markdown reply.
func (b *Bot) HandleCommand(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return helpText
	}
	// Commands in groups arrive as /plan@planner_bot.
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	b.notifier.logger.InfoContext(ctx, "telegram command", "command", cmd, "args", len(args))

	switch cmd {
	case "/plan", "/refresh":
		plan, err := b.planner.RequestPlan(ctx, app.PlanRequest{
			ForceRefresh: cmd == "/refresh",
			Tags:         splitTags(args),
		})
		if err != nil {
			return formatCommandError(err)
		}
		return formatPlanMarkdown(plan)

	case "/sync":
		res, err := b.planner.Sync(ctx)
		if err != nil {
			return formatCommandError(err)
		}
		if !res.Changed {
			return fmt.Sprintf("✅ Inventory unchanged, still on *v%d*", res.Version)
		}
		return fmt.Sprintf("✅ Committed snapshot *v%d* (%d items, %d attempt(s))", res.Version, res.ItemCount, res.Attempts)

	case "/status":
		snap, err := b.planner.Snapshot(ctx, 0)
		if err != nil {
			return formatCommandError(err)
		}
		return formatStatus(snap, b.now())

	case "/report":
		if b.reports == nil {
			return "⚠️ Sync history is not available"
		}
		days, err := b.reports.GetDailySyncs(ctx, 7)
		if err != nil {
			return formatCommandError(err)
		}
		return formatReport(days, metrics.GetSysHealth(b.dataDir))

	default:
		return helpText
	}
}

const helpText = "🤖 *Meal planner commands*\n\n" +
	"/plan [tags] - plan from the latest inventory\n" +
	"/refresh [tags] - sync first, then plan\n" +
	"/sync - pull inventory now\n" +
	"/status - latest snapshot summary\n" +
	"/report - sync runs and health"

// splitTags accepts "/plan breakfast quick" and "/plan breakfast,quick".
func splitTags(args []string) []string {
	var tags []string
	for _, a := range args {
		for _, t := range strings.Split(a, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

func formatCommandError(err error) string {
	safe := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *%s*\n```\n%s\n```", apperr.CodeOf(err), safe)
}

func formatStatus(snap inventory.Snapshot, now time.Time) string {
	expired := 0
	for _, item := range snap.Items {
		if item.ExpiredAt(now) {
			expired++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 *Inventory v%d*\n\n", snap.Version)
	fmt.Fprintf(&sb, "• Captured: %s (%s ago)\n", snap.CapturedAt.UTC().Format(time.RFC3339), snap.Age(now).Round(time.Second))
	fmt.Fprintf(&sb, "• Items: %d\n", len(snap.Items))
	if expired > 0 {
		fmt.Fprintf(&sb, "• Expired now: %d\n", expired)
	}
	return sb.String()
}
