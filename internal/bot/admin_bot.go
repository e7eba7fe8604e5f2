package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/logger"
	"battle_rooms/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AdminBot - операторский бот: здоровье движка, комнаты на проверке, алерты
type AdminBot struct {
	bot      *tgbotapi.BotAPI
	pvp      *service.PvPService
	health   *service.HealthService
	audit    *service.AuditService
	adminIDs []int64 // Telegram ID пользователей с правами админа
	stopCh   chan struct{}
	wg       sync.WaitGroup
	log      *slog.Logger
}

// NewAdminBot создаёт нового админ бота
func NewAdminBot(token string, pvp *service.PvPService, health *service.HealthService, audit *service.AuditService, adminIDs []int64) (*AdminBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log := logger.Component("admin_bot")
	log.Info("admin bot authorized", "username", bot.Self.UserName)

	return &AdminBot{
		bot:      bot,
		pvp:      pvp,
		health:   health,
		audit:    audit,
		adminIDs: adminIDs,
		stopCh:   make(chan struct{}),
		log:      log,
	}, nil
}

// Start запускает прослушивание команд
func (b *AdminBot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.bot.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.From == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.isAdmin(update.Message.From.ID) {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(update.Message)
		}
	}
}

// Stop плавно останавливает бота
func (b *AdminBot) Stop() {
	b.log.Info("stopping admin bot...")
	close(b.stopCh)
	b.bot.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("admin bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("admin bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *AdminBot) isAdmin(userID int64) bool {
	return slices.Contains(b.adminIDs, userID)
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var response string
	switch msg.Command() {
	case "start", "help":
		response = helpMessage()
	case "health":
		response = b.handleHealth(ctx)
	case "review":
		response = b.handleReview(ctx, msg.CommandArguments())
	case "room":
		response = b.handleRoom(ctx, msg.CommandArguments())
	case "verify":
		response = b.handleVerify(ctx, msg.CommandArguments())
	default:
		response = "❌ Неизвестная команда. Используйте /help для списка команд."
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, response)
	reply.ParseMode = "HTML"
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.bot.Send(reply); err != nil {
		b.log.Error("error sending message", "error", err)
	}
}

func helpMessage() string {
	return `<b>🤖 Команды администратора</b>

<b>📊 PvP:</b>
/health - Состояние движка и sweep
/review [лимит] - Комнаты на ручной проверке
/room &lt;room_id&gt; - Комната и ее история
/verify &lt;room_id&gt; - Проверка честности завершенной комнаты`
}

func (b *AdminBot) handleHealth(ctx context.Context) string {
	report, err := b.health.Report(ctx)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}
	return formatHealth(report)
}

func (b *AdminBot) handleReview(ctx context.Context, args string) string {
	limit := 20
	if args != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	rooms, err := b.pvp.Store().ListReview(ctx, limit)
	if err != nil {
		return fmt.Sprintf("Ошибка: %v", err)
	}
	return formatReview(rooms)
}

func (b *AdminBot) handleRoom(ctx context.Context, args string) string {
	roomID := strings.TrimSpace(args)
	if roomID == "" {
		return "Использование: /room &lt;room_id&gt;"
	}
	room, err := b.pvp.Get(ctx, roomID)
	if err != nil {
		return fmt.Sprintf("Ошибка: %s", html.EscapeString(err.Error()))
	}
	var logs []*domain.AuditLog
	if b.audit != nil {
		logs, _ = b.audit.GetRoomHistory(ctx, roomID, 20)
	}
	return formatRoom(room, logs)
}

func (b *AdminBot) handleVerify(ctx context.Context, args string) string {
	roomID := strings.TrimSpace(args)
	if roomID == "" {
		return "Использование: /verify &lt;room_id&gt;"
	}
	report, err := b.pvp.Verify(ctx, roomID)
	if err != nil {
		return fmt.Sprintf("Ошибка: %s", html.EscapeString(err.Error()))
	}
	return formatVerify(report)
}

// NotifyReview - callback движка: комната ушла на ручную проверку
func (b *AdminBot) NotifyReview(room *domain.Room) {
	message := formatReviewAlert(room)
	for _, adminID := range b.adminIDs {
		msg := tgbotapi.NewMessage(adminID, message)
		msg.ParseMode = "HTML"
		if _, err := b.bot.Send(msg); err != nil {
			b.log.Error("failed to notify admin", "admin_id", adminID, "room_id", room.ID, "error", err)
		}
	}
}

func formatHealth(r *service.HealthReport) string {
	var sb strings.Builder
	sb.WriteString("<b>PvP health</b>\n\n")
	fmt.Fprintf(&sb, "Server: %s\nUptime: %s\n", r.ServerNowISO, time.Duration(r.UptimeSec)*time.Second)
	if r.Cron.LastSweepAt != nil {
		fmt.Fprintf(&sb, "Sweep: каждые %dms, последний %s\n", r.Cron.SweepIntervalMs, r.Cron.LastSweepISO)
	} else {
		fmt.Fprintf(&sb, "Sweep: каждые %dms, еще не запускался\n", r.Cron.SweepIntervalMs)
	}

	sb.WriteString("\n<b>Комнаты:</b>\n")
	for _, st := range domain.RoomStatuses {
		fmt.Fprintf(&sb, "- %s: %d\n", st, r.Counts[string(st)])
	}
	sb.WriteString("\n<b>Просрочено:</b>\n")
	for _, gt := range domain.GameTypes {
		fmt.Fprintf(&sb, "- %s: %d\n", gt, r.Stale[string(gt)])
	}
	fmt.Fprintf(&sb, "\nНа проверке: %d", r.Review)
	if r.Review > 0 {
		sb.WriteString(" ⚠️ /review")
	}
	return sb.String()
}

func formatReview(rooms []*domain.Room) string {
	if len(rooms) == 0 {
		return "✅ Комнат на проверке нет"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>На проверке: %d</b>\n", len(rooms))
	for _, r := range rooms {
		fmt.Fprintf(&sb, "\n<code>%s</code> %s v%d\n%s\n", r.ID, r.GameType, r.Version, html.EscapeString(r.ReviewReason))
	}
	return sb.String()
}

func formatRoom(r *domain.Room, logs []*domain.AuditLog) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Комната</b> <code>%s</code>\n", r.ID)
	fmt.Fprintf(&sb, "Игра: %s, ставка: %d, статус: %s, версия: %d\n", r.GameType, r.BetAmount, r.Status, r.Version)
	players := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, strconv.FormatInt(p.UserID, 10))
	}
	fmt.Fprintf(&sb, "Игроки: %s (владелец %d)\n", strings.Join(players, ", "), r.OwnerUserID)
	if r.WinnerUserID != nil {
		fmt.Fprintf(&sb, "Победитель: %d\n", *r.WinnerUserID)
	} else if r.Draw {
		sb.WriteString("Ничья\n")
	}
	if r.NeedsReview {
		fmt.Fprintf(&sb, "⚠️ На проверке: %s\n", html.EscapeString(r.ReviewReason))
	}
	if len(logs) > 0 {
		sb.WriteString("\n<b>История:</b>\n")
		for _, l := range logs {
			fmt.Fprintf(&sb, "- %s %s (user %d)\n", l.CreatedAt.UTC().Format("15:04:05"), l.Action, l.UserID)
		}
	}
	return sb.String()
}

func formatVerify(v *service.VerifyReport) string {
	status := "✅ честно"
	if !v.Valid {
		status = "❌ НЕ СХОДИТСЯ"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Проверка</b> <code>%s</code>: %s\n", v.RoomID, status)
	fmt.Fprintf(&sb, "hash: <code>%s</code>\nseed: <code>%s</code>\n", v.ServerSeedHash, v.ServerSeedReveal)
	for _, d := range v.Decisions {
		mark := "✓"
		if !d.Match {
			mark = "✗"
		}
		fmt.Fprintf(&sb, "%s nonce %d: %d (пересчет %d)\n", mark, d.Nonce, d.Value, d.Recomputed)
	}
	return sb.String()
}

func formatReviewAlert(r *domain.Room) string {
	return fmt.Sprintf(`<b>⚠️ Комната на ручной проверке</b>

ID: <code>%s</code>
Игра: %s, ставка: %d
Версия: %d
Причина: %s

/room %s`,
		r.ID, r.GameType, r.BetAmount, r.Version, html.EscapeString(r.ReviewReason), r.ID)
}
