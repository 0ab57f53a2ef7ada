package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"transcript-compare/internal/config"
	"transcript-compare/internal/domain/model"
	"transcript-compare/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier pushes a summary message to a fixed chat when a project
// reaches a terminal status.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramNotifier(cfg *config.NotifyConfig, log *zerolog.Logger) (*TelegramNotifier, error) {
	if cfg == nil || cfg.TelegramToken == "" {
		return nil, errors.New("telegram notifier: empty token")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot, chatID: cfg.TelegramChatID, log: log}, nil
}

func (n *TelegramNotifier) ProjectFinished(ctx context.Context, project *model.Project, jobs []*model.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, summarize(project, jobs))
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Str("project_id", project.ID).Msg("telegram notification failed")
		return err
	}
	return nil
}

func summarize(project *model.Project, jobs []*model.JobRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project %q finished: %s\n", project.Name, project.Status)
	for _, j := range jobs {
		line := fmt.Sprintf("• %s: %s", j.Provider, j.Status)
		if j.Status == model.JobStatusCompleted && j.ProcessingTimeMs > 0 {
			line += fmt.Sprintf(" (%.1fs", float64(j.ProcessingTimeMs)/1000)
			if j.CostUsd > 0 {
				line += fmt.Sprintf(", $%.4f", j.CostUsd)
			}
			line += ")"
		}
		if j.Status == model.JobStatusFailed && j.ErrorMessage != "" {
			line += ": " + j.ErrorMessage
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
