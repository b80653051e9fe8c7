package checker

import (
	"log/slog"
	"strings"

	"github.com/zombor/invoice-checker/internal/lottery"
)

// Notifier receives check outcomes for user feedback (sounds, speech, push)
type Notifier interface {
	CheckResult(number string, result lottery.PrizeResult)
	QuickResult(suffix string, result lottery.QuickCheckResult)
	PendingWins(receipts []PendingReceipt)
}

// LogNotifier writes the announcements a client would speak to the log
type LogNotifier struct{}

func (LogNotifier) CheckResult(number string, result lottery.PrizeResult) {
	if result.IsWinner {
		slog.Info("Invoice won", "number", number, "period", result.Period, "tier", result.Tier,
			"speech", "恭喜中獎，"+result.Tier.Label())
		return
	}
	slog.Info("Invoice checked", "number", number, "tier", result.Tier, "speech", "可惜沒中")
}

func (LogNotifier) QuickResult(suffix string, result lottery.QuickCheckResult) {
	speech := "沒中"
	if result.Potential {
		speech = "注意中獎"
	}
	slog.Info("Quick check", "suffix", suffix, "potential", result.Potential, "speech", speech)
}

func (LogNotifier) PendingWins(receipts []PendingReceipt) {
	numbers := make([]string, len(receipts))
	for i, r := range receipts {
		numbers[i] = r.Number
	}
	slog.Info("Pending receipts may have won", "numbers", strings.Join(numbers, ", "))
}
