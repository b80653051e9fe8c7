package checker

import (
	"time"

	"github.com/zombor/invoice-checker/internal/lottery"
)

// WinningRecord is one confirmed win
type WinningRecord struct {
	ID        string       `json:"id"`
	Number    string       `json:"number"`
	Period    string       `json:"period"`
	Tier      lottery.Tier `json:"tier"`
	Amount    int          `json:"amount"` // NT dollars
	CreatedAt time.Time    `json:"created_at"`
}

// PendingReceipt is a 3-digit suffix kept until its period is drawn
type PendingReceipt struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Period    string    `json:"period"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingStatus is where a pending receipt stands against the known draws
type PendingStatus string

const (
	PendingWaiting PendingStatus = "pending"
	PendingWin     PendingStatus = "win"
	PendingLost    PendingStatus = "lost"
)

// PendingView is a pending receipt with its current status
type PendingView struct {
	PendingReceipt
	Status  PendingStatus `json:"status"`
	Message string        `json:"message"`
}

// pendingStatus evaluates a receipt against the set of its own period
func pendingStatus(r PendingReceipt, known []lottery.WinningNumberSet) PendingView {
	set, ok := lottery.FindByPeriod(known, r.Period)
	if !ok {
		return PendingView{PendingReceipt: r, Status: PendingWaiting, Message: "等待開獎"}
	}
	if lottery.QuickCheck(r.Number, set).Potential {
		return PendingView{PendingReceipt: r, Status: PendingWin, Message: "注意！疑似中獎"}
	}
	return PendingView{PendingReceipt: r, Status: PendingLost, Message: "未中獎"}
}
