package lottery

import (
	"fmt"
)

// WinningNumberSet holds the official numbers of one draw period
type WinningNumberSet struct {
	Period               string   `json:"period"`       // e.g. "113年 09-10月"
	SpecialPrize         string   `json:"specialPrize"` // 特別獎
	GrandPrize           string   `json:"grandPrize"`   // 特獎
	FirstPrizeGroup      []string `json:"firstPrize"`   // 頭獎, basis for tiers First..Sixth
	AdditionalSixthPrize []string `json:"additionalSixthPrize"`
}

// Validate checks the digit and length invariants of every field
func (w WinningNumberSet) Validate() error {
	if w.Period == "" {
		return fmt.Errorf("period is required")
	}
	if !isDigits(w.SpecialPrize, 8) {
		return fmt.Errorf("special prize %q is not 8 digits", w.SpecialPrize)
	}
	if !isDigits(w.GrandPrize, 8) {
		return fmt.Errorf("grand prize %q is not 8 digits", w.GrandPrize)
	}
	for _, n := range w.FirstPrizeGroup {
		if !isDigits(n, 8) {
			return fmt.Errorf("first prize %q is not 8 digits", n)
		}
	}
	for _, n := range w.AdditionalSixthPrize {
		if !isDigits(n, 3) {
			return fmt.Errorf("additional sixth prize %q is not 3 digits", n)
		}
	}
	return nil
}

// Tier is the prize level a check resolved to
type Tier string

const (
	TierSpecial       Tier = "special"
	TierGrand         Tier = "grand"
	TierFirst         Tier = "first"
	TierSecond        Tier = "second"
	TierThird         Tier = "third"
	TierFourth        Tier = "fourth"
	TierFifth         Tier = "fifth"
	TierSixth         Tier = "sixth"
	TierNone          Tier = "none"
	TierInvalidFormat Tier = "invalid_format"
)

type tierInfo struct {
	label  string
	amount int
	digits int
}

var tiers = map[Tier]tierInfo{
	TierSpecial:       {"特別獎 (1,000萬元)", 10_000_000, 8},
	TierGrand:         {"特獎 (200萬元)", 2_000_000, 8},
	TierFirst:         {"頭獎 (20萬元)", 200_000, 8},
	TierSecond:        {"二獎 (4萬元)", 40_000, 7},
	TierThird:         {"三獎 (1萬元)", 10_000, 6},
	TierFourth:        {"四獎 (4,000元)", 4_000, 5},
	TierFifth:         {"五獎 (1,000元)", 1_000, 4},
	TierSixth:         {"六獎 (200元)", 200, 3},
	TierNone:          {"沒中獎", 0, 0},
	TierInvalidFormat: {"格式錯誤", 0, 0},
}

// Label returns the display name of the tier
func (t Tier) Label() string {
	return tiers[t].label
}

// Amount returns the prize in NT dollars
func (t Tier) Amount() int {
	return tiers[t].amount
}

// MatchedDigits returns the number of trailing digits the tier requires
func (t Tier) MatchedDigits() int {
	return tiers[t].digits
}

// IsWinning reports whether the tier pays a prize
func (t Tier) IsWinning() bool {
	return t.Amount() > 0
}

// PrizeResult is the outcome of a full 8-digit check
type PrizeResult struct {
	IsWinner          bool   `json:"isWinner"`
	Tier              Tier   `json:"tier"`
	MatchedDigitCount int    `json:"matchedDigitCount"`
	Description       string `json:"description"`
	Period            string `json:"period,omitempty"` // set that produced the result
}

// QuickCheckResult is the outcome of a 3-digit suffix check
type QuickCheckResult struct {
	Potential bool   `json:"potential"`
	Message   string `json:"message"`
}

// Selection picks which known periods a check runs against.
// Non-negative values index the known list.
type Selection int

// MergeAll checks against every known period
const MergeAll Selection = -1

func isDigits(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
