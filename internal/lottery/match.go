package lottery

import "slices"

// runTiers maps a trailing-digit run length against a first prize entry to its tier
var runTiers = map[int]Tier{
	8: TierFirst,
	7: TierSecond,
	6: TierThird,
	5: TierFourth,
	4: TierFifth,
	3: TierSixth,
}

var runDescriptions = map[int]string{
	8: "8碼全中！恭喜獲得20萬元",
	7: "末7碼相符！恭喜獲得4萬元",
	6: "末6碼相符！恭喜獲得1萬元",
	5: "末5碼相符！恭喜獲得4,000元",
	4: "末4碼相符！恭喜獲得1,000元",
	3: "末3碼相符！恭喜獲得200元",
}

// Match resolves the prize tier of an 8-digit invoice number against one winning set.
// Malformed input yields TierInvalidFormat; Match never fails otherwise.
func Match(number string, w WinningNumberSet) PrizeResult {
	if !isDigits(number, 8) {
		return PrizeResult{
			Tier:        TierInvalidFormat,
			Description: "請輸入完整8位數號碼",
			Period:      w.Period,
		}
	}

	if number == w.SpecialPrize {
		return winner(TierSpecial, "8碼全中！恭喜獲得1,000萬元", w.Period)
	}
	if number == w.GrandPrize {
		return winner(TierGrand, "8碼全中！恭喜獲得200萬元", w.Period)
	}

	// The first entry with any qualifying run wins, even if a later entry matches more.
	for _, entry := range w.FirstPrizeGroup {
		run := trailingRun(number, entry)
		if tier, ok := runTiers[run]; ok {
			return winner(tier, runDescriptions[run], w.Period)
		}
	}

	if slices.Contains(w.AdditionalSixthPrize, number[5:]) {
		return winner(TierSixth, "增開六獎！末3碼相符，恭喜獲得200元", w.Period)
	}

	return PrizeResult{
		Tier:        TierNone,
		Description: "可惜沒中，再接再厲！",
		Period:      w.Period,
	}
}

func winner(tier Tier, description, period string) PrizeResult {
	return PrizeResult{
		IsWinner:          true,
		Tier:              tier,
		MatchedDigitCount: tier.MatchedDigits(),
		Description:       description,
		Period:            period,
	}
}

// trailingRun counts consecutive equal digits from the end of both strings
func trailingRun(a, b string) int {
	n := min(len(a), len(b), 8)
	run := 0
	for i := 1; i <= n; i++ {
		if a[len(a)-i] != b[len(b)-i] {
			break
		}
		run = i
	}
	return run
}
