package lottery

import (
	"slices"
	"strings"
)

// QuickCheck checks a 3-digit suffix against one winning set.
// A potential hit only means the full number deserves a Match; false positives are expected.
func QuickCheck(suffix string, w WinningNumberSet) QuickCheckResult {
	if !isDigits(suffix, 3) {
		return QuickCheckResult{}
	}

	if slices.Contains(w.AdditionalSixthPrize, suffix) {
		return QuickCheckResult{Potential: true, Message: "中獎！符合增開六獎 (200元)"}
	}

	for _, entry := range w.FirstPrizeGroup {
		if strings.HasSuffix(entry, suffix) {
			return QuickCheckResult{Potential: true, Message: "有機會！末3碼符合頭獎組，請核對完整號碼"}
		}
	}

	// Special and grand pay only on a full match but still warrant a full check.
	if strings.HasSuffix(w.SpecialPrize, suffix) {
		return QuickCheckResult{Potential: true, Message: "有機會！末3碼符合特別獎，請核對完整號碼"}
	}
	if strings.HasSuffix(w.GrandPrize, suffix) {
		return QuickCheckResult{Potential: true, Message: "有機會！末3碼符合特獎，請核對完整號碼"}
	}

	return QuickCheckResult{Message: "沒中"}
}
