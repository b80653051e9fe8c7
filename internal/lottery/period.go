package lottery

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	yearPattern  = regexp.MustCompile(`(\d+)年`)
	monthPattern = regexp.MustCompile(`(\d+)-(\d+)月`)
)

// PendingPlaceholders are returned by NextPeriodLabels when the latest label cannot be parsed
var PendingPlaceholders = []string{"下期待定", "下下期待定"}

// ResolveActiveSets returns the sets a check runs against.
// An out-of-range index yields an empty result; callers are expected to guard it.
func ResolveActiveSets(sel Selection, known []WinningNumberSet) []WinningNumberSet {
	if sel == MergeAll {
		return append([]WinningNumberSet(nil), known...)
	}
	if sel < 0 || int(sel) >= len(known) {
		return nil
	}
	return []WinningNumberSet{known[sel]}
}

// CheckAgainstSelection runs Match over the selected sets.
// In merge mode the first winning set's result is returned, otherwise the first set's loss.
func CheckAgainstSelection(number string, sel Selection, known []WinningNumberSet) PrizeResult {
	active := ResolveActiveSets(sel, known)
	if len(active) == 0 {
		if !isDigits(number, 8) {
			return Match(number, WinningNumberSet{})
		}
		return PrizeResult{Tier: TierNone, Description: "尚無開獎資料"}
	}

	results := make([]PrizeResult, len(active))
	for i, w := range active {
		results[i] = Match(number, w)
		if results[i].IsWinner {
			return results[i]
		}
	}
	return results[0]
}

// CheckAgainstSelection3 runs QuickCheck over the selected sets
func CheckAgainstSelection3(suffix string, sel Selection, known []WinningNumberSet) QuickCheckResult {
	active := ResolveActiveSets(sel, known)
	if sel != MergeAll {
		if len(active) == 0 {
			return QuickCheckResult{}
		}
		return QuickCheck(suffix, active[0])
	}

	if !isDigits(suffix, 3) {
		return QuickCheckResult{}
	}
	for _, w := range active {
		if QuickCheck(suffix, w).Potential {
			return QuickCheckResult{Potential: true, Message: "注意中獎 (請核對期別)"}
		}
	}
	return QuickCheckResult{Message: "沒中"}
}

// NextPeriodLabels derives the labels of the count periods following latest.
// Unparseable labels fall back to PendingPlaceholders.
func NextPeriodLabels(latest string, count int) []string {
	year, _, end, ok := parsePeriod(latest)
	if !ok {
		return append([]string(nil), PendingPlaceholders...)
	}
	if count <= 0 {
		return []string{}
	}

	labels := make([]string, 0, count)
	for i := 0; i < count; i++ {
		end += 2
		if end > 12 {
			end -= 12
			year++
		}
		labels = append(labels, FormatPeriod(year, end))
	}
	return labels
}

// FormatPeriod builds the label of the two-month period ending in endMonth
func FormatPeriod(year, endMonth int) string {
	return fmt.Sprintf("%d年 %02d-%02d月", year, endMonth-1, endMonth)
}

// PeriodFromTerm converts an official term such as "11310" into "113年 09-10月"
func PeriodFromTerm(term string) (string, error) {
	if len(term) != 5 || !isDigits(term, 5) {
		return "", fmt.Errorf("invalid term: %q", term)
	}
	year, _ := strconv.Atoi(term[:3])
	month, _ := strconv.Atoi(term[3:])
	if month < 2 || month > 12 || month%2 != 0 {
		return "", fmt.Errorf("invalid term month: %q", term)
	}
	return FormatPeriod(year, month), nil
}

// TermFromPeriod converts a period label into the official term of its end month
func TermFromPeriod(period string) (string, error) {
	year, _, end, ok := parsePeriod(period)
	if !ok {
		return "", fmt.Errorf("invalid period: %q", period)
	}
	return fmt.Sprintf("%03d%02d", year, end), nil
}

// FindByPeriod returns the set with the given label
func FindByPeriod(known []WinningNumberSet, period string) (WinningNumberSet, bool) {
	for _, w := range known {
		if w.Period == period {
			return w, true
		}
	}
	return WinningNumberSet{}, false
}

// UpsertByPeriod returns a new list with set replacing the entry of the same period,
// or prepended when the period is new. known is not modified.
func UpsertByPeriod(known []WinningNumberSet, set WinningNumberSet) []WinningNumberSet {
	updated := make([]WinningNumberSet, 0, len(known)+1)
	replaced := false
	for _, w := range known {
		if w.Period == set.Period {
			updated = append(updated, set)
			replaced = true
			continue
		}
		updated = append(updated, w)
	}
	if !replaced {
		updated = append([]WinningNumberSet{set}, updated...)
	}
	return updated
}

func parsePeriod(label string) (year, start, end int, ok bool) {
	y := yearPattern.FindStringSubmatch(label)
	m := monthPattern.FindStringSubmatch(label)
	if y == nil || m == nil {
		return 0, 0, 0, false
	}
	var err error
	if year, err = strconv.Atoi(y[1]); err != nil {
		return 0, 0, 0, false
	}
	if start, err = strconv.Atoi(m[1]); err != nil {
		return 0, 0, 0, false
	}
	if end, err = strconv.Atoi(m[2]); err != nil {
		return 0, 0, 0, false
	}
	if start < 1 || start > 12 || end < 1 || end > 12 {
		return 0, 0, 0, false
	}
	return year, start, end, true
}
