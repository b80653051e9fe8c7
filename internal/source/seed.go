package source

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/zombor/invoice-checker/internal/lottery"
)

//go:embed data/seed.json
var seedJSON []byte

// Seed returns the bundled winning numbers used before the first successful refresh
func Seed() []lottery.WinningNumberSet {
	var sets []lottery.WinningNumberSet
	if err := json.Unmarshal(seedJSON, &sets); err != nil {
		panic(fmt.Sprintf("decoding seed data: %v", err))
	}
	return sets
}
