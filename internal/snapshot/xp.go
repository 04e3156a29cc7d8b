package snapshot

import (
	"fmt"
	"regexp"
	"strconv"
)

// expPerExplore is the game's average experience yield of one explore.
const expPerExplore = 325

var (
	expRe      = regexp.MustCompile(`┣ ✨ Exp[:：]?\s*(\d+)\s*/\s*(\d+)`)
	chakraRe   = regexp.MustCompile(`┣ 🔮 Chakra[:：]?\s*(\d+)`)
	exploresRe = regexp.MustCompile(`🗺 Explores[:：]?\s*(\d+)`)
)

// Projection is the experience-to-level outlook computed from an inventory
// snapshot, including the rewards paid out at the next level.
type Projection struct {
	Name         string
	Level        int
	RemainingExp int
	ExploresLeft int
	Chakra       int
	NextLevel    int
	RewardCoins  int
	RewardGems   int
	RewardTokens int
}

// Project parses an inventory snapshot and computes the level-up projection.
func Project(text string) (*Projection, error) {
	nameMatch := nameRe.FindStringSubmatch(text)
	levelMatch := levelRe.FindStringSubmatch(text)
	expMatch := expRe.FindStringSubmatch(text)
	chakraMatch := chakraRe.FindStringSubmatch(text)
	exploresMatch := exploresRe.FindStringSubmatch(text)

	var missing []string
	if nameMatch == nil {
		missing = append(missing, "Name")
	}
	if levelMatch == nil {
		missing = append(missing, "Level")
	}
	if expMatch == nil {
		missing = append(missing, "Exp")
	}
	if chakraMatch == nil {
		missing = append(missing, "Chakra")
	}
	if exploresMatch == nil {
		missing = append(missing, "Explores")
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	level, _ := strconv.Atoi(levelMatch[1])
	currentExp, _ := strconv.Atoi(expMatch[1])
	nextLevelExp, _ := strconv.Atoi(expMatch[2])
	chakra, _ := strconv.Atoi(chakraMatch[1])

	p := &Projection{
		Name:         nameMatch[1],
		Level:        level,
		RemainingExp: nextLevelExp - currentExp,
		Chakra:       chakra,
		NextLevel:    level + 1,
	}
	p.ExploresLeft = p.RemainingExp / expPerExplore
	p.RewardCoins, p.RewardGems, p.RewardTokens = levelRewards(p.NextLevel)
	return p, nil
}

// levelRewards returns the coins, gems and tokens paid out on reaching the
// given level. Tiers are the game's published reward table.
func levelRewards(level int) (coins, gems, tokens int) {
	coins = level * 1000
	switch {
	case level < 100:
		gems = level * 5
		tokens = level + 10
	case level < 200:
		gems = level * 10
		tokens = level*2 + 10
	default:
		gems = level * 20
		tokens = level*3 + 10
	}
	return coins, gems, tokens
}

// Render formats a projection for a chat reply.
func (p *Projection) Render() string {
	return fmt.Sprintf(
		"<b>🌟 Shinobi Profile - %s 🌟</b>\n"+
			"<b>👤 Name</b>: %s\n"+
			"<b>⚔️ Level</b>: %d\n"+
			"<b>🌀 Remaining Exp</b>: %d\n\n"+
			"<b>🎉 Next Level (Level %d) 🎉</b>\n"+
			"<b>💰 Coins</b>: %d\n"+
			"<b>💎 Gems</b>: %d\n"+
			"<b>🎫 Tokens</b>: %d\n\n"+
			"<b>⚡️ Progress ⚡️</b>\n"+
			"<b>🌀 Chakra Flow</b>: %d\n"+
			"<b>🌱 Explores</b>: %d left to rank up!\n\n"+
			"⚠️ <i>These are approximate values. Keep pushing, Shinobi!</i>",
		p.Name, p.Name, p.Level, p.RemainingExp, p.NextLevel,
		p.RewardCoins, p.RewardGems, p.RewardTokens, p.Chakra, p.ExploresLeft,
	)
}
