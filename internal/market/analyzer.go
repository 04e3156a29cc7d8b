package market

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Marker identifies black-market listing messages in passive scanning.
const Marker = "BLACK MARKET"

// Shinobi whose awakening cards trade at the legendary rate.
var legendaryShinobi = []string{
	"Shisui Uchiha", "Tsunade Senju", "Gaara", "Jiraiya", "Hiruzen Sarutobi",
	"Orochimaru", "Might Guy", "Kakashi Hatake", "Itachi Uchiha", "Minato Namikaze",
	"Madara Uchiha", "Hashirama Senju", "Tobirama Senju", "Mu", "Onoki",
	"Gengetsu Hozuki", "A", "Ay", "Mei Terumi", "Rasa",
}

// Fixed pricing constants, in tokens unless noted.
const (
	epicOrochimaruMinTokens = 12000
	epicOrochimaruMaxTokens = 12750
	legendaryAwakenTokens   = 120
	nonLegendaryAwakenTokens = 90
	rareLevelupTokens       = 10
)

// Deal is one underpriced listing line. ExpectedStocksMin equals
// ExpectedStocksMax except for the Epic price range. ExpectedTokens* are zero
// for Common deals, which are quoted in stocks only.
type Deal struct {
	Label             string
	Item              string
	OfferedStocks     float64
	ExpectedStocksMin float64
	ExpectedStocksMax float64
	ExpectedTokensMin int
	ExpectedTokensMax int
}

func stocksFromTokens(tokens int) float64 {
	return float64(tokens) / TokensPerStock
}

// Analyze scans a listing message and returns underpriced deals in message
// order. Parsing is best-effort: a malformed line is logged and skipped,
// never aborting the rest of the message.
func Analyze(text string) []Deal {
	var deals []Deal
	lines := strings.Split(text, "\n")

	// The listing always ends with two boilerplate lines.
	if len(lines) > 2 {
		lines = lines[:len(lines)-2]
	}

	section := ""
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		for _, name := range []string{"Epic:", "Legendary:", "Rare:", "Common:"} {
			if strings.HasPrefix(line, name) {
				section = strings.TrimSuffix(name, ":")
			}
		}
		if section == "" || line == "" {
			continue
		}

		deal, ok, err := analyzeLine(section, line)
		if err != nil {
			slog.Debug("skipping unparseable listing line", "line", line, "error", err)
			continue
		}
		if ok {
			deals = append(deals, deal)
		}
	}
	return deals
}

// analyzeLine parses one "<ordinal>: <qty> <item> (<price>)" line and applies
// the section's pricing rule. ok reports whether the line is an underpriced
// deal; err reports a malformed line.
func analyzeLine(section, line string) (Deal, bool, error) {
	_, rest, found := strings.Cut(line, ":")
	if !found {
		return Deal{}, false, fmt.Errorf("no ordinal prefix")
	}
	parts := strings.Fields(rest)
	if len(parts) < 2 {
		return Deal{}, false, fmt.Errorf("too few fields")
	}
	quantity, err := strconv.Atoi(parts[0])
	if err != nil {
		return Deal{}, false, fmt.Errorf("bad quantity %q: %w", parts[0], err)
	}
	item := strings.Join(parts[1:], " ")

	open := strings.LastIndex(item, "(")
	if open < 0 {
		return Deal{}, false, fmt.Errorf("no price parenthesis")
	}
	closeOff := strings.Index(item[open:], ")")
	if closeOff < 0 {
		return Deal{}, false, fmt.Errorf("unclosed price parenthesis")
	}
	price, err := strconv.ParseFloat(item[open+1:open+closeOff], 64)
	if err != nil {
		return Deal{}, false, fmt.Errorf("bad price: %w", err)
	}

	lower := strings.ToLower(item)

	switch {
	case section == "Epic" && strings.Contains(item, "Orochimaru"):
		minTokens := epicOrochimaruMinTokens * quantity
		maxTokens := epicOrochimaruMaxTokens * quantity
		minStocks := stocksFromTokens(minTokens)
		if price < minStocks {
			return Deal{
				Label:             "Epic Orochimaru",
				Item:              item,
				OfferedStocks:     price,
				ExpectedStocksMin: minStocks,
				ExpectedStocksMax: stocksFromTokens(maxTokens),
				ExpectedTokensMin: minTokens,
				ExpectedTokensMax: maxTokens,
			}, true, nil
		}

	case section == "Legendary" && strings.Contains(lower, "awakencard"):
		label := "Non-Legendary Awakening Card"
		tokens := nonLegendaryAwakenTokens * quantity
		if containsLegendary(item) {
			label = "Legendary Awakening Card"
			tokens = legendaryAwakenTokens * quantity
		}
		if stocks := stocksFromTokens(tokens); price < stocks {
			return Deal{
				Label:             label,
				Item:              item,
				OfferedStocks:     price,
				ExpectedStocksMin: stocks,
				ExpectedStocksMax: stocks,
				ExpectedTokensMin: tokens,
				ExpectedTokensMax: tokens,
			}, true, nil
		}

	case section == "Rare" && strings.Contains(lower, "card"):
		// Both branches price at the same constant; only the label differs.
		label := "Levelup Card"
		if strings.Contains(lower, "legendary") {
			label = "Legendary Levelup Card"
		}
		tokens := rareLevelupTokens * quantity
		if stocks := stocksFromTokens(tokens); price < stocks {
			return Deal{
				Label:             label,
				Item:              item,
				OfferedStocks:     price,
				ExpectedStocksMin: stocks,
				ExpectedStocksMax: stocks,
				ExpectedTokensMin: tokens,
				ExpectedTokensMax: tokens,
			}, true, nil
		}

	case section == "Common":
		var stocks float64
		var label string
		switch {
		case strings.Contains(lower, "coins"):
			label = "Common Coins"
			stocks = float64(quantity) / CoinsPerStock
		case strings.Contains(lower, "gems"):
			label = "Common Gems"
			stocks = float64(quantity) / GemsPerStock
		default:
			return Deal{}, false, nil
		}
		if price < stocks {
			return Deal{
				Label:             label,
				Item:              item,
				OfferedStocks:     price,
				ExpectedStocksMin: stocks,
				ExpectedStocksMax: stocks,
			}, true, nil
		}
	}
	return Deal{}, false, nil
}

// legendaryRe matches roster names on word boundaries. Plain substring
// matching would mistake the "A" in "AwakenCard" for the shinobi named A.
var legendaryRe = func() *regexp.Regexp {
	quoted := make([]string, len(legendaryShinobi))
	for i, name := range legendaryShinobi {
		quoted[i] = regexp.QuoteMeta(name)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}()

func containsLegendary(item string) bool {
	return legendaryRe.MatchString(item)
}

// RenderDeals formats deals for a chat reply. Returns the empty string when
// there is nothing to report.
func RenderDeals(deals []Deal) string {
	if len(deals) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("💎 <b>Profitable Deals Found</b>:\n\n")
	for _, d := range deals {
		fmt.Fprintf(&b, "<b>%s:</b> %s\n", d.Label, d.Item)
		fmt.Fprintf(&b, "   💸 <b>Offer Price:</b> %.2f stocks\n", d.OfferedStocks)
		switch {
		case d.ExpectedStocksMin != d.ExpectedStocksMax:
			fmt.Fprintf(&b, "   📈 <b>Expected Price:</b> %.2f - %.2f stocks (%d - %d tokens)\n\n",
				d.ExpectedStocksMin, d.ExpectedStocksMax, d.ExpectedTokensMin, d.ExpectedTokensMax)
		case d.ExpectedTokensMin > 0:
			fmt.Fprintf(&b, "   📈 <b>Expected Price:</b> %.2f stocks (%d tokens)\n\n",
				d.ExpectedStocksMin, d.ExpectedTokensMin)
		default:
			fmt.Fprintf(&b, "   📈 <b>Expected Price:</b> %.2f stocks\n\n", d.ExpectedStocksMin)
		}
	}
	return b.String()
}
