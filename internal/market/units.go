// Package market holds the in-game economy logic: the fixed currency
// conversion table and the black-market listing analyzer.
package market

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownUnit is returned for a unit name outside the conversion table.
var ErrUnknownUnit = errors.New("unknown unit")

// Unit is one of the four nested in-game currencies.
type Unit string

const (
	Coin  Unit = "coins"
	Gem   Unit = "gems"
	Token Unit = "tokens"
	Stock Unit = "stocks"
)

// Exchange rates. These are the game's published constants; do not re-derive
// one from the others. STOCK in GEM is carried as its own constant because
// some pricing rules quote it directly.
const (
	CoinsPerGem    = 2000
	GemsPerToken   = 20
	TokensPerStock = 15
	GemsPerStock   = 300
	CoinsPerStock  = 600000
)

// ParseUnit accepts the unit names used by the /calc command. Singular forms
// are tolerated.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(s) {
	case "coins", "coin":
		return Coin, nil
	case "gems", "gem":
		return Gem, nil
	case "tokens", "token":
		return Token, nil
	case "stocks", "stock":
		return Stock, nil
	}
	return "", fmt.Errorf("%w %q (supported: coins, gems, tokens, stocks)", ErrUnknownUnit, s)
}

// Convert converts amount between any two units. Multi-hop conversions go
// through the documented paths (Coin-Gem-Token-Stock), one rate per hop.
func Convert(amount float64, from, to Unit) (float64, error) {
	if from == to {
		return amount, nil
	}
	switch from {
	case Coin:
		gems := amount / CoinsPerGem
		switch to {
		case Gem:
			return gems, nil
		case Token:
			return gems / GemsPerToken, nil
		case Stock:
			return amount / CoinsPerStock, nil
		}
	case Gem:
		switch to {
		case Coin:
			return amount * CoinsPerGem, nil
		case Token:
			return amount / GemsPerToken, nil
		case Stock:
			return amount / GemsPerStock, nil
		}
	case Token:
		gems := amount * GemsPerToken
		switch to {
		case Gem:
			return gems, nil
		case Coin:
			return gems * CoinsPerGem, nil
		case Stock:
			return amount / TokensPerStock, nil
		}
	case Stock:
		switch to {
		case Token:
			return amount * TokensPerStock, nil
		case Gem:
			return amount * GemsPerStock, nil
		case Coin:
			return amount * CoinsPerStock, nil
		}
	}
	return 0, fmt.Errorf("unsupported conversion %s-%s", from, to)
}
