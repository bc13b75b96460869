package football

// Market identifies a bettable market on a single match.
type Market string

const (
	MarketHomeWin Market = "H"
	MarketDraw    Market = "D"
	MarketAwayWin Market = "A"

	MarketDoubleChance1X Market = "1X"
	MarketDoubleChance12 Market = "12"
	MarketDoubleChanceX2 Market = "X2"

	MarketOver15 Market = "O1.5"
	MarketOver25 Market = "O2.5"
	MarketOver35 Market = "O3.5"

	MarketBTTS Market = "GG"

	MarketHomeOver25 Market = "1&O2.5"
	MarketAwayOver25 Market = "2&O2.5"
	MarketDrawUnder25 Market = "X&U2.5"
	MarketBTTSOver25  Market = "GG&O2.5"
)

// Name returns a human-readable market label.
func (m Market) Name() string {
	switch m {
	case MarketHomeWin:
		return "Home Win"
	case MarketDraw:
		return "Draw"
	case MarketAwayWin:
		return "Away Win"
	case MarketDoubleChance1X:
		return "Double Chance 1X"
	case MarketDoubleChance12:
		return "Double Chance 12"
	case MarketDoubleChanceX2:
		return "Double Chance X2"
	case MarketOver15:
		return "Over 1.5 Goals"
	case MarketOver25:
		return "Over 2.5 Goals"
	case MarketOver35:
		return "Over 3.5 Goals"
	case MarketBTTS:
		return "Both Teams To Score"
	case MarketHomeOver25:
		return "Home Win & Over 2.5"
	case MarketAwayOver25:
		return "Away Win & Over 2.5"
	case MarketDrawUnder25:
		return "Draw & Under 2.5"
	case MarketBTTSOver25:
		return "BTTS & Over 2.5"
	}
	return string(m)
}

// Won reports whether a bet on this market wins given the full-time score.
func (m Market) Won(s Score) bool {
	r := s.Result()
	switch m {
	case MarketHomeWin:
		return r == ResultHome
	case MarketDraw:
		return r == ResultDraw
	case MarketAwayWin:
		return r == ResultAway
	case MarketDoubleChance1X:
		return r == ResultHome || r == ResultDraw
	case MarketDoubleChance12:
		return r == ResultHome || r == ResultAway
	case MarketDoubleChanceX2:
		return r == ResultDraw || r == ResultAway
	case MarketOver15:
		return s.Total() >= 2
	case MarketOver25:
		return s.Total() >= 3
	case MarketOver35:
		return s.Total() >= 4
	case MarketBTTS:
		return s.BothScored()
	case MarketHomeOver25:
		return r == ResultHome && s.Total() >= 3
	case MarketAwayOver25:
		return r == ResultAway && s.Total() >= 3
	case MarketDrawUnder25:
		return r == ResultDraw && s.Total() <= 2
	case MarketBTTSOver25:
		return s.BothScored() && s.Total() >= 3
	}
	return false
}

// KnownMarkets lists every market the model prices, in scan order.
func KnownMarkets() []Market {
	return []Market{
		MarketHomeWin, MarketDraw, MarketAwayWin,
		MarketDoubleChance1X, MarketDoubleChance12, MarketDoubleChanceX2,
		MarketOver15, MarketOver25, MarketOver35,
		MarketBTTS,
		MarketHomeOver25, MarketAwayOver25, MarketDrawUnder25, MarketBTTSOver25,
	}
}
