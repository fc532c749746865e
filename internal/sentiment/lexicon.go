package sentiment

// Lexicon holds the fixed word and emoji lists the scorer matches against.
// Loaded once at startup, never mutated afterwards.
type Lexicon struct {
	Positive       []string
	Negative       []string
	Hype           []string
	Risk           []string
	PositiveEmojis []string
	NegativeEmojis []string
}

// DefaultLexicon returns the built-in mixed-script lexicon
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Positive: []string{
			"moon", "mooning", "pump", "pumping", "gem", "bullish", "buy",
			"profit", "gains", "win", "winner", "good", "great", "amazing",
			"huge", "big", "strong", "up", "high", "growth", "launch",
			"listed", "listing", "partnership", "burn", "hold", "hodl",
			"early", "alpha", "golden", "rich", "lambo",
			"暴涨", "涨", "起飞", "冲", "买入", "利好", "牛", "金狗", "财富",
			"翻倍", "百倍", "千倍", "上线", "好", "强",
		},
		Negative: []string{
			"dump", "dumping", "sell", "selling", "crash", "drop", "down",
			"low", "loss", "lose", "bad", "dead", "exit", "fall", "falling",
			"bear", "bearish", "fake", "avoid", "careful", "caution",
			"跌", "暴跌", "卖", "割", "亏", "垃圾", "死", "崩", "小心", "危险",
		},
		Hype: []string{
			"moon", "100x", "1000x", "gem", "ape", "fomo", "lfg", "degen",
			"pump", "next", "dont miss", "last chance", "early", "presale",
			"stealth", "launch", "now", "hurry", "fast", "huge", "massive",
			"insane", "crazy", "explode", "parabolic",
			"冲", "梭哈", "金狗", "百倍", "千倍", "暴涨", "起飞", "错过", "最后",
			"🚀", "🔥", "💎",
		},
		Risk: []string{
			"scam", "骗局", "rug", "跑路", "ponzi", "资金盘", "warning",
			"风险", "honeypot",
		},
		PositiveEmojis: []string{
			"🚀", "🔥", "💪", "💰", "📈", "✅", "👍", "😊", "🙌", "💎",
		},
		NegativeEmojis: []string{
			"📉", "⚠️", "❌", "👎", "😱", "😢", "😭", "🙄", "🤔", "😡",
		},
	}
}
