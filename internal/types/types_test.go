package types

import (
	"testing"
)

func TestChainIsResolved(t *testing.T) {
	tests := []struct {
		chain Chain
		want  bool
	}{
		{ChainETH, true},
		{ChainBSC, true},
		{ChainSOL, true},
		{ChainARB, true},
		{ChainEVMPartial, false},
		{ChainUnknown, false},
		{Chain(""), false},
		{Chain("DOGECOIN"), false},
		{Chain("eth"), false},
	}

	for _, tt := range tests {
		if got := tt.chain.IsResolved(); got != tt.want {
			t.Errorf("Chain(%q).IsResolved() = %v, want %v", tt.chain, got, tt.want)
		}
	}
}

func TestChainIsEVM(t *testing.T) {
	tests := []struct {
		chain Chain
		want  bool
	}{
		{ChainETH, true},
		{ChainBSC, true},
		{ChainEVMPartial, true},
		{ChainSOL, false},
		{ChainUnknown, false},
	}

	for _, tt := range tests {
		if got := tt.chain.IsEVM(); got != tt.want {
			t.Errorf("Chain(%q).IsEVM() = %v, want %v", tt.chain, got, tt.want)
		}
	}
}

func TestChainMarketFeedID(t *testing.T) {
	tests := []struct {
		chain Chain
		want  string
	}{
		{ChainSOL, "solana"},
		{ChainETH, "ethereum"},
		{ChainBSC, "bsc"},
		{ChainMATIC, "polygon"},
		{ChainUnknown, ""},
		{ChainEVMPartial, ""},
	}

	for _, tt := range tests {
		if got := tt.chain.MarketFeedID(); got != tt.want {
			t.Errorf("Chain(%q).MarketFeedID() = %q, want %q", tt.chain, got, tt.want)
		}
	}
}

func TestTokenKey(t *testing.T) {
	token := &Token{Chain: ChainBSC, Contract: "0xabc", Symbol: "MOON"}
	key := token.Key()

	if key.Chain != ChainBSC || key.Contract != "0xabc" {
		t.Errorf("Key() = %+v, want chain BSC contract 0xabc", key)
	}
}
