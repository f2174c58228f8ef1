package nansen

import "time"

// TokenTransfer is one leg of a transaction (sent or received).
type TokenTransfer struct {
	TokenSymbol    string  `json:"token_symbol"`
	TokenAmount    float64 `json:"token_amount"`
	PriceUSD       float64 `json:"price_usd"`
	ValueUSD       float64 `json:"value_usd"`
	TokenAddress   string  `json:"token_address"`
	FromAddress    string  `json:"from_address"`
	ToAddress      string  `json:"to_address"`
	BlockTimestamp string  `json:"block_timestamp"`
}

// Transaction is a single on-chain transaction as reported by the profiler API.
type Transaction struct {
	Chain           string          `json:"chain"`
	Method          string          `json:"method"`
	TokensSent      []TokenTransfer `json:"tokens_sent"`
	TokensReceived  []TokenTransfer `json:"tokens_received"`
	VolumeUSD       float64         `json:"volume_usd"`
	BlockTimestamp  string          `json:"block_timestamp"`
	TransactionHash string          `json:"transaction_hash"`
	SourceType      string          `json:"source_type"`
}

// Time parses the transaction's block timestamp. Returns the zero time if the
// provider sent an unparseable value.
func (t *Transaction) Time() time.Time {
	ts, err := time.Parse(time.RFC3339, t.BlockTimestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// PnLSummary is the wallet-level realized PnL rollup.
type PnLSummary struct {
	RealizedPnLUSD     float64 `json:"realized_pnl_usd"`
	RealizedPnLPercent float64 `json:"realized_pnl_percent"`
	WinRate            float64 `json:"win_rate"`
	TradedTimes        int     `json:"traded_times"`
	TradedTokenCount   int     `json:"traded_token_count"`
}

// PnLDetail is the per-token realized PnL row. BuyCount/SellCount arrive as
// strings on the wire.
type PnLDetail struct {
	TokenAddress     string  `json:"token_address"`
	TokenSymbol      string  `json:"token_symbol"`
	RealizedPnLUSD   float64 `json:"pnl_usd_realised"`
	RealizedROI      float64 `json:"roi_percent_realised"`
	BoughtAmount     float64 `json:"bought_amount"`
	BoughtUSD        float64 `json:"bought_usd"`
	SoldAmount       float64 `json:"sold_amount"`
	SoldUSD          float64 `json:"sold_usd"`
	AvgSoldPriceUSD  float64 `json:"avg_sold_price_usd"`
	HoldingAmount    float64 `json:"holding_amount"`
	HoldingUSD       float64 `json:"holding_usd"`
	BuyCount         int     `json:"nof_buys,string"`
	SellCount        int     `json:"nof_sells,string"`
	MaxBalanceHeld   float64 `json:"max_balance_held"`
	MaxBalanceHeldUSD float64 `json:"max_balance_held_usd"`
}

// Balance is a current token holding.
type Balance struct {
	Chain        string  `json:"chain"`
	TokenAddress string  `json:"token_address"`
	TokenSymbol  string  `json:"token_symbol"`
	TokenName    string  `json:"token_name"`
	TokenAmount  float64 `json:"token_amount"`
	PriceUSD     float64 `json:"price_usd"`
	ValueUSD     float64 `json:"value_usd"`
}

// Dataset is the normalized read-only view of a wallet's activity consumed by
// the scoring engine. Swaps is a subset of Transactions; ClosedPositions are
// the PnL detail rows with a nonzero sold amount.
type Dataset struct {
	Address              string        `json:"address"`
	Transactions         []Transaction `json:"transactions"`
	PnLSummary           *PnLSummary   `json:"pnlSummary"`
	PnLDetails           []PnLDetail   `json:"pnlDetails"`
	Balances             []Balance     `json:"balances"`
	WalletAgeDays        int           `json:"walletAge"`
	FirstTransactionDate *time.Time    `json:"firstTransactionDate"`
	DistinctAssets       int           `json:"distinctAssets"`
	Swaps                []Transaction `json:"swaps"`
	ClosedPositions      []PnLDetail   `json:"closedPositions"`
}

type pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	IsLastPage bool `json:"is_last_page"`
}

type transactionsResponse struct {
	Data       []Transaction `json:"data"`
	Pagination pagination    `json:"pagination"`
}

type pnlResponse struct {
	Data       []PnLDetail `json:"data"`
	Pagination pagination  `json:"pagination"`
}

type balancesResponse struct {
	Data       []Balance  `json:"data"`
	Pagination pagination `json:"pagination"`
}
