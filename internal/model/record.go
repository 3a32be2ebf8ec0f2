package model

// Operation kinds accepted by the replay driver.
const (
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwapXForY       = "swap_x_for_y"
	OpSwapYForX       = "swap_y_for_x"
	OpSubmitScore     = "submit_score"
	OpCheckExpired    = "check_expired"
)

// OperationRecord is one engine operation in a replay input stream. Amounts
// are decimal strings so arbitrarily large token values survive JSON.
type OperationRecord struct {
	Seq       uint64 `json:"seq"`
	Op        string `json:"op"`
	Caller    string `json:"caller,omitempty"`
	Tier      string `json:"tier,omitempty"`
	AmountX   string `json:"amount_x,omitempty"`
	AmountY   string `json:"amount_y,omitempty"`
	AmountIn  string `json:"amount_in,omitempty"`
	MinOut    string `json:"min_out,omitempty"`
	Shares    string `json:"shares,omitempty"`
	Score     uint64 `json:"score,omitempty"`
	Timestamp int64  `json:"ts"`
}

// ResultRecord is the outcome of one applied operation.
type ResultRecord struct {
	Seq       uint64 `json:"seq"`
	Op        string `json:"op"`
	Caller    string `json:"caller,omitempty"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	SharesOut string `json:"shares_out,omitempty"`
	AmountOut string `json:"amount_out,omitempty"`
	LeagueID  uint64 `json:"league_id,omitempty"`
	AppliedAt string `json:"applied_at"`
}
