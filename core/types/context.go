package types

// Env describes the block context a call executes in.
type Env struct {
	ChainID         string `json:"chain_id"`
	BlockHeight     uint64 `json:"block_height"`
	BlockTime       int64  `json:"block_time"`
	ContractAddress string `json:"contract_address"`
}

// MessageInfo identifies the caller and the funds attached to the call.
type MessageInfo struct {
	Sender string `json:"sender"`
	Funds  Coins  `json:"funds"`
}
