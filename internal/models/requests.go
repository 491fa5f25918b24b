package models

type CrashBetRequest struct {
	Amount      int64   `json:"amount" binding:"required,min=1"`
	AutoCashout float64 `json:"auto_cashout" binding:"omitempty,gt=1"`
}

type MinesBetRequest struct {
	Amount     int64 `json:"amount" binding:"required,min=1"`
	MinesCount int   `json:"mines_count" binding:"required,min=1,max=24"`
}

type MinesRevealRequest struct {
	Position *int `json:"position" binding:"required,min=0,max=24"`
}

type TableJoinRequest struct {
	TableID string `json:"table_id"` // empty = open a new table
}

type TableBetRequest struct {
	Amount int64 `json:"amount" binding:"required,min=1"`
}

type TableActionRequest struct {
	Action string `json:"action" binding:"required,oneof=hit stand double split surrender insurance"`
	Amount int64  `json:"amount"` // insurance side bet only
}

type SwitchModeRequest struct {
	Mode Mode `json:"mode" binding:"required"`
}

type WithdrawRequest struct {
	Amount int64 `json:"amount" binding:"required,min=1"`
}

type DepositRequest struct {
	Token string `json:"token" binding:"required"`
}

type VerifyRequest struct {
	Kind       GameKind `json:"kind" binding:"required"`
	ServerSeed string   `json:"server_seed" binding:"required"`
	ClientSeed string   `json:"client_seed" binding:"required"`
	Nonce      int64    `json:"nonce"`
	MinesCount int      `json:"mines_count"` // mines verification only
}
