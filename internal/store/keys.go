package store

import "time"

const (
	keyWallet       = "wallet:%d:%s"     // accountID, mode
	keySession      = "session:%d:%s:%s" // accountID, mode, kind
	keyTable        = "table:%s:%s"      // mode, tableID
	keyLedger       = "ledger:%d:%s"     // accountID, mode
	keyCrashHistory = "crash:history:%s" // mode
	keyActiveMode   = "account:%d:mode"  // accountID
	keyDeposit      = "deposit:%s"       // artifact id
	keyRateLimit    = "ratelimit:%s"     // caller-built key

	TTLSession = 7 * 24 * time.Hour
	TTLTable   = 24 * time.Hour
	TTLDeposit = 30 * 24 * time.Hour

	ledgerKeep       = 1000 // entries retained per wallet
	crashHistoryKeep = 100  // rolling crash history ring size
)
