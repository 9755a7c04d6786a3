package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ComputeAlertID computes a deterministic alert id using SHA256.
// Formula: SHA256(factory_id|pair|base_token|block|tx_hash)
// Returns hex-encoded hash (64 characters).
//
// The id is stable across restarts: re-analyzing the same creation event
// yields the same alert id, which is what makes delivery idempotent.
func ComputeAlertID(
	factoryID string,
	pair common.Address,
	baseToken common.Address,
	blockNumber uint64,
	txHash common.Hash,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%s",
		factoryID,
		pair.Hex(),
		baseToken.Hex(),
		blockNumber,
		txHash.Hex(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
