// Package inspect reads a candidate token's metadata, ownership state and
// bytecode fingerprint.
package inspect

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"base-launch-radar/internal/chain"
	"base-launch-radar/internal/domain"
)

// ErrMetadataUnavailable marks a contract that does not answer the standard
// ERC-20 views. The dispatcher drops such candidates with observability
// only.
var ErrMetadataUnavailable = errors.New("token metadata unavailable")

// burnSet are owner values treated as renounced.
var burnSet = map[common.Address]bool{
	common.HexToAddress("0x0000000000000000000000000000000000000000"): true,
	common.HexToAddress("0x000000000000000000000000000000000000dEaD"): true,
	common.HexToAddress("0x0000000000000000000000000000000000000001"): true,
}

// defaultDangerousSelectors fingerprint the runtime bytecode. Advisory:
// a match may be data, not a dispatch target.
var defaultDangerousSelectors = map[string]string{
	"mint":      "0x40c10f19", // mint(address,uint256)
	"blacklist": "0xf9f92be4", // blacklist(address)
	"pause":     "0x8456cb59", // pause()
	"taxSetter": "0x69fe0e2d", // setFee(uint256)
}

// Inspector reads token metadata through the chain client.
type Inspector struct {
	client    chain.Client
	selectors map[string][]byte // flag name -> 4-byte selector
}

// New creates an inspector. Selector overrides supplement the built-in
// dangerous selector set; keys are mint / blacklist / pause / taxSetter.
func New(client chain.Client, overrides map[string]string) *Inspector {
	selectors := make(map[string][]byte, len(defaultDangerousSelectors))
	for name, hexSel := range defaultDangerousSelectors {
		b, _ := hex.DecodeString(strings.TrimPrefix(hexSel, "0x"))
		selectors[name] = b
	}
	for name, hexSel := range overrides {
		b, err := hex.DecodeString(strings.TrimPrefix(hexSel, "0x"))
		if err == nil && len(b) == 4 {
			selectors[name] = b
		}
	}
	return &Inspector{client: client, selectors: selectors}
}

// Inspect reads name, symbol, decimals, totalSupply, ownership and the
// bytecode fingerprint of the token. Returns ErrMetadataUnavailable when
// the contract does not answer the mandatory views.
func (i *Inspector) Inspect(ctx context.Context, token common.Address) (*domain.TokenMetadata, error) {
	meta := &domain.TokenMetadata{Address: token}

	supplyRet, err := i.view(ctx, token, selTotalSupply)
	if err != nil || len(supplyRet) == 0 {
		return nil, fmt.Errorf("%w: totalSupply() failed for %s: %v", ErrMetadataUnavailable, token.Hex(), err)
	}
	meta.TotalSupply = unpackUint(supplyRet)

	decimalsRet, err := i.view(ctx, token, selDecimals)
	if err != nil || len(decimalsRet) == 0 {
		return nil, fmt.Errorf("%w: decimals() failed for %s: %v", ErrMetadataUnavailable, token.Hex(), err)
	}
	meta.Decimals = uint8(unpackUint(decimalsRet).Uint64())

	// name/symbol are decorative; tolerate failures
	if ret, err := i.view(ctx, token, selName); err == nil {
		meta.Name = unpackString(ret)
	}
	if ret, err := i.view(ctx, token, selSymbol); err == nil {
		meta.Symbol = unpackString(ret)
	}

	// owner() is optional: no view, or a burn-set value, means renounced
	if ret, err := i.view(ctx, token, selOwner); err == nil && len(ret) >= 32 {
		owner := unpackAddress(ret)
		meta.Owner = &owner
		meta.Renounced = burnSet[owner]
	} else {
		meta.Renounced = true
	}

	code, err := i.client.GetCode(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: getCode failed for %s: %v", ErrMetadataUnavailable, token.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: no code at %s", ErrMetadataUnavailable, token.Hex())
	}
	meta.Flags = i.fingerprint(code)

	return meta, nil
}

// view performs a read-only call with the given selector.
func (i *Inspector) view(ctx context.Context, token common.Address, selector []byte) ([]byte, error) {
	return i.client.Call(ctx, ethereum.CallMsg{To: &token, Data: selector})
}

// fingerprint scans runtime bytecode for the dangerous selectors.
func (i *Inspector) fingerprint(code []byte) domain.BytecodeFlags {
	has := func(name string) bool {
		selector, ok := i.selectors[name]
		return ok && bytes.Contains(code, selector)
	}
	return domain.BytecodeFlags{
		HasMint:      has("mint"),
		HasBlacklist: has("blacklist"),
		HasPause:     has("pause"),
		HasTaxSetter: has("taxSetter"),
	}
}
