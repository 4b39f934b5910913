package vault

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/openamm/weightedpool/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrUnknownPool   = errors.New("vault: unknown pool id")
	ErrUnknownDenom  = errors.New("vault: unknown denom")
	ErrShortBalance  = errors.New("vault: transfer exceeds balance")
	ErrNegativeDelta = errors.New("vault: negative amount")
)

var memLogger = logger.GetForComponent("memory_host")

// Transfer is one recorded token movement.
type Transfer struct {
	Denom  string
	From   string
	To     string
	Amount sdkmath.Int
}

// MemoryHost is an in-process Host used by the simulator and tests. It keeps
// pool balances in memory and records transfers instead of settling them.
type MemoryHost struct {
	mu sync.Mutex

	pools map[string]*memoryPool
	owner string

	transfers []Transfer
	block     uint64
}

type memoryPool struct {
	denoms   []string
	balances map[string]sdkmath.Int
}

// NewMemoryHost builds an empty host. owner is the account the authorization
// check recognizes.
func NewMemoryHost(owner string) *MemoryHost {
	return &MemoryHost{
		pools: make(map[string]*memoryPool),
		owner: owner,
	}
}

// RegisterPool creates a pool's balance book with all balances at zero.
func (h *MemoryHost) RegisterPool(poolID string, denoms []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	balances := make(map[string]sdkmath.Int, len(denoms))
	for _, d := range denoms {
		balances[d] = sdkmath.ZeroInt()
	}
	h.pools[poolID] = &memoryPool{denoms: append([]string(nil), denoms...), balances: balances}
	memLogger.Debug().Str("pool_id", poolID).Int("tokens", len(denoms)).Msg("Pool registered")
}

// GetPoolBalances implements Host.
func (h *MemoryHost) GetPoolBalances(poolID string) ([]string, []sdkmath.Int, uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pools[poolID]
	if !ok {
		return nil, nil, 0, fmt.Errorf("%w: %s", ErrUnknownPool, poolID)
	}
	balances := make([]sdkmath.Int, len(p.denoms))
	for i, d := range p.denoms {
		balances[i] = p.balances[d]
	}
	return append([]string(nil), p.denoms...), balances, h.block, nil
}

// ExecuteTokenTransfer implements Host by recording the movement.
func (h *MemoryHost) ExecuteTokenTransfer(denom, from, to string, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrNegativeDelta
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transfers = append(h.transfers, Transfer{Denom: denom, From: from, To: to, Amount: amount})
	return nil
}

// IsOwnerOnlyAction implements Host: the in-memory host treats every governed
// action as owner-only.
func (h *MemoryHost) IsOwnerOnlyAction(actionID string) bool {
	return true
}

// Credit adds amount of denom to a pool's balance and advances the block.
func (h *MemoryHost) Credit(poolID, denom string, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrNegativeDelta
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pools[poolID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, poolID)
	}
	bal, ok := p.balances[denom]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDenom, denom)
	}
	p.balances[denom] = bal.Add(amount)
	h.block++
	return nil
}

// Debit removes amount of denom from a pool's balance and advances the block.
func (h *MemoryHost) Debit(poolID, denom string, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrNegativeDelta
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.pools[poolID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPool, poolID)
	}
	bal, ok := p.balances[denom]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDenom, denom)
	}
	if amount.GT(bal) {
		return fmt.Errorf("%w: %s", ErrShortBalance, denom)
	}
	p.balances[denom] = bal.Sub(amount)
	h.block++
	return nil
}

// Transfers returns a copy of the recorded transfer log.
func (h *MemoryHost) Transfers() []Transfer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Transfer(nil), h.transfers...)
}
