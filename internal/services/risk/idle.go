package risk

import "VaultRisk/internal/domain/models"

// IsIdle reports whether a market is exempt from scoring. A market is idle
// when it was never wired to an oracle and an IRM, or when it is an empty
// supply-queue placeholder: no supply, no borrow and no vault position.
//
// Markets that had activity in the past but still hold a vault position are
// scored; only the empty placeholder case is treated as idle.
func IsIdle(m models.MarketState) bool {
	if m.OracleAddress == nil && m.IRMAddress == nil {
		return true
	}
	return m.SupplyAssetsUSD == 0 && m.BorrowAssetsUSD == 0 && !m.HasVaultPosition()
}
