package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"trailchain/core/types"
)

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads an account record, returning a zero-balance account when
// none has been persisted yet.
func (m *Manager) GetAccount(id string) (*types.Account, error) {
	data, ok, err := m.kvGet(accountKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	balance := big.NewInt(0)
	if stored.Balance != nil {
		balance.Set(stored.Balance)
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

// PutAccount persists an account record.
func (m *Manager) PutAccount(id string, acc *types.Account) error {
	record := &storedAccount{Balance: big.NewInt(0)}
	if acc != nil {
		record.Nonce = acc.Nonce
		if acc.Balance != nil {
			record.Balance = new(big.Int).Set(acc.Balance)
		}
	}
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	return m.kvPut(accountKey(id), encoded)
}
