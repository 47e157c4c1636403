package market

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"moneymarket/core/decimal"
	"moneymarket/crypto"
	"moneymarket/storage"
)

var (
	configKey = []byte("config")
	stateKey  = []byte("state")
)

// Store reads and writes the market's two records on an explicit key-value
// store. Handlers build one per call on top of a storage.Cache.
type Store struct {
	kv storage.KVStore
}

// NewStore binds the market records to kv.
func NewStore(kv storage.KVStore) *Store {
	return &Store{kv: kv}
}

type configRecord struct {
	StableDenom        string
	ReceiptTokenPrefix string
	ReceiptToken       []byte
	ContractPrefix     string
	Contract           []byte
}

type stateRecord struct {
	TotalLiabilities    *big.Int
	TotalReserves       *big.Int
	PrevReceiptSupply   *big.Int
	LastInterestUpdated uint64
	GlobalInterestIndex *big.Int
}

// Config loads the deployment config.
func (s *Store) Config() (*Config, error) {
	var rec configRecord
	found, err := s.get(configKey, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotInitialised
	}
	token, err := crypto.NewAddress(crypto.AddressPrefix(rec.ReceiptTokenPrefix), rec.ReceiptToken)
	if err != nil {
		return nil, fmt.Errorf("market: stored receipt token: %w", err)
	}
	contract, err := crypto.NewAddress(crypto.AddressPrefix(rec.ContractPrefix), rec.Contract)
	if err != nil {
		return nil, fmt.Errorf("market: stored contract: %w", err)
	}
	return &Config{StableDenom: rec.StableDenom, ReceiptToken: token, Contract: contract}, nil
}

// PutConfig stores cfg. The config record is write-once.
func (s *Store) PutConfig(cfg *Config) error {
	if cfg == nil {
		return errStableDenomRequired
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	found, err := s.get(configKey, nil)
	if err != nil {
		return err
	}
	if found {
		return errAlreadyInitialised
	}
	return s.put(configKey, &configRecord{
		StableDenom:        cfg.StableDenom,
		ReceiptTokenPrefix: string(cfg.ReceiptToken.Prefix()),
		ReceiptToken:       cfg.ReceiptToken.Bytes(),
		ContractPrefix:     string(cfg.Contract.Prefix()),
		Contract:           cfg.Contract.Bytes(),
	})
}

// State loads the ledger row.
func (s *Store) State() (*State, error) {
	var rec stateRecord
	found, err := s.get(stateKey, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotInitialised
	}
	state := &State{LastInterestUpdated: rec.LastInterestUpdated}
	if state.TotalLiabilities, err = decFromBig(rec.TotalLiabilities); err != nil {
		return nil, err
	}
	if state.TotalReserves, err = decFromBig(rec.TotalReserves); err != nil {
		return nil, err
	}
	if state.GlobalInterestIndex, err = decFromBig(rec.GlobalInterestIndex); err != nil {
		return nil, err
	}
	if state.PrevReceiptSupply, err = uintFromBig(rec.PrevReceiptSupply); err != nil {
		return nil, err
	}
	return state, nil
}

// PutState overwrites the ledger row.
func (s *Store) PutState(state *State) error {
	if state == nil {
		return ErrNotInitialised
	}
	supply := new(big.Int)
	if state.PrevReceiptSupply != nil {
		supply = state.PrevReceiptSupply.ToBig()
	}
	return s.put(stateKey, &stateRecord{
		TotalLiabilities:    state.TotalLiabilities.Atomics().ToBig(),
		TotalReserves:       state.TotalReserves.Atomics().ToBig(),
		PrevReceiptSupply:   supply,
		LastInterestUpdated: state.LastInterestUpdated,
		GlobalInterestIndex: state.GlobalInterestIndex.Atomics().ToBig(),
	})
}

func (s *Store) get(key []byte, out interface{}) (bool, error) {
	data, err := s.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("market: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.kv.Put(key, encoded)
}

func decFromBig(v *big.Int) (decimal.Dec, error) {
	atomics, err := uintFromBig(v)
	if err != nil {
		return decimal.Dec{}, err
	}
	return decimal.FromAtomics(atomics), nil
}

func uintFromBig(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("market: stored value %s exceeds 256 bits", v)
	}
	return out, nil
}
