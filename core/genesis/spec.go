package genesis

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/marketplace"
	"nftmarket/native/settlement"
)

// GenesisSpec describes the initial contract state.
type GenesisSpec struct {
	GenesisTime   string              `yaml:"genesis_time"`
	ChainID       string              `yaml:"chain_id"`
	AddressPrefix string              `yaml:"address_prefix"`
	ContractLabel string              `yaml:"contract_label"`
	Gates         []string            `yaml:"gates"`
	Owner         string              `yaml:"owner"`
	Allow         AllowSpec           `yaml:"allow"`
	LockedTokens  []string            `yaml:"locked_tokens"`
	Tokens        []TokenSpec         `yaml:"tokens"`
	Balances      map[string][]string `yaml:"balances"` // addr -> ["100uturnt"]
	InitialSale   *SaleSpec           `yaml:"initial_sale,omitempty"`

	genesisTimestamp time.Time
	gates            settlement.Gates
	balances         map[string]types.Coins
	sale             *marketplace.AddPrimarySaleMsg
}

type AllowSpec struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
}

type TokenSpec struct {
	TokenID  string `yaml:"token_id"`
	Owner    string `yaml:"owner"`
	TokenURI string `yaml:"token_uri"`
	Metadata string `yaml:"metadata"`
}

type SaleSpec struct {
	TotalSupply uint64 `yaml:"total_supply"`
	StartTime   string `yaml:"start_time"`
	EndTime     string `yaml:"end_time"`
	Price       string `yaml:"price"`
}

// LoadGenesisSpec reads and validates a YAML genesis file. Unknown fields
// are rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates raw YAML.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// Prefix returns the bech32 prefix accounts must carry.
func (s *GenesisSpec) Prefix() crypto.AddressPrefix {
	return crypto.AddressPrefix(s.AddressPrefix)
}

// ContractAddress derives the contract account from the chain id and label.
func (s *GenesisSpec) ContractAddress() (string, error) {
	addr, err := crypto.ContractAddress(s.Prefix(), s.ChainID+"/"+s.ContractLabel)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// Contract builds the marketplace contract described by the genesis file.
func (s *GenesisSpec) Contract() (*marketplace.Contract, error) {
	addr, err := s.ContractAddress()
	if err != nil {
		return nil, err
	}
	return marketplace.NewContract(addr, s.Prefix(), s.gates), nil
}

// InstantiateMsg returns the instantiate message and initial balances.
func (s *GenesisSpec) InstantiateMsg() (marketplace.InstantiateMsg, map[string]types.Coins) {
	msg := marketplace.InstantiateMsg{
		Owner:        s.Owner,
		AllowEnabled: s.Allow.Enabled,
		AllowedAddrs: append([]string(nil), s.Allow.Addresses...),
		LockedTokens: append([]string(nil), s.LockedTokens...),
		InitialSale:  s.sale,
	}
	for _, tok := range s.Tokens {
		msg.Tokens = append(msg.Tokens, types.MintRequest{
			TokenID:  tok.TokenID,
			Owner:    tok.Owner,
			TokenURI: tok.TokenURI,
			Metadata: tok.Metadata,
		})
	}
	balances := make(map[string]types.Coins, len(s.balances))
	for addr, coins := range s.balances {
		balances[addr] = coins.Clone()
	}
	return msg, balances
}

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	if strings.TrimSpace(s.ChainID) == "" {
		return fmt.Errorf("chain_id must be provided")
	}
	if strings.TrimSpace(s.AddressPrefix) == "" {
		s.AddressPrefix = string(crypto.DefaultPrefix)
	}
	if strings.TrimSpace(s.ContractLabel) == "" {
		s.ContractLabel = "market"
	}
	if s.gates, err = settlement.ParseGates(s.Gates); err != nil {
		return fmt.Errorf("gates: %w", err)
	}
	if s.Owner, err = parseAccount(s.Prefix(), s.Owner); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	for i, addr := range s.Allow.Addresses {
		if s.Allow.Addresses[i], err = parseAccount(s.Prefix(), addr); err != nil {
			return fmt.Errorf("allow.addresses[%d]: %w", i, err)
		}
	}

	seen := make(map[string]struct{}, len(s.Tokens))
	for i := range s.Tokens {
		tok := &s.Tokens[i]
		id, err := types.NormalizeTokenID(tok.TokenID)
		if err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("tokens[%d]: duplicate token_id %q", i, id)
		}
		seen[id] = struct{}{}
		if tok.Owner != "" {
			if tok.Owner, err = parseAccount(s.Prefix(), tok.Owner); err != nil {
				return fmt.Errorf("tokens[%d].owner: %w", i, err)
			}
		}
	}
	for i, raw := range s.LockedTokens {
		id, err := types.NormalizeTokenID(raw)
		if err != nil {
			return fmt.Errorf("locked_tokens[%d]: %w", i, err)
		}
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("locked_tokens[%d]: undefined token %q", i, id)
		}
	}

	s.balances = make(map[string]types.Coins, len(s.Balances))
	accounts := make([]string, 0, len(s.Balances))
	for account := range s.Balances {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		addr, err := parseAccount(s.Prefix(), account)
		if err != nil {
			return fmt.Errorf("balances[%q]: %w", account, err)
		}
		denoms := make(map[string]struct{})
		for _, raw := range s.Balances[account] {
			coin, err := types.ParseCoin(raw)
			if err != nil {
				return fmt.Errorf("balances[%q]: %w", account, err)
			}
			if _, dup := denoms[coin.Denom]; dup {
				return fmt.Errorf("balances[%q]: duplicate denom %q", account, coin.Denom)
			}
			denoms[coin.Denom] = struct{}{}
			s.balances[addr] = append(s.balances[addr], coin)
		}
	}

	s.sale = nil
	if s.InitialSale != nil {
		sale, err := s.InitialSale.parse()
		if err != nil {
			return fmt.Errorf("initial_sale: %w", err)
		}
		if sale.StartTime < parsedTime.Unix() {
			return fmt.Errorf("initial_sale: start_time before genesis_time")
		}
		s.sale = sale
	}
	return nil
}

func (s *SaleSpec) parse() (*marketplace.AddPrimarySaleMsg, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(s.StartTime))
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(s.EndTime))
	if err != nil {
		return nil, fmt.Errorf("end_time: %w", err)
	}
	price, err := types.ParseCoin(s.Price)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	return &marketplace.AddPrimarySaleMsg{
		TotalSupply: s.TotalSupply,
		StartTime:   start.Unix(),
		EndTime:     end.Unix(),
		Price:       price,
	}, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("genesis_time must be provided")
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid genesis_time %q: %w", value, err)
	}
	return parsed.UTC(), nil
}
