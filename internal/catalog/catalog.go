// Package catalog holds the static venue and token lists the engine trades over.
// A catalog is built once at startup and never mutated.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
	"github.com/pulkyeet/flashswap-arb/internal/eth"
)

var ErrUnknownVenue = errors.New("unknown venue")

// file is the TOML layout:
//
//	[[venue]]
//	name = "uniswap"
//	factory = "0x5C69..."
//	router = "0x7a25..."
//	init_code_hash = "0x96e8..."
//	fee_bps = 30
//
//	[[token]]
//	symbol = "WETH"
//	address = "0xC02a..."
//	decimals = 18
//	base = true
type file struct {
	Venues []venueEntry `toml:"venue"`
	Tokens []tokenEntry `toml:"token"`
}

type venueEntry struct {
	Name         string `toml:"name"`
	Factory      string `toml:"factory"`
	Router       string `toml:"router"`
	InitCodeHash string `toml:"init_code_hash"`
	FeeBps       uint64 `toml:"fee_bps"`
}

type tokenEntry struct {
	Symbol   string `toml:"symbol"`
	Address  string `toml:"address"`
	Decimals int    `toml:"decimals"`
	Base     bool   `toml:"base"`
}

type venue struct {
	arbitrage.Venue
	initCodeHash [32]byte
}

type Catalog struct {
	venues []venue
	tokens map[common.Address]eth.TokenInfo
	bases  []common.Address
}

// Default is the mainnet catalog: every known v2 fork and every known token as a base.
func Default() *Catalog {
	c := &Catalog{tokens: make(map[common.Address]eth.TokenInfo)}
	for _, d := range eth.KnownDEXes {
		c.venues = append(c.venues, venue{
			Venue: arbitrage.Venue{
				Name:    d.Name,
				Factory: d.Factory,
				Router:  d.Router,
				FeeBps:  d.FeeBps,
			},
			initCodeHash: d.InitCodeHash,
		})
	}
	for _, t := range eth.KnownTokens {
		c.tokens[t.Address] = t
		c.bases = append(c.bases, t.Address)
	}
	sortAddresses(c.bases)
	return c
}

// Load reads a catalog file. An empty path gives the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return build(f)
}

// Parse builds a catalog from TOML text.
func Parse(data string) (*Catalog, error) {
	var f file
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return build(f)
}

func build(f file) (*Catalog, error) {
	if len(f.Venues) == 0 {
		return nil, errors.New("catalog: at least one venue is required")
	}

	c := &Catalog{tokens: make(map[common.Address]eth.TokenInfo)}
	seen := make(map[string]bool)
	for _, v := range f.Venues {
		key := strings.ToLower(v.Name)
		if key == "" {
			return nil, errors.New("catalog: venue name is required")
		}
		if seen[key] {
			return nil, fmt.Errorf("catalog: duplicate venue %q", v.Name)
		}
		seen[key] = true

		if !common.IsHexAddress(v.Factory) {
			return nil, fmt.Errorf("catalog: venue %s: bad factory %q", v.Name, v.Factory)
		}
		if v.Router != "" && !common.IsHexAddress(v.Router) {
			return nil, fmt.Errorf("catalog: venue %s: bad router %q", v.Name, v.Router)
		}
		if v.FeeBps >= 10000 {
			return nil, fmt.Errorf("catalog: venue %s: fee_bps must be below 10000", v.Name)
		}
		feeBps := v.FeeBps
		if feeBps == 0 {
			feeBps = arbitrage.DefaultFeeBps
		}

		var hash [32]byte
		if v.InitCodeHash != "" {
			raw := common.FromHex(v.InitCodeHash)
			if len(raw) != 32 {
				return nil, fmt.Errorf("catalog: venue %s: init_code_hash must be 32 bytes", v.Name)
			}
			copy(hash[:], raw)
		}

		c.venues = append(c.venues, venue{
			Venue: arbitrage.Venue{
				Name:    key,
				Factory: common.HexToAddress(v.Factory),
				Router:  common.HexToAddress(v.Router),
				FeeBps:  feeBps,
			},
			initCodeHash: hash,
		})
	}

	for _, t := range f.Tokens {
		if !common.IsHexAddress(t.Address) {
			return nil, fmt.Errorf("catalog: token %s: bad address %q", t.Symbol, t.Address)
		}
		if t.Decimals < 0 || t.Decimals > 77 {
			return nil, fmt.Errorf("catalog: token %s: decimals out of range", t.Symbol)
		}
		addr := common.HexToAddress(t.Address)
		if _, dup := c.tokens[addr]; dup {
			return nil, fmt.Errorf("catalog: duplicate token %s", addr.Hex())
		}
		c.tokens[addr] = eth.TokenInfo{Address: addr, Decimals: t.Decimals, Symbol: t.Symbol}
		if t.Base {
			c.bases = append(c.bases, addr)
		}
	}
	if len(c.bases) == 0 {
		return nil, errors.New("catalog: at least one base token is required")
	}
	sortAddresses(c.bases)

	return c, nil
}

func sortAddresses(a []common.Address) {
	sort.Slice(a, func(i, j int) bool { return a[i].Cmp(a[j]) < 0 })
}

// Venues returns the venues in catalog order.
func (c *Catalog) Venues() []arbitrage.Venue {
	out := make([]arbitrage.Venue, len(c.venues))
	for i, v := range c.venues {
		out[i] = v.Venue
	}
	return out
}

func (c *Catalog) Venue(name string) (arbitrage.Venue, error) {
	for _, v := range c.venues {
		if v.Key() == strings.ToLower(name) {
			return v.Venue, nil
		}
	}
	return arbitrage.Venue{}, fmt.Errorf("%q: %w", name, ErrUnknownVenue)
}

// InitCodeHash returns the pair init code hash of a venue, zero when unknown.
func (c *Catalog) InitCodeHash(name string) [32]byte {
	for _, v := range c.venues {
		if v.Key() == strings.ToLower(name) {
			return v.initCodeHash
		}
	}
	return [32]byte{}
}

// BaseTokens returns the profit tokens, sorted by address.
func (c *Catalog) BaseTokens() []common.Address {
	return append([]common.Address(nil), c.bases...)
}

func (c *Catalog) Token(addr common.Address) (eth.TokenInfo, bool) {
	t, ok := c.tokens[addr]
	return t, ok
}

// Decimals of token, 18 for tokens the catalog does not list.
func (c *Catalog) Decimals(token common.Address) int {
	if t, ok := c.tokens[token]; ok {
		return t.Decimals
	}
	return 18
}

// Symbol of token, or its short hex form.
func (c *Catalog) Symbol(token common.Address) string {
	if t, ok := c.tokens[token]; ok && t.Symbol != "" {
		return t.Symbol
	}
	hex := token.Hex()
	return hex[:6] + ".." + hex[len(hex)-4:]
}
