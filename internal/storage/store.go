package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
)

const schema = `
CREATE TABLE IF NOT EXISTS venues (
	name     TEXT PRIMARY KEY,
	factory  TEXT NOT NULL,
	router   TEXT NOT NULL,
	fee_bps  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pairs (
	address  TEXT PRIMARY KEY,
	venue    TEXT NOT NULL REFERENCES venues(name),
	token0   TEXT NOT NULL,
	token1   TEXT NOT NULL,
	position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pairs_venue ON pairs(venue, position);

CREATE TABLE IF NOT EXISTS paths (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	pair0 TEXT NOT NULL REFERENCES pairs(address),
	pair1 TEXT NOT NULL REFERENCES pairs(address),
	UNIQUE(pair0, pair1)
);
`

// Store persists discovered venues, pairs and indexed paths
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveListing replaces a venue and its pairs
func (s *Store) SaveListing(l arbitrage.VenueListing) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT OR REPLACE INTO venues (name, factory, router, fee_bps) VALUES (?, ?, ?, ?)",
		l.Venue.Key(), l.Venue.Factory.Hex(), l.Venue.Router.Hex(), l.Venue.FeeBps,
	)
	if err != nil {
		return fmt.Errorf("save venue %s: %w", l.Venue.Name, err)
	}

	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO pairs (address, venue, token0, token1, position) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range l.Pairs {
		if _, err := stmt.Exec(p.Address.Hex(), l.Venue.Key(), p.Token0.Hex(), p.Token1.Hex(), i); err != nil {
			return fmt.Errorf("save pair %s: %w", p.Address.Hex(), err)
		}
	}

	return tx.Commit()
}

// Listings loads every venue with its pairs in discovery order
func (s *Store) Listings() ([]arbitrage.VenueListing, error) {
	rows, err := s.db.Query("SELECT name, factory, router, fee_bps FROM venues ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []arbitrage.VenueListing
	index := make(map[string]int)
	for rows.Next() {
		var name, factory, router string
		var fee uint64
		if err := rows.Scan(&name, &factory, &router, &fee); err != nil {
			return nil, err
		}
		index[name] = len(listings)
		listings = append(listings, arbitrage.VenueListing{Venue: arbitrage.Venue{
			Name:    name,
			Factory: common.HexToAddress(factory),
			Router:  common.HexToAddress(router),
			FeeBps:  fee,
		}})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.db.Query("SELECT address, venue, token0, token1 FROM pairs ORDER BY venue, position")
	if err != nil {
		return nil, err
	}
	defer prows.Close()

	for prows.Next() {
		var addr, venue, t0, t1 string
		if err := prows.Scan(&addr, &venue, &t0, &t1); err != nil {
			return nil, err
		}
		i, ok := index[venue]
		if !ok {
			continue
		}
		l := &listings[i]
		l.Pairs = append(l.Pairs, arbitrage.PairInfo{
			Address: common.HexToAddress(addr),
			Token0:  common.HexToAddress(t0),
			Token1:  common.HexToAddress(t1),
			Venue:   l.Venue,
		})
	}
	return listings, prows.Err()
}

// SavePaths replaces the stored path index
func (s *Store) SavePaths(paths []arbitrage.Path) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM paths"); err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT OR IGNORE INTO paths (pair0, pair1) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.Exec(p.Pair0.Address.Hex(), p.Pair1.Address.Hex()); err != nil {
			return fmt.Errorf("save path: %w", err)
		}
	}
	return tx.Commit()
}

// Paths loads the path index, resolving both pools against the stored listings
func (s *Store) Paths() ([]arbitrage.Path, error) {
	listings, err := s.Listings()
	if err != nil {
		return nil, err
	}
	pairs := make(map[common.Address]arbitrage.PairInfo)
	for _, l := range listings {
		for _, p := range l.Pairs {
			pairs[p.Address] = p
		}
	}

	rows, err := s.db.Query("SELECT pair0, pair1 FROM paths ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []arbitrage.Path
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		p0, ok0 := pairs[common.HexToAddress(a)]
		p1, ok1 := pairs[common.HexToAddress(b)]
		if !ok0 || !ok1 {
			return nil, fmt.Errorf("path %s/%s references an unknown pair", a, b)
		}
		paths = append(paths, arbitrage.Path{Pair0: p0, Pair1: p1})
	}
	return paths, rows.Err()
}

// GetStats reports row counts for monitoring
func (s *Store) GetStats() (map[string]int64, error) {
	stats := make(map[string]int64)
	for _, table := range []string{"venues", "pairs", "paths"} {
		var count int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, err
		}
		stats[table] = count
	}
	return stats, nil
}
