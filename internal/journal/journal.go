package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
)

var ErrClosed = errors.New("journal closed")

// Record is one detected opportunity as stored in the parquet file.
// Amounts are decimal strings of the raw token units.
type Record struct {
	Timestamp   int64  `parquet:"name=timestamp, type=INT64"`
	Block       int64  `parquet:"name=block, type=INT64"`
	Pair0       string `parquet:"name=pair0, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Pair1       string `parquet:"name=pair1, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Venue0      string `parquet:"name=venue0, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Venue1      string `parquet:"name=venue1, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Direction   string `parquet:"name=direction, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ProfitToken string `parquet:"name=profit_token, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	TradeToken  string `parquet:"name=trade_token, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	AmountIn    string `parquet:"name=amount_in, type=BYTE_ARRAY, convertedtype=UTF8"`
	Profit      string `parquet:"name=profit, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// NewRecord flattens an opportunity seen at block.
func NewRecord(opp *arbitrage.Opportunity, block uint64, at time.Time) Record {
	return Record{
		Timestamp:   at.Unix(),
		Block:       int64(block),
		Pair0:       opp.Path.Pair0.Address.Hex(),
		Pair1:       opp.Path.Pair1.Address.Hex(),
		Venue0:      opp.Path.Pair0.Venue.Key(),
		Venue1:      opp.Path.Pair1.Venue.Key(),
		Direction:   opp.Direction.String(),
		ProfitToken: opp.ProfitToken.Hex(),
		TradeToken:  opp.TradeToken.Hex(),
		AmountIn:    opp.AmountIn.String(),
		Profit:      opp.Profit.String(),
	}
}

// Journal appends opportunities to a parquet file. The file is only readable
// after Close has flushed the footer.
type Journal struct {
	mu     sync.Mutex
	fw     source.ParquetFile
	pw     *writer.ParquetWriter
	rows   int
	closed bool
}

func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("create journal file: %w", err)
	}
	pw, err := writer.NewParquetWriter(fw, new(Record), 4)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}

	return &Journal{fw: fw, pw: pw}, nil
}

func (j *Journal) Append(rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	if err := j.pw.Write(rec); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	j.rows++
	return nil
}

// Rows is how many records were appended so far.
func (j *Journal) Rows() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rows
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if err := j.pw.WriteStop(); err != nil {
		j.fw.Close()
		return fmt.Errorf("flush journal: %w", err)
	}
	return j.fw.Close()
}

// ReadAll loads every record of a closed journal file.
func ReadAll(path string) ([]Record, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Record), 1)
	if err != nil {
		return nil, fmt.Errorf("create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]Record, n)
	if n == 0 {
		return rows, nil
	}
	if err := pr.Read(&rows); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return rows, nil
}
