package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"

	"optionwatch/shared"
)

const (
	// SQL statements.
	createTradeTableSQL    = "CREATE TABLE IF NOT EXISTS trade (id TEXT PRIMARY KEY, symbol TEXT, action TEXT, quantity INTEGER, price REAL, ordertype TEXT, status TEXT, pnl REAL, remarks TEXT, createdon INTEGER)"
	createSummaryTableSQL  = "CREATE TABLE IF NOT EXISTS summary (id TEXT PRIMARY KEY, trades INTEGER, grosspnl REAL, createdon INTEGER)"
	createSnapshotTableSQL = "CREATE TABLE IF NOT EXISTS snapshot (id TEXT PRIMARY KEY, data TEXT, savedon INTEGER)"
	persistTradeSQL        = "INSERT INTO trade(id, symbol, action, quantity, price, ordertype, status, pnl, remarks, createdon) VALUES(?,?,?,?,?,?,?,?,?,?)"
	findSummarySQL         = "SELECT * FROM summary WHERE id = ?"
	updateSummarySQL       = "UPDATE summary SET trades = trades + 1, grosspnl = grosspnl + ? WHERE id = ?"
	persistSummarySQL      = "INSERT INTO summary(id, trades, grosspnl, createdon) VALUES(?,?,?,?)"
	saveSnapshotSQL        = "INSERT INTO snapshot(id, data, savedon) VALUES(?,?,?) ON CONFLICT(id) DO UPDATE SET data = excluded.data, savedon = excluded.savedon"
	loadSnapshotSQL        = "SELECT data FROM snapshot WHERE id = ?"
	clearSnapshotSQL       = "DELETE FROM snapshot WHERE id = ?"

	// snapshotID keys the single engine state snapshot row.
	snapshotID = "registry"
)

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the TradeLogSink and StateStore interfaces.
var _ shared.TradeLogSink = (*Database)(nil)
var _ shared.StateStore = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	client.SetBasicAuth(cfg.User, cfg.Pass)

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	_, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createTradeTableSQL},
		{SQL: createSummaryTableSQL},
		{SQL: createSnapshotTableSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	return nil
}

// generateSummaryID generates deterministic ids for daily trade summaries.
func generateSummaryID(currentTime time.Time) string {
	return fmt.Sprintf("Summary-%s", currentTime.Format("2006-01-02"))
}

// Record persists the provided trade record, assigning its id and timestamp.
func (db *Database) Record(ctx context.Context, record *shared.TradeRecord) (*shared.TradeRecord, error) {
	now, _, err := shared.MarketTime()
	if err != nil {
		return nil, err
	}

	record.ID = uuid.New().String()
	record.CreatedOn = now

	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: persistTradeSQL,
			PositionalParams: []any{record.ID, record.Symbol, record.Action.String(),
				record.Quantity, record.Price, record.OrderType.String(), record.Status,
				record.PNL, record.Remarks, record.CreatedOn.Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return nil, fmt.Errorf("%w: persisting trade: %w", shared.ErrPersistence, err)
	}
	has, idx, errStr := resp.HasError()
	if has {
		return nil, fmt.Errorf("%w: persisting trade: %d -> %s", shared.ErrPersistence, idx, errStr)
	}

	switch record.Action {
	case shared.Buy:
		// Entries contribute no realized pnl to the daily summary.
	case shared.Sell:
		err = db.updateSummary(ctx, now, record.PNL)
		if err != nil {
			return nil, err
		}
	default:
		db.cfg.Logger.Error().Msgf("unexpected trade record state for summary calculations: %s", spew.Sdump(record))
	}

	return record, nil
}

// updateSummary folds the provided realized pnl into the daily summary.
func (db *Database) updateSummary(ctx context.Context, now time.Time, pnl float64) error {
	id := generateSummaryID(now)
	resp, err := db.client.QuerySingle(ctx, findSummarySQL, id)
	if err != nil {
		return fmt.Errorf("%w: finding summary %s: %w", shared.ErrPersistence, id, err)
	}

	exists := len(resp.GetQueryResultsAssoc()) > 0
	switch {
	case exists:
		resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
			{
				SQL:              updateSummarySQL,
				PositionalParams: []any{pnl, id},
			},
		}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
		if err != nil {
			return fmt.Errorf("%w: updating summary %s: %w", shared.ErrPersistence, id, err)
		}
		has, idx, errStr := resp.HasError()
		if has {
			return fmt.Errorf("%w: updating summary %s: %d -> %s", shared.ErrPersistence, id, idx, errStr)
		}
	default:
		resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
			{
				SQL:              persistSummarySQL,
				PositionalParams: []any{id, 1, pnl, now.Unix()},
			},
		}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
		if err != nil {
			return fmt.Errorf("%w: creating summary %s: %w", shared.ErrPersistence, id, err)
		}
		has, idx, errStr := resp.HasError()
		if has {
			return fmt.Errorf("%w: creating summary %s: %d -> %s", shared.ErrPersistence, id, idx, errStr)
		}
	}

	return nil
}

// Save persists the provided serialized snapshot.
func (db *Database) Save(ctx context.Context, snapshot []byte) error {
	now, _, err := shared.MarketTime()
	if err != nil {
		return err
	}

	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              saveSnapshotSQL,
			PositionalParams: []any{snapshotID, string(snapshot), now.Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return fmt.Errorf("%w: saving snapshot: %w", shared.ErrPersistence, err)
	}
	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("%w: saving snapshot: %d -> %s", shared.ErrPersistence, idx, errStr)
	}

	return nil
}

// Load fetches the persisted snapshot, returning nil when none exists.
func (db *Database) Load(ctx context.Context) ([]byte, error) {
	resp, err := db.client.QuerySingle(ctx, loadSnapshotSQL, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading snapshot: %w", shared.ErrPersistence, err)
	}

	rows := resp.GetQueryResultsAssoc()
	if len(rows) == 0 || len(rows[0].Rows) == 0 {
		return nil, nil
	}

	data, ok := rows[0].Rows[0]["data"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: loading snapshot: unexpected data column type", shared.ErrPersistence)
	}

	return []byte(data), nil
}

// Clear removes the persisted snapshot.
func (db *Database) Clear(ctx context.Context) error {
	_, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              clearSnapshotSQL,
			PositionalParams: []any{snapshotID},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return fmt.Errorf("%w: clearing snapshot: %w", shared.ErrPersistence, err)
	}

	return nil
}
