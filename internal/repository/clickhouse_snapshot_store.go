package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"VaultRisk/internal/domain/models"
	domrepo "VaultRisk/internal/domain/repository"
	pkgch "VaultRisk/pkg/clickhouse"
	"VaultRisk/pkg/logger"
)

// DefaultSnapshotTable holds one row per scored market per report.
const DefaultSnapshotTable = "market_risk_snapshots"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

const snapshotColumns = "ts, chain_id, vault_address, market_id, loan_symbol, collateral_symbol, " +
	"headroom_score, utilization_score, coverage_score, oracle_score, market_risk_score, grade, " +
	"oracle_age_seconds, target_utilization, target_is_fallback"

const snapshotPlaceholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

// SnapshotSchema returns the DDL for table. Replays of the same report
// collapse on the sorting key.
func SnapshotSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    ts                 DateTime64(3, 'UTC'),
    chain_id           Int64,
    vault_address      String,
    market_id          String,
    loan_symbol        LowCardinality(String),
    collateral_symbol  LowCardinality(String),
    headroom_score     Float64,
    utilization_score  Float64,
    coverage_score     Float64,
    oracle_score       Float64,
    market_risk_score  Float64,
    grade              LowCardinality(String),
    oracle_age_seconds Nullable(Int64),
    target_utilization Float64,
    target_is_fallback UInt8
) ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (chain_id, market_id, vault_address, ts)`, table)}
}

// CHSnapshotStore implements SnapshotStore backed by ClickHouse.
type CHSnapshotStore struct {
	db    *sql.DB
	table string
	l     *logger.Logger
}

func NewCHSnapshotStore(client *pkgch.Client, table string, l *logger.Logger) (*CHSnapshotStore, error) {
	return newCHSnapshotStore(client.DB(), table, l)
}

func newCHSnapshotStore(db *sql.DB, table string, l *logger.Logger) (*CHSnapshotStore, error) {
	if table == "" {
		table = DefaultSnapshotTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &CHSnapshotStore{db: db, table: table, l: l}, nil
}

func (s *CHSnapshotStore) Table() string { return s.table }

func (s *CHSnapshotStore) Store(ctx context.Context, r *models.VaultRiskReport) error {
	return s.StoreBatch(ctx, []*models.VaultRiskReport{r})
}

// StoreBatch writes the scored entries of every report; idle entries are
// not persisted.
func (s *CHSnapshotStore) StoreBatch(ctx context.Context, reports []*models.VaultRiskReport) error {
	var rows []models.MarketSnapshot
	for _, r := range reports {
		if r != nil {
			rows = append(rows, r.Snapshots()...)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	const chunkSize = 2000
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		q, args := s.insertQuery(rows[start:end])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse snapshot insert failed",
				logger.String("table", s.table),
				logger.Int("rows", end-start),
				logger.Error(err),
			)
			return fmt.Errorf("insert snapshots: %w", err)
		}
	}
	return nil
}

func (s *CHSnapshotStore) insertQuery(rows []models.MarketSnapshot) (string, []interface{}) {
	values := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*15)
	for i, row := range rows {
		values[i] = snapshotPlaceholders
		args = append(args, snapshotArgs(row)...)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, snapshotColumns, strings.Join(values, ","))
	return q, args
}

func snapshotArgs(row models.MarketSnapshot) []interface{} {
	var age interface{}
	if row.OracleAgeSeconds != nil {
		age = *row.OracleAgeSeconds
	}
	var fallback uint8
	if row.TargetIsFallback {
		fallback = 1
	}
	return []interface{}{
		row.Timestamp.UTC(),
		row.ChainID,
		row.VaultAddress,
		row.MarketID,
		row.LoanSymbol,
		row.CollateralSymbol,
		row.Headroom,
		row.Utilization,
		row.Coverage,
		row.Oracle,
		row.MarketRiskScore,
		string(row.Grade),
		age,
		row.TargetUtilization,
		fallback,
	}
}

// History returns rows for a market in [from, to], newest first.
func (s *CHSnapshotStore) History(ctx context.Context, chainID int64, marketID string, from, to time.Time, limit int) ([]models.MarketSnapshot, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL
WHERE chain_id = ? AND market_id = ? AND ts >= ? AND ts <= ?
ORDER BY ts DESC
LIMIT ?`, snapshotColumns, s.table)

	rows, err := s.db.QueryContext(ctx, q, chainID, strings.ToLower(marketID), from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]models.MarketSnapshot, 0, 64)
	for rows.Next() {
		var (
			row      models.MarketSnapshot
			grade    string
			age      sql.NullInt64
			fallback uint8
		)
		if err := rows.Scan(&row.Timestamp, &row.ChainID, &row.VaultAddress, &row.MarketID,
			&row.LoanSymbol, &row.CollateralSymbol, &row.Headroom, &row.Utilization, &row.Coverage,
			&row.Oracle, &row.MarketRiskScore, &grade, &age, &row.TargetUtilization, &fallback); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		row.Grade = models.Grade(grade)
		if age.Valid {
			v := age.Int64
			row.OracleAgeSeconds = &v
		}
		row.TargetIsFallback = fallback == 1
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.l.Debug("clickhouse history query",
		logger.String("market_id", marketID),
		logger.Int("rows", len(out)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHSnapshotStore) Close() error { return nil }

var _ domrepo.SnapshotStore = (*CHSnapshotStore)(nil)
