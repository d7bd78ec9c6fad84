// Package journal persists spike receipts, settlement reports and env
// events to a SQLite file so runs can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/spiker"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"
)

const schema = `
create table if not exists spikes
(
	id       text primary key,
	at       text    not null,
	caller   text    not null,
	total_a  text    not null,
	total_b  text    not null,
	notes    integer not null,
	payload  blob    not null
);
create table if not exists settlements
(
	id          text primary key,
	at          text    not null,
	beneficiary text    not null,
	policy      text    not null,
	cleared     integer not null,
	failed      integer not null,
	payload     blob    not null
);
create table if not exists events
(
	id      text primary key,
	kind    text not null,
	emitter text not null,
	at      text not null,
	fields  blob
);
create index if not exists events_kind_index on events (kind);
`

type Journal struct {
	db     *sql.DB
	logger zerolog.Logger
}

type SpikeEntry struct {
	ID      string              `json:"id"`
	At      time.Time           `json:"at"`
	Receipt spiker.SpikeReceipt `json:"receipt"`
}

type SettlementEntry struct {
	ID     string                  `json:"id"`
	At     time.Time               `json:"at"`
	Report spiker.SettlementReport `json:"report"`
}

// Open opens or creates the journal at path.
func Open(path string, logger zerolog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal open (%s): %w", path, err)
	}
	// A single connection keeps writes serialized.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema (%s): %w", path, err)
	}
	return &Journal{
		db:     db,
		logger: logger.With().Str("component", "journal").Str("path", path).Logger(),
	}, nil
}

func (j *Journal) RecordSpike(ctx context.Context, receipt spiker.SpikeReceipt) (string, error) {
	payload, err := sonnet.Marshal(receipt)
	if err != nil {
		return "", fmt.Errorf("journal encode spike: %w", err)
	}
	id := xid.New().String()
	_, err = j.db.ExecContext(ctx,
		`insert into spikes (id, at, caller, total_a, total_b, notes, payload) values (?, ?, ?, ?, ?, ?, ?)`,
		id, formatTime(receipt.At), receipt.Caller.Hex(), receipt.TotalA.Dec(), receipt.TotalB.Dec(),
		len(receipt.Notes), payload)
	if err != nil {
		return "", fmt.Errorf("journal insert spike: %w", err)
	}
	j.logger.Debug().Str("id", id).Int("notes", len(receipt.Notes)).Msg("spike recorded")
	return id, nil
}

func (j *Journal) RecordSettlement(ctx context.Context, report spiker.SettlementReport, at time.Time) (string, error) {
	payload, err := sonnet.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("journal encode settlement: %w", err)
	}
	id := xid.New().String()
	_, err = j.db.ExecContext(ctx,
		`insert into settlements (id, at, beneficiary, policy, cleared, failed, payload) values (?, ?, ?, ?, ?, ?, ?)`,
		id, formatTime(at), report.Beneficiary.Hex(), string(report.Policy),
		len(report.Cleared), len(report.Failed), payload)
	if err != nil {
		return "", fmt.Errorf("journal insert settlement: %w", err)
	}
	j.logger.Debug().Str("id", id).Int("cleared", len(report.Cleared)).Msg("settlement recorded")
	return id, nil
}

// RecordEvents stores events in one transaction. Events already present are
// ignored, so replaying an overlapping batch is safe. It returns the number
// of new rows.
func (j *Journal) RecordEvents(ctx context.Context, events []chain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("journal begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `insert or ignore into events (id, kind, emitter, at, fields) values (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("journal prepare: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, evt := range events {
		fields, err := sonnet.Marshal(evt.Fields)
		if err != nil {
			return 0, fmt.Errorf("journal encode event %s: %w", evt.ID, err)
		}
		res, err := stmt.ExecContext(ctx, evt.ID, evt.Kind, evt.Emitter.Hex(), formatTime(evt.At), fields)
		if err != nil {
			return 0, fmt.Errorf("journal insert event %s: %w", evt.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("journal commit: %w", err)
	}
	return added, nil
}

// ListSpikes returns the newest limit receipts, newest first.
func (j *Journal) ListSpikes(ctx context.Context, limit int) ([]SpikeEntry, error) {
	rows, err := j.db.QueryContext(ctx, `select id, at, payload from spikes order by rowid desc limit ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("journal list spikes: %w", err)
	}
	defer rows.Close()

	var out []SpikeEntry
	for rows.Next() {
		var (
			entry   SpikeEntry
			at      string
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &at, &payload); err != nil {
			return nil, err
		}
		if entry.At, err = parseTime(at); err != nil {
			return nil, err
		}
		if err := sonnet.Unmarshal(payload, &entry.Receipt); err != nil {
			return nil, fmt.Errorf("journal decode spike %s: %w", entry.ID, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ListSettlements returns the newest limit reports, newest first.
func (j *Journal) ListSettlements(ctx context.Context, limit int) ([]SettlementEntry, error) {
	rows, err := j.db.QueryContext(ctx, `select id, at, payload from settlements order by rowid desc limit ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("journal list settlements: %w", err)
	}
	defer rows.Close()

	var out []SettlementEntry
	for rows.Next() {
		var (
			entry   SettlementEntry
			at      string
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &at, &payload); err != nil {
			return nil, err
		}
		if entry.At, err = parseTime(at); err != nil {
			return nil, err
		}
		if err := sonnet.Unmarshal(payload, &entry.Report); err != nil {
			return nil, fmt.Errorf("journal decode settlement %s: %w", entry.ID, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// CountEvents returns how many events of kind are stored; "" counts all.
func (j *Journal) CountEvents(ctx context.Context, kind string) (int, error) {
	var n int
	var err error
	if kind == "" {
		err = j.db.QueryRowContext(ctx, `select count(*) from events`).Scan(&n)
	} else {
		err = j.db.QueryRowContext(ctx, `select count(*) from events where kind = ?`, kind).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("journal count events: %w", err)
	}
	return n, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("journal parse time %q: %w", raw, err)
	}
	return t, nil
}
