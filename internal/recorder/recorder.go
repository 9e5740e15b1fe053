// Package recorder persists the comms log of a simulation run: every
// routed datagram with its resolved recipients, and every outage
// transition. Writes go through a single writer goroutine so delivery
// callbacks never block on sqlite.
package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/swarm-comms-simulator/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS datagrams (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	sim_time   TEXT NOT NULL,
	src        TEXT NOT NULL,
	dst        TEXT NOT NULL,
	port       INTEGER NOT NULL,
	size       INTEGER NOT NULL,
	recipients TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS outages (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	sim_time TEXT NOT NULL,
	address  TEXT NOT NULL,
	event    TEXT NOT NULL
);
`

type reqKind int

const (
	reqDatagram reqKind = iota + 1
	reqOutage
)

type req struct {
	kind reqKind

	simTime time.Time
	src     string
	dst     string
	port    int
	size    int
	recips  string

	address string
	event   string
}

// SQLiteRecorder implements core.DeliveryRecorder on a sqlite file.
type SQLiteRecorder struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Int64
}

// Open creates (or reuses) the database at path and starts the writer.
func Open(path string) (*SQLiteRecorder, error) {
	if path == "" {
		return nil, fmt.Errorf("recorder: empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: create schema: %w", err)
	}

	r := &SQLiteRecorder{
		db: db,
		ch: make(chan req, 1024),
	}
	r.wg.Add(1)
	go r.writeLoop()
	return r, nil
}

// RecordDatagram persists one routed datagram. Non-blocking: if the
// writer queue is full the record is counted as lost rather than
// stalling the dispatch pass.
func (r *SQLiteRecorder) RecordDatagram(simTime time.Time, d core.Datagram) {
	if r.closed.Load() {
		return
	}
	r.enqueue(req{
		kind:    reqDatagram,
		simTime: simTime,
		src:     d.SrcAddress,
		dst:     d.DstAddress,
		port:    d.DstPort,
		size:    len(d.Payload),
		recips:  strings.Join(d.Recipients, ","),
	})
}

// RecordOutage persists one outage transition.
func (r *SQLiteRecorder) RecordOutage(simTime time.Time, address string, entered bool) {
	if r.closed.Load() {
		return
	}
	event := "cleared"
	if entered {
		event = "entered"
	}
	r.enqueue(req{
		kind:    reqOutage,
		simTime: simTime,
		address: address,
		event:   event,
	})
}

// Dropped returns how many records were lost to a full writer queue.
func (r *SQLiteRecorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains pending writes and closes the database.
func (r *SQLiteRecorder) Close() error {
	var err error
	r.once.Do(func() {
		r.closed.Store(true)
		close(r.ch)
		r.wg.Wait()
		err = r.db.Close()
	})
	return err
}

func (r *SQLiteRecorder) enqueue(rq req) {
	select {
	case r.ch <- rq:
	default:
		r.dropped.Add(1)
	}
}

func (r *SQLiteRecorder) writeLoop() {
	defer r.wg.Done()
	for rq := range r.ch {
		switch rq.kind {
		case reqDatagram:
			_, _ = r.db.Exec(
				`INSERT INTO datagrams (sim_time, src, dst, port, size, recipients) VALUES (?, ?, ?, ?, ?, ?)`,
				rq.simTime.UTC().Format(time.RFC3339Nano),
				rq.src, rq.dst, rq.port, rq.size, rq.recips,
			)
		case reqOutage:
			_, _ = r.db.Exec(
				`INSERT INTO outages (sim_time, address, event) VALUES (?, ?, ?)`,
				rq.simTime.UTC().Format(time.RFC3339Nano),
				rq.address, rq.event,
			)
		}
	}
}
