// Package session binds one client connection to the shared Database
// singleton, per spec §4.7 and §9's "pass it explicitly into the session
// rather than storing it globally". It drives the per-statement pipeline
// parse → compile → execute → frame response, and owns the single
// database-wide lock spec §5 requires (one exclusive lock guarding both
// pager and catalog; each statement holds it for its entire duration).
package session

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/lunarisdb/lunaris/internal/catalog"
	"github.com/lunarisdb/lunaris/internal/compiler"
	"github.com/lunarisdb/lunaris/internal/lunarislog"
	"github.com/lunarisdb/lunaris/internal/lunerr"
	"github.com/lunarisdb/lunaris/internal/pager"
	"github.com/lunarisdb/lunaris/internal/sqlparser"
	"github.com/lunarisdb/lunaris/internal/vm"
	"github.com/lunarisdb/lunaris/internal/wire"
)

// Database is the process-wide singleton: one pager, one catalog, one
// compiler, guarded by a single exclusive lock (spec §5). Every
// connection's statements serialize through it.
type Database struct {
	mu       sync.Mutex
	pg       *pager.Pager
	cat      *catalog.Catalog
	comp     *compiler.Compiler
	log      *lunarislog.Logger
	corrupt  bool
}

// Open binds a Database to the file at path.
func Open(path string, log *lunarislog.Logger) (*Database, error) {
	pg, err := pager.Open(path)
	if err != nil {
		return nil, err
	}
	cat := catalog.Open(pg)
	return &Database{pg: pg, cat: cat, comp: compiler.New(cat), log: log}, nil
}

// Close flushes and closes the backing file.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.pg.Close()
}

// Stats reports the pager's current footprint, used by the periodic
// maintenance tick (SPEC_FULL.md §11's cron wiring).
func (db *Database) Stats() pager.Stats {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.pg.Stat()
}

// exec runs one SQL statement against the database under the exclusive
// lock, returning either a row/count result or a classified client error.
// A successful mutating statement's dirty pages are flushed before the
// lock is released (spec §4.1, §4.6).
func (db *Database) exec(sql string) (*vm.Result, *lunerr.Error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.corrupt {
		return nil, lunerr.New(lunerr.CodeInternalCorruption, "database is read-only after a prior corruption error")
	}

	stmt, err := sqlparser.NewParser(sql).ParseStatement()
	if err != nil {
		return nil, lunerr.Wrap(lunerr.CodeParse, err, "%v", err)
	}

	prog, err := db.comp.Compile(stmt)
	if err != nil {
		return nil, classifyCompileError(err)
	}

	res, err := vm.Execute(prog, db.cat, db.pg)
	if err != nil {
		if isCorrupt(err) {
			db.corrupt = true
			return nil, lunerr.Wrap(lunerr.CodeInternalCorruption, err, "database corruption detected, connection rejected")
		}
		return nil, classifyRuntimeError(err)
	}

	if prog.Kind == compiler.KindRowCount {
		if err := db.pg.Flush(); err != nil {
			db.corrupt = true
			return nil, lunerr.Wrap(lunerr.CodeIO, err, "flush failed")
		}
	}

	return res, nil
}

func isCorrupt(err error) bool {
	var c pager.ErrCorrupt
	return errors.As(err, &c)
}

func classifyCompileError(err error) *lunerr.Error {
	switch {
	case errors.As(err, new(compiler.ErrUnknownTable)):
		return lunerr.Wrap(lunerr.CodeUnknownTable, err, "%v", err)
	case errors.As(err, new(compiler.ErrUnknownColumn)):
		return lunerr.Wrap(lunerr.CodeUnknownColumn, err, "%v", err)
	case errors.As(err, new(compiler.ErrTypeMismatch)):
		return lunerr.Wrap(lunerr.CodeTypeMismatch, err, "%v", err)
	case errors.As(err, new(compiler.ErrValueTooLong)):
		return lunerr.Wrap(lunerr.CodeValueTooLong, err, "%v", err)
	case errors.As(err, new(compiler.ErrDuplicateTable)):
		return lunerr.Wrap(lunerr.CodeDuplicateTable, err, "%v", err)
	default:
		return lunerr.Wrap(lunerr.CodeIO, err, "%v", err)
	}
}

func classifyRuntimeError(err error) *lunerr.Error {
	switch {
	case errors.As(err, new(vm.ErrDuplicateKey)):
		return lunerr.Wrap(lunerr.CodeDuplicateKey, err, "%v", err)
	case errors.As(err, new(catalog.ErrNotFound)):
		return lunerr.Wrap(lunerr.CodeUnknownTable, err, "%v", err)
	default:
		return lunerr.Wrap(lunerr.CodeIO, err, "%v", err)
	}
}

// Serve drives one client connection to completion: read request, run the
// statement, write response, repeat until the client disconnects (spec
// §4.7 — per-statement errors keep the connection open; a classified
// InternalCorruption error closes it, since the process marks the
// database read-only going forward).
func Serve(conn net.Conn, db *Database, baseLog *lunarislog.Logger) {
	defer conn.Close()

	sessionID := uuid.New().String()
	log := baseLog.With("conn=" + sessionID)
	log.Infof("connection from %s", conn.RemoteAddr())

	r := bufio.NewReader(conn)
	for {
		sql, err := wire.ReadRequest(r)
		if err != nil {
			if err != io.EOF {
				log.Warnf("read request: %v", err)
			}
			return
		}

		res, cerr := db.exec(sql)
		if cerr != nil {
			log.Errorf("statement failed: %v", cerr)
			if err := wire.WriteError(conn, cerr.Code, cerr.Error()); err != nil {
				log.Warnf("write error response: %v", err)
				return
			}
			if cerr.Code == lunerr.CodeInternalCorruption {
				return
			}
			continue
		}

		if res.Kind == compiler.KindRows {
			err = wire.WriteRows(conn, res.Columns, res.Rows)
		} else {
			err = wire.WriteAffected(conn, res.AffectedCount)
		}
		if err != nil {
			log.Warnf("write response: %v", err)
			return
		}
	}
}
