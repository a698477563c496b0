package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"botevents-api/internal/repository"
)

// Class is the retry classification of a storage error.
type Class int

const (
	// Permanent errors propagate immediately.
	Permanent Class = iota
	// Transient errors are retried after a backoff.
	Transient
	// ConnectionClosed errors trigger a reconnect before the next attempt.
	ConnectionClosed
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case ConnectionClosed:
		return "connection_closed"
	default:
		return "permanent"
	}
}

// Classifier maps an error onto a retry class.
type Classifier func(error) Class

// Policy describes how failed operations are retried. It knows nothing about
// the driver beyond what its Classifier inspects.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Classify    Classifier
}

// LinearBackoff waits base × attempt before attempt+1.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// DefaultPolicy retries each operation up to 3 times at 500ms × attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(500 * time.Millisecond),
		Classify:    Classify,
	}
}

// ConnectPolicy retries the initial connection up to 5 times at 2s × attempt.
func ConnectPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Backoff:     LinearBackoff(2 * time.Second),
		Classify: func(err error) Class {
			if errors.Is(err, context.Canceled) {
				return Permanent
			}
			return Transient
		},
	}
}

// Classify recognises transient and dropped-connection errors from the pgx,
// go-sql-driver and modernc sqlite drivers. Everything else is permanent.
func Classify(err error) Class {
	if err == nil || errors.Is(err, context.Canceled) {
		return Permanent
	}

	switch {
	case errors.Is(err, repository.ErrNotConnected),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, mysql.ErrInvalidConn):
		return ConnectionClosed
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "conn closed") || strings.Contains(msg, "closed the connection") ||
		strings.Contains(msg, "connection is closed") {
		return ConnectionClosed
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return ConnectionClosed
		case pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return ConnectionClosed
		case pgErr.Code == "40001", pgErr.Code == "40P01": // serialization failure, deadlock
			return Transient
		}
		return Permanent
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock
			return Transient
		case 2006, 2013: // server gone away, lost connection
			return ConnectionClosed
		}
		return Permanent
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return Transient
		}
		return Permanent
	}

	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return Transient
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return ConnectionClosed
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Transient
	}

	return Permanent
}
