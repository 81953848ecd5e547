package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound reports that a referenced duo, habit, or tree record does not
// exist. It always surfaces to the caller; a missing record means a broken
// lifecycle invariant, not a condition to paper over.
var ErrNotFound = errors.New("record not found")

// ErrConflict reports that the atomic credit transaction kept losing to
// concurrent writers after retries. The whole check-in may be retried.
var ErrConflict = errors.New("write conflict")

func LogAndQuery(db *sql.DB, query string, args ...interface{}) (*sql.Rows, error) {
	fmt.Println(query)
	fmt.Println(args...)

	return db.Query(query, args...)
}

func LogAndQueryRow(db *sql.DB, query string, args ...interface{}) *sql.Row {
	fmt.Println(query)
	fmt.Println(args...)

	return db.QueryRow(query, args...)
}

func LogAndExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	fmt.Println(query)
	fmt.Println(args...)

	return db.Exec(query, args...)
}

func LogAndQueryTx(tx *sql.Tx, query string, args ...interface{}) (*sql.Rows, error) {
	fmt.Println(query)
	fmt.Println(args...)

	return tx.Query(query, args...)
}

func LogAndQueryRowTx(tx *sql.Tx, query string, args ...interface{}) *sql.Row {
	fmt.Println(query)
	fmt.Println(args...)

	return tx.QueryRow(query, args...)
}

func LogAndExecTx(tx *sql.Tx, query string, args ...interface{}) (sql.Result, error) {
	fmt.Println(query)
	fmt.Println(args...)

	return tx.Exec(query, args...)
}
