package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/pachmu/job_finder_bot/internal/jobs"
)

// SQLiteDB stores saved postings and applied identifiers.
type SQLiteDB struct {
	db *sql.DB
}

var _ jobs.Storage = (*SQLiteDB)(nil)

// NewSQLiteDB opens path and creates the tables. In-memory datasources live
// as long as the process.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	tables := []string{
		`CREATE TABLE IF NOT EXISTS saved_postings (
		"seq" integer NOT NULL PRIMARY KEY AUTOINCREMENT,
		"id" TEXT NOT NULL UNIQUE,
		"title" TEXT,
		"company" TEXT,
		"salary" TEXT
	  );`,
		`CREATE TABLE IF NOT EXISTS applied_postings (
		"seq" integer NOT NULL PRIMARY KEY AUTOINCREMENT,
		"id" TEXT NOT NULL UNIQUE
	  );`,
	}
	for _, q := range tables {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	logrus.WithField("datasource", path).Info("Storage ready")
	return &SQLiteDB{
		db: db,
	}, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) AddSaved(p jobs.Posting) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO saved_postings(id, title, company, salary) VALUES (?, ?, ?, ?)`,
		p.ID, p.Title, p.Company, p.Salary,
	)
	if err != nil {
		return fmt.Errorf("failed to insert saved posting: %w", err)
	}
	return nil
}

func (s *SQLiteDB) RemoveSaved(id string) error {
	_, err := s.db.Exec(`DELETE FROM saved_postings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete saved posting: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetAllSaved() ([]jobs.Posting, error) {
	rows, err := s.db.Query(`SELECT id, title, company, salary FROM saved_postings ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved postings: %w", err)
	}
	defer rows.Close()
	var saved []jobs.Posting
	for rows.Next() {
		p := jobs.Posting{}
		if err := rows.Scan(&p.ID, &p.Title, &p.Company, &p.Salary); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		saved = append(saved, p)
	}
	return saved, rows.Err()
}

func (s *SQLiteDB) CheckSaved(id string) (bool, error) {
	return s.exists(`SELECT 1 FROM saved_postings WHERE id = ?`, id)
}

func (s *SQLiteDB) MarkApplied(id string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO applied_postings(id) VALUES (?)`, id)
	if err != nil {
		return fmt.Errorf("failed to insert applied posting: %w", err)
	}
	return nil
}

func (s *SQLiteDB) CheckApplied(id string) (bool, error) {
	return s.exists(`SELECT 1 FROM applied_postings WHERE id = ?`, id)
}

func (s *SQLiteDB) GetAllApplied() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM applied_postings ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied postings: %w", err)
	}
	defer rows.Close()
	var applied []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		applied = append(applied, id)
	}
	return applied, rows.Err()
}

func (s *SQLiteDB) exists(query, id string) (bool, error) {
	var one int
	err := s.db.QueryRow(query, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query posting %s: %w", id, err)
	}
	return true, nil
}
