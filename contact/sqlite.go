package contact

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/chanderlud/audio-chat/crypto"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore keeps contacts in a SQLite database. When opened with a
// passphrase, secrets are sealed with a key derived from it.
type SQLiteStore struct {
	db     *sql.DB
	sealer *crypto.SecretSealer
}

// OpenSQLiteStore opens or creates the database at path. An empty passphrase
// stores secrets in the clear.
func OpenSQLiteStore(path string, passphrase []byte) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contact database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if len(passphrase) > 0 {
		salt, err := s.salt()
		if err != nil {
			db.Close()
			return nil, err
		}
		s.sealer, err = crypto.NewSecretSealer(passphrase, salt)
		if err != nil {
			db.Close()
			return nil, err
		}
		if salt == nil {
			if _, err := db.Exec(`INSERT INTO meta (key, value) VALUES ('salt', ?)`, s.sealer.Salt()); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to store salt: %w", err)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "OpenSQLiteStore",
		"path":     path,
		"sealed":   s.sealer != nil,
	}).Info("Contact database opened")

	return s, nil
}

func (s *SQLiteStore) createTables() error {
	schema := `
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS contacts (
			nickname TEXT PRIMARY KEY,
			ip TEXT NOT NULL,
			port INTEGER NOT NULL,
			secret BLOB NOT NULL,
			sealed INTEGER NOT NULL DEFAULT 0
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create contact tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) salt() ([]byte, error) {
	var salt []byte
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'salt'`).Scan(&salt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return salt, err
}

// Load returns every stored record.
func (s *SQLiteStore) Load() ([]Record, error) {
	rows, err := s.db.Query(`SELECT nickname, ip, port, secret, sealed FROM contacts ORDER BY nickname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var secret []byte
		var sealed int
		if err := rows.Scan(&rec.Nickname, &rec.IP, &rec.Port, &secret, &sealed); err != nil {
			return nil, err
		}

		if sealed != 0 {
			if s.sealer == nil {
				return nil, fmt.Errorf("contact %s has a sealed secret and no passphrase was given", rec.Nickname)
			}
			secret, err = s.sealer.Open(secret)
			if err != nil {
				return nil, fmt.Errorf("failed to open secret for %s: %w", rec.Nickname, err)
			}
		}
		rec.Secret = string(secret)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Save inserts or updates a record.
func (s *SQLiteStore) Save(rec Record) error {
	secret := []byte(rec.Secret)
	sealed := 0
	if s.sealer != nil {
		var err error
		secret, err = s.sealer.Seal(secret)
		if err != nil {
			return err
		}
		sealed = 1
	}

	query := `
		INSERT INTO contacts (nickname, ip, port, secret, sealed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(nickname) DO UPDATE SET
			ip = excluded.ip,
			port = excluded.port,
			secret = excluded.secret,
			sealed = excluded.sealed
	`
	_, err := s.db.Exec(query, rec.Nickname, rec.IP, rec.Port, secret, sealed)
	return err
}

// Delete removes a record.
func (s *SQLiteStore) Delete(nickname string) error {
	res, err := s.db.Exec(`DELETE FROM contacts WHERE nickname = ?`, nickname)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, nickname)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
