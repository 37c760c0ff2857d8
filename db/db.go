package db

import (
	"context"
	"database/sql"
	"sync"

	"github.com/deemkeen/inkwell/domain"
	"github.com/google/uuid"
	"log"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
	"time"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

const (
	//Accounts
	sqlInsertAccount = `INSERT INTO accounts(id, username, display_name, summary, web_public_key, web_private_key, auth_token, federation_enabled, visibility, created_at)
                        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectAccountColumns = `id, username, display_name, summary, web_public_key, web_private_key, auth_token, federation_enabled, visibility, created_at`
	sqlSelectAccById        = `SELECT ` + sqlSelectAccountColumns + ` FROM accounts WHERE id = ?`
	sqlSelectAccByUsername  = `SELECT ` + sqlSelectAccountColumns + ` FROM accounts WHERE username = ?`
	sqlSelectAccByAuthToken = `SELECT ` + sqlSelectAccountColumns + ` FROM accounts WHERE auth_token = ?`
	sqlUpdateAccProfile     = `UPDATE accounts SET display_name = ?, summary = ?, visibility = ?, federation_enabled = ? WHERE id = ?`
	sqlUpdateAccKeys        = `UPDATE accounts SET web_public_key = ?, web_private_key = ? WHERE id = ?`
	sqlCountAccounts        = `SELECT count(*) FROM accounts`

	//Entries
	sqlInsertEntry = `INSERT INTO entries(id, user_id, title, content, visibility, activity_uri, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateEntry = `UPDATE entries SET title = ?, content = ?, visibility = ?, updated_at = ? WHERE id = ? AND user_id = ?`
	sqlDeleteEntry = `DELETE FROM entries WHERE id = ? AND user_id = ?`

	sqlSelectEntryColumns = `entries.id, entries.user_id, accounts.username, entries.title, entries.content, entries.visibility, entries.activity_uri, entries.created_at, entries.updated_at`
	sqlEntryJoin          = ` FROM entries INNER JOIN accounts ON accounts.id = entries.user_id `

	sqlSelectEntryById = `SELECT ` + sqlSelectEntryColumns + sqlEntryJoin + `WHERE entries.id = ?`

	sqlSelectEntriesByUserId = `SELECT ` + sqlSelectEntryColumns + sqlEntryJoin + `
                        WHERE entries.user_id = ?
                        ORDER BY entries.created_at DESC`

	sqlSelectPublicEntriesByUsername = `SELECT ` + sqlSelectEntryColumns + sqlEntryJoin + `
                        WHERE accounts.username = ? AND entries.visibility = 'public'
                        ORDER BY entries.created_at DESC
                        LIMIT ? OFFSET ?`

	sqlCountPublicEntriesByUsername = `SELECT count(*)` + sqlEntryJoin + `
                        WHERE accounts.username = ? AND entries.visibility = 'public'`

	sqlSelectTimelineEntriesByUserId = `SELECT ` + sqlSelectEntryColumns + sqlEntryJoin + `
                        WHERE entries.user_id = ? AND entries.visibility IN ('public', 'followers')
                        ORDER BY entries.created_at DESC`
)

func (db *DB) CreateAccount(acc *domain.Account) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertAccount,
			acc.Id.String(),
			acc.Username,
			acc.DisplayName,
			acc.Summary,
			acc.WebPublicKey,
			acc.WebPrivateKey,
			acc.AuthToken,
			acc.FederationEnabled,
			acc.Visibility,
			acc.CreatedAt,
		)
		return err
	})
}

func (db *DB) scanAccount(row *sql.Row) (error, *domain.Account) {
	var acc domain.Account
	var idStr string
	err := row.Scan(
		&idStr,
		&acc.Username,
		&acc.DisplayName,
		&acc.Summary,
		&acc.WebPublicKey,
		&acc.WebPrivateKey,
		&acc.AuthToken,
		&acc.FederationEnabled,
		&acc.Visibility,
		&acc.CreatedAt,
	)
	if err != nil {
		return err, nil
	}
	acc.Id, _ = uuid.Parse(idStr)
	return nil, &acc
}

func (db *DB) ReadAccById(id uuid.UUID) (error, *domain.Account) {
	return db.scanAccount(db.db.QueryRow(sqlSelectAccById, id.String()))
}

func (db *DB) ReadAccByUsername(username string) (error, *domain.Account) {
	return db.scanAccount(db.db.QueryRow(sqlSelectAccByUsername, username))
}

func (db *DB) ReadAccByAuthToken(token string) (error, *domain.Account) {
	return db.scanAccount(db.db.QueryRow(sqlSelectAccByAuthToken, token))
}

func (db *DB) CountAccounts() (error, int) {
	var count int
	if err := db.db.QueryRow(sqlCountAccounts).Scan(&count); err != nil {
		return err, 0
	}
	return nil, count
}

func (db *DB) UpdateAccProfile(acc *domain.Account) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateAccProfile,
			acc.DisplayName,
			acc.Summary,
			acc.Visibility,
			acc.FederationEnabled,
			acc.Id.String(),
		)
		return err
	})
}

func (db *DB) UpdateAccKeys(id uuid.UUID, publicKey string, privateKey string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateAccKeys, publicKey, privateKey, id.String())
		return err
	})
}

func (db *DB) CreateEntry(entry *domain.Entry) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertEntry,
			entry.Id.String(),
			entry.UserId.String(),
			entry.Title,
			entry.Content,
			entry.Visibility,
			entry.ActivityURI,
			entry.CreatedAt,
		)
		return err
	})
}

func (db *DB) UpdateEntry(entry *domain.Entry) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateEntry,
			entry.Title,
			entry.Content,
			entry.Visibility,
			time.Now(),
			entry.Id.String(),
			entry.UserId.String(),
		)
		return err
	})
}

func (db *DB) DeleteEntry(id uuid.UUID, userId uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteEntry, id.String(), userId.String())
		return err
	})
}

func scanEntry(scan func(dest ...interface{}) error) (error, *domain.Entry) {
	var entry domain.Entry
	var idStr, userIdStr string
	err := scan(
		&idStr,
		&userIdStr,
		&entry.CreatedBy,
		&entry.Title,
		&entry.Content,
		&entry.Visibility,
		&entry.ActivityURI,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return err, nil
	}
	entry.Id, _ = uuid.Parse(idStr)
	entry.UserId, _ = uuid.Parse(userIdStr)
	return nil, &entry
}

func (db *DB) ReadEntryById(id uuid.UUID) (error, *domain.Entry) {
	row := db.db.QueryRow(sqlSelectEntryById, id.String())
	return scanEntry(row.Scan)
}

func (db *DB) readEntries(query string, args ...interface{}) (error, *[]domain.Entry) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		err, entry := scanEntry(rows.Scan)
		if err != nil {
			return err, &entries
		}
		entries = append(entries, *entry)
	}
	if err = rows.Err(); err != nil {
		return err, &entries
	}
	return nil, &entries
}

func (db *DB) ReadEntriesByUserId(userId uuid.UUID) (error, *[]domain.Entry) {
	return db.readEntries(sqlSelectEntriesByUserId, userId.String())
}

func (db *DB) ReadPublicEntriesByUsername(username string, limit int, offset int) (error, *[]domain.Entry) {
	return db.readEntries(sqlSelectPublicEntriesByUsername, username, limit, offset)
}

func (db *DB) CountPublicEntriesByUsername(username string) (error, int) {
	var count int
	err := db.db.QueryRow(sqlCountPublicEntriesByUsername, username).Scan(&count)
	return err, count
}

// ReadTimelineEntriesByUserId returns the entries a follower may see:
// public and followers visibility, never private.
func (db *DB) ReadTimelineEntriesByUserId(userId uuid.UUID) (error, *[]domain.Entry) {
	return db.readEntries(sqlSelectTimelineEntriesByUserId, userId.String())
}

func GetDB() *DB {
	dbOnce.Do(func() {
		// Open database connection
		sqlDB, err := sql.Open("sqlite", ResolveDatabasePath())
		if err != nil {
			panic(err)
		}

		// Configure connection pool for concurrent access
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)

		var journalMode string
		err = sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
		if err != nil {
			log.Printf("Warning: Failed to enable WAL mode: %v", err)
		} else {
			log.Printf("Database journal mode: %s", journalMode)
		}

		// Optimize PRAGMAs for the federation workload
		sqlDB.Exec("PRAGMA synchronous = NORMAL")
		sqlDB.Exec("PRAGMA temp_store = MEMORY")
		sqlDB.Exec("PRAGMA busy_timeout = 5000")
		sqlDB.Exec("PRAGMA foreign_keys = ON")

		dbInstance = &DB{db: sqlDB}

		if err := dbInstance.RunMigrations(); err != nil {
			panic(err)
		}
	})

	return dbInstance
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			tx.Rollback()
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}
