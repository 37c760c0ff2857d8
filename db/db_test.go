package db

import (
	"database/sql"
	"testing"
	"time"

	"github.com/deemkeen/inkwell/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DB {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db := &DB{db: sqlDB}
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func makeTestAccount(t *testing.T, db *DB, username string) *domain.Account {
	acc := &domain.Account{
		Id:                uuid.New(),
		Username:          username,
		DisplayName:       "Test " + username,
		Summary:           "a test account",
		AuthToken:         "token-" + username,
		FederationEnabled: true,
		Visibility:        domain.VisibilityPublic,
		CreatedAt:         time.Now(),
	}
	if err := db.CreateAccount(acc); err != nil {
		t.Fatalf("Failed to create account %s: %v", username, err)
	}
	return acc
}

func makeTestEntry(t *testing.T, db *DB, acc *domain.Account, title string, visibility string, createdAt time.Time) *domain.Entry {
	entry := &domain.Entry{
		Id:         uuid.New(),
		UserId:     acc.Id,
		Title:      title,
		Content:    "some *markdown* content",
		Visibility: visibility,
		CreatedAt:  createdAt,
	}
	if err := db.CreateEntry(entry); err != nil {
		t.Fatalf("Failed to create entry %s: %v", title, err)
	}
	return entry
}

func TestCreateAndReadAccount(t *testing.T) {
	db := setupTestDB(t)
	acc := makeTestAccount(t, db, "alice")

	err, got := db.ReadAccByUsername("alice")
	if err != nil {
		t.Fatalf("ReadAccByUsername failed: %v", err)
	}
	if got.Id != acc.Id {
		t.Errorf("Expected id %s, got %s", acc.Id, got.Id)
	}
	if got.DisplayName != "Test alice" {
		t.Errorf("Expected display name 'Test alice', got %q", got.DisplayName)
	}
	if !got.FederationEnabled {
		t.Error("Expected federation to be enabled")
	}

	err, byId := db.ReadAccById(acc.Id)
	if err != nil || byId.Username != "alice" {
		t.Errorf("ReadAccById failed: %v", err)
	}
}

func TestReadAccByAuthToken(t *testing.T) {
	db := setupTestDB(t)
	acc := makeTestAccount(t, db, "alice")

	err, got := db.ReadAccByAuthToken("token-alice")
	if err != nil {
		t.Fatalf("ReadAccByAuthToken failed: %v", err)
	}
	if got.Id != acc.Id {
		t.Errorf("Expected id %s, got %s", acc.Id, got.Id)
	}

	err, missing := db.ReadAccByAuthToken("bogus")
	if err == nil && missing != nil {
		t.Error("Expected no account for bogus token")
	}
}

func TestUpdateAccProfile(t *testing.T) {
	db := setupTestDB(t)
	acc := makeTestAccount(t, db, "alice")

	acc.DisplayName = "Alice Updated"
	acc.Summary = "new bio"
	acc.Visibility = domain.VisibilityRestricted
	if err := db.UpdateAccProfile(acc); err != nil {
		t.Fatalf("UpdateAccProfile failed: %v", err)
	}

	_, got := db.ReadAccByUsername("alice")
	if got.DisplayName != "Alice Updated" || got.Summary != "new bio" {
		t.Errorf("Profile update not persisted: %+v", got)
	}
	if got.Visibility != domain.VisibilityRestricted {
		t.Errorf("Expected restricted visibility, got %q", got.Visibility)
	}
}

func TestUpdateAccKeys(t *testing.T) {
	db := setupTestDB(t)
	acc := makeTestAccount(t, db, "alice")

	if err := db.UpdateAccKeys(acc.Id, "PUBLIC", "PRIVATE"); err != nil {
		t.Fatalf("UpdateAccKeys failed: %v", err)
	}

	_, got := db.ReadAccByUsername("alice")
	if got.WebPublicKey != "PUBLIC" || got.WebPrivateKey != "PRIVATE" {
		t.Errorf("Keys not persisted: %+v", got)
	}
}

func TestEntryLifecycle(t *testing.T) {
	db := setupTestDB(t)
	acc := makeTestAccount(t, db, "alice")
	entry := makeTestEntry(t, db, acc, "First Post", domain.EntryVisibilityPublic, time.Now())

	err, got := db.ReadEntryById(entry.Id)
	if err != nil {
		t.Fatalf("ReadEntryById failed: %v", err)
	}
	if got.Title != "First Post" {
		t.Errorf("Expected title 'First Post', got %q", got.Title)
	}
	if got.CreatedBy != "alice" {
		t.Errorf("Expected created_by 'alice', got %q", got.CreatedBy)
	}
	if got.UpdatedAt != nil {
		t.Error("Fresh entry should have no updated_at")
	}

	now := time.Now()
	got.Title = "Edited Post"
	got.UpdatedAt = &now
	if err := db.UpdateEntry(got); err != nil {
		t.Fatalf("UpdateEntry failed: %v", err)
	}

	_, edited := db.ReadEntryById(entry.Id)
	if edited.Title != "Edited Post" {
		t.Errorf("Expected edited title, got %q", edited.Title)
	}
	if edited.UpdatedAt == nil {
		t.Error("Edited entry should carry updated_at")
	}

	if err := db.DeleteEntry(entry.Id, acc.Id); err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}
	err, gone := db.ReadEntryById(entry.Id)
	if err == nil && gone != nil {
		t.Error("Deleted entry should not be readable")
	}
}

func TestDeleteEntryWrongOwner(t *testing.T) {
	db := setupTestDB(t)
	alice := makeTestAccount(t, db, "alice")
	bob := makeTestAccount(t, db, "bob")
	entry := makeTestEntry(t, db, alice, "Private Thoughts", domain.EntryVisibilityPublic, time.Now())

	// Scoped to the owning user, deleting with another id is a no-op.
	if err := db.DeleteEntry(entry.Id, bob.Id); err != nil {
		t.Fatalf("DeleteEntry returned error: %v", err)
	}
	err, still := db.ReadEntryById(entry.Id)
	if err != nil || still == nil {
		t.Error("Entry should survive a delete by the wrong owner")
	}
}

func TestReadPublicEntriesByUsername(t *testing.T) {
	db := setupTestDB(t)
	acc := makeTestAccount(t, db, "alice")

	base := time.Now()
	makeTestEntry(t, db, acc, "Public One", domain.EntryVisibilityPublic, base.Add(-3*time.Hour))
	makeTestEntry(t, db, acc, "Followers Only", domain.EntryVisibilityFollowers, base.Add(-2*time.Hour))
	makeTestEntry(t, db, acc, "Private", domain.EntryVisibilityPrivate, base.Add(-1*time.Hour))
	makeTestEntry(t, db, acc, "Public Two", domain.EntryVisibilityPublic, base)

	err, entries := db.ReadPublicEntriesByUsername("alice", 10, 0)
	if err != nil {
		t.Fatalf("ReadPublicEntriesByUsername failed: %v", err)
	}
	if len(*entries) != 2 {
		t.Fatalf("Expected 2 public entries, got %d", len(*entries))
	}
	if (*entries)[0].Title != "Public Two" {
		t.Errorf("Expected newest first, got %q", (*entries)[0].Title)
	}

	err, count := db.CountPublicEntriesByUsername("alice")
	if err != nil || count != 2 {
		t.Errorf("Expected count 2, got %d (err %v)", count, err)
	}
}

func TestReadTimelineEntriesExcludesPrivate(t *testing.T) {
	db := setupTestDB(t)
	acc := makeTestAccount(t, db, "alice")

	makeTestEntry(t, db, acc, "Public", domain.EntryVisibilityPublic, time.Now())
	makeTestEntry(t, db, acc, "Followers", domain.EntryVisibilityFollowers, time.Now())
	makeTestEntry(t, db, acc, "Private", domain.EntryVisibilityPrivate, time.Now())

	err, entries := db.ReadTimelineEntriesByUserId(acc.Id)
	if err != nil {
		t.Fatalf("ReadTimelineEntriesByUserId failed: %v", err)
	}
	if len(*entries) != 2 {
		t.Fatalf("Expected 2 timeline entries, got %d", len(*entries))
	}
	for _, entry := range *entries {
		if entry.Visibility == domain.EntryVisibilityPrivate {
			t.Error("Private entry leaked into timeline")
		}
	}
}

func TestReadEntriesByUserIdIncludesAll(t *testing.T) {
	db := setupTestDB(t)
	acc := makeTestAccount(t, db, "alice")

	makeTestEntry(t, db, acc, "Public", domain.EntryVisibilityPublic, time.Now())
	makeTestEntry(t, db, acc, "Private", domain.EntryVisibilityPrivate, time.Now())

	err, entries := db.ReadEntriesByUserId(acc.Id)
	if err != nil {
		t.Fatalf("ReadEntriesByUserId failed: %v", err)
	}
	if len(*entries) != 2 {
		t.Errorf("Owner should see all entries, got %d", len(*entries))
	}
}
