package db

import (
	"database/sql"

	"github.com/deemkeen/inkwell/domain"
	"github.com/google/uuid"
)

// Follower queries
const (
	// The insert is idempotent: duplicate Follow activities for the same
	// (user, actor) pair must not error.
	sqlInsertFollower = `INSERT INTO followers(id, user_id, actor_uri, inbox_uri, shared_inbox_uri, accepted, follow_uri, created_at)
                        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                        ON CONFLICT(user_id, actor_uri) DO NOTHING`

	sqlSelectFollowerColumns     = `id, user_id, actor_uri, inbox_uri, shared_inbox_uri, accepted, follow_uri, created_at`
	sqlSelectFollowerByUserActor = `SELECT ` + sqlSelectFollowerColumns + ` FROM followers WHERE user_id = ? AND actor_uri = ?`
	sqlSelectFollowersByUserId   = `SELECT ` + sqlSelectFollowerColumns + ` FROM followers WHERE user_id = ? ORDER BY created_at DESC`
	sqlSelectAcceptedFollowers   = `SELECT ` + sqlSelectFollowerColumns + ` FROM followers WHERE user_id = ? AND accepted = 1 ORDER BY created_at DESC`
	sqlUpdateFollowerAccepted    = `UPDATE followers SET accepted = 1 WHERE user_id = ? AND actor_uri = ?`
	sqlDeleteFollowerByUserActor = `DELETE FROM followers WHERE user_id = ? AND actor_uri = ?`
)

func (db *DB) CreateFollower(f *domain.Follower) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFollower,
			f.Id.String(),
			f.UserId.String(),
			f.ActorURI,
			f.InboxURI,
			f.SharedInboxURI,
			f.Accepted,
			f.FollowURI,
			f.CreatedAt,
		)
		return err
	})
}

func scanFollower(scan func(dest ...interface{}) error) (error, *domain.Follower) {
	var f domain.Follower
	var idStr, userIdStr string
	err := scan(
		&idStr,
		&userIdStr,
		&f.ActorURI,
		&f.InboxURI,
		&f.SharedInboxURI,
		&f.Accepted,
		&f.FollowURI,
		&f.CreatedAt,
	)
	if err != nil {
		return err, nil
	}
	f.Id, _ = uuid.Parse(idStr)
	f.UserId, _ = uuid.Parse(userIdStr)
	return nil, &f
}

func (db *DB) ReadFollowerByUserAndActor(userId uuid.UUID, actorURI string) (error, *domain.Follower) {
	row := db.db.QueryRow(sqlSelectFollowerByUserActor, userId.String(), actorURI)
	return scanFollower(row.Scan)
}

func (db *DB) readFollowers(query string, args ...interface{}) (error, *[]domain.Follower) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var followers []domain.Follower
	for rows.Next() {
		err, f := scanFollower(rows.Scan)
		if err != nil {
			return err, &followers
		}
		followers = append(followers, *f)
	}
	if err = rows.Err(); err != nil {
		return err, &followers
	}
	return nil, &followers
}

func (db *DB) ReadFollowersByUserId(userId uuid.UUID) (error, *[]domain.Follower) {
	return db.readFollowers(sqlSelectFollowersByUserId, userId.String())
}

func (db *DB) ReadAcceptedFollowersByUserId(userId uuid.UUID) (error, *[]domain.Follower) {
	return db.readFollowers(sqlSelectAcceptedFollowers, userId.String())
}

func (db *DB) AcceptFollower(userId uuid.UUID, actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateFollowerAccepted, userId.String(), actorURI)
		return err
	})
}

func (db *DB) DeleteFollowerByUserAndActor(userId uuid.UUID, actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowerByUserActor, userId.String(), actorURI)
		return err
	})
}

// Following queries
const (
	sqlInsertFollowing = `INSERT INTO following(id, user_id, target_actor_uri, pending, follow_uri, created_at)
                        VALUES (?, ?, ?, ?, ?, ?)
                        ON CONFLICT(user_id, target_actor_uri) DO NOTHING`

	sqlSelectFollowingColumns      = `id, user_id, target_actor_uri, pending, follow_uri, created_at`
	sqlSelectFollowingByUserTarget = `SELECT ` + sqlSelectFollowingColumns + ` FROM following WHERE user_id = ? AND target_actor_uri = ?`
	sqlSelectFollowingByUserId     = `SELECT ` + sqlSelectFollowingColumns + ` FROM following WHERE user_id = ? ORDER BY created_at DESC`
	sqlUpdateFollowingAccepted     = `UPDATE following SET pending = 0 WHERE user_id = ? AND target_actor_uri = ?`
	sqlUpdateAnyPendingFollowing   = `UPDATE following SET pending = 0 WHERE target_actor_uri = ? AND pending = 1`
	sqlDeleteFollowingByUserTarget = `DELETE FROM following WHERE user_id = ? AND target_actor_uri = ?`
	sqlDeleteAnyPendingFollowing   = `DELETE FROM following WHERE target_actor_uri = ? AND pending = 1`
)

func (db *DB) CreateFollowing(f *domain.Following) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		return insertFollowing(tx, f)
	})
}

func insertFollowing(tx *sql.Tx, f *domain.Following) error {
	_, err := tx.Exec(sqlInsertFollowing,
		f.Id.String(),
		f.UserId.String(),
		f.TargetActorURI,
		f.Pending,
		f.FollowURI,
		f.CreatedAt,
	)
	return err
}

func scanFollowing(scan func(dest ...interface{}) error) (error, *domain.Following) {
	var f domain.Following
	var idStr, userIdStr string
	err := scan(
		&idStr,
		&userIdStr,
		&f.TargetActorURI,
		&f.Pending,
		&f.FollowURI,
		&f.CreatedAt,
	)
	if err != nil {
		return err, nil
	}
	f.Id, _ = uuid.Parse(idStr)
	f.UserId, _ = uuid.Parse(userIdStr)
	return nil, &f
}

func (db *DB) ReadFollowingByUserAndTarget(userId uuid.UUID, targetActorURI string) (error, *domain.Following) {
	row := db.db.QueryRow(sqlSelectFollowingByUserTarget, userId.String(), targetActorURI)
	return scanFollowing(row.Scan)
}

func (db *DB) ReadFollowingByUserId(userId uuid.UUID) (error, *[]domain.Following) {
	rows, err := db.db.Query(sqlSelectFollowingByUserId, userId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var following []domain.Following
	for rows.Next() {
		err, f := scanFollowing(rows.Scan)
		if err != nil {
			return err, &following
		}
		following = append(following, *f)
	}
	if err = rows.Err(); err != nil {
		return err, &following
	}
	return nil, &following
}

func (db *DB) AcceptFollowing(userId uuid.UUID, targetActorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateFollowingAccepted, userId.String(), targetActorURI)
		return err
	})
}

// AcceptAnyPendingFollowingByTarget flips every pending follow aimed at
// the given actor. Fallback path for Accept activities whose embedded
// Follow object does not identify the original local actor.
func (db *DB) AcceptAnyPendingFollowingByTarget(targetActorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateAnyPendingFollowing, targetActorURI)
		return err
	})
}

func (db *DB) DeleteFollowingByUserAndTarget(userId uuid.UUID, targetActorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteFollowingByUserTarget, userId.String(), targetActorURI)
		return err
	})
}

// DeleteAnyPendingFollowingByTarget is the Reject counterpart of the
// Accept fallback: the row is removed instead of flipped.
func (db *DB) DeleteAnyPendingFollowingByTarget(targetActorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteAnyPendingFollowing, targetActorURI)
		return err
	})
}

// CreateLocalFollowPair writes both sides of a local-to-local follow in
// one logical operation: the follower's Following row (not pending) and
// the target's Follower row (accepted).
func (db *DB) CreateLocalFollowPair(following *domain.Following, follower *domain.Follower) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if err := insertFollowing(tx, following); err != nil {
			return err
		}
		_, err := tx.Exec(sqlInsertFollower,
			follower.Id.String(),
			follower.UserId.String(),
			follower.ActorURI,
			follower.InboxURI,
			follower.SharedInboxURI,
			follower.Accepted,
			follower.FollowURI,
			follower.CreatedAt,
		)
		return err
	})
}

// DeleteLocalFollowPair removes both sides of a local-to-local follow.
func (db *DB) DeleteLocalFollowPair(userId uuid.UUID, targetActorURI string, targetUserId uuid.UUID, actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlDeleteFollowingByUserTarget, userId.String(), targetActorURI); err != nil {
			return err
		}
		_, err := tx.Exec(sqlDeleteFollowerByUserActor, targetUserId.String(), actorURI)
		return err
	})
}
