//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"feed-lab/domain/dm"
	"feed-lab/errors"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	CreateUser(username, hashedPassword string) (User, error)
	GetUserByUsername(username string) (User, error)
	GetUserByID(id dm.UserID) (User, error)
}

// User is the repository-level representation of an account.
// Account management is a collaborator of the DM subsystem; only what the
// subsystem needs is stored here.
type User struct {
	ID           dm.UserID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 16)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

func (r *UserRepository) Close() error {
	return r.seq.Release()
}

// CreateUser persists the user under two keys, one per lookup path:
// "user:name:{username}" for login and "user:id:{id}" for display-name
// resolution during fan-out.
func (r *UserRepository) CreateUser(username, hashedPassword string) (User, error) {
	next, err := r.seq.Next()
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	user := User{
		ID:           dm.UserID(next + 1),
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(user)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		nameKey := []byte("user:name:" + username)
		if _, err := txn.Get(nameKey); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(nameKey, data); err != nil {
			return err
		}
		return txn.Set(idKey(user.ID), data)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetUserByUsername(username string) (User, error) {
	return r.get([]byte("user:name:" + username))
}

func (r *UserRepository) GetUserByID(id dm.UserID) (User, error) {
	return r.get(idKey(id))
}

// DisplayName implements the user-lookup collaborator consumed by the router
// when it embeds names into delivery payloads.
func (r *UserRepository) DisplayName(_ context.Context, id dm.UserID) (string, error) {
	user, err := r.GetUserByID(id)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

func (r *UserRepository) get(key []byte) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return User{}, errors.ErrUserNotFound
		}
		return User{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return user, nil
}

func idKey(id dm.UserID) []byte {
	return []byte(fmt.Sprintf("user:id:%019d", id))
}
