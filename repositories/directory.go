//go:generate go run go.uber.org/mock/mockgen -source=directory.go -destination=../mocks/mock_directory.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"secure-chat/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// IDirectory is the read/write surface of the account directory.
// The routing core only ever calls GroupMembers; everything else serves
// the HTTP data-access surface.
type IDirectory interface {
	CreateUser(email, username, passwordHash string) (User, error)
	GetUserByEmail(email string) (User, error)
	GetUserByUsername(username string) (User, error)
	GetUserByID(id int64) (User, error)
	UpdateUsername(id int64, username string) (User, error)
	UserExists(id int64) (bool, error)
	AddContact(userID int64, contactUsername string) (User, error)
	Contacts(userID int64) ([]User, error)
	CreateGroup(creatorID int64, name string, memberUsernames []string) (Group, error)
	UserGroups(userID int64) ([]Group, error)
	GroupMembers(groupID int64) ([]int64, error)
}

// User is the domain-friendly representation of an account in the repository layer.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

// Group is a named membership set. The creator is always a member.
type Group struct {
	ID        int64
	Name      string
	CreatorID int64
	Members   []int64
	CreatedAt time.Time
}

type userRecord struct {
	ID           int64    `json:"id"`
	Email        string   `json:"email"`
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash"`
	Roles        []string `json:"roles"`
	CreatedAt    int64    `json:"created_at"`
}

type groupRecord struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	CreatorID int64   `json:"creator_id"`
	Members   []int64 `json:"members"`
	CreatedAt int64   `json:"created_at"`
}

// Directory stores accounts, contacts and group memberships in BadgerDB.
//
// Key layout:
//
//	user:{id}                -> userRecord
//	idx:email:{email}        -> id
//	idx:name:{username}      -> id
//	contact:{userID}:{id}    -> empty
//	group:{id}               -> groupRecord
//	idx:member:{userID}:{id} -> empty
//
// Ids come from Badger sequences, so they survive restarts.
type Directory struct {
	db       *badger.DB
	userSeq  *badger.Sequence
	groupSeq *badger.Sequence
}

func NewDirectory(db *badger.DB) (*Directory, error) {
	userSeq, err := db.GetSequence([]byte("seq:user"), 100)
	if err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	groupSeq, err := db.GetSequence([]byte("seq:group"), 100)
	if err != nil {
		return nil, fmt.Errorf("group sequence: %w", err)
	}
	return &Directory{db: db, userSeq: userSeq, groupSeq: groupSeq}, nil
}

// Release hands unused sequence leases back to Badger. Call before closing the DB.
func (d *Directory) Release() {
	_ = d.userSeq.Release()
	_ = d.groupSeq.Release()
}

func userKey(id int64) []byte      { return []byte(fmt.Sprintf("user:%d", id)) }
func emailKey(email string) []byte { return []byte("idx:email:" + email) }
func nameKey(username string) []byte {
	return []byte("idx:name:" + username)
}
func contactKey(userID, contactID int64) []byte {
	return []byte(fmt.Sprintf("contact:%d:%d", userID, contactID))
}
func groupKey(id int64) []byte { return []byte(fmt.Sprintf("group:%d", id)) }
func memberKey(userID, groupID int64) []byte {
	return []byte(fmt.Sprintf("idx:member:%d:%d", userID, groupID))
}

// CreateUser persists a new account guarded by unique email and username indexes.
func (d *Directory) CreateUser(email, username, passwordHash string) (User, error) {
	id, err := d.nextID(d.userSeq)
	if err != nil {
		return User{}, err
	}
	record := userRecord{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: passwordHash,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = d.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if _, err := txn.Get(nameKey(username)); err == nil {
			return errors.ErrUsernameTaken
		}
		if err := txn.Set(userKey(id), data); err != nil {
			return err
		}
		if err := txn.Set(emailKey(email), idValue(id)); err != nil {
			return err
		}
		return txn.Set(nameKey(username), idValue(id))
	})
	if err != nil {
		return User{}, err
	}
	return toUserStruct(record), nil
}

func (d *Directory) GetUserByEmail(email string) (User, error) {
	return d.getUserByIndex(emailKey(email))
}

func (d *Directory) GetUserByUsername(username string) (User, error) {
	return d.getUserByIndex(nameKey(username))
}

func (d *Directory) GetUserByID(id int64) (User, error) {
	var record userRecord
	err := d.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &record)
	})
	if err != nil {
		return User{}, mapNotFound(err, errors.ErrUserNotFound)
	}
	return toUserStruct(record), nil
}

// UpdateUsername renames an account and moves its username index atomically.
func (d *Directory) UpdateUsername(id int64, username string) (User, error) {
	var record userRecord
	err := d.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(nameKey(username)); err == nil {
			return errors.ErrUsernameTaken
		}
		if err := getJSON(txn, userKey(id), &record); err != nil {
			return err
		}
		if err := txn.Delete(nameKey(record.Username)); err != nil {
			return err
		}
		record.Username = username
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := txn.Set(userKey(id), data); err != nil {
			return err
		}
		return txn.Set(nameKey(username), idValue(id))
	})
	if err != nil {
		return User{}, mapNotFound(err, errors.ErrUserNotFound)
	}
	return toUserStruct(record), nil
}

func (d *Directory) UserExists(id int64) (bool, error) {
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(id))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddContact links userID to the account behind contactUsername (one way).
func (d *Directory) AddContact(userID int64, contactUsername string) (User, error) {
	contact, err := d.GetUserByUsername(contactUsername)
	if err != nil {
		return User{}, err
	}
	err = d.db.Update(func(txn *badger.Txn) error {
		key := contactKey(userID, contact.ID)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrContactExists
		}
		return txn.Set(key, nil)
	})
	if err != nil {
		return User{}, err
	}
	return contact, nil
}

func (d *Directory) Contacts(userID int64) ([]User, error) {
	ids, err := d.scanSuffixIDs([]byte(fmt.Sprintf("contact:%d:", userID)))
	if err != nil {
		return nil, err
	}
	return d.usersByIDs(ids)
}

// CreateGroup resolves member usernames, always includes the creator, and
// records the membership index for each member.
func (d *Directory) CreateGroup(creatorID int64, name string, memberUsernames []string) (Group, error) {
	memberIDs := []int64{creatorID}
	for _, username := range memberUsernames {
		member, err := d.GetUserByUsername(username)
		if err != nil {
			return Group{}, fmt.Errorf("member %q: %w", username, err)
		}
		memberIDs = append(memberIDs, member.ID)
	}
	memberIDs = lo.Uniq(memberIDs)

	id, err := d.nextID(d.groupSeq)
	if err != nil {
		return Group{}, err
	}
	record := groupRecord{
		ID:        id,
		Name:      name,
		CreatorID: creatorID,
		Members:   memberIDs,
		CreatedAt: time.Now().Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return Group{}, err
	}

	err = d.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(groupKey(id), data); err != nil {
			return err
		}
		for _, memberID := range memberIDs {
			if err := txn.Set(memberKey(memberID, id), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Group{}, err
	}
	return toGroupStruct(record), nil
}

func (d *Directory) UserGroups(userID int64) ([]Group, error) {
	ids, err := d.scanSuffixIDs([]byte(fmt.Sprintf("idx:member:%d:", userID)))
	if err != nil {
		return nil, err
	}
	var groups []Group
	for _, id := range ids {
		var record groupRecord
		err := d.db.View(func(txn *badger.Txn) error {
			return getJSON(txn, groupKey(id), &record)
		})
		if err != nil {
			return nil, mapNotFound(err, errors.ErrGroupNotFound)
		}
		groups = append(groups, toGroupStruct(record))
	}
	return groups, nil
}

func (d *Directory) GroupMembers(groupID int64) ([]int64, error) {
	var record groupRecord
	err := d.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, groupKey(groupID), &record)
	})
	if err != nil {
		return nil, mapNotFound(err, errors.ErrGroupNotFound)
	}
	return record.Members, nil
}

func (d *Directory) nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// Sequences start at zero; ids start at one.
	return int64(n) + 1, nil
}

func (d *Directory) getUserByIndex(indexKey []byte) (User, error) {
	var record userRecord
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey)
		if err != nil {
			return err
		}
		var id int64
		err = item.Value(func(val []byte) error {
			id, err = strconv.ParseInt(string(val), 10, 64)
			return err
		})
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(id), &record)
	})
	if err != nil {
		return User{}, mapNotFound(err, errors.ErrUserNotFound)
	}
	return toUserStruct(record), nil
}

func (d *Directory) usersByIDs(ids []int64) ([]User, error) {
	var users []User
	for _, id := range ids {
		user, err := d.GetUserByID(id)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// scanSuffixIDs lists the numeric suffixes of all keys under a prefix,
// which is how one-way links (contacts, memberships) are enumerated.
func (d *Directory) scanSuffixIDs(prefix []byte) ([]int64, error) {
	var ids []int64
	err := d.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			suffix := string(it.Item().Key()[len(prefix):])
			id, err := strconv.ParseInt(suffix, 10, 64)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func idValue(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

func mapNotFound(err, sentinel error) error {
	if err == badger.ErrKeyNotFound {
		return sentinel
	}
	return err
}

func toUserStruct(record userRecord) User {
	return User{
		ID:           record.ID,
		Email:        record.Email,
		Username:     record.Username,
		PasswordHash: record.PasswordHash,
		Roles:        record.Roles,
		CreatedAt:    time.Unix(record.CreatedAt, 0).UTC(),
	}
}

func toGroupStruct(record groupRecord) Group {
	return Group{
		ID:        record.ID,
		Name:      record.Name,
		CreatorID: record.CreatorID,
		Members:   record.Members,
		CreatedAt: time.Unix(record.CreatedAt, 0).UTC(),
	}
}
