//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"secure-chat/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	History(target domain.TargetKind, targetID int64, cursor *string) ([]DiskMessage, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// DiskMessage is the storage projection of one relayed envelope.
// The blob and nonce are opaque ciphertext material produced by clients.
type DiskMessage struct {
	ID        uuid.UUID
	SenderID  int64
	Target    domain.TargetKind
	TargetID  int64
	Blob      string
	Nonce     string
	Algorithm string
	IsFile    bool
	At        time.Time
}

// messageRecord is the on-disk JSON shape of a DiskMessage.
type messageRecord struct {
	ID        string `json:"id"`
	SenderID  int64  `json:"sender_id"`
	Target    string `json:"target"`
	TargetID  int64  `json:"target_id"`
	Blob      string `json:"blob"`
	Nonce     string `json:"nonce"`
	Algorithm string `json:"algorithm"`
	IsFile    bool   `json:"is_file"`
	At        int64  `json:"at"`
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{target}:{target_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := fmt.Sprintf("msg:%s:%d:%019d:%s",
		message.Target,
		message.TargetID,
		message.At.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(fromDiskMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		err = txn.Set([]byte(key), bytes)
		return err
	})
}

// History retrieves messages addressed to one target using a prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally sorted by time.
// It stops collecting messages once the configured limitMessages is reached.
func (m MessageRepository) History(target domain.TargetKind, targetID int64, cursor *string) ([]DiskMessage, *string, error) {
	var rawMessages [][]byte
	var diskMessages []DiskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:%d:", target, targetID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible position msg:<target>:9999999999999999999
			// then walk backwards collecting a page of messages
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(rawMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, b := range rawMessages {
		var record messageRecord
		if err = json.Unmarshal(b, &record); err != nil {
			return nil, nil, err
		}
		message, err := toDiskMessage(record)
		if err != nil {
			return nil, nil, err
		}
		diskMessages = append(diskMessages, message)
	}
	// An empty page has no position to resume from
	if len(diskMessages) == 0 {
		return diskMessages, nil, err
	}
	return diskMessages, &lastKey, err
}

// ToMessages converts storage projections back into domain records.
func ToMessages(messages []DiskMessage) []domain.Message {
	return lo.Map(messages, func(item DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:        item.ID,
			SenderID:  item.SenderID,
			Target:    item.Target,
			TargetID:  item.TargetID,
			Blob:      item.Blob,
			Nonce:     item.Nonce,
			Algorithm: item.Algorithm,
			IsFile:    item.IsFile,
			CreatedAt: item.At,
		}
	})
}

func fromDiskMessage(message DiskMessage) messageRecord {
	return messageRecord{
		ID:        message.ID.String(),
		SenderID:  message.SenderID,
		Target:    string(message.Target),
		TargetID:  message.TargetID,
		Blob:      message.Blob,
		Nonce:     message.Nonce,
		Algorithm: message.Algorithm,
		IsFile:    message.IsFile,
		At:        message.At.UnixNano(),
	}
}

func toDiskMessage(record messageRecord) (DiskMessage, error) {
	parsedID, err := uuid.Parse(record.ID)
	if err != nil {
		return DiskMessage{}, err
	}
	return DiskMessage{
		ID:        parsedID,
		SenderID:  record.SenderID,
		Target:    domain.TargetKind(record.Target),
		TargetID:  record.TargetID,
		Blob:      record.Blob,
		Nonce:     record.Nonce,
		Algorithm: record.Algorithm,
		IsFile:    record.IsFile,
		At:        time.Unix(0, record.At).UTC(),
	}, nil
}
