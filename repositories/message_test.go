package repositories

import (
	"log/slog"
	"testing"
	"time"

	"secure-chat/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func diskMessage(senderID int64, target domain.TargetKind, targetID int64, blob string, at time.Time) DiskMessage {
	return DiskMessage{
		ID:        uuid.New(),
		SenderID:  senderID,
		Target:    target,
		TargetID:  targetID,
		Blob:      blob,
		Nonce:     "nonce",
		Algorithm: domain.AlgorithmChaCha20,
		IsFile:    false,
		At:        at,
	}
}

func Test_Store_And_Fetch_History(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	at := time.Now().UTC()
	stored := []DiskMessage{
		diskMessage(1, domain.TargetUser, 2, "first", at),
		diskMessage(1, domain.TargetUser, 2, "second", at.Add(1*time.Minute)),
		diskMessage(2, domain.TargetUser, 2, "third", at.Add(2*time.Minute)),
	}
	for _, dm := range stored {
		req.NoError(repository.StoreMessage(dm))
	}

	fetched, cursor, err := repository.History(domain.TargetUser, 2, nil)
	req.NoError(err)
	req.NotNil(cursor)
	req.Len(fetched, len(stored))

	// Reverse scan: newest first
	req.Equal("third", fetched[0].Blob)
	req.Equal("second", fetched[1].Blob)
	req.Equal("first", fetched[2].Blob)
	req.Equal(stored[2].ID, fetched[0].ID)
}

func Test_History_Is_Scoped_To_Target(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	at := time.Now().UTC()
	req.NoError(repository.StoreMessage(diskMessage(1, domain.TargetUser, 2, "direct", at)))
	req.NoError(repository.StoreMessage(diskMessage(1, domain.TargetGroup, 2, "group", at)))
	req.NoError(repository.StoreMessage(diskMessage(1, domain.TargetUser, 3, "other", at)))

	fetched, _, err := repository.History(domain.TargetUser, 2, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("direct", fetched[0].Blob)
}

func Test_History_Respects_Limit_And_Cursor(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	at := time.Now().UTC()
	for i, blob := range []string{"one", "two", "three"} {
		req.NoError(repository.StoreMessage(
			diskMessage(1, domain.TargetUser, 2, blob, at.Add(time.Duration(i)*time.Minute))))
	}

	// First page: the two most recent messages
	page1, cursor, err := repository.History(domain.TargetUser, 2, nil)
	req.NoError(err)
	req.Len(page1, limit)
	req.Equal("three", page1[0].Blob)
	req.Equal("two", page1[1].Blob)

	// Second page resumes after the cursor
	page2, cursor2, err := repository.History(domain.TargetUser, 2, cursor)
	req.NoError(err)
	req.Len(page2, 1)
	req.Equal("one", page2[0].Blob)

	// Reading past the last message yields an empty page and no cursor
	page3, cursor3, err := repository.History(domain.TargetUser, 2, cursor2)
	req.NoError(err)
	req.Empty(page3)
	req.Nil(cursor3)
}

func Test_History_Of_Empty_Conversation_Has_No_Cursor(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)

	fetched, cursor, err := repository.History(domain.TargetUser, 99, nil)
	req.NoError(err)
	req.Empty(fetched)
	req.Nil(cursor)
}

func Test_Stored_File_Message_Roundtrip(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	message := DiskMessage{
		ID:        uuid.New(),
		SenderID:  1,
		Target:    domain.TargetGroup,
		TargetID:  10,
		Blob:      "QkFTRTY0",
		Nonce:     "ivval",
		Algorithm: domain.AlgorithmAES,
		IsFile:    true,
		At:        time.Now().UTC(),
	}
	req.NoError(repository.StoreMessage(message))

	fetched, _, err := repository.History(domain.TargetGroup, 10, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal(message, fetched[0])
}
