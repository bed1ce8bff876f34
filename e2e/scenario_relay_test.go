package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// testRelaySuite runs against a live relay reached through SERVER_ADDR.
// It drives the same journey a client application would: register two
// accounts, open both sockets, exchange an encrypted envelope, then read
// it back from history.
type testRelaySuite struct {
	suite.Suite
	Config Config
	base   string
}

func TestRelaySuite(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil || cfg.ServerAddr == "" {
		t.Skip("SERVER_ADDR not set, skipping live relay suite")
	}
	suite.Run(t, &testRelaySuite{Config: cfg})
}

func (s *testRelaySuite) SetupSuite() {
	s.base = "http://" + s.Config.ServerAddr
}

type registeredUser struct {
	Token    string `json:"token"`
	UserID   int64  `json:"uid"`
	Username string `json:"user"`
}

func (s *testRelaySuite) register(name string) registeredUser {
	// Unique per run so the suite can be replayed against the same server
	name = fmt.Sprintf("%s%s", name, uuid.New().String()[:8])
	body, err := json.Marshal(map[string]string{
		"email":    name + "@example.com",
		"username": name,
		"password": "ComplexPass123!",
	})
	s.Require().NoError(err)

	resp, err := http.Post(s.base+"/auth/register", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var user registeredUser
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&user))
	return user
}

func (s *testRelaySuite) dial(userID int64) *websocket.Conn {
	url := fmt.Sprintf("ws://%s/ws/%d", s.Config.ServerAddr, userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	return conn
}

func (s *testRelaySuite) TestFullMessagingFlow() {
	var alice, bob registeredUser

	s.Run("Step 1: Register two accounts", func() {
		alice = s.register("alice")
		bob = s.register("bob")
		s.Require().NotEmpty(alice.Token)
		s.Require().NotEqual(alice.UserID, bob.UserID)
	})

	var aliceConn, bobConn *websocket.Conn
	s.Run("Step 2: Open both relay sessions", func() {
		aliceConn = s.dial(alice.UserID)
		bobConn = s.dial(bob.UserID)
	})
	defer func() {
		if aliceConn != nil {
			_ = aliceConn.Close()
		}
		if bobConn != nil {
			_ = bobConn.Close()
		}
	}()

	frame := []byte(fmt.Sprintf(
		`{"target":"user","target_id":%d,"type":"text","data":{"cipher":"SGVsbG8=","nonce":"bm9uY2U=","algorithm":"ChaCha20"}}`,
		bob.UserID))

	s.Run("Step 3: Send an envelope and receive it verbatim", func() {
		s.Require().NoError(aliceConn.WriteMessage(websocket.TextMessage, frame))
		s.Require().NoError(bobConn.SetReadDeadline(time.Now().Add(5 * time.Second)))
		_, received, err := bobConn.ReadMessage()
		s.Require().NoError(err)
		s.Require().Equal(frame, received)
	})

	s.Run("Step 4: Read the conversation back from history", func() {
		url := fmt.Sprintf("%s/users/%d/messages?target=user&target_id=%d",
			s.base, bob.UserID, bob.UserID)
		req, err := http.NewRequest(http.MethodGet, url, nil)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+bob.Token)

		resp, err := http.DefaultClient.Do(req)
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Require().Equal(http.StatusOK, resp.StatusCode)

		var page struct {
			Messages []struct {
				SenderID int64  `json:"sender_id"`
				Blob     string `json:"blob"`
			} `json:"messages"`
		}
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(&page))
		s.Require().NotEmpty(page.Messages)
		s.Require().Equal(alice.UserID, page.Messages[0].SenderID)
		s.Require().Equal("SGVsbG8=", page.Messages[0].Blob)
	})
}
