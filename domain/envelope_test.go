package domain

import (
	"testing"

	"secure-chat/errors"

	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_Text(t *testing.T) {
	req := require.New(t)
	frame := []byte(`{"target":"user","target_id":2,"type":"text","data":{"cipher":"abc","nonce":"xyz"}}`)

	envelope, err := DecodeEnvelope(1, frame)

	req.NoError(err)
	req.Equal(Envelope{
		SenderID:  1,
		Target:    TargetUser,
		TargetID:  2,
		Content:   ContentText,
		Blob:      "abc",
		Nonce:     "xyz",
		Algorithm: AlgorithmChaCha20,
	}, envelope)
}

func TestDecodeEnvelope_File(t *testing.T) {
	req := require.New(t)
	frame := []byte(`{"target":"group","target_id":10,"type":"file","encryptedContent":"QkFTRTY0","iv":"ivval"}`)

	envelope, err := DecodeEnvelope(1, frame)

	req.NoError(err)
	req.Equal(Envelope{
		SenderID:  1,
		Target:    TargetGroup,
		TargetID:  10,
		Content:   ContentFile,
		Blob:      "QkFTRTY0",
		Nonce:     "ivval",
		Algorithm: AlgorithmAES,
	}, envelope)
}

func TestDecodeEnvelope_Type_Defaults_To_Text(t *testing.T) {
	req := require.New(t)
	frame := []byte(`{"target":"user","target_id":2,"data":{"cipher":"abc","nonce":"n"}}`)

	envelope, err := DecodeEnvelope(1, frame)

	req.NoError(err)
	req.Equal(ContentText, envelope.Content)
	req.Equal(AlgorithmChaCha20, envelope.Algorithm)
}

func TestDecodeEnvelope_TargetID_String_Coercible(t *testing.T) {
	req := require.New(t)
	frame := []byte(`{"target":"user","target_id":"42","data":{"cipher":"c","nonce":"n"}}`)

	envelope, err := DecodeEnvelope(1, frame)

	req.NoError(err)
	req.Equal(int64(42), envelope.TargetID)
}

func TestDecodeEnvelope_Numeric_IV(t *testing.T) {
	req := require.New(t)
	frame := []byte(`{"target":"user","target_id":2,"type":"file","encryptedContent":"QQ==","iv":12345}`)

	envelope, err := DecodeEnvelope(1, frame)

	req.NoError(err)
	req.Equal("12345", envelope.Nonce)
}

func TestDecodeEnvelope_Extra_Fields_Ignored(t *testing.T) {
	req := require.New(t)
	// Clients may send fields the relay does not understand
	frame := []byte(`{"target":"user","target_id":2,"sender_username":"alice","future":{"x":1},"data":{"cipher":"c","nonce":"n"}}`)

	envelope, err := DecodeEnvelope(1, frame)

	req.NoError(err)
	req.Equal("c", envelope.Blob)
}

func TestDecodeEnvelope_Missing_Data_Gives_Empty_Blob(t *testing.T) {
	req := require.New(t)
	frame := []byte(`{"target":"user","target_id":2}`)

	envelope, err := DecodeEnvelope(1, frame)

	req.NoError(err)
	req.Empty(envelope.Blob)
	req.True(envelope.Valid())
}

func TestDecodeEnvelope_Sender_Never_From_Frame(t *testing.T) {
	req := require.New(t)
	frame := []byte(`{"target":"user","target_id":2,"sender_id":999,"data":{"cipher":"c","nonce":"n"}}`)

	envelope, err := DecodeEnvelope(7, frame)

	req.NoError(err)
	req.Equal(int64(7), envelope.SenderID)
}

func TestDecodeEnvelope_Rejects_Bad_Frames(t *testing.T) {
	cases := map[string]struct {
		frame    []byte
		sentinel error
	}{
		"not json":          {[]byte("hello there"), errors.ErrMalformedFrame},
		"unknown target":    {[]byte(`{"target":"channel","target_id":1}`), errors.ErrUnknownTarget},
		"missing target":    {[]byte(`{"target_id":1}`), errors.ErrUnknownTarget},
		"target id zero":    {[]byte(`{"target":"user","target_id":0}`), errors.ErrInvalidTargetID},
		"target id words":   {[]byte(`{"target":"user","target_id":"abc"}`), errors.ErrInvalidTargetID},
		"unknown content":   {[]byte(`{"target":"user","target_id":1,"type":"video"}`), errors.ErrMalformedFrame},
		"target id missing": {[]byte(`{"target":"user"}`), errors.ErrInvalidTargetID},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			_, err := DecodeEnvelope(1, tc.frame)
			req.ErrorIs(err, tc.sentinel)
		})
	}
}
