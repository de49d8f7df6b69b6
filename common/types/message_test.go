package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/go-delivery/codec"
	"github.com/spacemeshos/go-delivery/common/types"
)

func TestMessageRefCompare(t *testing.T) {
	for _, tc := range []struct {
		desc   string
		a, b   types.MessageRef
		expect int
	}{
		{"equal", ref(1000, 1), ref(1000, 1), 0},
		{"timestamp first", ref(999, 5), ref(1000, 0), -1},
		{"sequence breaks ties", ref(1000, 2), ref(1000, 1), 1},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.expect, tc.a.Compare(tc.b))
			require.Equal(t, -tc.expect, tc.b.Compare(tc.a))
			require.Equal(t, tc.expect < 0, tc.a.Less(tc.b))
		})
	}
}

func TestStreamMessageCodec(t *testing.T) {
	publisher := types.MustParseAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	msg := types.StreamMessage{
		ID: types.MessageID{
			StreamID:       "0xabc/prices",
			Partition:      3,
			Timestamp:      1700000000000,
			SequenceNumber: 2,
			PublisherID:    publisher,
			MsgChainID:     "chain-1",
		},
		PrevMsgRef:     &types.MessageRef{Timestamp: 1700000000000, SequenceNumber: 1},
		Content:        []byte(`{"price":1}`),
		ContentType:    types.ContentTypeJSON,
		EncryptionType: types.EncryptionNone,
		Signature:      []byte{1, 2, 3},
		SignatureType:  types.SignatureSecp256k1,
	}
	buf, err := codec.Encode(&msg)
	require.NoError(t, err)

	var decoded types.StreamMessage
	require.NoError(t, codec.Decode(buf, &decoded))
	require.Equal(t, msg, decoded)

	first := msg
	first.PrevMsgRef = nil
	buf, err = codec.Encode(&first)
	require.NoError(t, err)
	decoded = types.StreamMessage{}
	require.NoError(t, codec.Decode(buf, &decoded))
	require.Nil(t, decoded.PrevMsgRef)
	require.Equal(t, first.Ref(), decoded.Ref())
}

func TestParseAddress(t *testing.T) {
	addr, err := types.ParseAddress("0x0102030405060708090A0B0C0D0E0F1011121314")
	require.NoError(t, err)
	require.Equal(t, "0x0102030405060708090a0b0c0d0e0f1011121314", addr.String())

	again, err := types.ParseAddress(addr.String()[2:])
	require.NoError(t, err)
	require.Equal(t, addr, again)

	_, err = types.ParseAddress("0x01")
	require.ErrorIs(t, err, types.ErrInvalidAddress)
	_, err = types.ParseAddress("0xzz02030405060708090a0b0c0d0e0f1011121314")
	require.ErrorIs(t, err, types.ErrInvalidAddress)
}

func TestStreamPartID(t *testing.T) {
	id := types.NewStreamPartID("0xabc/path#with#hash", 7)
	require.Equal(t, types.StreamID("0xabc/path#with#hash"), id.StreamID())
	require.Equal(t, uint32(7), id.Partition())

	parsed, err := types.ParseStreamPartID(string(id))
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	for _, bad := range []string{"stream", "#1", "stream#x", "stream#-1"} {
		_, err := types.ParseStreamPartID(bad)
		require.ErrorIs(t, err, types.ErrInvalidStreamPartID, bad)
	}
}

func ref(ts int64, seq uint32) types.MessageRef {
	return types.MessageRef{Timestamp: ts, SequenceNumber: seq}
}
