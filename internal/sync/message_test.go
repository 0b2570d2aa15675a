package sync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name  string
		input string
		ok    bool
		want  Message
	}{
		{name: "not json", input: "hello"},
		{name: "not an object", input: `["update"]`},
		{name: "null", input: `null`},
		{name: "missing type", input: `{"content":"x"}`},
		{name: "non string type", input: `{"type":5}`},
		{name: "unknown type", input: `{"type":"delete"}`},
		{
			name:  "update",
			input: `{"type":"update","content":"# Hello"}`,
			ok:    true,
			want:  Message{Type: MsgUpdate, Content: "# Hello", HasContent: true},
		},
		{
			name:  "update without string content",
			input: `{"type":"update","content":42}`,
			ok:    true,
			want:  Message{Type: MsgUpdate},
		},
		{
			name:  "join without content",
			input: `{"type":"join"}`,
			ok:    true,
			want:  Message{Type: MsgJoin},
		},
		{
			name:  "lock trims block id and ignores non string color",
			input: `{"type":"lock","blockId":"  b1 ","color":7,"label":"Heading"}`,
			ok:    true,
			want:  Message{Type: MsgLock, BlockID: "b1", Label: "Heading"},
		},
		{
			name:  "unlock",
			input: `{"type":"unlock","blockId":"b1"}`,
			ok:    true,
			want:  Message{Type: MsgUnlock, BlockID: "b1"},
		},
		{
			name:  "ping",
			input: `{"type":"ping"}`,
			ok:    true,
			want:  Message{Type: MsgPing},
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			msg, ok := Decode([]byte(testCase.input))
			assert.Equal(t, testCase.ok, ok)
			assert.Equal(t, testCase.want, msg)
		})
	}
}

func TestEventEncoding(t *testing.T) {
	cases := []struct {
		name  string
		event Event
		want  string
	}{
		{name: "empty snapshot", event: NewSnapshot(""), want: `{"type":"snapshot","content":""}`},
		{name: "empty locks", event: NewLocksState(nil), want: `{"type":"locks_state","locks":[]}`},
		{name: "empty peers", event: NewPeers(nil), want: `{"type":"peers","peers":[]}`},
		{name: "pong", event: NewPong(), want: `{"type":"pong"}`},
		{
			name:  "lock error",
			event: NewLockError("b1", "alice"),
			want:  `{"type":"lock_error","code":"locked_by_other","blockId":"b1","name":"alice"}`,
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			data, err := json.Marshal(testCase.event)
			require.NoError(t, err)
			assert.JSONEq(t, testCase.want, string(data))
		})
	}
}
