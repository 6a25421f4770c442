package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey_Validate(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		wantErr bool
	}{
		{name: "valid", key: Key{"webhookId", "abc"}},
		{name: "empty key", key: Key{}, wantErr: true},
		{name: "empty part", key: Key{"webhookId", ""}, wantErr: true},
		{name: "separator in part", key: Key{"webhookId", "a\x1fb"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestKey_EncodeRoundTrip(t *testing.T) {
	key := Key{"webhookId", "t1", "projectName", "my project", "pageName", "日本語"}

	require.Equal(t, key, DecodeKey(key.Encode()))
}

func TestPrefixRange(t *testing.T) {
	start, end := PrefixRange(Key{"webhookId", "t1"})

	inside := Key{"webhookId", "t1", "projectName", "p"}.Encode()
	sibling := Key{"webhookId", "t10", "projectName", "p"}.Encode()
	self := Key{"webhookId", "t1"}.Encode()

	require.True(t, inside >= start && inside < end)
	require.False(t, sibling >= start && sibling < end)
	require.False(t, self >= start && self < end)
}

func TestHasPrefix(t *testing.T) {
	require.True(t, HasPrefix(Key{"a", "b", "c"}, Key{"a", "b"}))
	require.False(t, HasPrefix(Key{"a", "b"}, Key{"a", "b"}))
	require.False(t, HasPrefix(Key{"a", "bc", "d"}, Key{"a", "b"}))
}
