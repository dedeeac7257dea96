package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRecords(t *testing.T, raw string) []Record {
	t.Helper()
	var out []Record
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&out))
	return out
}

func TestUserUnmarshalDerivesType(t *testing.T) {
	var u User
	raw := `{"Name":"Admin","FriendlyName":"Administrator","Enabled":true,"Groups":[{"Name":"ADMIN"},{"Name":"Finance"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &u))

	assert.Equal(t, "Admin", u.Name)
	assert.Equal(t, "Administrator", u.FriendlyName)
	assert.Equal(t, []string{"ADMIN", "Finance"}, u.Groups)
	assert.Equal(t, UserTypeAdmin, u.Type)
	require.NotNil(t, u.Enabled)
	assert.True(t, *u.Enabled)
	assert.True(t, u.IsAdmin())
	assert.True(t, u.IsDataAdmin())
	assert.True(t, u.IsSecurityAdmin())
	assert.True(t, u.IsOpsAdmin())
}

func TestUserUnmarshalKeepsServerType(t *testing.T) {
	var u User
	raw := `{"Name":"ops","Type":"OperationsAdmin","Groups":[{"Name":"Sales"}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &u))

	assert.Equal(t, UserTypeOperationsAdmin, u.Type)
	assert.False(t, u.IsAdmin())
	assert.True(t, u.IsOpsAdmin())
	assert.False(t, u.IsDataAdmin())
}

func TestUserTypeFromGroups(t *testing.T) {
	assert.Equal(t, UserTypeAdmin, UserTypeFromGroups([]string{"admin"}))
	assert.Equal(t, UserTypeSecurityAdmin, UserTypeFromGroups([]string{"Security Admin"}))
	assert.Equal(t, UserTypeDataAdmin, UserTypeFromGroups([]string{"DataAdmin"}))
	assert.Equal(t, UserTypeOperationsAdmin, UserTypeFromGroups([]string{"OperationsAdmin"}))
	assert.Equal(t, UserTypeUser, UserTypeFromGroups([]string{"Sales"}))
	assert.Equal(t, UserTypeUser, UserTypeFromGroups(nil))
}

func TestUserMarshalRoundTripsGroups(t *testing.T) {
	u := User{Name: "Bob", Type: UserTypeUser, Groups: []string{"Sales"}}
	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Groups":[{"Name":"Sales"}]`)
}

func TestRecordLookup(t *testing.T) {
	records := decodeRecords(t, `[
		{"ID": 1, "User": {"Name": "admin"}},
		{"ID": 2, "User": null},
		{"ID": 3, "User": {}},
		{"ID": 4}
	]`)

	name, ok := records[0].String("User", "Name")
	assert.True(t, ok)
	assert.Equal(t, "admin", name)

	for _, r := range records[1:] {
		_, ok := r.Lookup("User", "Name")
		assert.False(t, ok, "record %v", r)
	}
}

func TestRecordID(t *testing.T) {
	records := decodeRecords(t, `[{"ID": 12345678901}, {"ID": "abc"}, {"Name": "x"}]`)

	id, ok := records[0].ID()
	assert.True(t, ok)
	assert.Equal(t, "12345678901", id)

	id, ok = records[1].ID()
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = records[2].ID()
	assert.False(t, ok)

	id, ok = Record{"ID": float64(1000000)}.ID()
	assert.True(t, ok)
	assert.Equal(t, "1000000", id)
}

func TestDecodeSessions(t *testing.T) {
	records := decodeRecords(t, `[
		{"ID": 7, "Context": "TM1py", "Active": true,
		 "User": {"Name": "Bob", "Groups": [{"Name": "Sales"}]},
		 "Threads": [{"ID": 70, "State": "Run", "Function": "POST /ExecuteMDX"}]},
		{"ID": 8, "Active": false}
	]`)

	sessions, err := DecodeSessions(records)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, int64(7), sessions[0].ID)
	assert.Equal(t, "Bob", sessions[0].UserName())
	assert.Equal(t, UserTypeUser, sessions[0].User.Type)
	require.Len(t, sessions[0].Threads, 1)
	assert.False(t, sessions[0].Threads[0].IsIdle())

	assert.Equal(t, "", sessions[1].UserName())
	assert.Empty(t, sessions[1].Threads)
}

func TestDecodeThreads(t *testing.T) {
	records := decodeRecords(t, `[{"ID": 1, "State": "Idle", "Type": "User", "RLocks": 2}]`)
	threads, err := DecodeThreads(records)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.True(t, threads[0].IsIdle())
	assert.Equal(t, 2, threads[0].RLocks)
}
