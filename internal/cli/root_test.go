package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taptrack/taptrack/internal/identity"
	"github.com/taptrack/taptrack/internal/queue"
	"github.com/taptrack/taptrack/internal/record"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "taptrack", cmd.Use)
	assert.Contains(t, cmd.Long, "card taps")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "queue", "users", "mode", "log"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	dataFlag := cmd.PersistentFlags().Lookup("data")
	require.NotNil(t, dataFlag)
	assert.Equal(t, ".", dataFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	offlineFlag := runCmd.Flags().Lookup("offline")
	require.NotNil(t, offlineFlag)
	assert.Equal(t, "false", offlineFlag.DefValue)
}

// execute runs the CLI with args against a temp data dir and returns the
// combined output.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--data", dir}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestQueueListEmpty(t *testing.T) {
	out, err := execute(t, t.TempDir(), "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Queue is empty")
}

func TestQueueListShowsRecords(t *testing.T) {
	dir := t.TempDir()
	q, err := queue.Open(dir + "/attendance_queue.json")
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(record.AttendanceRecord{
		Identifier:  "AB12CD34",
		DisplayName: "Ada",
		Timestamp:   "2025-06-15T08:30:00.000Z",
		Attendance:  record.StatusPresent,
	}))

	out, err := execute(t, dir, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "AB12CD34")
	assert.Contains(t, out, "2025-06-15T08:30:00.000Z")
}

func TestQueueClear(t *testing.T) {
	dir := t.TempDir()
	q, err := queue.Open(dir + "/attendance_queue.json")
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(record.AttendanceRecord{Identifier: "AB12CD34"}))

	out, err := execute(t, dir, "queue", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 record(s)")

	out, err = execute(t, dir, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Queue is empty")
}

func TestUsersListsCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := identity.Open(dir+"/user_database.json", nil)
	require.NoError(t, err)
	cache.Register("AB12CD34", "Ada")
	require.NoError(t, cache.SaveIfDirty())

	out, err := execute(t, dir, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "AB12CD34")
	assert.Contains(t, out, "registered")
	assert.Contains(t, out, "Ada")
}

func TestModeRoundTrip(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "mode", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "auto")

	_, err = execute(t, dir, "mode", "set", "force_offline")
	require.NoError(t, err)

	out, err = execute(t, dir, "mode", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "force_offline")
}

func TestModeSetRejectsUnknown(t *testing.T) {
	_, err := execute(t, t.TempDir(), "mode", "set", "sometimes")
	require.Error(t, err)
}

func TestLogEmpty(t *testing.T) {
	out, err := execute(t, t.TempDir(), "log")
	require.NoError(t, err)
	assert.Contains(t, out, "Event log is empty")
}
