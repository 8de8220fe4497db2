package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/shell/config"
	"github.com/AntonStoeckl/library-custody-go/shell/demodata"
)

type cli struct {
	t   *testing.T
	dsn string
}

func newCLI(t *testing.T) cli {
	t.Helper()

	return cli{t: t, dsn: filepath.Join(t.TempDir(), "custody.db")}
}

// run executes custodyctl against the test database with JSON output and returns stdout.
func (c cli) run(args ...string) (string, error) {
	c.t.Helper()

	var out, errOut bytes.Buffer

	base := []string{"--env-file", filepath.Join(c.t.TempDir(), "missing.env"), "--store", config.StoreSQLite, "--dsn", c.dsn, "--output", outputJSON}
	err := execute(context.Background(), strings.NewReader(""), &out, &errOut, append(args[:1:1], append(base, args[1:]...)...))

	return out.String(), err
}

func decodeOutput[T any](t *testing.T, raw string) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal([]byte(raw), &v), "output is not valid json: %s", raw)

	return v
}

func Test_Seed_Then_Borrow_Then_Return(t *testing.T) {
	// setup
	c := newCLI(t)

	// arrange
	seedOut, err := c.run("seed")
	require.NoError(t, err)
	summary := decodeOutput[demodata.Summary](t, seedOut)
	require.Equal(t, 5, summary.Books)

	availableOut, err := c.run("available")
	require.NoError(t, err)
	available := decodeOutput[[]custody.BookCopy](t, availableOut)
	require.Len(t, available, summary.Copies)
	target := available[0]

	// act
	borrowOut, borrowErr := c.run("borrow", target.ID, "--user", "reader-1", "--from", target.LocationOrEmpty())
	_, secondBorrowErr := c.run("borrow", target.ID, "--user", "reader-2", "--from", target.LocationOrEmpty())
	returnableOut, returnableErr := c.run("inventory", "--user", "reader-1")
	_, returnErr := c.run("return", target.ID, "--user", "reader-1", "--to", target.LocationOrEmpty())
	historyOut, historyErr := c.run("history", "--user", "reader-1")

	// assert
	require.NoError(t, borrowErr)
	borrowTx := decodeOutput[custody.Transaction](t, borrowOut)
	assert.Equal(t, custody.ActionBorrow, borrowTx.Action)
	assert.Equal(t, target.ID, borrowTx.CopyID)

	assert.ErrorIs(t, secondBorrowErr, custody.ErrConflict)

	require.NoError(t, returnableErr)
	returnable := decodeOutput[[]custody.BookCopy](t, returnableOut)
	require.Len(t, returnable, 1)
	assert.Equal(t, target.ID, returnable[0].ID)

	require.NoError(t, returnErr)

	require.NoError(t, historyErr)
	history := decodeOutput[[]custody.Transaction](t, historyOut)
	require.Len(t, history, 2)
	assert.Equal(t, custody.ActionReturn, history[0].Action)
	assert.Equal(t, custody.ActionBorrow, history[1].Action)
}

func Test_Donate_Then_InventoryAtLocation(t *testing.T) {
	// setup
	c := newCLI(t)

	// arrange
	_, err := c.run("seed")
	require.NoError(t, err)
	availableOut, err := c.run("available")
	require.NoError(t, err)
	seeded := decodeOutput[[]custody.BookCopy](t, availableOut)[0]

	beforeOut, err := c.run("inventory", "--location", seeded.LocationOrEmpty())
	require.NoError(t, err)
	before := decodeOutput[[]custody.BookCopy](t, beforeOut)

	// act
	donateOut, donateErr := c.run("donate", seeded.BookID, "--user", "donor-1", "--to", seeded.LocationOrEmpty())

	// assert
	require.NoError(t, donateErr)
	donated := decodeOutput[custody.BookCopy](t, donateOut)
	assert.Equal(t, custody.StatusAvailable, donated.Status)

	afterOut, err := c.run("inventory", "--location", seeded.LocationOrEmpty())
	require.NoError(t, err)
	assert.Len(t, decodeOutput[[]custody.BookCopy](t, afterOut), len(before)+1)

	bookHistoryOut, err := c.run("history", "--book", seeded.BookID)
	require.NoError(t, err)
	bookHistory := decodeOutput[[]custody.Transaction](t, bookHistoryOut)
	require.Len(t, bookHistory, 1)
	assert.Equal(t, custody.ActionDonate, bookHistory[0].Action)
}

func Test_Reset_When_NotConfirmed(t *testing.T) {
	// setup
	c := newCLI(t)

	// act
	_, err := c.run("reset")

	// assert
	assert.ErrorIs(t, err, ErrConfirmationRequired)
}

func Test_Reset_When_Confirmed_With_Yes(t *testing.T) {
	// setup
	c := newCLI(t)

	// arrange
	_, err := c.run("seed")
	require.NoError(t, err)

	// act
	_, resetErr := c.run("reset", "--yes")

	// assert
	require.NoError(t, resetErr)
	availableOut, err := c.run("available")
	require.NoError(t, err)
	assert.Empty(t, decodeOutput[[]custody.BookCopy](t, availableOut))
}

func Test_Migrate_Prints_SchemaVersion(t *testing.T) {
	// setup
	c := newCLI(t)

	// act
	out, err := c.run("migrate")

	// assert
	require.NoError(t, err)
	assert.Equal(t, "2", decodeOutput[map[string]string](t, out)["schema_version"])
}

func Test_History_When_FiltersAreAmbiguous(t *testing.T) {
	// setup
	c := newCLI(t)

	// act
	_, err := c.run("history", "--user", "u1", "--book", "b1")

	// assert
	assert.ErrorIs(t, err, ErrAmbiguousFilter)
}

func Test_Borrow_When_RequiredFlagIsMissing(t *testing.T) {
	// setup
	c := newCLI(t)

	// act
	_, err := c.run("borrow", "copy-1", "--user", "u1")

	// assert
	assert.Error(t, err)
}

func Test_Root_When_OutputFormatIsUnknown(t *testing.T) {
	// setup
	c := newCLI(t)

	// act
	_, err := c.run("available", "--output", "yaml")

	// assert
	assert.ErrorIs(t, err, ErrUnknownOutput)
}
