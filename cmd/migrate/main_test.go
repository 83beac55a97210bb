package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraBQ "github.com/dvloznov/finance-agent/internal/infra/bigquery"
)

func TestPlan(t *testing.T) {
	migrations := []infraBQ.Migration{
		{Version: 1, Name: "snapshot_tables", Checksum: "aaa"},
		{Version: 2, Name: "goals", Checksum: "bbb"},
		{Version: 3, Name: "indexes", Checksum: "ccc"},
	}
	applied := []infraBQ.AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "old"},
	}

	got := plan(migrations, applied)
	require.Len(t, got, 3)

	assert.True(t, got[0].Applied)
	assert.False(t, got[0].Drifted)

	assert.True(t, got[1].Applied)
	assert.True(t, got[1].Drifted)

	assert.False(t, got[2].Applied)
	assert.False(t, got[2].Drifted)
}

func TestPlan_EmbeddedMigrationsStartPending(t *testing.T) {
	migrations, err := infraBQ.Migrations("proj", "finance")
	require.NoError(t, err)

	for _, s := range plan(migrations, nil) {
		assert.False(t, s.Applied, s.Migration.Name)
	}
}
