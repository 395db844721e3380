package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchasePolicyDefaultsWhenFileMissing(t *testing.T) {
	holder, err := newPurchasePolicyHolder(t.TempDir())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, "FOTOYOU", policy.OrderPrefix)
	assert.True(t, policy.VerifyAmount)
	assert.Equal(t, "Unlock Watermark: %s", policy.ItemNameFormat)
	assert.Zero(t, policy.MaxAmount)
}

func TestPurchasePolicyReadsFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte("purchase:\n  orderPrefix: STORY\n  verifyAmount: false\n  maxAmount: 250000\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "purchase.yml"), body, 0o600))

	holder, err := newPurchasePolicyHolder(dir)
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, "STORY", policy.OrderPrefix)
	assert.False(t, policy.VerifyAmount)
	assert.Equal(t, int64(250000), policy.MaxAmount)
	assert.Equal(t, "Unlock Watermark: %s", policy.ItemNameFormat)
}

func TestPurchasePolicyRejectsInvalidPrefix(t *testing.T) {
	dir := t.TempDir()
	body := []byte("purchase:\n  orderPrefix: BAD-PREFIX\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "purchase.yml"), body, 0o600))

	_, err := newPurchasePolicyHolder(dir)
	assert.Error(t, err)
}

func TestNilHolderFallsBackToDefaults(t *testing.T) {
	var holder *PurchasePolicyHolder
	assert.Equal(t, DefaultPurchasePolicy(), holder.Get())
}
