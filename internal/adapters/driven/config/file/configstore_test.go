package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/strata-cli/internal/mask"
)

const sampleConfig = `
[[target_path]]
id = "tp-paxlist"
document_type = "OrderViewRS"
path = "OrderViewRS/Response/DataLists/PaxList"
enabled = true
expected_refs = ["Pax@PaxID"]
significant_fields = ["PaxList/Pax/PTC"]

[[target_path]]
id = "tp-legacy"
document_type = "OrderViewRS"
version = "15.2"
path = "OrderViewRS/Response/Passengers"
enabled = true

[[alias]]
version = "15.2"
canonical = "OrderViewRS/Response/DataLists/PaxList"
alternate = "OrderViewRS/Response/DataLists/PassengerList"
priority = 1

[[mask_rule]]
suffix = "Pax/GivenName"
role = "sensitive"
key = "pax-name"

[[mask_rule]]
suffix = "@PaxRefID"
role = "expected-reference"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestNewConfigProvider(t *testing.T) {
	provider, err := NewConfigProvider(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.NotNil(t, provider)
}

func TestNewConfigProvider_MissingFile(t *testing.T) {
	_, err := NewConfigProvider(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestNewConfigProvider_MalformedTOML(t *testing.T) {
	_, err := NewConfigProvider(writeConfig(t, "[[target_path]\nbroken"))
	assert.Error(t, err)
}

func TestConfigProvider_TargetPaths_VersionFilter(t *testing.T) {
	provider, err := NewConfigProvider(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	ctx := context.Background()

	// Unversioned entries apply to every version.
	paths, err := provider.TargetPaths(ctx, "17.2")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "tp-paxlist", paths[0].ID)
	assert.Equal(t, []string{"Pax@PaxID"}, paths[0].ExpectedRefs)
	assert.Equal(t, []string{"PaxList/Pax/PTC"}, paths[0].SignificantFields)

	// Versioned entries only to their own.
	paths, err = provider.TargetPaths(ctx, "15.2")
	require.NoError(t, err)
	require.Len(t, paths, 2)
}

func TestConfigProvider_Aliases(t *testing.T) {
	provider, err := NewConfigProvider(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	ctx := context.Background()

	aliases, err := provider.Aliases(ctx, "15.2")
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "OrderViewRS/Response/DataLists/PassengerList", aliases[0].Alternate)
	assert.Equal(t, 1, aliases[0].Priority)

	aliases, err = provider.Aliases(ctx, "17.2")
	require.NoError(t, err)
	assert.Empty(t, aliases)
}

func TestConfigProvider_MaskRules(t *testing.T) {
	provider, err := NewConfigProvider(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	rules := provider.MaskRules()
	require.Len(t, rules, 2)
	assert.Equal(t, mask.Rule{Suffix: "Pax/GivenName", Role: mask.RoleSensitive, Key: "pax-name"}, rules[0])
	assert.Equal(t, mask.RoleExpectedReference, rules[1].Role)
}

func TestConfigProvider_Load_Reloads(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	provider, err := NewConfigProvider(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`
[[target_path]]
id = "tp-new"
document_type = "AirShoppingRS"
path = "AirShoppingRS/Response"
enabled = true
`), 0600))
	require.NoError(t, provider.Load())

	paths, err := provider.TargetPaths(context.Background(), "17.2")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "tp-new", paths[0].ID)
}
