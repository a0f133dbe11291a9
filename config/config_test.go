package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"wallet_project_id":"abc","quote_api_url":"https://quotes.example"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "monad-testnet", cfg.Network)
	assert.Equal(t, int64(10143), cfg.ChainID)
	assert.Equal(t, "MON", cfg.NativeSymbol)
	assert.Equal(t, 50, cfg.SlippageBps)
	assert.Equal(t, 3, cfg.MaxHops)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "https://testnet.monadexplorer.com/tx/0xabc", cfg.ExplorerTxURL("0xabc"))
	assert.False(t, cfg.HasSigner())
}

func TestLoadRequiresProjectID(t *testing.T) {
	path := writeConfig(t, `{"quote_api_url":"https://quotes.example"}`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet_project_id")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MONSWAP_WALLET_PROJECT_ID", "from-env")
	t.Setenv("MONSWAP_QUOTE_API_URL", "https://env.example")
	t.Setenv("MONSWAP_PORT", "9090")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.WalletProjectID)
	assert.Equal(t, "https://env.example", cfg.QuoteAPIURL)
	assert.Equal(t, 9090, cfg.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"router":   `{"wallet_project_id":"a","quote_api_url":"u","router_address":"nope"}`,
		"slippage": `{"wallet_project_id":"a","quote_api_url":"u","slippage_bps":9000}`,
		"signers":  `{"wallet_project_id":"a","quote_api_url":"u","mnemonic":"m","private_key":"k"}`,
		"token":    `{"wallet_project_id":"a","quote_api_url":"u","tokens":[{"address":"0x1","symbol":"X"}]}`,
		"json":     `{`,
	}
	for name, body := range cases {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, name)
	}
}

func TestTokenListMergesExtras(t *testing.T) {
	path := writeConfig(t, `{
		"wallet_project_id":"a",
		"quote_api_url":"u",
		"tokens":[{"address":"0x0000000000000000000000000000000000000abc","symbol":"ABC"}]
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	list := cfg.TokenList()
	abc, ok := list.BySymbol("ABC")
	require.True(t, ok)
	assert.Equal(t, uint8(18), abc.Decimals)
	assert.Equal(t, "ABC", abc.Name)

	_, ok = list.BySymbol("USDC")
	assert.True(t, ok)
}
