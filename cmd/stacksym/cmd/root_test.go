package cmd

import (
	"encoding/json"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSchema(t *testing.T) {
	bts, err := configSchema()
	require.NoError(t, err)

	var schema struct {
		Title      string `json:"title"`
		Properties map[string]struct {
			Properties map[string]struct {
				Enum []string `json:"enum"`
			} `json:"properties"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(bts, &schema))
	assert.Equal(t, "stacksym", schema.Title)
	assert.Contains(t, schema.Properties, "debuginfo")
	assert.Equal(t, []string{"memory", "local", "sqlite", "postgres"}, schema.Properties["store"].Properties["type"].Enum)
}

func TestDaemonClient(t *testing.T) {
	t.Cleanup(func() { viper.Set("server", "") })

	viper.Set("server", "")
	c, err := daemonClient()
	require.NoError(t, err)
	assert.Nil(t, c)

	viper.Set("server", "unix:///tmp/stacksym.sock")
	c, err = daemonClient()
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "http://stacksymd/v1", c.URL)
}
