package cmd

import (
	"context"
	"testing"

	"github.com/lehigh-university-libraries/imagegen/internal/config"
	"github.com/lehigh-university-libraries/imagegen/internal/sdapi"
	"github.com/lehigh-university-libraries/imagegen/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnhancer(t *testing.T) {
	enhancer, err := newEnhancer(&config.Config{ClassifierProvider: "none"})
	require.NoError(t, err)
	assert.Nil(t, enhancer)

	enhancer, err = newEnhancer(&config.Config{ClassifierProvider: "ollama"})
	require.NoError(t, err)
	assert.NotNil(t, enhancer)

	_, err = newEnhancer(&config.Config{ClassifierProvider: "bogus"})
	assert.Error(t, err)
}

func TestNewLoader(t *testing.T) {
	loader, err := newLoader(context.Background(), &config.Config{Backend: config.BackendSDAPI, SDAPIURL: "http://gpu:7860"})
	require.NoError(t, err)
	client, ok := loader.(*sdapi.Client)
	require.True(t, ok)
	assert.Equal(t, "http://gpu:7860", client.BaseURL)

	_, err = newLoader(context.Background(), &config.Config{Backend: "comfy"})
	assert.Error(t, err)
}

func TestNewUploader(t *testing.T) {
	up, err := newUploader(context.Background(), &config.Config{}, "out", false)
	require.NoError(t, err)
	assert.Equal(t, &storage.FileUploader{Dir: "out"}, up)

	_, err = newUploader(context.Background(), &config.Config{}, "out", true)
	assert.Error(t, err)
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "generate", "classify", "batch"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}
