package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-studio-server/modules/common/model"
)

func TestResolveRequestResizeModes(t *testing.T) {
	asset := &model.UploadedAsset{ID: "a1", Name: "mug.png", URL: "https://cdn.test/a1.png", Width: 800, Height: 600}
	ops := []model.Operation{model.OpResize, model.OpCompress}

	tests := []struct {
		name    string
		cfg     model.ProcessingConfiguration
		wantOps []model.Operation
		want    *model.ResizeOptions
	}{
		{
			name:    "original drops resize",
			cfg:     model.ProcessingConfiguration{Operations: ops, ResizeMode: model.ResizeOriginal},
			wantOps: []model.Operation{model.OpCompress},
		},
		{
			name:    "preset copies dims",
			cfg:     model.ProcessingConfiguration{Operations: ops, ResizeMode: model.ResizePreset, Preset: model.ResizeOptions{Width: 1080, Height: 1080}},
			wantOps: ops,
			want:    &model.ResizeOptions{Width: 1080, Height: 1080},
		},
		{
			name:    "custom copies dims",
			cfg:     model.ProcessingConfiguration{Operations: ops, ResizeMode: model.ResizeCustom, Custom: model.ResizeOptions{Width: 640, Height: 480}},
			wantOps: ops,
			want:    &model.ResizeOptions{Width: 640, Height: 480},
		},
		{
			name:    "percentage of known dims",
			cfg:     model.ProcessingConfiguration{Operations: ops, ResizeMode: model.ResizePercentage, Percentage: 50},
			wantOps: ops,
			want:    &model.ResizeOptions{Width: 400, Height: 300},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ResolveRequest(asset, "user-1", tt.cfg)
			assert.Equal(t, tt.wantOps, req.Operations)
			assert.NoError(t, req.Validate())

			got, ok := req.Options.Resize()
			if tt.want == nil {
				assert.False(t, ok)
				assert.NotContains(t, req.Operations, model.OpResize)
				return
			}
			require.True(t, ok)
			assert.Equal(t, *tt.want, got)
		})
	}
}

func TestResolveRequestPercentageFallback(t *testing.T) {
	asset := &model.UploadedAsset{ID: "a2", URL: "https://cdn.test/a2.jpg", Width: 0, Height: 300}
	cfg := model.ProcessingConfiguration{
		Operations: []model.Operation{model.OpResize},
		ResizeMode: model.ResizePercentage,
		Percentage: 25,
	}

	got, ok := ResolveRequest(asset, "user-1", cfg).Options.Resize()
	require.True(t, ok)
	assert.Equal(t, model.ResizeOptions{Width: 250, Height: 75}, got)
}

func TestResolveRequestAutoDetect(t *testing.T) {
	asset := &model.UploadedAsset{ID: "a3", URL: "https://cdn.test/a3.png"}
	cfg := model.ProcessingConfiguration{
		Operations:      []model.Operation{model.OpCrop},
		AutoDetect:      true,
		CompressQuality: 70,
	}

	req := ResolveRequest(asset, "user-1", cfg)
	assert.Empty(t, req.Operations)
	assert.True(t, req.AutoDetect)
	c, ok := req.Options.Compress()
	require.True(t, ok)
	assert.Equal(t, 70, c.Quality)
	assert.NoError(t, req.Validate())
}

func TestResolveRequestOptions(t *testing.T) {
	asset := &model.UploadedAsset{ID: "a4", URL: "https://cdn.test/a4.png"}
	cfg := model.ProcessingConfiguration{
		Operations:    []model.Operation{model.OpRecolor, model.OpCompress, model.OpBackgroundRemoval},
		RecolorTarget: "#3366ff",
	}

	req := ResolveRequest(asset, "user-1", cfg)
	r, ok := req.Options.Recolor()
	require.True(t, ok)
	assert.Equal(t, "#3366ff", r.Color)
	_, ok = req.Options.Compress()
	assert.False(t, ok, "quality 0 means provider default")
	assert.NoError(t, req.Validate())
}
