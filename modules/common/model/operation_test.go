package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-studio-server/modules/common/apierr"
)

func TestProcessingRequestValidate(t *testing.T) {
	base := ProcessingRequest{AssetID: "a1", SourceURL: "https://cdn.test/a1.png"}

	tests := []struct {
		name    string
		mutate  func(r *ProcessingRequest)
		wantErr bool
	}{
		{"resize with dims", func(r *ProcessingRequest) {
			r.Operations = []Operation{OpResize}
			r.Options = OptionSet{OpResize: ResizeOptions{Width: 400, Height: 300}}
		}, false},
		{"resize without options", func(r *ProcessingRequest) {
			r.Operations = []Operation{OpResize}
		}, true},
		{"resize with compress shape", func(r *ProcessingRequest) {
			r.Operations = []Operation{OpResize}
			r.Options = OptionSet{OpResize: CompressOptions{Quality: 80}}
		}, true},
		{"compress auto quality", func(r *ProcessingRequest) {
			r.Operations = []Operation{OpCompress}
		}, false},
		{"compress out of range", func(r *ProcessingRequest) {
			r.Operations = []Operation{OpCompress}
			r.Options = OptionSet{OpCompress: CompressOptions{Quality: 140}}
		}, true},
		{"options for unrequested op", func(r *ProcessingRequest) {
			r.Operations = []Operation{OpBackgroundRemoval}
			r.Options = OptionSet{OpCompress: CompressOptions{Quality: 80}}
		}, true},
		{"bg-remove with stray options", func(r *ProcessingRequest) {
			r.Operations = []Operation{OpBackgroundRemoval}
			r.Options = OptionSet{OpBackgroundRemoval: ResizeOptions{Width: 1, Height: 1}}
		}, true},
		{"recolor hex", func(r *ProcessingRequest) {
			r.Operations = []Operation{OpRecolor}
			r.Options = OptionSet{OpRecolor: RecolorOptions{Color: "#ff8800"}}
		}, false},
		{"duplicate op", func(r *ProcessingRequest) {
			r.Operations = []Operation{OpCrop, OpCrop}
		}, true},
		{"unknown op", func(r *ProcessingRequest) {
			r.Operations = []Operation{"sparkle"}
		}, true},
		{"empty without autodetect", func(r *ProcessingRequest) {}, true},
		{"autodetect with empty ops", func(r *ProcessingRequest) {
			r.AutoDetect = true
			r.Options = OptionSet{OpCompress: CompressOptions{Quality: 70}}
		}, false},
		{"autodetect with ops", func(r *ProcessingRequest) {
			r.AutoDetect = true
			r.Operations = []Operation{OpCrop}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDecodeOptions(t *testing.T) {
	raw := map[string]json.RawMessage{
		"resize":    json.RawMessage(`{"width":640,"height":480}`),
		"compress":  json.RawMessage(`{"quality":75}`),
		"bg-remove": json.RawMessage(`{}`),
	}
	set, err := DecodeOptions(raw)
	require.NoError(t, err)

	r, ok := set.Resize()
	require.True(t, ok)
	assert.Equal(t, ResizeOptions{Width: 640, Height: 480}, r)
	c, ok := set.Compress()
	require.True(t, ok)
	assert.Equal(t, 75, c.Quality)
	assert.Equal(t, NoOptions{}, set[OpBackgroundRemoval])

	_, err = DecodeOptions(map[string]json.RawMessage{"glow": json.RawMessage(`{}`)})
	assert.Error(t, err)

	_, err = DecodeOptions(map[string]json.RawMessage{"resize": json.RawMessage(`"big"`)})
	assert.Error(t, err)
}

func TestProcessingConfigurationValidate(t *testing.T) {
	ok := ProcessingConfiguration{
		Operations: []Operation{OpResize, OpCompress},
		ResizeMode: ResizePercentage,
		Percentage: 50,
	}
	assert.NoError(t, ok.Validate())

	missingMode := ok
	missingMode.ResizeMode = ""
	assert.Error(t, missingMode.Validate())

	badPreset := ok
	badPreset.ResizeMode = ResizePreset
	assert.Error(t, badPreset.Validate())

	assert.Error(t, ProcessingConfiguration{}.Validate())
	assert.NoError(t, ProcessingConfiguration{AutoDetect: true}.Validate())

	recolor := ProcessingConfiguration{Operations: []Operation{OpRecolor}, RecolorTarget: "blue"}
	assert.Error(t, recolor.Validate())
	recolor.RecolorTarget = "0044ff"
	assert.NoError(t, recolor.Validate())
}

func TestBatchResultStatus(t *testing.T) {
	assert.Equal(t, StatusFailed, (&BatchResult{}).Status())
	assert.Equal(t, StatusCompleted, (&BatchResult{Total: 2, SuccessfullyFixed: 2}).Status())
	assert.Equal(t, StatusPartial, (&BatchResult{Total: 2, SuccessfullyFixed: 1}).Status())
	assert.Equal(t, StatusPartial, (&BatchResult{
		Total: 1, SuccessfullyFixed: 1,
		UploadFailures: []UploadFailure{{Name: "x"}},
	}).Status())
}
