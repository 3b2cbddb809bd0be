package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/supabase-community/supabase-go"

	"product-studio-server/modules/common/config"
	"product-studio-server/modules/common/model"
)

const (
	tableAssets  = "assets"
	tableBatches = "asset_batches"
)

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient(cfg *config.Config) (*Client, error) {
	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &Client{supabase: supabaseClient}, nil
}

// CreateAsset - assets 레코드 생성 후 서버가 발급한 id 포함 레코드 반환
func (c *Client) CreateAsset(ctx context.Context, rec model.AssetRecord) (*model.AssetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := c.supabase.From(tableAssets).
		Insert(rec, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to insert asset record: %w", err)
	}

	var inserted []model.AssetRecord
	if err := json.Unmarshal(data, &inserted); err != nil {
		return nil, fmt.Errorf("failed to parse inserted asset: %w", err)
	}
	if len(inserted) == 0 || inserted[0].ID == "" {
		return nil, fmt.Errorf("asset insert returned no id")
	}

	log.Debug().Str("asset_id", inserted[0].ID).Str("path", rec.StoragePath).Msg("✅ Asset record created")
	return &inserted[0], nil
}

// FetchAsset - id로 에셋 조회
func (c *Client) FetchAsset(ctx context.Context, assetID string) (*model.AssetRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := c.supabase.From(tableAssets).
		Select("*", "exact", false).
		Eq("id", assetID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}

	var records []model.AssetRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse asset: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("asset not found: %s", assetID)
	}
	return &records[0], nil
}

// DeleteAsset - 레코드 삭제
func (c *Client) DeleteAsset(ctx context.Context, assetID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := c.supabase.From(tableAssets).
		Delete("", "").
		Eq("id", assetID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", assetID, err)
	}
	return nil
}

// UpdateProcessedURL - 처리 결과 URL 기록
func (c *Client) UpdateProcessedURL(ctx context.Context, assetID, processedURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	updateData := map[string]interface{}{
		"processed_url": processedURL,
		"updated_at":    "now()",
	}
	_, _, err := c.supabase.From(tableAssets).
		Update(updateData, "", "").
		Eq("id", assetID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update processed url for %s: %w", assetID, err)
	}
	return nil
}

// SaveBatch - 배치 요약 upsert (batch_id 기준)
func (c *Client) SaveBatch(ctx context.Context, rec model.BatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := c.supabase.From(tableBatches).
		Insert(rec, true, "batch_id", "", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to save batch %s: %w", rec.BatchID, err)
	}
	log.Info().Str("batch_id", rec.BatchID).Str("status", rec.Status).Msg("📝 Batch record saved")
	return nil
}
