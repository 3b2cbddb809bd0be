package collect

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"product-studio-server/modules/common/model"
)

var (
	urlHeaders  = []string{"url", "image_url", "image", "image url"}
	nameHeaders = []string{"name", "title", "sku", "product"}
)

// ParseCSV - CSV 행을 URL 후보로 변환
func ParseCSV(r io.Reader) ([]*model.AssetCandidate, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rowsToCandidates(rows), nil
}

// ParseSpreadsheet - XLSX 첫 번째 시트를 URL 후보로 변환
func ParseSpreadsheet(r io.Reader) ([]*model.AssetCandidate, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rowsToCandidates(rows), nil
}

// rowsToCandidates - 헤더가 있으면 url/name 컬럼 탐지, 없으면 0번 컬럼이 URL
func rowsToCandidates(rows [][]string) []*model.AssetCandidate {
	if len(rows) == 0 {
		return nil
	}

	urlCol, nameCol := -1, -1
	for i, cell := range rows[0] {
		h := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff")))
		if urlCol < 0 && contains(urlHeaders, h) {
			urlCol = i
		}
		if nameCol < 0 && contains(nameHeaders, h) {
			nameCol = i
		}
	}
	body := rows
	if urlCol >= 0 {
		body = rows[1:]
	} else {
		urlCol, nameCol = 0, -1
	}

	seen := make(map[string]bool, len(body))
	candidates := make([]*model.AssetCandidate, 0, len(body))
	for idx, row := range body {
		if urlCol >= len(row) {
			continue
		}
		u, ok := normalizeURL(row[urlCol], nil)
		if !ok {
			if strings.TrimSpace(row[urlCol]) != "" {
				log.Warn().Int("row", idx+1).Str("value", row[urlCol]).Msg("⚠️  [Collect] Skipping row without valid url")
			}
			continue
		}
		if seen[u] {
			continue
		}
		seen[u] = true

		name := ""
		if nameCol >= 0 && nameCol < len(row) {
			name = strings.TrimSpace(row[nameCol])
		}
		candidates = append(candidates, urlCandidate(u, name, model.SourceCSV))
	}
	return candidates
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
