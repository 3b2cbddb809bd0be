package collect

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/google/uuid"

	"product-studio-server/modules/common/model"
)

// FromFiles - multipart 파일을 payload가 채워진 후보로 변환
// maxBytes를 넘는 파일은 maxBytes+1 바이트까지만 읽음 (업로드 단계에서 거부)
func FromFiles(files []*multipart.FileHeader, maxBytes int64) ([]*model.AssetCandidate, error) {
	candidates := make([]*model.AssetCandidate, 0, len(files))
	for _, fh := range files {
		data, err := readFile(fh, maxBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		candidates = append(candidates, &model.AssetCandidate{
			ID:          uuid.NewString(),
			Name:        fh.Filename,
			Payload:     data,
			ContentType: fh.Header.Get("Content-Type"),
			Source:      model.SourceFile,
		})
	}
	return candidates, nil
}

func readFile(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	return io.ReadAll(r)
}
