package reconstruct

// Mode - 3D 재구성 결과 종류
type Mode string

const (
	ModeModel        Mode = "model"        // glb 모델
	ModeConfigurator Mode = "configurator" // 색상/재질 변경 가능한 모델
	ModeSpin         Mode = "spin"         // 360도 회전 영상
)

// createTaskRequest - 작업 생성 요청
type createTaskRequest struct {
	ImageURL string `json:"image_url"`
	Mode     Mode   `json:"mode"`
}

// createTaskResponse - 작업 생성 응답
type createTaskResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatus - 작업 상태 조회 응답
type TaskStatus struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"` // pending, running, succeeded, failed
	ModelURL string `json:"model_url,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ArtifactURL - 모드에 맞는 결과 URL
func (s *TaskStatus) ArtifactURL() string {
	if s.VideoURL != "" && s.ModelURL == "" {
		return s.VideoURL
	}
	return s.ModelURL
}
