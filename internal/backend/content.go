package backend

import (
	"context"
	"net/http"
	"net/url"
)

// GenerationStatus 批量选题生成任务状态
type GenerationStatus struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Message   string `json:"message,omitempty"`
}

// GetGenerationStatus 查询生成任务进度
func (c *Client) GetGenerationStatus(ctx context.Context, jobID string) (*GenerationStatus, error) {
	var st GenerationStatus
	path := "/content/bulk-topics/" + url.PathEscape(jobID) + "/status"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &st, "Failed to load generation status"); err != nil {
		return nil, err
	}
	if st.JobID == "" {
		st.JobID = jobID
	}
	return &st, nil
}
