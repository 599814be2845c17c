package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/andklim/insurebot/types"
)

const (
	// DefaultBaseURL points at the Mindee v2 inference API.
	DefaultBaseURL = "https://api-v2.mindee.net"

	defaultPollInterval = 1500 * time.Millisecond
)

// MindeeConfig configures the Mindee document inference client. One model id
// is trained per document class.
type MindeeConfig struct {
	APIKey          string
	BaseURL         string
	IdentityModelID string
	VehicleModelID  string
	PollInterval    time.Duration
}

// MindeeClient extracts document fields through Mindee's asynchronous
// inference API: enqueue the upload, poll the job, fetch the result.
type MindeeClient struct {
	cfg  MindeeConfig
	http *http.Client
}

func NewMindeeClient(cfg MindeeConfig) *MindeeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &MindeeClient{
		cfg:  cfg,
		http: &http.Client{},
	}
}

type enqueueResponse struct {
	Job mindeeJob `json:"job"`
}

type mindeeJob struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	PollingURL string `json:"polling_url"`
	ResultURL  string `json:"result_url"`
	Error      struct {
		Detail string `json:"detail"`
	} `json:"error"`
}

type inferenceResponse struct {
	Inference struct {
		Result struct {
			Fields map[string]struct {
				Value any `json:"value"`
			} `json:"fields"`
		} `json:"result"`
	} `json:"inference"`
}

func (c *MindeeClient) Extract(ctx context.Context, data []byte, filename string, class types.DocumentClass) (types.FieldSet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: document has no content", ErrExtraction)
	}
	modelID, err := c.modelFor(class)
	if err != nil {
		return nil, err
	}

	job, err := c.enqueue(ctx, data, filename, modelID)
	if err != nil {
		return nil, err
	}
	slog.Debug("document enqueued", "job_id", job.ID, "class", string(class))

	job, err = c.await(ctx, job)
	if err != nil {
		return nil, err
	}

	fields, err := c.fetchResult(ctx, job)
	if err != nil {
		return nil, err
	}
	if fields.Empty() {
		return nil, fmt.Errorf("%w: no fields recognized in document", ErrExtraction)
	}
	return fields, nil
}

func (c *MindeeClient) modelFor(class types.DocumentClass) (string, error) {
	switch class {
	case types.ClassIdentity:
		if c.cfg.IdentityModelID == "" {
			return "", fmt.Errorf("%w: identity model not configured", ErrExtraction)
		}
		return c.cfg.IdentityModelID, nil
	case types.ClassVehicle:
		if c.cfg.VehicleModelID == "" {
			return "", fmt.Errorf("%w: vehicle model not configured", ErrExtraction)
		}
		return c.cfg.VehicleModelID, nil
	}
	return "", fmt.Errorf("%w: unknown document class %q", ErrExtraction, class)
}

func (c *MindeeClient) enqueue(ctx context.Context, data []byte, filename, modelID string) (mindeeJob, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("model_id", modelID); err != nil {
		return mindeeJob{}, fmt.Errorf("%w: build upload: %v", ErrExtraction, err)
	}
	if err := form.WriteField("rag", "false"); err != nil {
		return mindeeJob{}, fmt.Errorf("%w: build upload: %v", ErrExtraction, err)
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return mindeeJob{}, fmt.Errorf("%w: build upload: %v", ErrExtraction, err)
	}
	if _, err = part.Write(data); err != nil {
		return mindeeJob{}, fmt.Errorf("%w: build upload: %v", ErrExtraction, err)
	}
	if err = form.Close(); err != nil {
		return mindeeJob{}, fmt.Errorf("%w: build upload: %v", ErrExtraction, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/inferences/enqueue", &body)
	if err != nil {
		return mindeeJob{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", c.cfg.APIKey)

	var resp enqueueResponse
	if err = c.do(req, &resp); err != nil {
		return mindeeJob{}, err
	}
	if resp.Job.ID == "" {
		return mindeeJob{}, fmt.Errorf("%w: enqueue returned no job", ErrExtraction)
	}
	return resp.Job, nil
}

func (c *MindeeClient) await(ctx context.Context, job mindeeJob) (mindeeJob, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		switch job.Status {
		case "Processed":
			return job, nil
		case "Failed":
			return mindeeJob{}, fmt.Errorf("%w: %s", ErrExtraction, job.Error.Detail)
		}

		select {
		case <-ctx.Done():
			return mindeeJob{}, fmt.Errorf("%w: %v", ErrExtraction, ctx.Err())
		case <-ticker.C:
		}

		pollURL := job.PollingURL
		if pollURL == "" {
			pollURL = fmt.Sprintf("%s/v2/jobs/%s", c.cfg.BaseURL, job.ID)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
		if err != nil {
			return mindeeJob{}, fmt.Errorf("%w: %v", ErrExtraction, err)
		}
		req.Header.Set("Authorization", c.cfg.APIKey)

		var resp enqueueResponse
		if err = c.do(req, &resp); err != nil {
			return mindeeJob{}, err
		}
		job = resp.Job
	}
}

func (c *MindeeClient) fetchResult(ctx context.Context, job mindeeJob) (types.FieldSet, error) {
	resultURL := job.ResultURL
	if resultURL == "" {
		resultURL = fmt.Sprintf("%s/v2/inferences/%s", c.cfg.BaseURL, job.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	var resp inferenceResponse
	if err = c.do(req, &resp); err != nil {
		return nil, err
	}

	fields := make(types.FieldSet, len(resp.Inference.Result.Fields))
	for name, field := range resp.Inference.Result.Fields {
		fields[name] = field.Value
	}
	return fields, nil
}

func (c *MindeeClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrExtraction, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: service returned status %d", ErrExtraction, resp.StatusCode)
	}
	if err = sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrExtraction, err)
	}
	return nil
}
