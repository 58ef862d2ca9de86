package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sheetsight/api/internal/client"
	"github.com/sheetsight/api/internal/config"
	"github.com/sheetsight/api/internal/handler"
	"github.com/sheetsight/api/internal/middleware"
	"github.com/sheetsight/api/internal/query"
	"github.com/sheetsight/api/internal/service"
	"github.com/sheetsight/api/internal/store"
)

// testApp holds all components needed for testing
type testApp struct {
	app *fiber.App
}

// setupApp wires the Fiber app the way main.go does, against a throwaway
// miniredis and an unconfigured Groq client, so every compute request
// takes the fallback path and no background worker server runs.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	validate := validator.New()

	jobStore := store.NewJobStore(redisClient)
	datasetStore := store.NewDatasetStore(redisClient)
	computationStore := store.NewComputationStore(redisClient)

	groqClient := client.NewGroqClient(&config.GroqConfig{}) // no API key -> generation unavailable
	generator := query.NewGenerator(groqClient, 0)
	engine := query.NewEngine()

	uploadService := service.NewUploadService(redisClient, noopEnqueuer{}, jobStore, datasetStore)
	computeService := service.NewComputeService(datasetStore, computationStore, generator, engine)

	uploadCfg := config.UploadConfig{MaxBytes: 1024 * 1024}
	uploadHandler := handler.NewUploadHandler(uploadService, uploadCfg)
	jobsHandler := handler.NewJobsHandler(uploadService)
	computeHandler := handler.NewComputeHandler(computeService, validate)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		BodyLimit: 2 * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Post("/upload", rateLimiter.UploadLimit(50), uploadHandler.Upload)
	api.Get("/jobs/:jobId", jobsHandler.Status)
	computeGroup := api.Group("/compute", rateLimiter.ComputeLimit(30))
	computeGroup.Post("/", computeHandler.Compute)
	computeGroup.Get("/history", computeHandler.History)

	return &testApp{app: app}
}

// noopEnqueuer stands in for the asynq client; enqueued tasks go nowhere,
// leaving the job in pending exactly as a saturated pool would.
type noopEnqueuer struct{}

func (noopEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

// createUploadRequest builds a multipart/form-data request with a CSV body.
func createUploadRequest(t *testing.T, userID, filename, content, mode string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	_ = writer.WriteField("user_id", userID)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	partHeader.Set("Content-Type", "text/csv")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	_, _ = part.Write([]byte(content))

	writer.Close()

	url := "/api/upload"
	if mode != "" {
		url += "?mode=" + mode
	}
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req
}

func jsonRequest(t *testing.T, method, url string, payload interface{}) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(body))
	}
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", string(body), err)
	}
	return result
}
