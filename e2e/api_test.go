package e2e

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvSample = "temperature,city\n10,Ankara\n20,Izmir\n30,Istanbul\n"

func TestHealthEndpoint(t *testing.T) {
	ta := setupApp(t)

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestUploadSyncReturnsColumns(t *testing.T) {
	ta := setupApp(t)

	req := createUploadRequest(t, "alice", "data.csv", csvSample, "sync")
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	assert.Equal(t, "alice", body["user_id"])

	columns, ok := body["columns"].([]interface{})
	require.True(t, ok, "columns should be an array")
	require.Len(t, columns, 1)
	assert.Equal(t, "temperature", columns[0])
}

func TestUploadRejectsMissingFile(t *testing.T) {
	ta := setupApp(t)

	req, _ := http.NewRequest(http.MethodPost, "/api/upload", nil)
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestUploadRejectsNonCSV(t *testing.T) {
	ta := setupApp(t)

	req := createUploadRequest(t, "alice", "data.txt", "hello", "sync")
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusBadRequest)

	body := parseJSON(t, resp)
	errDetail, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", errDetail["code"])
}

func TestUploadSyncRejectsNonNumericFile(t *testing.T) {
	ta := setupApp(t)

	req := createUploadRequest(t, "alice", "names.csv", "name,city\nada,Ankara\n", "sync")
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestUploadAsyncReturnsJobID(t *testing.T) {
	ta := setupApp(t)

	req := createUploadRequest(t, "alice", "data.csv", csvSample, "")
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusAccepted)

	body := parseJSON(t, resp)
	assert.Equal(t, "alice", body["user_id"])
	jobID, _ := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	// no worker pool runs in this harness, so the job stays pending
	statusReq, _ := http.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"?user_id=alice", nil)
	statusResp, err := ta.app.Test(statusReq)
	require.NoError(t, err)
	assertStatus(t, statusResp, http.StatusOK)

	statusBody := parseJSON(t, statusResp)
	assert.Equal(t, jobID, statusBody["job_id"])
	assert.Equal(t, "pending", statusBody["state"])
}

func TestJobStatusUnknownJob(t *testing.T) {
	ta := setupApp(t)

	req, _ := http.NewRequest(http.MethodGet, "/api/jobs/no-such-job", nil)
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusNotFound)
}

func TestJobStatusWrongOwner(t *testing.T) {
	ta := setupApp(t)

	req := createUploadRequest(t, "alice", "data.csv", csvSample, "")
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	body := parseJSON(t, resp)
	jobID := body["job_id"].(string)

	// another owner must not be able to observe the job
	statusReq, _ := http.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"?user_id=mallory", nil)
	statusResp, err := ta.app.Test(statusReq)
	require.NoError(t, err)
	assertStatus(t, statusResp, http.StatusNotFound)
}

func TestComputeWithoutDataset(t *testing.T) {
	ta := setupApp(t)

	req := jsonRequest(t, http.MethodPost, "/api/compute/", map[string]string{
		"user_id":   "nobody",
		"column":    "temperature",
		"operation": "average",
	})
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestComputeFallbackFlow(t *testing.T) {
	ta := setupApp(t)

	uploadReq := createUploadRequest(t, "alice", "data.csv", csvSample, "sync")
	uploadResp, err := ta.app.Test(uploadReq)
	require.NoError(t, err)
	assertStatus(t, uploadResp, http.StatusOK)

	// the harness provider is unconfigured, so every compute request
	// resolves through the deterministic fallback path
	req := jsonRequest(t, http.MethodPost, "/api/compute/", map[string]string{
		"user_id":   "alice",
		"column":    "temperature",
		"operation": "average",
	})
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	assert.Equal(t, "fallback", body["status"])
	assert.Nil(t, body["generated_query"])
	require.NotNil(t, body["result"])
	assert.InDelta(t, 20.0, body["result"].(float64), 1e-9)
}

func TestComputeOperationAliases(t *testing.T) {
	ta := setupApp(t)

	uploadReq := createUploadRequest(t, "alice", "data.csv", csvSample, "sync")
	uploadResp, err := ta.app.Test(uploadReq)
	require.NoError(t, err)
	assertStatus(t, uploadResp, http.StatusOK)

	cases := []struct {
		operation string
		want      float64
	}{
		{"mean", 20},
		{"total", 60},
		{"count", 3},
		{"minimum", 10},
		{"maximum", 30},
		{"median", 20},
	}
	for _, tc := range cases {
		req := jsonRequest(t, http.MethodPost, "/api/compute/", map[string]string{
			"user_id":   "alice",
			"column":    "temperature",
			"operation": tc.operation,
		})
		resp, err := ta.app.Test(req)
		require.NoError(t, err)
		assertStatus(t, resp, http.StatusOK)

		body := parseJSON(t, resp)
		require.NotNil(t, body["result"], "operation %q", tc.operation)
		assert.InDelta(t, tc.want, body["result"].(float64), 1e-9, "operation %q", tc.operation)
	}
}

func TestComputeUnknownOperation(t *testing.T) {
	ta := setupApp(t)

	uploadReq := createUploadRequest(t, "alice", "data.csv", csvSample, "sync")
	uploadResp, err := ta.app.Test(uploadReq)
	require.NoError(t, err)
	assertStatus(t, uploadResp, http.StatusOK)

	req := jsonRequest(t, http.MethodPost, "/api/compute/", map[string]string{
		"user_id":   "alice",
		"column":    "temperature",
		"operation": "frobnicate",
	})
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestComputeUnknownColumn(t *testing.T) {
	ta := setupApp(t)

	uploadReq := createUploadRequest(t, "alice", "data.csv", csvSample, "sync")
	uploadResp, err := ta.app.Test(uploadReq)
	require.NoError(t, err)
	assertStatus(t, uploadResp, http.StatusOK)

	req := jsonRequest(t, http.MethodPost, "/api/compute/", map[string]string{
		"user_id":   "alice",
		"column":    "humidity",
		"operation": "average",
	})
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestComputeValidationError(t *testing.T) {
	ta := setupApp(t)

	req := jsonRequest(t, http.MethodPost, "/api/compute/", map[string]string{
		"user_id": "alice",
		// column and operation missing
	})
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusBadRequest)
}

func TestComputeHistory(t *testing.T) {
	ta := setupApp(t)

	uploadReq := createUploadRequest(t, "alice", "data.csv", csvSample, "sync")
	uploadResp, err := ta.app.Test(uploadReq)
	require.NoError(t, err)
	assertStatus(t, uploadResp, http.StatusOK)

	for _, op := range []string{"sum", "average"} {
		req := jsonRequest(t, http.MethodPost, "/api/compute/", map[string]string{
			"user_id":   "alice",
			"column":    "temperature",
			"operation": op,
		})
		resp, err := ta.app.Test(req)
		require.NoError(t, err)
		assertStatus(t, resp, http.StatusOK)
	}

	histReq, _ := http.NewRequest(http.MethodGet, "/api/compute/history?user_id=alice", nil)
	histResp, err := ta.app.Test(histReq)
	require.NoError(t, err)
	assertStatus(t, histResp, http.StatusOK)

	body := parseJSON(t, histResp)
	assert.Equal(t, "alice", body["user_id"])
	records, ok := body["records"].([]interface{})
	require.True(t, ok)
	require.Len(t, records, 2)

	// newest first
	first := records[0].(map[string]interface{})
	assert.Equal(t, "average", first["operation"])
}

func TestUploadRateLimit(t *testing.T) {
	ta := setupApp(t)

	// helper app allows 50/hour; the 51st upload from the same owner is refused
	for i := 0; i < 50; i++ {
		req := createUploadRequest(t, "busy", "data.csv", csvSample, "sync")
		resp, err := ta.app.Test(req)
		require.NoError(t, err)
		assertStatus(t, resp, http.StatusOK)
	}

	req := createUploadRequest(t, "busy", "data.csv", csvSample, "sync")
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	assertStatus(t, resp, http.StatusTooManyRequests)
}
