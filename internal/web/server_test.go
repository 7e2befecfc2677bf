package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mptreasury/internal/importer"
	"mptreasury/internal/logger"
	"mptreasury/internal/model"
	"mptreasury/internal/pipeline"
)

type fakeImporter struct {
	block bool
	err   error
	calls chan string
}

func (f *fakeImporter) RunImport(ctx context.Context, dir string, upload bool, hooks importer.Hooks) (*pipeline.Summary, error) {
	if f.calls != nil {
		f.calls <- dir
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}

	raw, _ := model.NewRawAlbum("Album", "Artist", "", dir, []model.RawSong{model.NewRawSong("One", dir+"/01 - One.flac")})
	hooks.OnAlbumsFound(1)
	hooks.OnAlbumStarted(0, raw)
	result := importer.AlbumResult{Path: dir, RawName: "Album", RawArtist: "Artist", Outcome: importer.OutcomeImported, Score: 100, AlbumID: 7}
	hooks.OnAlbumFinished(0, result)

	report := &importer.Report{Albums: []importer.AlbumResult{
		result,
		{Path: dir + "/broken", Outcome: importer.OutcomeFailed, Err: errors.New("album has no tracks")},
	}}
	summary := &pipeline.Summary{Report: report}
	if upload {
		summary.Upload.Uploaded = 1
	}
	return summary, nil
}

func newTestServer(t *testing.T, imp Importer) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer(ctx, NewJobManager(), imp, logger.Discard())
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		cancel()
		ts.Close()
		s.Wait()
	})
	return s, ts
}

func postImport(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/import", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeJob(t *testing.T, resp *http.Response) JobResponse {
	t.Helper()
	defer resp.Body.Close()
	var job JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return job
}

func waitForStatus(t *testing.T, ts *httptest.Server, id string, want JobStatus) JobResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/api/jobs/" + id)
		if err != nil {
			t.Fatal(err)
		}
		job := decodeJob(t, resp)
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return JobResponse{}
}

func importBody(dir string, upload bool) string {
	b, _ := json.Marshal(ImportRequest{MusicPath: dir, UploadToRemote: upload})
	return string(b)
}

func TestImportJobCompletes(t *testing.T) {
	_, ts := newTestServer(t, &fakeImporter{})
	dir := t.TempDir()

	resp := postImport(t, ts, importBody(dir, true))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	created := decodeJob(t, resp)
	if created.MusicPath != dir || !created.Upload {
		t.Errorf("unexpected job %+v", created)
	}

	job := waitForStatus(t, ts, created.ID, StatusCompleted)
	if job.Total != 1 || job.Progress != 1 {
		t.Errorf("progress = %d/%d, want 1/1", job.Progress, job.Total)
	}
	if job.Uploaded != 1 {
		t.Errorf("uploaded = %d, want 1", job.Uploaded)
	}
	if len(job.Albums) != 2 {
		t.Fatalf("albums = %+v, want 2 entries", job.Albums)
	}
	if job.Albums[0].Outcome != "imported" || job.Albums[0].AlbumID != 7 {
		t.Errorf("first album = %+v", job.Albums[0])
	}
	if job.Albums[1].Outcome != "failed" || job.Albums[1].Error == "" {
		t.Errorf("second album = %+v", job.Albums[1])
	}
	if job.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestImportJobFails(t *testing.T) {
	_, ts := newTestServer(t, &fakeImporter{err: errors.New("database locked")})

	created := decodeJob(t, postImport(t, ts, importBody(t.TempDir(), false)))
	job := waitForStatus(t, ts, created.ID, StatusFailed)
	if job.Error != "database locked" {
		t.Errorf("error = %q", job.Error)
	}
}

func TestImportRequestValidation(t *testing.T) {
	_, ts := newTestServer(t, &fakeImporter{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"missing path", `{"music_path": ""}`},
		{"not a directory", importBody("/definitely/not/here", false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postImport(t, ts, tt.body)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, &fakeImporter{})
	resp, err := http.Get(ts.URL + "/api/import")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestGetUnknownJob(t *testing.T) {
	_, ts := newTestServer(t, &fakeImporter{})
	resp, err := http.Get(ts.URL + "/api/jobs/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCancelRunningJob(t *testing.T) {
	imp := &fakeImporter{block: true, calls: make(chan string, 1)}
	_, ts := newTestServer(t, imp)

	created := decodeJob(t, postImport(t, ts, importBody(t.TempDir(), false)))
	select {
	case <-imp.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("import never started")
	}

	resp, err := http.Post(ts.URL+"/api/jobs/"+created.ID+"/cancel", "application/json", &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	waitForStatus(t, ts, created.ID, StatusCancelled)

	// A finished job cannot be cancelled again.
	resp, err = http.Post(ts.URL+"/api/jobs/"+created.ID+"/cancel", "application/json", &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", resp.StatusCode)
	}
}

func TestListJobs(t *testing.T) {
	_, ts := newTestServer(t, &fakeImporter{})
	first := decodeJob(t, postImport(t, ts, importBody(t.TempDir(), false)))
	waitForStatus(t, ts, first.ID, StatusCompleted)
	second := decodeJob(t, postImport(t, ts, importBody(t.TempDir(), false)))
	waitForStatus(t, ts, second.ID, StatusCompleted)

	resp, err := http.Get(ts.URL + "/api/jobs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var jobs []JobResponse
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Errorf("unexpected job list %+v", jobs)
	}
}

func TestWebSocketStreamsUntilDone(t *testing.T) {
	imp := &fakeImporter{block: true, calls: make(chan string, 1)}
	s, ts := newTestServer(t, imp)

	created := decodeJob(t, postImport(t, ts, importBody(t.TempDir(), false)))
	<-imp.calls

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?job_id=" + created.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var initial JobResponse
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if initial.ID != created.ID || initial.Status != StatusRunning {
		t.Errorf("initial state = %+v", initial)
	}

	job, _ := s.jobMgr.GetJob(created.ID)
	job.Cancel()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var update JobResponse
		if err := conn.ReadJSON(&update); err != nil {
			t.Fatalf("connection closed before a terminal update: %v", err)
		}
		if update.Status == StatusCancelled {
			break
		}
	}
}

func TestWebSocketRequiresKnownJob(t *testing.T) {
	_, ts := newTestServer(t, &fakeImporter{})
	resp, err := http.Get(ts.URL + "/ws?job_id=missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
