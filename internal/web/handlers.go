package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"mptreasury/internal/importer"
	"mptreasury/internal/model"
)

type ImportRequest struct {
	MusicPath      string `json:"music_path"`
	UploadToRemote bool   `json:"upload_to_remote"`
}

type JobResponse struct {
	ID          string         `json:"id"`
	MusicPath   string         `json:"music_path"`
	Upload      bool           `json:"upload_to_remote"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"`
	Total       int            `json:"total"`
	Current     string         `json:"current,omitempty"`
	Albums      []AlbumSummary `json:"albums"`
	Uploaded    int            `json:"uploaded"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   string         `json:"created_at"`
	StartedAt   *string        `json:"started_at,omitempty"`
	CompletedAt *string        `json:"completed_at,omitempty"`
}

const timeLayout = "2006-01-02 15:04:05"

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.MusicPath == "" {
		http.Error(w, "music_path is required", http.StatusBadRequest)
		return
	}
	info, err := os.Stat(req.MusicPath)
	if err != nil || !info.IsDir() {
		http.Error(w, fmt.Sprintf("music_path %q is not a directory", req.MusicPath), http.StatusBadRequest)
		return
	}

	job := s.jobMgr.CreateJob(req.MusicPath, req.UploadToRemote)
	s.logger.Info("Created job %s for %s", job.ID, req.MusicPath)

	s.wg.Add(1)
	go s.processJob(job.ID)

	writeJSON(w, http.StatusAccepted, jobToResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobMgr.ListJobs()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = jobToResponse(job)
	}
	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobMgr.GetJob(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, jobToResponse(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.jobMgr.GetJob(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if job.Status.Terminal() {
		http.Error(w, fmt.Sprintf("job %s already %s", id, job.Status), http.StatusConflict)
		return
	}

	if job.Cancel != nil {
		job.Cancel()
	}
	s.jobMgr.UpdateJob(id, func(j *Job) {
		j.Status = StatusCancelled
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": string(StatusCancelled)})
}

func (s *Server) processJob(id string) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	job, err := s.jobMgr.GetJob(id)
	if err != nil {
		return
	}
	s.jobMgr.UpdateJob(id, func(j *Job) {
		j.Cancel = cancel
		if j.Status == StatusCancelled {
			cancel()
		}
	})

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		s.finishCancelled(id)
		return
	}

	s.jobMgr.UpdateJob(id, func(j *Job) {
		j.Status = StatusRunning
	})
	s.logger.Info("Starting job %s", id)

	hooks := importer.Hooks{
		OnAlbumsFound: func(total int) {
			s.jobMgr.UpdateJob(id, func(j *Job) { j.Total = total })
		},
		OnAlbumStarted: func(_ int, raw *model.RawAlbum) {
			s.jobMgr.UpdateJob(id, func(j *Job) { j.Current = raw.Name })
		},
		OnAlbumFinished: func(_ int, result importer.AlbumResult) {
			s.jobMgr.UpdateJob(id, func(j *Job) {
				j.Progress++
				j.Current = ""
				j.Albums = append(j.Albums, summarize(result))
			})
		},
	}

	summary, err := s.importer.RunImport(ctx, job.MusicPath, job.Upload, hooks)
	if ctx.Err() != nil {
		s.finishCancelled(id)
		return
	}
	if err != nil {
		s.logger.Error("Job %s failed: %v", id, err)
		s.jobMgr.UpdateJob(id, func(j *Job) {
			j.Status = StatusFailed
			j.Error = err.Error()
		})
		return
	}

	s.jobMgr.UpdateJob(id, func(j *Job) {
		// Build failures are only known once the report is complete.
		for _, r := range summary.Report.Albums {
			if r.Outcome == importer.OutcomeFailed && r.RawName == "" {
				j.Albums = append(j.Albums, summarize(r))
			}
		}
		j.Uploaded = summary.Upload.Uploaded
		j.Status = StatusCompleted
	})
	s.logger.Info("Job %s completed: %s", id, summary.Report.Summary())
}

func (s *Server) finishCancelled(id string) {
	s.logger.Info("Job %s cancelled", id)
	s.jobMgr.UpdateJob(id, func(j *Job) {
		j.Status = StatusCancelled
	})
}

func summarize(r importer.AlbumResult) AlbumSummary {
	sum := AlbumSummary{
		Path:    r.Path,
		Album:   r.RawName,
		Artist:  r.RawArtist,
		Outcome: r.Outcome.String(),
		Score:   r.Score,
		AlbumID: r.AlbumID,
	}
	if r.Album != nil {
		sum.Album, sum.Artist = r.Album.Name, r.Album.ArtistName
	}
	if r.Err != nil {
		sum.Error = r.Err.Error()
	}
	return sum
}

func jobToResponse(job Job) *JobResponse {
	resp := &JobResponse{
		ID:        job.ID,
		MusicPath: job.MusicPath,
		Upload:    job.Upload,
		Status:    job.Status,
		Progress:  job.Progress,
		Total:     job.Total,
		Current:   job.Current,
		Albums:    job.Albums,
		Uploaded:  job.Uploaded,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(timeLayout),
	}
	if resp.Albums == nil {
		resp.Albums = []AlbumSummary{}
	}
	resp.StartedAt = formatTime(job.StartedAt)
	resp.CompletedAt = formatTime(job.CompletedAt)
	return resp
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
