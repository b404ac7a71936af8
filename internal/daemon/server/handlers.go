package server

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/daemon/engine"
	"github.com/grovetools/orion/pkg/mi"
	"github.com/grovetools/orion/pkg/models"
)

// multipartOverhead is the room left for form fields and part headers on
// top of the source size limit.
const multipartOverhead = 64 << 10

// StartResponse answers /start.
type StartResponse struct {
	SessionToken string `json:"sessionToken"`
}

// LoadResponse answers /code and /file.
type LoadResponse struct {
	SessionToken string              `json:"sessionToken"`
	Response     []mi.Record         `json:"response"`
	ProgramState models.ProgramState `json:"programState"`
}

// StepResponse answers /step, /next and /state.
type StepResponse struct {
	SessionToken string              `json:"sessionToken"`
	ProgramState models.ProgramState `json:"programState"`
}

// OutputResponse answers /output.
type OutputResponse struct {
	SessionToken string   `json:"sessionToken"`
	Output       []string `json:"output"`
}

// MemoryResponse answers /memory.
type MemoryResponse struct {
	SessionToken string              `json:"sessionToken"`
	Memory       models.HeapSnapshot `json:"memory"`
}

// CloseResponse answers /close.
type CloseResponse struct {
	SessionToken string `json:"sessionToken"`
	Closed       bool   `json:"closed"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	token, err := s.engine.CreateSession(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StartResponse{SessionToken: token})
}

// handleCode loads program text posted in the "code" form field.
func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit+multipartOverhead)
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, errors.InvalidInput("malformed form: "+err.Error()))
		return
	}

	token := r.PostForm.Get("sessionToken")
	result, err := s.engine.LoadCode(r.Context(), token, r.PostForm.Get("code"))
	s.writeLoad(w, r, token, result, err)
}

// handleFile loads a source uploaded in the "file" multipart field.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadLimit+multipartOverhead)
	if err := r.ParseMultipartForm(s.uploadLimit + multipartOverhead); err != nil {
		s.writeError(w, r, errors.InvalidInput("malformed upload: "+err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	token := r.FormValue("sessionToken")
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, errors.InvalidInput("no file submitted"))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		s.writeError(w, r, errors.InvalidInput("no file selected"))
		return
	}
	result, err := s.engine.LoadSource(r.Context(), token, name, file)
	s.writeLoad(w, r, token, result, err)
}

func (s *Server) writeLoad(w http.ResponseWriter, r *http.Request, token string, result engine.LoadResult, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoadResponse{
		SessionToken: token,
		Response:     result.Records,
		ProgramState: result.State,
	})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("sessionToken")
	st, err := s.engine.Step(r.Context(), token)
	s.writeState(w, r, token, st, err)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("sessionToken")
	st, err := s.engine.Next(r.Context(), token)
	s.writeState(w, r, token, st, err)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("sessionToken")
	st, err := s.engine.State(token)
	s.writeState(w, r, token, st, err)
}

func (s *Server) writeState(w http.ResponseWriter, r *http.Request, token string, st models.ProgramState, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StepResponse{SessionToken: token, ProgramState: st})
}

// handleCommand passes a raw MI command through and returns its records.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recs, err := s.engine.SendRaw(r.Context(), q.Get("sessionToken"), q.Get("command"), q.Get("expected"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleVariable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	frame := 0
	if raw := q.Get("frame"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, errors.InvalidInput("frame must be an integer"))
			return
		}
		frame = n
	}

	info, err := s.engine.InspectVariable(r.Context(), q.Get("sessionToken"), q.Get("name"), frame)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("sessionToken")
	lines, err := s.engine.Output(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OutputResponse{SessionToken: token, Output: lines})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("sessionToken")
	heap, err := s.engine.Memory(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MemoryResponse{SessionToken: token, Memory: heap})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("sessionToken")
	if err := s.engine.CloseSession(token); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CloseResponse{SessionToken: token, Closed: true})
}
