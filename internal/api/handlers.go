package api

import (
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/academic-crs/internal/model"
	"github.com/sells-group/academic-crs/internal/pipeline"
	"github.com/sells-group/academic-crs/internal/reasoning"
	"github.com/sells-group/academic-crs/internal/validate"
)

type extractRequest struct {
	keys
	Text string `json:"text"`
}

// readExtractRequest accepts a JSON body or a (multipart) form.
func readExtractRequest(w http.ResponseWriter, r *http.Request) (extractRequest, error) {
	var req extractRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		err := decodeJSON(w, r, &req)
		return req, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxRequestBodySize); err != nil {
			return req, err
		}
	} else if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Text = r.FormValue("text")
	req.OpenRouterKey = r.FormValue("openrouter_key")
	req.OpenRouterKeyBackup = r.FormValue("openrouter_key_backup")
	req.SearchKey = r.FormValue("search_key")
	req.SerperKey = r.FormValue("serper_key")
	return req, nil
}

func handleExtractProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := readExtractRequest(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		res, err := deps.Extractor.Extract(r.Context(), req.Text, req.keys.pair(deps.Defaults))
		if err != nil {
			zap.L().Error("extract profile failed", zap.Error(err))
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type runAgentRequest struct {
	keys
	Step     *int          `json:"step"`
	Profile  model.Profile `json:"profile"`
	Feedback string        `json:"user_feedback"`
}

type runAgentError struct {
	Error string `json:"error"`
	Step  *int   `json:"step"`
}

func handleRunAgent(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runAgentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Step == nil {
			writeJSON(w, http.StatusBadRequest, runAgentError{Error: "step is required"})
			return
		}

		res, err := deps.Controller.RunStage(r.Context(), pipeline.StageRequest{
			Index:       *req.Step,
			Profile:     req.Profile,
			Feedback:    req.Feedback,
			Credentials: req.keys.pair(deps.Defaults),
		})
		if err != nil {
			writeJSON(w, statusFor(err), runAgentError{Error: err.Error(), Step: req.Step})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"result":     res.Output,
			"stage":      res.Stage.Name,
			"output_key": res.Stage.Output,
			"model":      res.Model,
		})
	}
}

type qaRequest struct {
	keys
	Question string         `json:"question"`
	Context  map[string]any `json:"context"`
}

func handleQA(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req qaRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		ans, err := deps.Controller.Answer(r.Context(), pipeline.Question{
			Question:    req.Question,
			Context:     req.Context,
			Credentials: req.keys.pair(deps.Defaults),
		})
		if err != nil {
			zap.L().Error("qa failed", zap.Error(err))
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

type validateRequest struct {
	Profile       model.Profile `json:"profile"`
	AcademicLevel string        `json:"academic_level"`
}

func handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	level := req.AcademicLevel
	if level == "" {
		level = req.Profile.String(model.FieldAcademicLevel)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"missing_fields": validate.MissingFields(req.Profile, level),
	})
}

func handleGetModelName(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok, err := deps.Store.GetModelOverride(r.Context())
		if err != nil {
			zap.L().Error("read model override failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
			return
		}
		if !ok || name == "" {
			name = reasoning.DefaultModelLabel
		}
		writeJSON(w, http.StatusOK, map[string]string{"model_name": name})
	}
}

func handleSetModelName(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ModelName *string `json:"model_name"`
		}
		if err := decodeJSON(w, r, &req); err != nil || req.ModelName == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "model_name is required"})
			return
		}
		name := strings.TrimSpace(*req.ModelName)
		if err := deps.Store.SetModelOverride(r.Context(), name); err != nil {
			zap.L().Error("write model override failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
			return
		}
		zap.L().Info("model override updated", zap.String("model_name", name))
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "model_name": name})
	}
}
