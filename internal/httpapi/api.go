package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/mindbloom/mindbloom/internal/dto"
	"github.com/mindbloom/mindbloom/internal/schema"
	"github.com/mindbloom/mindbloom/internal/service"
)

const (
	storeTimeout    = 30 * time.Second
	generateTimeout = 90 * time.Second
)

func userToDTO(u *schema.User) dto.UserDTO {
	return dto.UserDTO{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

// ========== 数据同步 ==========

func (a *apiServer) getData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	snap, err := a.deps.Sync.PullAll(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DataFromSchema(snap.Moods, snap.Tasks, snap.Suggestions, snap.Quotes, snap.LastUpdated))
}

func (a *apiServer) postData(w http.ResponseWriter, r *http.Request) {
	var req dto.DataDTO
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	recs, err := req.ToRecords()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	_, err = a.deps.Sync.PushAll(ctx, &service.PushSnapshot{
		Moods:       recs.Moods,
		Tasks:       recs.Tasks,
		Suggestions: recs.Suggestions,
		Quotes:      recs.Quotes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PushDataResponse{Success: true, Data: req})
}

func (a *apiServer) postMood(w http.ResponseWriter, r *http.Request) {
	var req dto.MoodDTO
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := req.ToSchema()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := a.deps.Sync.PushMood(r.Context(), m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

func (a *apiServer) postTask(w http.ResponseWriter, r *http.Request) {
	var req dto.TaskDTO
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	t, err := req.ToSchema("")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := a.deps.Sync.PushTask(r.Context(), t); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

func (a *apiServer) postSuggestion(w http.ResponseWriter, r *http.Request) {
	var req dto.SuggestionDTO
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s, err := req.ToSchema()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := a.deps.Sync.PushSuggestion(r.Context(), s); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CreatedResponse{Success: true, ID: s.ID})
}

func (a *apiServer) postQuote(w http.ResponseWriter, r *http.Request) {
	var req dto.QuoteDTO
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	q, err := req.ToSchema()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := a.deps.Sync.PushQuote(r.Context(), q); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CreatedResponse{Success: true, ID: q.ID})
}

// ========== 用户 ==========

func (a *apiServer) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.deps.Auth.Current(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.UserResponse{Success: true, User: userToDTO(u)})
}

func (a *apiServer) putUser(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := a.deps.Auth.Update(r.Context(), req.Username, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true, Message: "用户信息更新成功"})
}

func (a *apiServer) login(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := a.deps.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := dto.LoginResponse{Success: true, User: userToDTO(res.User), Token: res.Token}
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}

// ========== 生成 ==========

func (a *apiServer) generateSuggestion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()

	res, err := a.deps.Suggestions.GenerateSuggestion(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuggestionResponse{
		Success:    true,
		Suggestion: dto.SuggestionFromSchema(*res.Suggestion),
		Source:     string(res.Source),
	})
}

func (a *apiServer) generateQuote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()

	res, err := a.deps.Suggestions.GenerateQuote(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.QuoteResponse{
		Success: true,
		Quote:   res.Quote.Text,
		IsAI:    res.Quote.IsGenerated,
		Source:  string(res.Source),
	})
}

func (a *apiServer) generateDaily(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*generateTimeout)
	defer cancel()

	if err := a.deps.Suggestions.RunDaily(ctx); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true, Message: "AI内容生成完成"})
}
