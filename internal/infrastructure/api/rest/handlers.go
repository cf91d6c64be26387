package rest

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/fractalvote/deliberation/internal/domain"
)

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue(name))
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, APIError{Code: "BAD_REQUEST", Message: message})
}

type submitIdeaRequest struct {
	AuthorID uuid.UUID `json:"authorId"`
	Text     string    `json:"text"`
}

func (s *Server) handleSubmitIdea(w http.ResponseWriter, r *http.Request) {
	deliberationID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid deliberation id")
		return
	}
	var req submitIdeaRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ideaID, err := s.engine.SubmitIdea(r.Context(), deliberationID, req.AuthorID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"ideaId": ideaID})
}

type joinDeliberationRequest struct {
	UserID uuid.UUID `json:"userId"`
}

func (s *Server) handleJoinDeliberation(w http.ResponseWriter, r *http.Request) {
	deliberationID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid deliberation id")
		return
	}
	var req joinDeliberationRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.engine.JoinDeliberation(r.Context(), deliberationID, req.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type enterVotingRequest struct {
	UserID uuid.UUID `json:"userId"`
}

type enterVotingResponse struct {
	CellID uuid.UUID      `json:"cellId,omitempty"`
	Ideas  []*domain.Idea `json:"ideas,omitempty"`
	Waiting bool          `json:"waiting"`
}

func (s *Server) handleEnterVoting(w http.ResponseWriter, r *http.Request) {
	deliberationID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid deliberation id")
		return
	}
	var req enterVotingRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	result, err := s.engine.EnterVoting(r.Context(), deliberationID, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, enterVotingResponse{Waiting: true})
		return
	}
	writeJSON(w, http.StatusOK, enterVotingResponse{CellID: result.Cell.ID(), Ideas: result.Ideas})
}

type allocationRequest struct {
	IdeaID uuid.UUID `json:"ideaId"`
	XP     int       `json:"xp"`
}

type castVoteRequest struct {
	UserID      uuid.UUID           `json:"userId"`
	Allocations []allocationRequest `json:"allocations"`
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	cellID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid cell id")
		return
	}
	var req castVoteRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	allocations := make([]domain.Allocation, len(req.Allocations))
	for i, a := range req.Allocations {
		allocations[i] = domain.Allocation{IdeaID: a.IdeaID, XP: a.XP}
	}
	if err := s.engine.CastVote(r.Context(), cellID, req.UserID, allocations); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type postCommentRequest struct {
	UserID    uuid.UUID  `json:"userId"`
	Text      string     `json:"text"`
	IdeaID    *uuid.UUID `json:"ideaId,omitempty"`
	ReplyToID *uuid.UUID `json:"replyToId,omitempty"`
}

func (s *Server) handlePostComment(w http.ResponseWriter, r *http.Request) {
	cellID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid cell id")
		return
	}
	var req postCommentRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	commentID, err := s.engine.PostComment(r.Context(), cellID, req.UserID, req.Text, req.IdeaID, req.ReplyToID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"commentId": commentID})
}

type upvoteCommentRequest struct {
	UserID uuid.UUID `json:"userId"`
}

func (s *Server) handleUpvoteComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid comment id")
		return
	}
	var req upvoteCommentRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.engine.UpvoteComment(r.Context(), commentID, req.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type callerRequest struct {
	CallerID uuid.UUID `json:"callerId"`
}

func (s *Server) handleTriggerStartVoting(w http.ResponseWriter, r *http.Request) {
	deliberationID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid deliberation id")
		return
	}
	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.engine.TriggerStartVoting(r.Context(), deliberationID, req.CallerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForceClose(w http.ResponseWriter, r *http.Request) {
	deliberationID, err := pathUUID(r, "id")
	if err != nil {
		badRequest(w, "invalid deliberation id")
		return
	}
	var req callerRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.engine.ForceClose(r.Context(), deliberationID, req.CallerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
