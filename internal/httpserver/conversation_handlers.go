package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"castlink/internal/domain"
	"castlink/internal/service"
)

type checkPermissionRequest struct {
	RecipientID uuid.UUID     `json:"recipient_id"`
	JobID       uuid.NullUUID `json:"job_id"`
}

// handleCheckPermission exposes the gate so the UI can decide whether to
// render a "Message" action at all.
func handleCheckPermission(permSvc *service.PermissionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := CurrentParticipant(r)
		if current == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req checkPermissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		decision, err := permSvc.CanInitiate(r.Context(), current.ID, req.RecipientID, req.JobID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, decision)
	}
}

type startConversationRequest struct {
	RecipientID    uuid.UUID     `json:"recipient_id"`
	JobID          uuid.NullUUID `json:"job_id"`
	Content        string        `json:"content"`
	AttachmentURL  *string       `json:"attachment_url"`
	AttachmentKind *string       `json:"attachment_kind"`
}

type startConversationResponse struct {
	Conversation *domain.Conversation `json:"conversation"`
	WasCreated   bool                 `json:"was_created"`
	Message      *domain.Message      `json:"message,omitempty"`
}

// handleStartConversation is the "Message" button: gate, then resolve, then
// optionally append the opening message.
func handleStartConversation(
	permSvc *service.PermissionService,
	convSvc *service.ConversationService,
	msgSvc *service.MessageService,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := CurrentParticipant(r)
		if current == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req startConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		decision, err := permSvc.CanInitiate(r.Context(), current.ID, req.RecipientID, req.JobID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !decision.Allowed {
			status := http.StatusForbidden
			if decision.Reason == service.ReasonUserNotFound {
				status = http.StatusNotFound
			}
			writeJSON(w, status, map[string]string{"error": decision.Reason})
			return
		}

		conv, created, err := convSvc.FindOrCreate(r.Context(), current.ID, req.RecipientID, req.JobID)
		if err != nil {
			writeError(w, err)
			return
		}

		resp := startConversationResponse{Conversation: conv, WasCreated: created}
		if req.Content != "" || (req.AttachmentURL != nil && *req.AttachmentURL != "") {
			msg, err := msgSvc.Append(r.Context(), service.AppendInput{
				ConversationID: conv.ID,
				Content:        req.Content,
				AttachmentURL:  req.AttachmentURL,
				AttachmentKind: req.AttachmentKind,
			}, current.ID)
			if err != nil {
				writeError(w, err)
				return
			}
			resp.Message = msg
			// re-read so the summary in the response matches the append
			if fresh, gerr := convSvc.Get(r.Context(), conv.ID, current.ID); gerr == nil {
				resp.Conversation = fresh
			}
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, resp)
	}
}

func handleListConversations(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := CurrentParticipant(r)
		if current == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		convs, err := convSvc.ListVisible(r.Context(), current.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
	}
}

func handleGetConversation(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := CurrentParticipant(r)
		if current == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}
		conv, err := convSvc.Get(r.Context(), id, current.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

// handleHideConversation removes the conversation from the caller's inbox
// only; the other participant and the message history are untouched.
func handleHideConversation(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := CurrentParticipant(r)
		if current == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}
		if err := convSvc.Hide(r.Context(), id, current.ID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

func handleMarkViewed(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := CurrentParticipant(r)
		if current == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}
		if err := convSvc.MarkViewed(r.Context(), id, current.ID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}
