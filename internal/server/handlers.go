package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/agente-metalurgico/server/internal/agent/model"
	errx "github.com/agente-metalurgico/server/internal/core/error"
)

type askRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	ModeOverride   *bool  `json:"mode_override"`
	TopK           *int   `json:"top_k"`
	MaxCharsPerDoc *int   `json:"max_chars_per_doc"`
	Debug          bool   `json:"debug"`
}

type searchRequest struct {
	Query    string `json:"query"`
	TopK     *int   `json:"top_k"`
	MaxChars *int   `json:"max_chars"`
}

type searchResponse struct {
	Query   string              `json:"query"`
	TopK    int                 `json:"top_k"`
	Hits    []model.DocumentHit `json:"hits"`
	Context *string             `json:"context,omitempty"`
}

type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type historyResponse struct {
	ConversationID string `json:"conversation_id"`
	Turns          []turn `json:"turns"`
}

type messagesRequest struct {
	Type    string `json:"type"`
	Message *struct {
		Chat *struct {
			ID json.RawMessage `json:"id"`
		} `json:"chat"`
		Text *string `json:"text"`
	} `json:"message"`
}

// positive resolves an optional request integer, naming the field when it is unusable.
func positive(v *int, def int, field string) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v <= 0 {
		return 0, errx.InvalidRequest(field + " debe ser un entero positivo")
	}
	return *v, nil
}

func required(v, field string) error {
	if strings.TrimSpace(v) == "" {
		return errx.InvalidRequest("falta el campo " + field)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "hi")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	documents := 0
	if s.docs != nil {
		documents = s.docs.Count()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"mode":      model.SelectMode(nil, s.defaults.CredentialPresent),
		"documents": documents,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(req.ConversationID, "conversation_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(req.Text, "text"); err != nil {
		writeError(w, r, err)
		return
	}
	topK, err := positive(req.TopK, s.defaults.TopK, "top_k")
	if err != nil {
		writeError(w, r, err)
		return
	}
	maxChars, err := positive(req.MaxCharsPerDoc, s.defaults.MaxCharsPerDoc, "max_chars_per_doc")
	if err != nil {
		writeError(w, r, err)
		return
	}

	reply, err := s.runner.Handle(r.Context(), model.QueryInput{
		ConversationID: req.ConversationID,
		Query:          req.Text,
		ModeOverride:   req.ModeOverride,
		TopK:           topK,
		MaxCharsPerDoc: maxChars,
	}, req.Debug)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reply.Debug != nil {
		writeJSON(w, http.StatusOK, reply.Debug)
		return
	}
	writeJSON(w, http.StatusOK, reply.Answer)
}

// handleMessages serves the legacy chat contract: the text is labelled as a
// question, the mode follows credential presence, and only the answer is returned.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var req messagesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Message == nil {
		writeError(w, r, errx.InvalidRequest("falta el campo message"))
		return
	}
	if req.Message.Chat == nil || len(req.Message.Chat.ID) == 0 {
		writeError(w, r, errx.InvalidRequest("falta el campo message.chat.id"))
		return
	}
	if req.Message.Text == nil {
		writeError(w, r, errx.InvalidRequest("falta el campo message.text"))
		return
	}
	chatID, err := chatIDString(req.Message.Chat.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	reply, err := s.runner.Handle(r.Context(), model.QueryInput{
		ConversationID: chatID,
		Query:          "pregunta: " + *req.Message.Text,
		TopK:           s.defaults.TopK,
		MaxCharsPerDoc: s.defaults.MaxCharsPerDoc,
	}, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply.Answer})
}

// chatIDString accepts a JSON string or number as the conversation identifier.
func chatIDString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", errx.InvalidRequest("falta el campo message.chat.id")
		}
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", errx.InvalidRequest("message.chat.id debe ser texto o número")
	}
	return n.String(), nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(req.Query, "query"); err != nil {
		writeError(w, r, err)
		return
	}
	topK, err := positive(req.TopK, s.defaults.TopK, "top_k")
	if err != nil {
		writeError(w, r, err)
		return
	}

	hits, err := s.assembler.Retrieve(r.Context(), req.Query, topK)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: req.Query, TopK: topK, Hits: hits})
}

func (s *Server) handleRAGDebug(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := required(req.Query, "query"); err != nil {
		writeError(w, r, err)
		return
	}
	topK, err := positive(req.TopK, s.defaults.TopK, "top_k")
	if err != nil {
		writeError(w, r, err)
		return
	}
	maxChars, err := positive(req.MaxChars, s.defaults.DebugMaxChars, "max_chars")
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.assembler.Assemble(r.Context(), req.Query, topK, maxChars)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: req.Query, TopK: topK, Hits: res.Hits, Context: &res.Context})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := s.runner.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := historyResponse{ConversationID: id, Turns: make([]turn, 0, len(msgs))}
	for _, m := range msgs {
		resp.Turns = append(resp.Turns, turn{Role: string(m.Role), Content: m.Content})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.ClearHistory(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
