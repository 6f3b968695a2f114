// Package apitest is an in-memory shopping-list backend for tests. It
// speaks the same HTTP surface as the real server under /api.
package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"sync"

	"shopvox/shopping"
)

type failure struct {
	status int
	msg    string
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	items       []shopping.Item
	nextID      int
	suggestions []shopping.Suggestion
	languages   map[string]string
	transcripts []string
	interpret   func(text string) shopping.Command
	fail        map[string]failure
	requests    []string
}

func NewServer(items ...shopping.Item) *Server {
	s := &Server{
		items:  append([]shopping.Item(nil), items...),
		nextID: 1,
		languages: map[string]string{
			"en-US": "English (US)",
			"es-ES": "Spanish (Spain)",
			"fr-FR": "French",
			"de-DE": "German",
		},
		suggestions: []shopping.Suggestion{
			{Item: "bread", Category: "bakery", Reason: "You buy this every week", Type: "history_based"},
			{Item: "strawberries", Category: "produce", Reason: "In season", Type: "seasonal"},
		},
		interpret: Interpret,
		fail:      map[string]failure{},
	}
	for _, it := range items {
		if n, err := strconv.Atoi(it.ID.String()); err == nil && n >= s.nextID {
			s.nextID = n + 1
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/shopping/list", s.handleList)
	mux.HandleFunc("POST /api/shopping/add", s.handleAdd)
	mux.HandleFunc("DELETE /api/shopping/{id}", s.handleRemove)
	mux.HandleFunc("PUT /api/shopping/{id}/complete", s.handleRemove)
	mux.HandleFunc("PUT /api/shopping/{id}", s.handleUpdate)
	mux.HandleFunc("POST /api/voice/process", s.handleProcess)
	mux.HandleFunc("POST /api/voice/transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /api/voice/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/suggestions/", s.handleSuggestions)
	mux.HandleFunc("GET /api/suggestions/history", s.handleHistory)
	mux.HandleFunc("POST /api/suggestions/apriori/upload", s.handleUpload)

	s.Server = httptest.NewServer(s.intercept(mux))
	return s
}

// BaseURL is the value to configure the client with.
func (s *Server) BaseURL() string { return s.URL + "/api" }

func (s *Server) Items() []shopping.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shopping.Item(nil), s.items...)
}

// Requests lists "METHOD /path" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Fail makes every request to "METHOD /api/path" answer with status until
// cleared with status 0.
func (s *Server) Fail(route string, status int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.fail, route)
		return
	}
	s.fail[route] = failure{status: status, msg: msg}
}

func (s *Server) SetSuggestions(sugg []shopping.Suggestion) {
	s.mu.Lock()
	s.suggestions = sugg
	s.mu.Unlock()
}

func (s *Server) SetInterpreter(fn func(text string) shopping.Command) {
	s.mu.Lock()
	s.interpret = fn
	s.mu.Unlock()
}

// QueueTranscripts sets the answers of the next transcribe calls. An empty
// string answers "No speech detected".
func (s *Server) QueueTranscripts(texts ...string) {
	s.mu.Lock()
	s.transcripts = append(s.transcripts, texts...)
	s.mu.Unlock()
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.requests = append(s.requests, route)
		f, failing := s.fail[route]
		s.mu.Unlock()
		if failing {
			writeJSON(w, f.status, map[string]string{"error": f.msg})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Items()})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemName string  `json:"item_name"`
		Category string  `json:"category"`
		Quantity float64 `json:"quantity"`
		Unit     string  `json:"unit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ItemName) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Item name is required"})
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if strings.EqualFold(it.Name, req.ItemName) {
			s.items[i].Quantity += req.Quantity
			writeJSON(w, http.StatusOK, map[string]any{"message": "Item quantity updated", "item": s.items[i]})
			return
		}
	}
	it := shopping.Item{
		ID:       shopping.ItemID(strconv.Itoa(s.nextID)),
		Name:     req.ItemName,
		Category: req.Category,
		Quantity: req.Quantity,
		Unit:     req.Unit,
	}
	s.nextID++
	s.items = append(s.items, it)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Item added", "item": it})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := shopping.ItemID(r.PathValue("id"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found"})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := shopping.ItemID(r.PathValue("id"))
	var req struct {
		Quantity *float64 `json:"quantity"`
		Category *string  `json:"category"`
		Unit     *string  `json:"unit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if req.Quantity != nil {
			s.items[i].Quantity = *req.Quantity
		}
		if req.Category != nil {
			s.items[i].Category = *req.Category
		}
		if req.Unit != nil {
			s.items[i].Unit = *req.Unit
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": s.items[i]})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Item not found"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No text provided"})
		return
	}
	s.mu.Lock()
	interpret := s.interpret
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, interpret(req.Text))
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	f, _, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No audio file provided"})
		return
	}
	io.Copy(io.Discard, f)
	f.Close()

	s.mu.Lock()
	text := ""
	if len(s.transcripts) > 0 {
		text = s.transcripts[0]
		s.transcripts = s.transcripts[1:]
	}
	s.mu.Unlock()

	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No speech detected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": text, "confidence": 0.93})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"languages": s.languages})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": s.suggestions})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"history": []shopping.HistoryEntry{
		{ItemName: "milk", Category: "dairy", Frequency: 5, LastPurchased: "2024-05-01"},
	}})
}

// handleUpload takes CSV lines or a JSON array of transactions. Every
// transaction with two or more items counts as one rule, and the first
// rule becomes an apriori suggestion.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer f.Close()

	var txs [][]string
	switch strings.ToLower(path.Ext(hdr.Filename)) {
	case ".csv":
		data, _ := io.ReadAll(f)
		for _, line := range strings.Split(string(data), "\n") {
			var tx []string
			for _, it := range strings.Split(line, ",") {
				if it = strings.TrimSpace(it); it != "" {
					tx = append(tx, it)
				}
			}
			txs = append(txs, tx)
		}
	case ".json":
		if err := json.NewDecoder(f).Decode(&txs); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON: " + err.Error()})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File must be CSV or JSON"})
		return
	}

	rules := 0
	var first []string
	for _, tx := range txs {
		if len(tx) < 2 {
			continue
		}
		if rules == 0 {
			first = tx
		}
		rules++
	}

	s.mu.Lock()
	if first != nil {
		s.suggestions = append(s.suggestions, shopping.Suggestion{
			Item:   first[1],
			Reason: "Often bought with " + first[0],
			Type:   "apriori",
		})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Dataset processed", "rules_count": rules})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var numberWords = map[string]float64{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10, "dozen": 12,
}

var categories = map[string]string{
	"apples": "produce", "bananas": "produce", "strawberries": "produce", "tomatoes": "produce",
	"milk": "dairy", "cheese": "dairy", "butter": "dairy", "yogurt": "dairy", "eggs": "dairy",
	"bread": "bakery", "bagels": "bakery",
}

// Interpret is a toy interpreter: "add [n] <item>" and "remove <item>".
// Anything else comes back with the command "unknown".
func Interpret(text string) shopping.Command {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(words) < 2 {
		return shopping.Command{Kind: "unknown", ItemName: text}
	}
	var kind shopping.CommandKind
	switch words[0] {
	case "add", "buy", "need":
		kind = shopping.CommandAdd
	case "remove", "delete":
		kind = shopping.CommandRemove
	default:
		return shopping.Command{Kind: "unknown", ItemName: text}
	}

	rest := words[1:]
	cmd := shopping.Command{Kind: kind}
	if len(rest) > 1 {
		if n, err := strconv.ParseFloat(rest[0], 64); err == nil {
			cmd.Quantity, rest = n, rest[1:]
		} else if n, ok := numberWords[rest[0]]; ok {
			cmd.Quantity, rest = n, rest[1:]
		}
	}
	cmd.ItemName = strings.Join(rest, " ")
	if kind == shopping.CommandAdd {
		cmd.Category = categories[cmd.ItemName]
	}
	return cmd
}
