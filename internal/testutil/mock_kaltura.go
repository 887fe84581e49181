// Package testutil provides a mock Kaltura API server for tests.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// MockEntry is an entry held by the mock server.
type MockEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReferenceID string `json:"referenceId"`
	CreatedAt   int64  `json:"createdAt"`
	Status      string `json:"status"`
	MediaType   int    `json:"mediaType,omitempty"`
	ObjectType  string `json:"objectType"`
}

// Request is a call received by the mock server.
type Request struct {
	Service string
	Action  string
	Params  map[string]any
	KS      string
	File    []byte
}

// Tag returns service.action.
func (r Request) Tag() string {
	return r.Service + "." + r.Action
}

// String returns a parameter as string. Nested keys use ":" notation
// ("filter:idIn") and work for both JSON and multipart calls.
func (r Request) String(key string) string {
	v, ok := r.lookup(key)
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// Int returns a numeric parameter, 0 when absent.
func (r Request) Int(key string) int64 {
	s := r.String(key)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(f)
}

// Has reports whether a parameter is present.
func (r Request) Has(key string) bool {
	_, ok := r.lookup(key)
	return ok
}

func (r Request) lookup(key string) (any, bool) {
	if v, ok := r.Params[key]; ok {
		return v, true
	}
	var cur any = r.Params
	for _, part := range strings.Split(key, ":") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Response is the mock answer to one call.
type Response struct {
	Status int
	Body   any
	Delay  time.Duration
}

// ActionHandler answers one service action.
type ActionHandler func(req Request) Response

// OK returns a 200 response with body encoded as JSON.
func OK(body any) Response {
	return Response{Status: http.StatusOK, Body: body}
}

// Exception returns an API exception response.
func Exception(code, message string) Response {
	return Response{Status: http.StatusOK, Body: map[string]any{
		"objectType": "KalturaAPIException",
		"code":       code,
		"message":    message,
	}}
}

// ServerError returns a 503 response.
func ServerError() Response {
	return Response{Status: http.StatusServiceUnavailable, Body: map[string]any{"error": "unavailable"}}
}

type failure struct {
	remaining int
	resp      Response
}

// MockKaltura is a configurable mock Kaltura API server. Its default
// handlers implement session negotiation, ordered entry listing with a
// result window ceiling, eSearch lookups, uploads and app tokens.
type MockKaltura struct {
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]ActionHandler
	failures map[string]*failure
	calls    []Request

	entries   []MockEntry
	ceiling   int
	partnerID int

	appTokenID string
	appToken   string
	secret     string

	sessionSeq   int
	widgetKS     map[string]bool
	validKS      map[string]bool
	uploadSeq    int
	entrySeq     int
	uploads      map[string][]byte
	appTokens    map[string]map[string]any
	appTokenSeq  int
	negotiations int
}

// NewMockKaltura creates a mock server for partnerID.
func NewMockKaltura(partnerID int) *MockKaltura {
	m := &MockKaltura{
		handlers:  make(map[string]ActionHandler),
		failures:  make(map[string]*failure),
		ceiling:   10000,
		partnerID: partnerID,
		widgetKS:  make(map[string]bool),
		validKS:   make(map[string]bool),
		uploads:   make(map[string][]byte),
		appTokens: make(map[string]map[string]any),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the server base URL (without /api_v3).
func (m *MockKaltura) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockKaltura) Close() {
	m.server.Close()
}

// SetAppToken configures the accepted app token.
func (m *MockKaltura) SetAppToken(id, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appTokenID = id
	m.appToken = token
}

// SetSecret configures the accepted admin secret.
func (m *MockKaltura) SetSecret(secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = secret
}

// SetCeiling sets the result window ceiling of list actions.
func (m *MockKaltura) SetCeiling(ceiling int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ceiling = ceiling
}

// SetEntries replaces the stored entries.
func (m *MockKaltura) SetEntries(entries []MockEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make([]MockEntry, len(entries))
	for i, e := range entries {
		if e.Status == "" {
			e.Status = "2"
		}
		if e.ObjectType == "" {
			e.ObjectType = "KalturaMediaEntry"
		}
		m.entries[i] = e
	}
}

// Entries returns a copy of the stored entries.
func (m *MockKaltura) Entries() []MockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockEntry(nil), m.entries...)
}

// SetAction overrides the handler of service.action.
func (m *MockKaltura) SetAction(tag string, handler ActionHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[tag] = handler
}

// FailNext answers the next n calls of service.action with resp.
func (m *MockKaltura) FailNext(tag string, n int, resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[tag] = &failure{remaining: n, resp: resp}
}

// ExpireSessions invalidates every issued privileged session.
func (m *MockKaltura) ExpireSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validKS = make(map[string]bool)
}

// Calls returns the received calls.
func (m *MockKaltura) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// CallCount returns how often service.action was called.
func (m *MockKaltura) CallCount(tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Tag() == tag {
			n++
		}
	}
	return n
}

// Negotiations returns the number of privileged sessions issued.
func (m *MockKaltura) Negotiations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.negotiations
}

// Upload returns the bytes uploaded to an upload token.
func (m *MockKaltura) Upload(tokenID string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads[tokenID]
}

func (m *MockKaltura) serve(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	handler, custom := m.handlers[req.Tag()]
	var injected *Response
	if f, ok := m.failures[req.Tag()]; ok && f.remaining > 0 {
		f.remaining--
		resp := f.resp
		injected = &resp
	}
	m.mu.Unlock()

	var resp Response
	switch {
	case injected != nil:
		resp = *injected
	case custom:
		if denied, ok := m.authorize(req); !ok {
			resp = denied
		} else {
			resp = handler(req)
		}
	default:
		resp = m.dispatch(req)
	}

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if resp.Body != nil {
		data, _ := json.Marshal(resp.Body)
		w.Write(data)
	}
}

func parseRequest(r *http.Request) (Request, error) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api_v3/service/{service}/action/{action}
	if len(parts) != 5 || parts[0] != "api_v3" || parts[1] != "service" || parts[3] != "action" {
		return Request{}, fmt.Errorf("unexpected path %s", r.URL.Path)
	}
	req := Request{Service: parts[2], Action: parts[4], Params: map[string]any{}}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return Request{}, err
		}
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				req.Params[k] = v[0]
			}
		}
		for _, files := range r.MultipartForm.File {
			if len(files) == 0 {
				continue
			}
			f, err := files[0].Open()
			if err != nil {
				return Request{}, err
			}
			req.File, err = io.ReadAll(f)
			f.Close()
			if err != nil {
				return Request{}, err
			}
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return Request{}, err
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req.Params); err != nil {
				return Request{}, err
			}
		}
	}

	req.KS = req.String("ks")
	return req, nil
}

var anonymousActions = map[string]bool{
	"session.startWidgetSession": true,
	"session.start":              true,
	"appToken.startSession":      true,
}

// authorize checks the session of an authenticated call.
func (m *MockKaltura) authorize(req Request) (Response, bool) {
	if anonymousActions[req.Tag()] {
		return Response{}, true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.KS == "" {
		return Exception("MISSING_KS", "Missing KS, session not established"), false
	}
	if !m.validKS[req.KS] {
		return Exception("INVALID_KS", "Invalid KS \""+req.KS+"\""), false
	}
	return Response{}, true
}

func (m *MockKaltura) dispatch(req Request) Response {
	if denied, ok := m.authorize(req); !ok {
		return denied
	}

	switch req.Tag() {
	case "session.startWidgetSession":
		return m.startWidgetSession(req)
	case "appToken.startSession":
		return m.startAppTokenSession(req)
	case "session.start":
		return m.startAdminSession(req)
	case "session.get":
		return OK(map[string]any{"ks": req.KS, "partnerId": m.partnerID, "sessionType": 2, "userId": ""})
	case "media.list", "baseEntry.list":
		return m.list(req)
	case "media.count", "baseEntry.count":
		matched := m.match(req)
		return OK(len(matched))
	case "elasticsearch_esearch.searchEntry":
		return m.search(req)
	case "media.delete":
		return m.removeEntry(req)
	case "media.reject":
		return m.findEntry(req, func(e *MockEntry) { e.Status = "rejected" })
	case "uploadToken.add":
		return m.addUploadToken()
	case "uploadToken.upload":
		return m.upload(req)
	case "media.add":
		return m.addEntry(req)
	case "media.addContent":
		return m.findEntry(req, func(*MockEntry) {})
	case "appToken.add":
		return m.addAppToken(req)
	case "appToken.list":
		return m.listAppTokens()
	case "appToken.delete":
		return m.deleteAppToken(req)
	}
	return Exception("SERVICE_FORBIDDEN", "unknown action "+req.Tag())
}

func (m *MockKaltura) issueSession() string {
	m.sessionSeq++
	m.negotiations++
	ks := fmt.Sprintf("ks-%d", m.sessionSeq)
	m.validKS[ks] = true
	return ks
}

func (m *MockKaltura) startWidgetSession(req Request) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.String("widgetId") != "_"+strconv.Itoa(m.partnerID) {
		return Exception("INVALID_WIDGET_ID", "Invalid widget id")
	}
	m.sessionSeq++
	ks := fmt.Sprintf("widget-%d", m.sessionSeq)
	m.widgetKS[ks] = true
	return OK(map[string]any{"ks": ks, "partnerId": m.partnerID, "userId": "0"})
}

func (m *MockKaltura) startAppTokenSession(req Request) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.widgetKS[req.KS] {
		return Exception("INVALID_KS", "App token sessions require a widget session")
	}
	if req.String("id") != m.appTokenID {
		return Exception("APP_TOKEN_ID_NOT_FOUND", "Application token id not found")
	}
	sum := sha256.Sum256([]byte(req.KS + m.appToken))
	if req.String("tokenHash") != hex.EncodeToString(sum[:]) {
		return Exception("INVALID_APP_TOKEN_HASH", "Invalid application token hash")
	}
	ks := m.issueSession()
	return OK(map[string]any{"ks": ks, "partnerId": m.partnerID, "sessionType": 2, "expiry": time.Now().Add(24 * time.Hour).Unix()})
}

func (m *MockKaltura) startAdminSession(req Request) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secret == "" || req.String("secret") != m.secret {
		return Exception("START_SESSION_ERROR", "Error while starting session for partner")
	}
	return OK(m.issueSession())
}

// match returns the entries selected by the call's filter, ordered by creation time.
func (m *MockKaltura) match(req Request) []MockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	idIn := map[string]bool{}
	if s := req.String("filter:idIn"); s != "" {
		for _, id := range strings.Split(s, ",") {
			idIn[id] = true
		}
	}
	ref := req.String("filter:referenceIdEqual")
	hasLower := req.Has("filter:createdAtGreaterThanOrEqual")
	lower := req.Int("filter:createdAtGreaterThanOrEqual")

	var out []MockEntry
	for _, e := range m.entries {
		if len(idIn) > 0 && !idIn[e.ID] {
			continue
		}
		if ref != "" && e.ReferenceID != ref {
			continue
		}
		if hasLower && e.CreatedAt < lower {
			continue
		}
		out = append(out, e)
	}
	if req.String("filter:orderBy") == "+createdAt" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	}
	return out
}

func (m *MockKaltura) list(req Request) Response {
	matched := m.match(req)

	pageSize := int(req.Int("pager:pageSize"))
	if pageSize <= 0 {
		pageSize = 30
	}
	pageIndex := int(req.Int("pager:pageIndex"))
	if pageIndex <= 0 {
		pageIndex = 1
	}

	m.mu.Lock()
	ceiling := m.ceiling
	m.mu.Unlock()

	// Rows beyond the ceiling are not addressable by paging.
	window := matched
	if len(window) > ceiling {
		window = window[:ceiling]
	}
	start := (pageIndex - 1) * pageSize
	objects := []MockEntry{}
	if start < len(window) {
		end := min(start+pageSize, len(window))
		objects = window[start:end]
	}
	return OK(map[string]any{
		"objectType": "KalturaMediaListResponse",
		"objects":    objects,
		"totalCount": len(matched),
	})
}

func (m *MockKaltura) search(req Request) Response {
	var items []any
	if v, ok := req.lookup("searchParams:searchOperator:searchItems"); ok {
		items, _ = v.([]any)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	results := []map[string]any{}
	for _, e := range m.entries {
		for _, raw := range items {
			item, _ := raw.(map[string]any)
			term, _ := item["searchTerm"].(string)
			field, _ := item["fieldName"].(string)
			hit := false
			switch field {
			case "reference_id":
				hit = e.ReferenceID == term
			case "id":
				hit = e.ID == term
			default:
				hit = e.ID == term || e.ReferenceID == term || strings.Contains(strings.ToLower(e.Name), strings.ToLower(term))
			}
			if hit {
				results = append(results, map[string]any{"object": e, "objectType": "KalturaESearchEntryResult"})
				break
			}
		}
	}
	return OK(map[string]any{"objects": results, "totalCount": len(results)})
}

func (m *MockKaltura) findEntry(req Request, update func(*MockEntry)) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := req.String("entryId")
	for i := range m.entries {
		if m.entries[i].ID == id {
			update(&m.entries[i])
			return OK(m.entries[i])
		}
	}
	return Exception("ENTRY_ID_NOT_FOUND", "Entry id \""+id+"\" not found")
}

func (m *MockKaltura) removeEntry(req Request) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := req.String("entryId")
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return Response{Status: http.StatusOK}
		}
	}
	return Exception("ENTRY_ID_NOT_FOUND", "Entry id \""+id+"\" not found")
}

func (m *MockKaltura) addUploadToken() Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadSeq++
	id := fmt.Sprintf("upload-%d", m.uploadSeq)
	m.uploads[id] = nil
	return OK(map[string]any{"id": id, "status": 0, "objectType": "KalturaUploadToken"})
}

func (m *MockKaltura) upload(req Request) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := req.String("uploadTokenId")
	if _, ok := m.uploads[id]; !ok {
		return Exception("UPLOAD_TOKEN_NOT_FOUND", "Upload token not found")
	}
	m.uploads[id] = req.File
	return OK(map[string]any{"id": id, "status": 2, "fileSize": len(req.File), "objectType": "KalturaUploadToken"})
}

func (m *MockKaltura) addEntry(req Request) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entrySeq++
	e := MockEntry{
		ID:          fmt.Sprintf("0_new%d", m.entrySeq),
		Name:        req.String("entry:name"),
		ReferenceID: req.String("entry:referenceId"),
		CreatedAt:   time.Now().Unix(),
		Status:      "7",
		MediaType:   int(req.Int("entry:mediaType")),
		ObjectType:  "KalturaMediaEntry",
	}
	m.entries = append(m.entries, e)
	return OK(e)
}

func (m *MockKaltura) addAppToken(req Request) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appTokenSeq++
	id := fmt.Sprintf("0_token%d", m.appTokenSeq)
	token := map[string]any{
		"id":          id,
		"token":       fmt.Sprintf("secret-%d", m.appTokenSeq),
		"description": req.String("appToken:description"),
		"hashType":    req.String("appToken:hashType"),
		"sessionType": req.Int("appToken:sessionType"),
		"createdAt":   time.Now().Unix(),
		"objectType":  "KalturaAppToken",
	}
	m.appTokens[id] = token
	return OK(token)
}

func (m *MockKaltura) listAppTokens() Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.appTokens))
	for id := range m.appTokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	objects := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		objects = append(objects, m.appTokens[id])
	}
	return OK(map[string]any{"objects": objects, "totalCount": len(objects)})
}

func (m *MockKaltura) deleteAppToken(req Request) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := req.String("id")
	if _, ok := m.appTokens[id]; !ok {
		return Exception("APP_TOKEN_ID_NOT_FOUND", "Application token id not found")
	}
	delete(m.appTokens, id)
	return Response{Status: http.StatusOK}
}
