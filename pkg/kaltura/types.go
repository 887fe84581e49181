package kaltura

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// SessionType values accepted by session and app-token calls.
const (
	SessionTypeUser  = 0
	SessionTypeAdmin = 2
)

// MediaType enumerates the media types this client uploads.
type MediaType int

const (
	MediaTypeVideo MediaType = 1
	MediaTypeAudio MediaType = 5
)

// String returns the upper-case media type name.
func (m MediaType) String() string {
	switch m {
	case MediaTypeVideo:
		return "VIDEO"
	case MediaTypeAudio:
		return "AUDIO"
	default:
		return fmt.Sprintf("MEDIA_TYPE(%d)", int(m))
	}
}

// ParseMediaType parses "video" or "audio" (any case).
func ParseMediaType(s string) (MediaType, error) {
	switch strings.ToLower(s) {
	case "video":
		return MediaTypeVideo, nil
	case "audio":
		return MediaTypeAudio, nil
	default:
		return 0, fmt.Errorf("%w: unknown media type %q", ErrConfiguration, s)
	}
}

// Entry is a media entry. Only the fields the client reasons about are
// decoded; the complete document is kept and re-emitted unchanged.
type Entry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReferenceID string `json:"referenceId"`
	CreatedAt   int64  `json:"createdAt"`
	Status      string `json:"status"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the known fields and keeps the raw document.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Entry(p)
	e.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original document when one was decoded.
func (e Entry) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	type plain Entry
	return json.Marshal(plain(e))
}

// Raw returns the original document, or nil for locally built entries.
func (e Entry) Raw() json.RawMessage {
	return e.raw
}

// RecordID returns the entry id.
func (e Entry) RecordID() string { return e.ID }

// OrderingKey returns the creation timestamp (unix seconds).
func (e Entry) OrderingKey() int64 { return e.CreatedAt }

// ListResponse is the envelope of every list/search action.
type ListResponse[T any] struct {
	Objects    []T `json:"objects"`
	TotalCount int `json:"totalCount"`
}

// Pager is the page selector sent with list actions.
type Pager struct {
	PageSize  int
	PageIndex int
}

// Params renders the pager as call parameters.
func (p Pager) Params() map[string]any {
	return map[string]any{
		"objectType": "KalturaFilterPager",
		"pageSize":   p.PageSize,
		"pageIndex":  p.PageIndex,
	}
}

// SessionInfo describes the current session (session.get).
type SessionInfo struct {
	KS          string `json:"ks"`
	SessionType int    `json:"sessionType"`
	PartnerID   int    `json:"partnerId"`
	UserID      string `json:"userId"`
	Expiry      int64  `json:"expiry"`
	Privileges  string `json:"privileges"`
}

// StartWidgetSessionResponse is returned by session.startWidgetSession.
type StartWidgetSessionResponse struct {
	KS        string `json:"ks"`
	PartnerID int    `json:"partnerId"`
	UserID    string `json:"userId"`
}

// AppToken is an application token used to escalate widget sessions.
type AppToken struct {
	ID              string `json:"id,omitempty"`
	Token           string `json:"token,omitempty"`
	PartnerID       int    `json:"partnerId,omitempty"`
	CreatedAt       int64  `json:"createdAt,omitempty"`
	Status          int    `json:"status,omitempty"`
	Expiry          int64  `json:"expiry,omitempty"`
	SessionType     int    `json:"sessionType,omitempty"`
	SessionUserID   string `json:"sessionUserId,omitempty"`
	SessionDuration int    `json:"sessionDuration,omitempty"`
	HashType        string `json:"hashType,omitempty"`
	Description     string `json:"description,omitempty"`
}

// UploadToken tracks a file upload.
type UploadToken struct {
	ID             string  `json:"id"`
	Status         int     `json:"status"`
	FileName       string  `json:"fileName"`
	FileSize       float64 `json:"fileSize"`
	UploadedBytes  float64 `json:"uploadedFileSize"`
	CreatedAt      int64   `json:"createdAt"`
	AttachedObject string  `json:"attachedObjectId"`
}

// ReportTable is the raw answer of report.getTable.
type ReportTable struct {
	Header     string `json:"header"`
	Data       string `json:"data"`
	TotalCount int    `json:"totalCount"`
}

// ESearchResponse is the answer of eSearch.searchEntry.
type ESearchResponse struct {
	Objects    []ESearchResult `json:"objects"`
	TotalCount int             `json:"totalCount"`
}

// ESearchResult wraps one matched entry.
type ESearchResult struct {
	Object Entry `json:"object"`
}

// Entries returns the matched entries in response order.
func (r ESearchResponse) Entries() []Entry {
	out := make([]Entry, 0, len(r.Objects))
	for _, o := range r.Objects {
		out = append(out, o.Object)
	}
	return out
}
