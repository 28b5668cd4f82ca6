package service

import (
	"fmt"
	"sync"

	"workbench/internal/domain"
	"workbench/internal/resultview"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// WindowRequest asks for one page of a connection's current result. Zero values
// keep the view's current state.
type WindowRequest struct {
	Sort     string
	Dir      resultview.Direction
	Page     int
	PageSize int
}

// Window is one page of a result plus the view state that produced it.
type Window struct {
	Columns    []string             `json:"columns"`
	Rows       []domain.Row         `json:"data"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	TotalPages int                  `json:"totalPages"`
	TotalRows  int                  `json:"totalRows"`
	SortKey    string               `json:"sortKey,omitempty"`
	SortDir    resultview.Direction `json:"sortDir,omitempty"`
	Message    string               `json:"message,omitempty"`
}

// Export is a serialized result ready to be written as a file.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ─────────────────────────────────────────────────────────────
// Result Service: one result view per connection
// ─────────────────────────────────────────────────────────────

// ResultService keeps the latest result of each connection as a sortable,
// paginated view. A new result replaces the old view and its sort state.
type ResultService struct {
	mu    sync.Mutex
	views map[int64]*resultview.View
}

// NewResultService creates an empty ResultService.
func NewResultService() *ResultService {
	return &ResultService{views: make(map[int64]*resultview.View)}
}

// Store makes res the current result of connectionID.
func (s *ResultService) Store(connectionID int64, res *domain.QueryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[connectionID] = resultview.New(res)
}

// Drop forgets the result of connectionID.
func (s *ResultService) Drop(connectionID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, connectionID)
}

func (s *ResultService) view(connectionID int64) (*resultview.View, error) {
	v, ok := s.views[connectionID]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "result for connection", ID: connectionID}
	}
	return v, nil
}

// Window applies req to the view of connectionID and returns the selected page.
func (s *ResultService) Window(connectionID int64, req WindowRequest) (*Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.view(connectionID)
	if err != nil {
		return nil, err
	}

	if req.Sort != "" {
		dir := req.Dir
		if dir == "" {
			dir = resultview.Ascending
		}
		if err := v.Sort(req.Sort, dir); err != nil {
			return nil, err
		}
	}
	if req.PageSize != 0 && req.PageSize != v.PageSize() {
		if err := v.SetPageSize(req.PageSize); err != nil {
			return nil, err
		}
	}
	if req.Page != 0 {
		if err := v.SetPage(req.Page); err != nil {
			return nil, err
		}
	}

	key, dir := v.SortState()
	return &Window{
		Columns:    v.Columns(),
		Rows:       v.Current(),
		Page:       v.CurrentPage(),
		PageSize:   v.PageSize(),
		TotalPages: v.TotalPages(),
		TotalRows:  v.Len(),
		SortKey:    key,
		SortDir:    dir,
		Message:    v.Result().Message,
	}, nil
}

// Rows returns the columns and every row of connectionID's result in the current sort order.
func (s *ResultService) Rows(connectionID int64) ([]string, []domain.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.view(connectionID)
	if err != nil {
		return nil, nil, err
	}
	return v.Columns(), v.Rows(), nil
}

// Export serializes the full, currently sorted result of connectionID.
func (s *ResultService) Export(connectionID int64, format string) (*Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.view(connectionID)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return &Export{Filename: resultview.CSVFilename, ContentType: "text/csv", Data: v.ExportCSV()}, nil
	case FormatJSON:
		data, err := v.ExportJSON()
		if err != nil {
			return nil, err
		}
		return &Export{Filename: resultview.JSONFilename, ContentType: "application/json", Data: data}, nil
	default:
		return nil, domain.NewValidationError("format", fmt.Sprintf("unsupported export format %q", format))
	}
}

// HandleConnectionEvent drops the result of a deleted connection.
func (s *ResultService) HandleConnectionEvent(ev domain.ConnectionEvent) {
	if ev.Kind == domain.ConnectionDeleted {
		s.Drop(ev.Connection.ID)
	}
}
