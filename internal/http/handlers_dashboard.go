package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"invoicedash/internal/core"
	"invoicedash/internal/export"
	"invoicedash/internal/log"
	"invoicedash/internal/services"
	"invoicedash/internal/session"
)

// maxCredentialBytes caps a service-account upload.
const maxCredentialBytes = 1 << 20

var (
	errUploadDisabled     = errors.New("credential uploads are disabled")
	errMissingSpreadsheet = errors.New("a spreadsheet ID is required with uploaded credentials")
)

type indexData struct {
	Worksheets    []string
	Selected      string
	AllowUpload   bool
	SpreadsheetID string
	Account       string
	Connected     bool
	Error         string
}

// handleIndex renders the connect page: the worksheet picker and, when
// enabled, the credentials upload.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		Selected:      s.settings.DefaultWorksheet,
		AllowUpload:   s.settings.AllowUpload,
		SpreadsheetID: s.settings.SpreadsheetID,
	}

	svc := s.defaultSvc
	if sess, ok := s.currentSession(r); ok {
		if current := sess.Service(); current != nil {
			svc = current
		}
		if ws := sess.Worksheet(); ws != "" {
			data.Selected = ws
		}
		data.Account = sess.Account()
		if v, err := sess.View(); err == nil {
			data.Connected = v.Loaded
		}
	}

	if svc != nil {
		worksheets, err := svc.ListWorksheets(r.Context())
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Worksheet listing failed",
				log.FieldError, err,
				log.FieldOperation, log.OpList)
			_, data.Error, _ = classifyError(err)
		}
		data.Worksheets = worksheets
	}

	s.render(w, r, "index.html", data)
}

// handleConnect opens a worksheet for the session. A credentials file in
// the form rebinds the session to that Google spreadsheet first.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCredentialBytes+maxBodyBytes)
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(maxCredentialBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		BadRequestError("Malformed request").Write(w)
		return
	}

	worksheet := sanitizeInput(r.FormValue("worksheet"))
	if worksheet == "" {
		worksheet = s.settings.DefaultWorksheet
	}

	creds, err := readCredentials(r)
	if err != nil {
		s.writeError(w, r, log.OpConnect, err)
		return
	}

	sess := s.ensureSession(w, r)
	if creds != nil {
		if !s.settings.AllowUpload || s.factory == nil {
			s.writeError(w, r, log.OpConnect, errUploadDisabled)
			return
		}
		err = s.connectUploaded(r.Context(), sess, sanitizeInput(r.FormValue("spreadsheet_id")), creds, worksheet)
	} else {
		err = sess.Open(r.Context(), worksheet)
	}
	if err != nil {
		s.writeError(w, r, log.OpConnect, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Worksheet opened",
		log.FieldSessionID, sess.ID,
		log.FieldWorksheet, worksheet,
		"uploaded_credentials", creds != nil)
	s.redirect(w, r, "/dashboard")
}

// readCredentials returns the uploaded credentials file, or nil when the
// form carries none.
func readCredentials(r *http.Request) ([]byte, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	f, _, err := r.FormFile("credentials")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxCredentialBytes))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	return b, nil
}

func (s *Server) connectUploaded(ctx context.Context, sess *session.Session, spreadsheetID string, creds []byte, worksheet string) error {
	if spreadsheetID == "" {
		spreadsheetID = s.settings.SpreadsheetID
	}
	if spreadsheetID == "" {
		return errMissingSpreadsheet
	}
	res, err := s.factory.ConnectSheets(ctx, spreadsheetID, creds)
	if err != nil {
		return err
	}
	opts := append(res.ServiceOptions(),
		services.WithLogger(s.logger),
		services.WithTimeout(s.settings.StoreTimeout))
	svc := services.NewInvoiceService(res.Store, opts...)
	if err := sess.Connect(ctx, svc, res.Account, worksheet); err != nil {
		return err
	}
	res.SweepAll(s.caches)
	return nil
}

// handleDisconnect ends the session and forgets its cookie.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.currentSession(r); ok {
		s.sessions.Delete(sess.ID)
		log.FromContext(r.Context()).InfoContext(r.Context(), "Session closed", log.FieldSessionID, sess.ID)
	}
	s.clearSessionCookie(w)
	s.redirect(w, r, "/")
}

type dashboardData struct {
	View          session.View
	Actions       []services.RowAction
	KnownStatuses []core.Status
	Formats       []string
	Account       string
}

func (s *Server) dashboardData(sess *session.Session) (dashboardData, error) {
	v, err := sess.View()
	if err != nil {
		return dashboardData{}, err
	}
	return dashboardData{
		View:          v,
		Actions:       s.actions.List(),
		KnownStatuses: core.KnownStatuses,
		Formats:       export.Names(),
		Account:       sess.Account(),
	}, nil
}

// handleDashboard renders the full dashboard page for the open worksheet.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadedSession(w, r)
	if !ok {
		return
	}
	data, err := s.dashboardData(sess)
	if err != nil {
		s.writeError(w, r, log.OpRender, err)
		return
	}
	s.render(w, r, "dashboard.html", data)
}

// handleView re-renders the filtered table and its aggregates. With
// filter=1 the query string replaces the active filter first.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadedSession(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	if q.Get("filter") == "1" {
		v, err := sess.View()
		if err != nil {
			s.writeError(w, r, log.OpFilter, err)
			return
		}
		c, err := ParseCriteria(q, core.DefaultCriteria(v.Table.Records))
		if err != nil {
			s.writeError(w, r, log.OpFilter, err)
			return
		}
		if err := sess.SetCriteria(c); err != nil {
			s.writeError(w, r, log.OpFilter, err)
			return
		}
	}

	data, err := s.dashboardData(sess)
	if err != nil {
		s.writeError(w, r, log.OpRender, err)
		return
	}
	s.render(w, r, "view", data)
}

// handleResetFilters selects every record again. The whole page reloads so
// the filter form shows the reset selection.
func (s *Server) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.loadedSession(w, r)
	if !ok {
		return
	}
	if err := sess.ResetCriteria(); err != nil {
		s.writeError(w, r, log.OpFilter, err)
		return
	}
	s.redirect(w, r, "/dashboard")
}
