package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reqcraft/internal/database"
	"reqcraft/internal/domain"
)

const maxFormBytes = 1 << 20

//go:embed templates/index.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// Runner runs the two-round generation.
type Runner interface {
	Run(ctx context.Context, in domain.PipelineInput) (*domain.PipelineResult, error)
}

// RunStore persists finished runs. A nil store makes the form redirect with
// the result inlined in the query string.
type RunStore interface {
	SaveRun(ctx context.Context, run domain.Run) (string, error)
	GetRun(ctx context.Context, id string) (*domain.Run, error)
}

type Server struct {
	runner         Runner
	store          RunStore
	requestTimeout time.Duration
	handler        http.Handler
	log            *slog.Logger
}

type formValues struct {
	ProductDescription string
	UserDescription    string
	Requirements       string
}

type pageData struct {
	Form    formValues
	Result  string
	Skipped int64
	Error   string
}

func New(runner Runner, store RunStore, requestTimeout time.Duration, log *slog.Logger) *Server {
	s := &Server{
		runner:         runner,
		store:          store,
		requestTimeout: requestTimeout,
		log:            log,
	}
	s.handler = s.routes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleIndex)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.showIndex(w, r)
	case http.MethodPost:
		s.submit(w, r)
	default:
		methodNotAllowed(w, http.MethodGet+", "+http.MethodPost)
	}
}

func (s *Server) showIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	runID := strings.TrimSpace(query.Get("run"))
	if runID == "" {
		s.render(ctx, w, http.StatusOK, pageData{
			Result:  query.Get("result"),
			Skipped: skippedParam(query),
		})
		return
	}

	if s.store == nil {
		http.NotFound(w, r)
		return
	}

	run, err := s.store.GetRun(ctx, runID)
	if errors.Is(err, database.ErrRunNotFound) {
		s.render(ctx, w, http.StatusNotFound, pageData{Error: "This result no longer exists."})
		return
	}
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to get run",
			"error", err,
			"runID", runID)
		s.render(ctx, w, http.StatusInternalServerError, pageData{Error: "Could not load the result."})
		return
	}

	s.render(ctx, w, http.StatusOK, pageData{
		Form: formValues{
			ProductDescription: run.ProductDescription,
			UserDescription:    run.UserDescription,
			Requirements:       run.Source,
		},
		Result:  run.TestCases,
		Skipped: run.SkippedChunks,
	})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		s.render(r.Context(), w, http.StatusBadRequest, pageData{Error: "Could not read the submitted form."})
		return
	}

	form := formValues{
		ProductDescription: r.PostForm.Get("product_description"),
		UserDescription:    r.PostForm.Get("user_description"),
		Requirements:       r.PostForm.Get("requirements"),
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	res, err := s.runner.Run(ctx, domain.PipelineInput{
		ProductDescription: form.ProductDescription,
		UserDescription:    form.UserDescription,
		Requirements:       form.Requirements,
	})
	if err != nil {
		status, msg := describeError(err)
		s.log.WarnContext(ctx, "Failed to generate test cases",
			"error", err,
			"status", status)
		s.render(r.Context(), w, status, pageData{Form: form, Error: msg})
		return
	}

	skipped := int64(len(res.SkippedRequirements) + len(res.SkippedTestCases))

	if s.store == nil {
		target := url.Values{"result": {res.TestCases}}
		if skipped > 0 {
			target.Set("skipped", strconv.FormatInt(skipped, 10))
		}

		http.Redirect(w, r, "/?"+target.Encode(), http.StatusSeeOther)
		return
	}

	id, err := s.store.SaveRun(r.Context(), domain.Run{
		ProductDescription: form.ProductDescription,
		UserDescription:    form.UserDescription,
		Source:             form.Requirements,
		TestCases:          res.TestCases,
		SkippedChunks:      skipped,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to save run",
			"error", err)
		s.render(r.Context(), w, http.StatusOK, pageData{
			Form:    form,
			Result:  res.TestCases,
			Skipped: skipped,
			Error:   "The result could not be saved, copy it before leaving the page.",
		})
		return
	}

	http.Redirect(w, r, "/?run="+url.QueryEscape(id), http.StatusSeeOther)
}

func (s *Server) render(ctx context.Context, w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := indexTemplate.Execute(w, data); err != nil {
		s.log.ErrorContext(ctx, "Failed to render page",
			"error", err)
	}
}

// skippedParam reads the skipped chunk count; anything but a positive number
// hides the notice.
func skippedParam(query url.Values) int64 {
	n, err := strconv.ParseInt(query.Get("skipped"), 10, 64)
	if err != nil || n < 0 {
		return 0
	}

	return n
}

// describeError maps a pipeline failure to a status and a message fit for the page.
func describeError(err error) (int, string) {
	var (
		fetchErr      *domain.FetchError
		completionErr *domain.CompletionError
		textErr       *domain.TextProcessingError
	)

	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		return http.StatusBadRequest, "There is no text to work with. Paste requirements or a URL that has readable content."
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "Could not fetch " + fetchErr.URL + ". Check the URL and try again."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Generation took too long and was stopped."
	case errors.As(err, &completionErr):
		return http.StatusBadGateway, completionMessage(completionErr.Kind)
	case errors.As(err, &textErr):
		return http.StatusBadRequest, "The requirements text could not be processed."
	default:
		return http.StatusInternalServerError, "Something went wrong while generating test cases."
	}
}

func completionMessage(kind domain.CompletionErrorKind) string {
	switch kind {
	case domain.CompletionErrorAuth:
		return "The language model rejected our credentials."
	case domain.CompletionErrorQuota:
		return "The language model quota is exhausted. Try again later."
	case domain.CompletionErrorMalformed:
		return "The language model returned an unusable response."
	case domain.CompletionErrorCanceled:
		return "Generation was canceled."
	default:
		return "The language model could not be reached."
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
