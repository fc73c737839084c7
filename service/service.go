package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/config"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/api"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/db"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/models"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/notify"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/sse"
	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/storage"
)

var ErrLanguageUnavailable = errors.New("language has no examples")

type Service struct {
	cfg        *config.Config
	client     *api.Client
	Controller *Controller
	status     *StatusServer

	SessionDatabase db.SessionDatabase
	Archive         storage.Archive
	Publisher       notify.Publisher
	Mailer          notify.Mailer
}

// Report is what a finished translate run produced.
type Report struct {
	SessionID string
	// CombinedFile is the local path of the combined download, empty when
	// the session did not complete.
	CombinedFile  string
	LanguageFiles map[string]string
	Snapshot      Snapshot
}

func NewService(cfg *config.Config, renderer Renderer) (*Service, error) {
	client, err := api.NewClient(cfg.Server.URL, cfg.Server.Timeout)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:        cfg,
		client:     client,
		Controller: NewController(renderer, client.DownloadURL),
	}, nil
}

// StartService connects the sinks that are configured and starts the status
// server. A sink that cannot be reached is logged and left disabled.
func (s *Service) StartService() {
	//db init
	if s.cfg.Postgres.Enabled() && s.SessionDatabase == nil {
		if err := s.initDatabase(); err != nil {
			log.WithError(err).Warn("session ledger disabled")
		} else {
			log.Info("connected to Postgres")
		}
	}

	//rabbitMQ init
	if s.cfg.RabbitMQ.Enabled() && s.Publisher == nil {
		p, err := notify.NewRabbitPublisher(s.cfg.RabbitMQ)
		if err != nil {
			log.WithError(err).Warn("progress publishing disabled")
		} else {
			s.Publisher = p
			log.Info("connected to RabbitMQ")
		}
	}

	//minio init
	if s.cfg.Minio.Enabled() && s.Archive == nil {
		a, err := storage.NewMinioArchive(s.cfg.Minio)
		if err != nil {
			log.WithError(err).Warn("archiving disabled")
		} else {
			s.Archive = a
			log.Info("connected to Minio")
		}
	}

	if s.cfg.Email.Enabled() && s.Mailer == nil {
		s.Mailer = notify.NewMailerSend(s.cfg.Email)
	}

	if s.cfg.Status.Port != "" {
		s.status = NewStatusServer(s.Controller)
		s.status.Start(s.cfg.Status.Port)
	}
}

func (s *Service) initDatabase() error {
	dB, err := sqlx.Open("postgres", s.cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	sessions, err := db.NewSessionDatabase(s.cfg.Postgres.AutoCreate, dB)
	if err != nil {
		dB.Close()
		return fmt.Errorf("failed to initialize session database: %w", err)
	}
	s.SessionDatabase = sessions
	return nil
}

// StopService releases the sinks and stops the status server.
func (s *Service) StopService(ctx context.Context) {
	if s.status != nil {
		if err := s.status.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("failed to stop status server")
		}
	}
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.WithError(err).Warn("failed to close RabbitMQ channel")
		}
	}
}

func (s *Service) login(ctx context.Context) error {
	if err := s.client.Login(ctx, s.cfg.Server.Username, s.cfg.Server.Password); err != nil {
		return fmt.Errorf("failed to log in to %s: %w", s.cfg.Server.URL, err)
	}
	log.WithField("user", s.cfg.Server.Username).Info("logged in")
	return nil
}

// Languages uploads an examples file and returns the languages the server
// found examples for.
func (s *Service) Languages(ctx context.Context, examplesFile string) ([]string, error) {
	if err := s.login(ctx); err != nil {
		return nil, err
	}
	langs, err := s.client.UploadExamples(ctx, examplesFile)
	s.Controller.ExamplesUploaded(langs, err)
	return langs, err
}

// Preview renders the first lines of the selected files.
func (s *Service) Preview(inputFile, examplesFile string) error {
	return PreviewFiles(s.Controller, inputFile, examplesFile)
}

func PreviewFiles(c *Controller, inputFile, examplesFile string) error {
	for _, f := range []struct{ label, path string }{
		{"input file", inputFile},
		{"examples file", examplesFile},
	} {
		if f.path == "" {
			continue
		}
		if err := c.PreviewFile(f.label, f.path); err != nil {
			return err
		}
	}
	return nil
}

// PushLanguageConfig sends a local language config file to the server.
func (s *Service) PushLanguageConfig(ctx context.Context, path string) error {
	cfg, err := models.LoadLanguageConfig(path)
	if err != nil {
		return err
	}
	if err := s.login(ctx); err != nil {
		return err
	}
	if err := s.client.UpdateLanguageConfig(ctx, cfg); err != nil {
		return err
	}
	log.WithField("languages", len(cfg)).Info("language config updated")
	return nil
}

// Translate runs one session from upload to download. Requested languages
// must have examples when an examples file is given; no languages selects
// every available one.
func (s *Service) Translate(ctx context.Context, req models.UploadRequest) (*Report, error) {
	s.Controller.Reset()

	if err := s.Preview(req.InputFile, req.ExamplesFile); err != nil {
		return nil, err
	}
	if err := s.login(ctx); err != nil {
		return nil, err
	}

	if req.ExamplesFile != "" {
		available, err := s.client.UploadExamples(ctx, req.ExamplesFile)
		s.Controller.ExamplesUploaded(available, err)
		if err != nil {
			return nil, err
		}
		langs, err := selectLanguages(req.Languages, available)
		if err != nil {
			return nil, err
		}
		req.Languages = langs
	}

	if err := s.Controller.CheckSubmit(req); err != nil {
		return nil, err
	}

	report := &Report{SessionID: uuid.NewString(), LanguageFiles: map[string]string{}}
	s.createSession(ctx, report.SessionID, req)

	streamURL, err := s.client.Upload(ctx, req)
	if err != nil {
		var serverErr *api.ServerError
		s.Controller.UploadFailed(err, errors.As(err, &serverErr))
		s.finishSession(ctx, report.SessionID, models.SessionFailed, "")
		return nil, err
	}
	log.WithFields(log.Fields{"session": report.SessionID, "stream": streamURL}).Info("translation submitted")

	err = s.follow(ctx, streamURL, req.Action, report)
	report.Snapshot = s.Controller.Snapshot()

	status := models.SessionCompleted
	if err != nil || report.Snapshot.Navigated == "" {
		status = models.SessionFailed
	}
	s.finishSession(ctx, report.SessionID, status, report.CombinedFile)
	if status == models.SessionCompleted {
		s.sendCompletion(ctx, report)
	}
	return report, err
}

func (s *Service) policy(action models.Action) sse.Policy {
	p := sse.Policy{MaxAttempts: s.cfg.Stream.DescriptionsMaxAttempts, Delay: s.cfg.Stream.RetryDelay}
	if action == models.ActionTranslateTitles {
		p.MaxAttempts = s.cfg.Stream.TitlesMaxAttempts
	}
	return p
}

// follow reads the event stream until the session completes or the stream
// gives up.
func (s *Service) follow(ctx context.Context, streamURL string, action models.Action, report *Report) error {
	stream := sse.NewStream(ctx, s.client.HTTPClient(), streamURL, s.policy(action))
	defer stream.Close()

	for {
		msg, err := stream.Next()
		if err != nil {
			if errors.Is(err, sse.ErrClosed) {
				return nil
			}
			s.Controller.ConnectionLost(errors.Is(err, sse.ErrReconnectExhausted))
			return err
		}

		for _, r := range s.Controller.HandleMessage([]byte(msg.Data)) {
			if !r.Outcome.Applied {
				continue
			}
			s.publish(ctx, report.SessionID, r.Event)
			s.handleResult(ctx, r, report)
			if r.Outcome.Close {
				stream.Close()
			}
		}
	}
}

func (s *Service) handleResult(ctx context.Context, r Result, report *Report) {
	if res, ok := languageResult(report.SessionID, r.Event); ok {
		s.recordLanguage(ctx, res)
		if res.File != "" && s.cfg.Download.PerLanguage {
			if p := s.download(ctx, report.SessionID, res.File); p != "" {
				report.LanguageFiles[res.Language] = p
			}
		}
	}

	if r.Outcome.Navigate != "" {
		if ev, ok := r.Event.(models.SessionCompleteEvent); ok {
			report.CombinedFile = s.download(ctx, report.SessionID, ev.File)
		}
	}
}

// languageResult maps a terminal language event to its ledger row.
func languageResult(sessionID string, ev models.Event) (models.LanguageResult, bool) {
	res := models.LanguageResult{SessionID: sessionID}
	switch e := ev.(type) {
	case models.SkippedEvent:
		res.Language, res.State = e.Language, models.BarSkipped
	case models.NoExamplesEvent:
		res.Language, res.State = e.Language, models.BarNoExamples
	case models.LanguageCompleteEvent:
		res.Language, res.State, res.File = e.Language, models.BarComplete, e.File
	case models.ErrorEvent:
		if e.Language == "" {
			return res, false
		}
		res.Language, res.State = e.Language, models.BarError
	default:
		return res, false
	}
	return res, true
}

// download saves file to the download dir and archives it. It returns the
// local path, or "" when the download failed.
func (s *Service) download(ctx context.Context, sessionID, file string) string {
	p, err := s.client.Download(ctx, file, s.cfg.Download.Dir)
	if err != nil {
		log.WithError(err).WithField("file", file).Error("download failed")
		return ""
	}
	log.WithField("path", p).Info("downloaded")

	if s.Archive != nil {
		url, err := s.Archive.PutFile(ctx, storage.ObjectName(sessionID, p), p)
		if err != nil {
			log.WithError(err).WithField("file", file).Warn("failed to archive download")
		} else {
			log.WithField("url", url).Info("archived")
		}
	}
	return p
}

func (s *Service) createSession(ctx context.Context, sessionID string, req models.UploadRequest) {
	if s.SessionDatabase == nil {
		return
	}
	now := time.Now()
	session := models.Session{
		ID:           sessionID,
		InputFile:    req.InputFile,
		ExamplesFile: req.ExamplesFile,
		Action:       req.Action,
		Status:       models.SessionRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.SessionDatabase.CreateSession(ctx, session, req.Languages); err != nil {
		log.WithError(err).WithField("session", sessionID).Warn("failed to record session")
	}
}

func (s *Service) recordLanguage(ctx context.Context, res models.LanguageResult) {
	if s.SessionDatabase == nil {
		return
	}
	if err := s.SessionDatabase.RecordLanguage(ctx, res); err != nil {
		log.WithError(err).WithField("language", res.Language).Warn("failed to record language result")
	}
}

func (s *Service) finishSession(ctx context.Context, sessionID string, status models.SessionStatus, combinedFile string) {
	if s.SessionDatabase == nil {
		return
	}
	// the stream context may already be cancelled
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.SessionDatabase.FinishSession(ctx, sessionID, status, combinedFile); err != nil {
		log.WithError(err).WithField("session", sessionID).Warn("failed to finish session")
	}
}

func (s *Service) publish(ctx context.Context, sessionID string, ev models.Event) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, sessionID, ev); err != nil {
		log.WithError(err).WithField("kind", ev.Kind()).Warn("failed to publish progress")
	}
}

func (s *Service) sendCompletion(ctx context.Context, report *Report) {
	if s.Mailer == nil {
		return
	}
	c := notify.Completion{SessionID: report.SessionID, CombinedURL: report.Snapshot.Navigated}
	for _, d := range report.Snapshot.Downloads {
		c.Languages = append(c.Languages, notify.LanguageLink{Language: d.Language, URL: d.URL})
	}
	if err := s.Mailer.SendCompletion(context.WithoutCancel(ctx), c); err != nil {
		log.WithError(err).Warn("failed to send completion email")
	}
}

// selectLanguages checks requested against the languages the server found
// examples for, keeping the requested order.
func selectLanguages(requested, available []string) ([]string, error) {
	if len(requested) == 0 {
		return available, nil
	}
	have := make(map[string]bool, len(available))
	for _, l := range available {
		have[l] = true
	}
	for _, l := range requested {
		if !have[l] {
			return nil, fmt.Errorf("%w: %s", ErrLanguageUnavailable, l)
		}
	}
	return requested, nil
}

// PrintReport writes a short summary of the run.
func PrintReport(w io.Writer, r *Report) {
	fmt.Fprintf(w, "session %s\n", r.SessionID)
	for _, b := range r.Snapshot.Bars {
		fmt.Fprintf(w, "  %-20s %s\n", b.Language, b.Label())
	}
	if r.CombinedFile != "" {
		fmt.Fprintf(w, "combined translations saved to %s\n", r.CombinedFile)
	}
}
