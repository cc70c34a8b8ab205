// Package app is the session controller: the single owner of every live
// plan aggregate. All engine operations run here under one lock, with the
// coaching call as the only step performed outside it.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"planwright/api/internal/auth"
	"planwright/api/internal/authpw"
	"planwright/api/internal/catalog"
	"planwright/api/internal/coach"
	"planwright/api/internal/config"
	"planwright/api/internal/export"
	"planwright/api/internal/gate"
	"planwright/api/internal/plan"
	"planwright/api/internal/planrepo"
	"planwright/api/internal/rbac"
	"planwright/api/internal/score"
	"planwright/api/internal/search"
	"planwright/api/internal/section"
	"planwright/api/internal/store"
	"planwright/api/internal/util"
)

// Session is an authenticated API session, not a plan session.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	SaveSession(ctx context.Context, record store.SessionRecord, answers []store.AnswerRow) error
	LoadSession(ctx context.Context, id string) (store.SessionRecord, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]store.SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
	InsertExport(ctx context.Context, record store.ExportRecord) error
	ListExports(ctx context.Context, sessionID string) ([]store.ExportRecord, error)
	Ping(ctx context.Context) error
}

type snapshotStore interface {
	SaveSnapshot(ctx context.Context, sessionID string, snapshot json.RawMessage) error
	LoadSnapshot(ctx context.Context, sessionID string) (json.RawMessage, error)
	DeleteSnapshot(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

type evaluator interface {
	Evaluate(ctx context.Context, req coach.Request) (*coach.Result, error)
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexAnswer(record search.AnswerRecord)
	RemoveAnswers(ids []string)
}

type exporter interface {
	Export(p export.Plan, format export.Format) (*export.Result, error)
}

type artifactStore interface {
	Put(ctx context.Context, sessionID, filename, mimeType string, data []byte) (string, error)
}

type planVault interface {
	EnsureRepo(sessionID, author string) error
	CommitPlan(sessionID, content, author, message string) (planrepo.CommitInfo, error)
	History(sessionID string, limit int) ([]planrepo.CommitInfo, error)
}

type mailer interface {
	IsConfigured() bool
	SendPlanReadyEmail(to, userName, planTitle string, score, gatesPassed, gatesTotal int) error
	SendExportEmail(to, userName, planTitle, format string, draft bool) error
}

// Deps wires the controller's collaborators. Snapshots, Search, Archive and
// Email may be nil; the controller degrades to Postgres-only persistence, no
// search, no artifact archive and no notifications.
type Deps struct {
	Store     dataStore
	Snapshots snapshotStore
	Coach     evaluator
	Search    searchIndex
	Export    exporter
	Archive   artifactStore
	Repo      planVault
	Email     mailer
	Passwords *authpw.Service
}

type Service struct {
	cfg config.Config
	cat *catalog.Catalog

	store   dataStore
	snap    snapshotStore
	coach   evaluator
	search  searchIndex
	export  exporter
	archive artifactStore
	repos   planVault
	mail    mailer
	pw      *authpw.Service

	// mu guards the live aggregates. One logical actor drives each plan, so
	// a single lock is enough; the coaching call runs outside it.
	mu       sync.Mutex
	sessions map[string]*plan.Session
}

func New(cfg config.Config, cat *catalog.Catalog, deps Deps) *Service {
	return &Service{
		cfg:      cfg,
		cat:      cat,
		store:    deps.Store,
		snap:     deps.Snapshots,
		coach:    deps.Coach,
		search:   deps.Search,
		export:   deps.Export,
		archive:  deps.Archive,
		repos:    deps.Repo,
		mail:     deps.Email,
		pw:       deps.Passwords,
		sessions: make(map[string]*plan.Session),
	}
}

// ── Authentication ──

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.pw.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.pw.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.store.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	// Rotation: the presented token is spent whether or not issuing succeeds.
	if err := s.store.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID("jti")
	claims := auth.NewClaims(user.ID, user.Email, user.Role, jti, s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), claims)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken()
	if err := s.store.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, time.Now().Add(s.cfg.RefreshTTL)); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.store.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// ── Plan lifecycle ──

func (s *Service) CreatePlan(ctx context.Context, viewer Session, title string, profile json.RawMessage) (map[string]any, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Business Plan"
	}

	sess := plan.NewSession(s.cat, util.NewID("plan"), viewer.UserID, profile, time.Now())
	sess.Title = title

	if err := s.repos.EnsureRepo(sess.ID, viewer.UserName); err != nil {
		return nil, fmt.Errorf("init plan repo: %w", err)
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	payload, err := s.persistLocked(ctx, sess)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Service) ListPlans(ctx context.Context, viewer Session) (map[string]any, error) {
	records, err := s.store.ListSessionsByUser(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(records))
	for _, r := range records {
		var snap plan.Session
		title := ""
		if err := json.Unmarshal(r.Snapshot, &snap); err == nil {
			title = snap.Title
		}
		items = append(items, map[string]any{
			"id":        r.ID,
			"title":     title,
			"status":    r.Status,
			"score":     r.Score,
			"updatedAt": r.UpdatedAt,
		})
	}
	return map[string]any{"plans": items}, nil
}

func (s *Service) PlanView(ctx context.Context, viewer Session, planID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(viewer, sess); err != nil {
		return nil, err
	}
	return s.planPayload(sess), nil
}

// VisibleQuestions resolves the currently visible questions for every
// section, including ones a later answer may have hidden again.
func (s *Service) VisibleQuestions(ctx context.Context, viewer Session, planID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(viewer, sess); err != nil {
		return nil, err
	}
	values := sess.Values()
	sections := make([]map[string]any, 0, len(sess.Sections))
	for _, st := range sess.Sections {
		spec, _ := s.cat.Section(st.ID)
		sections = append(sections, map[string]any{
			"id":        st.ID,
			"title":     spec.Title,
			"status":    st.Status,
			"questions": s.questionsPayload(sess, st.ID, values),
		})
	}
	return map[string]any{"planId": sess.ID, "sections": sections}, nil
}

func (s *Service) ArchivePlan(ctx context.Context, viewer Session, planID string) error {
	s.mu.Lock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.authorizeMutate(viewer, sess); err != nil {
		s.mu.Unlock()
		return err
	}
	answerIDs := make([]string, 0, len(sess.Answers))
	for qid := range sess.Answers {
		answerIDs = append(answerIDs, sess.ID+":"+qid)
	}
	delete(s.sessions, planID)
	s.mu.Unlock()

	if s.snap != nil {
		_ = s.snap.DeleteSnapshot(ctx, planID)
	}
	if s.search != nil && len(answerIDs) > 0 {
		s.search.RemoveAnswers(answerIDs)
	}
	return s.store.DeleteSession(ctx, planID)
}

// ── Question flow ──

// SubmitAnswer validates the answer, stakes the in-flight claim, calls the
// coaching service outside the lock, and records (or rolls back) the result.
// A result for a superseded submission is dropped.
func (s *Service) SubmitAnswer(ctx context.Context, viewer Session, planID, questionID, value string) (map[string]any, error) {
	q, ok := s.cat.Question(questionID)
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown question", nil)
	}

	s.mu.Lock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.authorizeMutate(viewer, sess); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !s.questionVisible(sess, q) {
		s.mu.Unlock()
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION", "Question is not part of the current plan", map[string]any{"questionId": questionID})
	}
	if err := plan.ValidateAnswer(q, value); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	seq, err := sess.BeginEvaluation(q, value)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	req := s.coachRequest(sess, q, value)
	s.mu.Unlock()

	result, coachErr := s.coach.Evaluate(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if coachErr != nil {
		sess.RollbackEvaluation(q.ID, seq)
		if _, perr := s.persistLocked(ctx, sess); perr != nil {
			log.Printf("persist after coach failure plan=%s: %v", sess.ID, perr)
		}
		return nil, coachErr
	}

	var update *plan.GateUpdate
	if result.GateUpdate != nil && q.GateID != "" && result.GateUpdate.GateID == q.GateID {
		if status, ok := gate.ParseStatus(result.GateUpdate.Status); ok {
			update = &plan.GateUpdate{GateID: q.GateID, Status: status}
		}
	}

	exchange, applied := sess.RecordEvaluation(q, seq, result.Feedback, result.ShouldIterate, update, time.Now())
	if !applied {
		return map[string]any{"superseded": true}, nil
	}
	if _, err := s.persistLocked(ctx, sess); err != nil {
		return nil, err
	}
	return map[string]any{
		"questionId":    q.ID,
		"iteration":     exchange.Iteration,
		"feedback":      exchange.Feedback,
		"shouldIterate": exchange.ShouldIterate,
	}, nil
}

// AcceptAnswer finalises the submitted draft. This is the only path that
// applies a held gate verdict.
func (s *Service) AcceptAnswer(ctx context.Context, viewer Session, planID, questionID string) (map[string]any, error) {
	q, ok := s.cat.Question(questionID)
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown question", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMutate(viewer, sess); err != nil {
		return nil, err
	}
	if err := sess.Accept(q, s.cat, time.Now()); err != nil {
		return nil, err
	}
	becameReady := s.refreshReadiness(sess)
	payload, err := s.persistLocked(ctx, sess)
	if err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexAnswer(search.AnswerRecord{
			ID:         sess.ID + ":" + q.ID,
			SessionID:  sess.ID,
			SectionID:  q.SectionID,
			QuestionID: q.ID,
			Prompt:     q.Prompt,
			Body:       sess.Answers[q.ID].Value,
		})
	}
	if becameReady {
		s.notifyReady(viewer, sess)
	}
	return payload, nil
}

// IterateAnswer discards the pending result and keeps the draft for revision.
func (s *Service) IterateAnswer(ctx context.Context, viewer Session, planID, questionID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMutate(viewer, sess); err != nil {
		return nil, err
	}
	if err := sess.Iterate(questionID); err != nil {
		return nil, domainError(http.StatusConflict, "NOT_ITERABLE", err.Error(), nil)
	}
	return s.persistLocked(ctx, sess)
}

// ── Section flow ──

// CompleteSection re-derives every gate, applies the two-threshold rule and,
// on completion, assigns section quality, commits the rendered plan and
// recomputes the score.
func (s *Service) CompleteSection(ctx context.Context, viewer Session, planID, sectionID string, confirmed bool) (map[string]any, error) {
	spec, ok := s.cat.Section(sectionID)
	if !ok {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown section", nil)
	}

	s.mu.Lock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.authorizeMutate(viewer, sess); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	if err := gate.EvaluateAll(sess.Gates, plan.GateLinks(s.cat), sess.AnsweredSet(), sess.Verdicts); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	st := sess.Section(sectionID)
	if st == nil {
		s.mu.Unlock()
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown section", nil)
	}
	outcome, err := section.RequestCompletion(st, spec.MinPercent, spec.OptimalPercent, confirmed)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	var commit *planrepo.CommitInfo
	if outcome.Decision == section.DecisionCompleted {
		st.Quality = deriveQuality(outcome.FillPercent)
		sess.RefreshSections(s.cat, time.Now())
		becameReady := s.refreshReadiness(sess)
		rendered := renderPlanMarkdown(sess, s.cat)

		if _, err := s.persistLocked(ctx, sess); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		info, commitErr := s.repos.CommitPlan(sess.ID, rendered, viewer.UserName, "Complete section: "+spec.Title)
		if commitErr != nil {
			log.Printf("commit plan %s after section %s: %v", sess.ID, sectionID, commitErr)
		} else {
			commit = &info
		}
		if becameReady {
			s.notifyReady(viewer, sess)
		}
	} else {
		if _, err := s.persistLocked(ctx, sess); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()
	}

	payload := map[string]any{
		"sectionId": sectionID,
		"outcome":   outcome,
	}
	if commit != nil {
		payload["commit"] = commit
	}
	if recap := section.NextRecap(s.cat.Concepts, sectionID, s.introducedFor(planID)); recap != nil {
		payload["recap"] = recap
	}
	return payload, nil
}

// ReopenSection is the explicit edit action for a completed section.
func (s *Service) ReopenSection(ctx context.Context, viewer Session, planID, sectionID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMutate(viewer, sess); err != nil {
		return nil, err
	}
	st := sess.Section(sectionID)
	if st == nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Unknown section", nil)
	}
	if st.Status != section.StatusCompleted {
		return nil, domainError(http.StatusConflict, "NOT_COMPLETED", "Only completed sections can be reopened for editing", nil)
	}
	if err := sess.ReopenSection(sectionID); err != nil {
		return nil, err
	}
	// Reopening may invalidate readiness reached earlier.
	if sess.Status == plan.StatusReady {
		sess.Status = plan.StatusActive
	}
	return s.persistLocked(ctx, sess)
}

// SectionRecap surfaces at most one concept due for resurfacing.
func (s *Service) SectionRecap(ctx context.Context, viewer Session, planID, sectionID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(viewer, sess); err != nil {
		return nil, err
	}
	recap := section.NextRecap(s.cat.Concepts, sectionID, sess.IntroducedSections())
	return map[string]any{"recap": recap}, nil
}

// ── Gates and score ──

// EvaluateGates runs the idempotent batch re-derivation over all gates.
func (s *Service) EvaluateGates(ctx context.Context, viewer Session, planID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeMutate(viewer, sess); err != nil {
		return nil, err
	}
	if err := gate.EvaluateAll(sess.Gates, plan.GateLinks(s.cat), sess.AnsweredSet(), sess.Verdicts); err != nil {
		return nil, err
	}
	s.refreshReadiness(sess)
	if _, err := s.persistLocked(ctx, sess); err != nil {
		return nil, err
	}
	return map[string]any{
		"gates":     gatesPayload(sess),
		"allPassed": gate.AllPassed(sess.Gates),
		"score":     sess.Score,
	}, nil
}

func (s *Service) ScoreView(ctx context.Context, viewer Session, planID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(viewer, sess); err != nil {
		return nil, err
	}
	sess.Score = score.Recompute(sess.Gates, sess.Sections, s.cat)
	return map[string]any{
		"score":     sess.Score,
		"gates":     gatesPayload(sess),
		"allPassed": gate.AllPassed(sess.Gates),
	}, nil
}

// ── Export and history ──

// ExportPlan produces the PDF or DOCX artifact. While gates are open the
// export must be forced and the document is watermarked as a draft.
func (s *Service) ExportPlan(ctx context.Context, viewer Session, planID, format string, force bool) (*export.Result, map[string]any, error) {
	s.mu.Lock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	if err := s.authorizeView(viewer, sess); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}

	allPassed := gate.AllPassed(sess.Gates)
	if !allPassed && !force {
		open := make([]string, 0)
		for id, g := range sess.Gates {
			if g.Status != gate.StatusPassed {
				open = append(open, id)
			}
		}
		sort.Strings(open)
		s.mu.Unlock()
		return nil, nil, domainError(http.StatusConflict, "GATES_OPEN", "Not all compliance checkpoints have passed; repeat with force to export a draft", map[string]any{"openGates": open})
	}

	view := buildExportPlan(sess, s.cat, viewer.UserName, allPassed, force && !allPassed)
	s.mu.Unlock()

	result, err := s.export.Export(view, export.Format(format))
	if err != nil {
		return nil, nil, err
	}

	meta := map[string]any{
		"filename": result.Filename,
		"format":   format,
		"draft":    !allPassed,
	}
	objectKey := ""
	if s.archive != nil {
		key, archiveErr := s.archive.Put(ctx, sess.ID, result.Filename, result.MimeType, result.Data)
		if archiveErr != nil {
			log.Printf("archive export plan=%s: %v", sess.ID, archiveErr)
		} else {
			objectKey = key
			meta["objectKey"] = key
		}
	}
	if err := s.store.InsertExport(ctx, store.ExportRecord{
		ID:        util.NewID("exp"),
		SessionID: sess.ID,
		Format:    format,
		ObjectKey: objectKey,
		Forced:    force && !allPassed,
	}); err != nil {
		log.Printf("record export plan=%s: %v", sess.ID, err)
	}
	if s.mail != nil && s.mail.IsConfigured() && viewer.Email != "" {
		if err := s.mail.SendExportEmail(viewer.Email, viewer.UserName, sess.Title, format, !allPassed); err != nil {
			log.Printf("export mail plan=%s: %v", sess.ID, err)
		}
	}
	return result, meta, nil
}

func (s *Service) ListPlanExports(ctx context.Context, viewer Session, planID string) (map[string]any, error) {
	s.mu.Lock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	err = s.authorizeView(viewer, sess)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListExports(ctx, planID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(records))
	for _, r := range records {
		items = append(items, map[string]any{
			"id":        r.ID,
			"format":    r.Format,
			"objectKey": r.ObjectKey,
			"forced":    r.Forced,
			"createdAt": r.CreatedAt,
		})
	}
	return map[string]any{"exports": items}, nil
}

func (s *Service) PlanHistory(ctx context.Context, viewer Session, planID string, limit int) (map[string]any, error) {
	s.mu.Lock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	err = s.authorizeView(viewer, sess)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	commits, err := s.repos.History(planID, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"commits": commits}, nil
}

// ── Search ──

func (s *Service) SearchAnswers(ctx context.Context, viewer Session, planID, text, sectionID string, limit, offset int) (map[string]any, error) {
	s.mu.Lock()
	sess, err := s.sessionLocked(ctx, planID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	err = s.authorizeView(viewer, sess)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if s.search == nil {
		return map[string]any{"results": []search.Result{}, "total": 0, "query": text}, nil
	}
	resp := s.search.Search(search.Query{
		SessionID: planID,
		Text:      text,
		SectionID: sectionID,
		Limit:     limit,
		Offset:    offset,
	})
	return map[string]any{"results": resp.Results, "total": resp.Total, "query": resp.Query}, nil
}

// ── Health ──

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingSnapshots(ctx context.Context) error {
	if s.snap == nil {
		return nil
	}
	return s.snap.Ping(ctx)
}

func (s *Service) SMTPConfigured() bool {
	return s.mail != nil && s.mail.IsConfigured()
}

// ── Internals ──

// sessionLocked returns the live aggregate, warming it from the Redis
// snapshot or the Postgres record when the process has not seen it yet.
// Callers hold s.mu.
func (s *Service) sessionLocked(ctx context.Context, planID string) (*plan.Session, error) {
	if sess, ok := s.sessions[planID]; ok {
		return sess, nil
	}

	if s.snap != nil {
		if raw, err := s.snap.LoadSnapshot(ctx, planID); err == nil {
			var sess plan.Session
			if err := json.Unmarshal(raw, &sess); err == nil {
				s.sessions[planID] = &sess
				return &sess, nil
			}
			log.Printf("corrupt snapshot for plan %s, falling back to store", planID)
		}
	}

	record, err := s.store.LoadSession(ctx, planID)
	if err != nil {
		return nil, err
	}
	var sess plan.Session
	if err := json.Unmarshal(record.Snapshot, &sess); err != nil {
		return nil, fmt.Errorf("decode plan snapshot %s: %w", planID, err)
	}
	s.sessions[planID] = &sess
	return &sess, nil
}

// persistLocked recomputes the score, writes the snapshot to Postgres and
// Redis, and returns the plan payload. Callers hold s.mu.
func (s *Service) persistLocked(ctx context.Context, sess *plan.Session) (map[string]any, error) {
	sess.Score = score.Recompute(sess.Gates, sess.Sections, s.cat)

	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode plan snapshot: %w", err)
	}

	answers := make([]store.AnswerRow, 0, len(sess.Answers))
	for qid, a := range sess.Answers {
		q, ok := s.cat.Question(qid)
		if !ok {
			continue
		}
		answers = append(answers, store.AnswerRow{
			SessionID:  sess.ID,
			SectionID:  q.SectionID,
			QuestionID: qid,
			Prompt:     q.Prompt,
			Body:       a.Value,
		})
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })

	if err := s.store.SaveSession(ctx, store.SessionRecord{
		ID:       sess.ID,
		UserID:   sess.UserID,
		Status:   string(sess.Status),
		Score:    sess.Score,
		Snapshot: raw,
	}, answers); err != nil {
		return nil, err
	}
	if s.snap != nil {
		if err := s.snap.SaveSnapshot(ctx, sess.ID, raw); err != nil {
			log.Printf("save snapshot plan=%s: %v", sess.ID, err)
		}
	}
	return s.planPayload(sess), nil
}

func (s *Service) authorizeView(viewer Session, sess *plan.Session) error {
	if viewer.UserID == sess.UserID {
		return nil
	}
	if s.Can(viewer.Role, rbac.ActionViewAnyPlan) {
		return nil
	}
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func (s *Service) authorizeMutate(viewer Session, sess *plan.Session) error {
	if viewer.UserID == sess.UserID {
		return nil
	}
	if rbac.Normalize(viewer.Role) == rbac.RoleAdmin {
		return nil
	}
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func (s *Service) questionVisible(sess *plan.Session, q catalog.Question) bool {
	for _, visible := range s.cat.VisibleInSection(q.SectionID, sess.Values()) {
		if visible.ID == q.ID {
			return true
		}
	}
	return false
}

func (s *Service) coachRequest(sess *plan.Session, q catalog.Question, value string) coach.Request {
	qs := sess.Questions[q.ID]
	history := make([]coach.HistoryItem, 0, len(sess.History[q.ID]))
	for _, ex := range sess.History[q.ID] {
		history = append(history, coach.HistoryItem{
			Answer:    ex.Answer,
			Feedback:  ex.Feedback,
			Iteration: ex.Iteration,
		})
	}
	iteration := 0
	if qs != nil {
		iteration = qs.Iterations
	}
	return coach.Request{
		SessionID:         sess.ID,
		QuestionID:        q.ID,
		Prompt:            q.Prompt,
		Answer:            value,
		Iteration:         iteration,
		Profile:           sess.Profile,
		PriorAnswers:      sess.Values(),
		History:           history,
		SpecificityChecks: q.SpecificityChecks,
	}
}

// refreshReadiness recomputes the score and promotes the plan to READY once
// every gate has passed. Reports whether the promotion happened on this call.
func (s *Service) refreshReadiness(sess *plan.Session) bool {
	sess.Score = score.Recompute(sess.Gates, sess.Sections, s.cat)
	if sess.Status == plan.StatusActive && gate.AllPassed(sess.Gates) {
		sess.Status = plan.StatusReady
		return true
	}
	return false
}

func (s *Service) notifyReady(viewer Session, sess *plan.Session) {
	if s.mail == nil || !s.mail.IsConfigured() || viewer.Email == "" {
		return
	}
	passed := 0
	for _, g := range sess.Gates {
		if g.Status == gate.StatusPassed {
			passed++
		}
	}
	if err := s.mail.SendPlanReadyEmail(viewer.Email, viewer.UserName, sess.Title, sess.Score, passed, len(sess.Gates)); err != nil {
		log.Printf("readiness mail plan=%s: %v", sess.ID, err)
	}
}

func (s *Service) introducedFor(planID string) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[planID]; ok {
		return sess.IntroducedSections()
	}
	return map[string]bool{}
}

// deriveQuality maps the fill percentage at completion to the 0-10 section
// quality used by the readiness score.
func deriveQuality(fillPercent float64) int {
	q := int(fillPercent/10 + 0.5)
	if q > 10 {
		q = 10
	}
	if q < 0 {
		q = 0
	}
	return q
}

// ── View builders ──

func (s *Service) planPayload(sess *plan.Session) map[string]any {
	values := sess.Values()

	sections := make([]map[string]any, 0, len(sess.Sections))
	for _, st := range sess.Sections {
		spec, _ := s.cat.Section(st.ID)
		entry := map[string]any{
			"id":          st.ID,
			"title":       spec.Title,
			"ordinal":     st.Ordinal,
			"status":      st.Status,
			"answered":    st.Answered,
			"expected":    st.Expected,
			"fillPercent": section.FillPercent(st.Answered, st.Expected),
			"quality":     st.Quality,
		}
		if st.Status == section.StatusInProgress || st.Status == section.StatusAvailable {
			entry["questions"] = s.questionsPayload(sess, st.ID, values)
		}
		sections = append(sections, entry)
	}

	return map[string]any{
		"id":       sess.ID,
		"title":    sess.Title,
		"status":   sess.Status,
		"score":    sess.Score,
		"sections": sections,
		"gates":    gatesPayload(sess),
	}
}

func (s *Service) questionsPayload(sess *plan.Session, sectionID string, values map[string]string) []map[string]any {
	visible := s.cat.VisibleInSection(sectionID, values)
	out := make([]map[string]any, 0, len(visible))
	for _, q := range visible {
		qs := sess.Questions[q.ID]
		entry := map[string]any{
			"id":       q.ID,
			"prompt":   q.Prompt,
			"kind":     q.Kind,
			"required": q.Required,
		}
		if len(q.Choices) > 0 {
			entry["choices"] = q.Choices
		}
		if a, ok := sess.Answers[q.ID]; ok {
			entry["answer"] = a.Value
		}
		if qs != nil {
			entry["phase"] = qs.Phase
			entry["iterations"] = qs.Iterations
			if qs.Phase == plan.PhaseSubmitted {
				entry["draft"] = qs.Draft
				if history := sess.History[q.ID]; len(history) > 0 {
					last := history[len(history)-1]
					entry["feedback"] = last.Feedback
					entry["shouldIterate"] = last.ShouldIterate
				}
			}
		}
		out = append(out, entry)
	}
	return out
}

func gatesPayload(sess *plan.Session) []map[string]any {
	ids := make([]string, 0, len(sess.Gates))
	for id := range sess.Gates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		g := sess.Gates[id]
		out = append(out, map[string]any{
			"id":        g.ID,
			"sectionId": g.SectionID,
			"title":     g.Title,
			"status":    g.Status,
			"weight":    g.Weight,
		})
	}
	return out
}

func buildExportPlan(sess *plan.Session, cat *catalog.Catalog, applicant string, allPassed, forced bool) export.Plan {
	values := sess.Values()
	views := make([]export.SectionView, 0, len(sess.Sections))
	for _, st := range sess.Sections {
		spec, ok := cat.Section(st.ID)
		if !ok {
			continue
		}
		var answers []export.QA
		for _, q := range cat.VisibleInSection(st.ID, values) {
			if a, ok := sess.Answers[q.ID]; ok {
				answers = append(answers, export.QA{Prompt: q.Prompt, Value: a.Value})
			}
		}
		if len(answers) == 0 {
			continue
		}
		views = append(views, export.SectionView{
			Title:   spec.Title,
			Quality: st.Quality,
			Answers: answers,
		})
	}
	return export.Plan{
		SessionID:   sess.ID,
		Title:       sess.Title,
		Applicant:   applicant,
		Score:       sess.Score,
		AllPassed:   allPassed,
		Forced:      forced,
		GeneratedAt: time.Now(),
		Sections:    views,
	}
}

// renderPlanMarkdown produces the committed plan document: one chapter per
// section in catalog order, answered questions only.
func renderPlanMarkdown(sess *plan.Session, cat *catalog.Catalog) string {
	values := sess.Values()
	var b strings.Builder
	b.WriteString("# " + sess.Title + "\n")
	for _, st := range sess.Sections {
		spec, ok := cat.Section(st.ID)
		if !ok {
			continue
		}
		wrote := false
		for _, q := range cat.VisibleInSection(st.ID, values) {
			a, ok := sess.Answers[q.ID]
			if !ok {
				continue
			}
			if !wrote {
				b.WriteString("\n## " + spec.Title + "\n")
				wrote = true
			}
			b.WriteString("\n### " + q.Prompt + "\n\n" + a.Value + "\n")
		}
	}
	return b.String()
}
