package syncwizard

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/beexponential/insights/internal/clickup"
	"github.com/beexponential/insights/internal/listgroup"
	"github.com/beexponential/insights/internal/schedule"
)

// Store persists a finished wizard and schedules its first run.
type Store interface {
	Save(ctx context.Context, p Payload) (string, error)
}

// Config holds the collaborators of a Wizard.
type Config struct {
	API    clickup.API
	Store  Store
	Logger *zap.SugaredLogger
}

// Wizard is one sync setup session. It is safe for concurrent use; calls
// are serialized.
type Wizard struct {
	api    clickup.API
	store  Store
	logger *zap.SugaredLogger

	mu   sync.Mutex
	st   state
	done bool
	// rev counts connection changes so a fetch that raced another one is
	// not committed
	rev uint64
}

type state struct {
	step     Step
	syncType SyncType

	token      string
	user       clickup.User
	workspaces []clickup.Workspace
	workspace  clickup.Workspace
	spaces     []clickup.Space
	space      clickup.Space

	fullSync     bool
	templateMode bool
	lists        []listgroup.List
	groups       []listgroup.ListGroup
	active       map[string]bool
	excluded     map[string]bool
	schemas      map[string][]clickup.Field
	selected     map[string]map[string]bool

	timeEntries TimeEntrySettings
	schedule    schedule.Schedule
	cron        string
	mode        Mode
}

// New starts a wizard at the type step.
func New(cfg Config) *Wizard {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	w := &Wizard{api: cfg.API, store: cfg.Store, logger: logger}
	w.st = freshState()
	return w
}

func freshState() state {
	s := schedule.Default()
	return state{
		step:         StepType,
		templateMode: true,
		active:       map[string]bool{},
		excluded:     map[string]bool{},
		schemas:      map[string][]clickup.Field{},
		selected:     map[string]map[string]bool{},
		timeEntries:  TimeEntrySettings{Scope: ScopeLastWeek},
		schedule:     s,
		cron:         s.ToCron(),
		mode:         ModeIncremental,
	}
}

func (w *Wizard) lock() error {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return ErrCancelled
	}
	return nil
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.st.step
}

// SetSyncType chooses what to synchronize.
func (w *Wizard) SetSyncType(t SyncType) error {
	if err := w.lock(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if w.st.step != StepType {
		return ErrInvalidStep
	}
	if t != SyncTasks && t != SyncTimeEntries {
		return invalid("sync_type", fmt.Sprintf("unknown sync type %q", t))
	}
	w.st.syncType = t
	return nil
}

// SetFullSync toggles synchronizing every field of every list.
func (w *Wizard) SetFullSync(on bool) error {
	if err := w.lock(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if w.st.step != StepConnection {
		return ErrInvalidStep
	}
	w.st.fullSync = on
	return nil
}

// Next advances one step. A task sync with full sync on skips the
// configuration step. The step does not change on error.
func (w *Wizard) Next() (Step, error) {
	if err := w.lock(); err != nil {
		return 0, err
	}
	defer w.mu.Unlock()
	s := &w.st
	switch s.step {
	case StepType:
		if s.syncType == "" {
			return s.step, invalid("sync_type", "choose what to synchronize")
		}
		s.step = StepConnection
	case StepConnection:
		if err := s.checkConnection(); err != nil {
			return s.step, err
		}
		if s.syncType == SyncTasks && s.fullSync {
			s.step = StepSchedule
		} else {
			s.step = StepConfiguration
		}
	case StepConfiguration:
		s.step = StepSchedule
	default:
		return s.step, ErrInvalidStep
	}
	return s.step, nil
}

// Back returns to the previous step, mirroring Next.
func (w *Wizard) Back() (Step, error) {
	if err := w.lock(); err != nil {
		return 0, err
	}
	defer w.mu.Unlock()
	s := &w.st
	switch s.step {
	case StepSchedule:
		if s.syncType == SyncTasks && s.fullSync {
			s.step = StepConnection
		} else {
			s.step = StepConfiguration
		}
	case StepConfiguration:
		s.step = StepConnection
	case StepConnection:
		s.step = StepType
	default:
		return s.step, ErrInvalidStep
	}
	return s.step, nil
}

// Cancel discards the session. Nothing is persisted.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
	w.st = freshState()
}

func (s *state) checkConnection() error {
	if s.token == "" {
		return ErrNotConnected
	}
	if s.workspace.ID == "" {
		return invalid("workspace", "choose a workspace")
	}
	if s.syncType == SyncTasks && s.space.ID == "" {
		return invalid("space", "choose a space")
	}
	return nil
}

// begin checks the wizard is at step and returns the connection revision an
// upstream fetch starts from. The lock is not held on return.
func (w *Wizard) begin(step Step) (uint64, error) {
	if err := w.lock(); err != nil {
		return 0, err
	}
	defer w.mu.Unlock()
	if w.st.step != step {
		return 0, ErrInvalidStep
	}
	return w.rev, nil
}

// commit locks the wizard again after a fetch. It fails with ErrStale when
// the step or the connection changed meanwhile. On success the caller holds
// w.mu and the revision is advanced.
func (w *Wizard) commit(step Step, rev uint64) error {
	if err := w.lock(); err != nil {
		return err
	}
	if w.st.step != step || w.rev != rev {
		w.mu.Unlock()
		return ErrStale
	}
	w.rev++
	return nil
}

// Connect validates token and loads the workspaces. On failure the previous
// connection is kept. ClickUp is called without holding the wizard lock.
func (w *Wizard) Connect(ctx context.Context, token string) ([]clickup.Workspace, error) {
	rev, err := w.begin(StepConnection)
	if err != nil {
		return nil, err
	}
	user, err := w.api.ValidateToken(ctx, token)
	if err != nil {
		w.logger.Warnf("validate clickup token: %v", err)
		return nil, fmt.Errorf("validate token: %w", err)
	}
	ws, err := w.api.ListWorkspaces(ctx, token)
	if err != nil {
		w.logger.Warnf("list workspaces: %v", err)
		return nil, fmt.Errorf("list workspaces: %w", err)
	}

	if err := w.commit(StepConnection, rev); err != nil {
		return nil, err
	}
	defer w.mu.Unlock()
	w.st.token = token
	w.st.user = user
	w.st.workspaces = ws
	w.st.workspace = clickup.Workspace{}
	w.st.resetSpace()
	w.st.spaces = nil
	w.logger.Debugw("clickup connected", "user", user.Username, "workspaces", len(ws))
	return ws, nil
}

// SelectWorkspace chooses a workspace and loads its spaces.
func (w *Wizard) SelectWorkspace(ctx context.Context, id string) ([]clickup.Space, error) {
	if err := w.lock(); err != nil {
		return nil, err
	}
	if w.st.step != StepConnection {
		w.mu.Unlock()
		return nil, ErrInvalidStep
	}
	if w.st.token == "" {
		w.mu.Unlock()
		return nil, ErrNotConnected
	}
	var ws clickup.Workspace
	for _, c := range w.st.workspaces {
		if c.ID == id {
			ws = c
		}
	}
	token, rev := w.st.token, w.rev
	w.mu.Unlock()
	if ws.ID == "" {
		return nil, invalid("workspace", fmt.Sprintf("unknown workspace %q", id))
	}

	spaces, err := w.api.ListSpaces(ctx, token, id)
	if err != nil {
		w.logger.Warnf("list spaces of %s: %v", id, err)
		return nil, fmt.Errorf("list spaces: %w", err)
	}

	if err := w.commit(StepConnection, rev); err != nil {
		return nil, err
	}
	defer w.mu.Unlock()
	w.st.workspace = ws
	w.st.spaces = spaces
	w.st.resetSpace()
	return spaces, nil
}

// SelectSpace chooses a space, loads every list in it and groups them.
func (w *Wizard) SelectSpace(ctx context.Context, id string) ([]listgroup.ListGroup, error) {
	if err := w.lock(); err != nil {
		return nil, err
	}
	if w.st.step != StepConnection {
		w.mu.Unlock()
		return nil, ErrInvalidStep
	}
	var sp clickup.Space
	for _, c := range w.st.spaces {
		if c.ID == id {
			sp = c
		}
	}
	token, rev := w.st.token, w.rev
	w.mu.Unlock()
	if sp.ID == "" {
		return nil, invalid("space", fmt.Sprintf("unknown space %q", id))
	}

	lists, err := w.spaceLists(ctx, token, id)
	if err != nil {
		w.logger.Warnf("list lists of space %s: %v", id, err)
		return nil, err
	}

	if err := w.commit(StepConnection, rev); err != nil {
		return nil, err
	}
	defer w.mu.Unlock()
	w.st.resetSpace()
	w.st.space = sp
	w.st.lists = lists
	w.st.groups = listgroup.GroupListsByName(lists)
	for _, g := range w.st.groups {
		w.st.active[g.TypeName] = true
	}
	for _, l := range lists {
		w.st.active[l.ID] = true
	}
	return w.st.groups, nil
}

func (w *Wizard) spaceLists(ctx context.Context, token, spaceID string) ([]listgroup.List, error) {
	folders, err := w.api.ListFolders(ctx, token, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	var out []listgroup.List
	for _, f := range folders {
		lists := f.Lists
		if lists == nil {
			if lists, err = w.api.ListLists(ctx, token, f.ID); err != nil {
				return nil, fmt.Errorf("list lists of folder %s: %w", f.ID, err)
			}
		}
		for _, l := range lists {
			out = append(out, listgroup.List{ID: l.ID, Name: l.Name})
		}
	}
	loose, err := w.api.ListFolderlessLists(ctx, token, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list folderless lists: %w", err)
	}
	for _, l := range loose {
		out = append(out, listgroup.List{ID: l.ID, Name: l.Name})
	}
	return out, nil
}

func (s *state) resetSpace() {
	s.space = clickup.Space{}
	s.lists = nil
	s.groups = nil
	s.active = map[string]bool{}
	s.excluded = map[string]bool{}
	s.schemas = map[string][]clickup.Field{}
	s.selected = map[string]map[string]bool{}
}

// SetTemplateMode switches between template grouping and per-list mapping.
func (w *Wizard) SetTemplateMode(on bool) error {
	if err := w.lock(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if w.st.step != StepConfiguration || w.st.syncType != SyncTasks {
		return ErrInvalidStep
	}
	w.st.templateMode = on
	return nil
}

// SetActive includes or excludes a template (by type name) or a list (by id).
func (w *Wizard) SetActive(key string, on bool) error {
	if err := w.lock(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if !w.st.knownKey(key) {
		return ErrUnknownItem
	}
	w.st.active[key] = on
	return nil
}

// ExcludeList leaves one list of a template out of the sync.
func (w *Wizard) ExcludeList(listID string, excluded bool) error {
	if err := w.lock(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if !w.st.hasList(listID) {
		return ErrUnknownItem
	}
	w.st.excluded[listID] = excluded
	return nil
}

func (s *state) hasList(id string) bool {
	for _, l := range s.lists {
		if l.ID == id {
			return true
		}
	}
	return false
}

func (s *state) knownKey(key string) bool {
	if _, ok := listgroup.Find(s.groups, key); ok {
		return true
	}
	return s.hasList(key)
}

// SetTimeEntries configures the time-entry window.
func (w *Wizard) SetTimeEntries(ts TimeEntrySettings) error {
	if err := w.lock(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if w.st.syncType != SyncTimeEntries {
		return ErrInvalidStep
	}
	w.st.timeEntries = ts
	return nil
}

// SetSchedule chooses the recurrence and derives the cron expression. Fields
// that do not apply to the schedule type are dropped.
func (w *Wizard) SetSchedule(s schedule.Schedule) (string, error) {
	if err := w.lock(); err != nil {
		return "", err
	}
	defer w.mu.Unlock()
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return "", invalid("schedule", err.Error())
	}
	w.st.schedule = s
	w.st.cron = s.ToCron()
	return w.st.cron, nil
}

// SetMode chooses incremental or full reloads.
func (w *Wizard) SetMode(m Mode) error {
	if err := w.lock(); err != nil {
		return err
	}
	defer w.mu.Unlock()
	if m != ModeIncremental && m != ModeFull {
		return invalid("mode", fmt.Sprintf("unknown mode %q", m))
	}
	w.st.mode = m
	return nil
}
