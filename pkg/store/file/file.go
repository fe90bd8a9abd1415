// Package file provides a file-system backed agent store for development and
// tests. Each entity is one JSON document; writes go through a temp file and
// rename, which gives the per-entity atomicity the engine relies on.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bevelworks/cadent/pkg/models"
	"github.com/bevelworks/cadent/pkg/store"
)

const (
	agentsDir    = "agents"
	modelsDir    = "datamodels"
	actionsDir   = "actions"
	recordsDir   = "records"
	schedulesDir = "schedules"
)

// Store implements store.Store on top of a directory tree.
type Store struct {
	root     string
	validate *validator.Validate
}

// NewStore creates a file store rooted at the given directory. A
// "file://path" URL is accepted for symmetry with the other backends.
func NewStore(root string) *Store {
	return &Store{
		root:     strings.TrimPrefix(root, "file://"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// AgentByID loads one agent.
func (s *Store) AgentByID(_ context.Context, id string) (*models.Agent, error) {
	agent := &models.Agent{}
	if err := s.read(agentsDir, id, agent); err != nil {
		return nil, store.NewError("AgentByID", id, err)
	}

	return agent, nil
}

func (s *Store) SaveAgent(_ context.Context, agent *models.Agent) error {
	if err := s.write(agentsDir, agent.ID, agent); err != nil {
		return store.NewError("SaveAgent", agent.ID, err)
	}

	return nil
}

// AgentContext loads the agent together with all of its models and actions.
func (s *Store) AgentContext(ctx context.Context, agentID string) (*models.AgentContext, error) {
	agent, err := s.AgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	agentModels, err := s.ModelsByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	actions, err := s.ActionsByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	return &models.AgentContext{Agent: agent, Models: agentModels, Actions: actions}, nil
}

func (s *Store) ModelByID(_ context.Context, id string) (*models.DataModel, error) {
	model := &models.DataModel{}
	if err := s.read(modelsDir, id, model); err != nil {
		return nil, store.NewError("ModelByID", id, err)
	}

	return model, nil
}

func (s *Store) ModelsByAgent(_ context.Context, agentID string) ([]*models.DataModel, error) {
	all, err := listEntities[models.DataModel](s, modelsDir)
	if err != nil {
		return nil, store.NewError("ModelsByAgent", agentID, err)
	}

	out := make([]*models.DataModel, 0, len(all))
	for _, m := range all {
		if m.AgentID == agentID {
			out = append(out, m)
		}
	}

	return out, nil
}

func (s *Store) SaveModel(_ context.Context, model *models.DataModel) error {
	if err := s.write(modelsDir, model.ID, model); err != nil {
		return store.NewError("SaveModel", model.ID, err)
	}

	return nil
}

func (s *Store) ActionsByAgent(_ context.Context, agentID string) ([]*models.Action, error) {
	all, err := listEntities[models.Action](s, actionsDir)
	if err != nil {
		return nil, store.NewError("ActionsByAgent", agentID, err)
	}

	out := make([]*models.Action, 0, len(all))
	for _, a := range all {
		if a.AgentID == agentID {
			out = append(out, a)
		}
	}

	return out, nil
}

func (s *Store) SaveAction(_ context.Context, action *models.Action) error {
	if err := s.write(actionsDir, action.ID, action); err != nil {
		return store.NewError("SaveAction", action.ID, err)
	}

	return nil
}

func (s *Store) RecordsByModel(_ context.Context, modelID string) ([]*models.Record, error) {
	all, err := listEntities[models.Record](s, recordsDir)
	if err != nil {
		return nil, store.NewError("RecordsByModel", modelID, err)
	}

	out := make([]*models.Record, 0, len(all))
	for _, r := range all {
		if r.ModelID == modelID {
			out = append(out, r)
		}
	}

	return out, nil
}

// SaveRecord validates the record against its model's schema before writing.
func (s *Store) SaveRecord(ctx context.Context, record *models.Record) error {
	model, err := s.ModelByID(ctx, record.ModelID)
	if err != nil {
		return err
	}

	if err := model.ValidateRecord(record.Data); err != nil {
		return store.NewError("SaveRecord", record.ID, err)
	}

	if err := s.write(recordsDir, record.ID, record); err != nil {
		return store.NewError("SaveRecord", record.ID, err)
	}

	return nil
}

func (s *Store) ScheduleByID(_ context.Context, id string) (*models.Schedule, error) {
	schedule := &models.Schedule{}
	if err := s.read(schedulesDir, id, schedule); err != nil {
		return nil, store.NewError("ScheduleByID", id, err)
	}

	return schedule, nil
}

func (s *Store) Schedules(_ context.Context, opts store.ListSchedulesOptions) ([]*models.Schedule, error) {
	all, err := listEntities[models.Schedule](s, schedulesDir)
	if err != nil {
		return nil, store.NewError("Schedules", "", err)
	}

	filtered := make([]*models.Schedule, 0, len(all))

	for _, sched := range all {
		if opts.AgentID != "" && sched.AgentID != opts.AgentID {
			continue
		}

		if opts.Status != "" && sched.Status != opts.Status {
			continue
		}

		if opts.Mode != "" && sched.Mode != opts.Mode {
			continue
		}

		filtered = append(filtered, sched)
	}

	// Deterministic admission order: ascending id.
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID < filtered[j].ID })

	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}

	return filtered, nil
}

func (s *Store) SaveSchedule(_ context.Context, schedule *models.Schedule) error {
	if err := s.validate.Struct(schedule); err != nil {
		return store.NewError("SaveSchedule", schedule.ID, err)
	}

	if err := s.write(schedulesDir, schedule.ID, schedule); err != nil {
		return store.NewError("SaveSchedule", schedule.ID, err)
	}

	return nil
}

func (s *Store) read(dir, id string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.root, dir, id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFoundFor(dir)
		}

		return err
	}

	return json.Unmarshal(data, out)
}

func (s *Store) write(dir, id string, entity any) error {
	if id == "" {
		return errors.New("entity id is required")
	}

	target := filepath.Join(s.root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(target, id+".*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), filepath.Join(target, id+".json"))
}

func listEntities[T any](s *Store, dir string) ([]*T, error) {
	path := filepath.Join(s.root, dir)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	root := os.DirFS(path)

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, err
	}

	sort.Strings(files)

	out := make([]*T, 0, len(files))

	for _, name := range files {
		data, err := fs.ReadFile(root, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s/%s: %w", dir, name, err)
		}

		entity := new(T)
		if err := json.Unmarshal(data, entity); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", dir, name, err)
		}

		out = append(out, entity)
	}

	return out, nil
}

func notFoundFor(dir string) error {
	switch dir {
	case agentsDir:
		return store.ErrAgentNotFound
	case modelsDir:
		return store.ErrModelNotFound
	case actionsDir:
		return store.ErrActionNotFound
	case recordsDir:
		return store.ErrRecordNotFound
	case schedulesDir:
		return store.ErrScheduleNotFound
	default:
		return fs.ErrNotExist
	}
}
