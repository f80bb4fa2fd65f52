package collection

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/kailas-cloud/mongomap/internal/db"
	"github.com/kailas-cloud/mongomap/internal/domain"
)

// --- Mocks ---

type mockRepo struct {
	exists       bool
	existsErr    error
	createErr    error
	validatorErr error
	dropErr      error
	names        []string

	created   []string
	validated map[string]bson.D
	dropped   []string
}

func (m *mockRepo) CreateCollection(_ context.Context, name string, _ bson.D) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, name)
	return nil
}

func (m *mockRepo) CollectionExists(context.Context, string) (bool, error) {
	return m.exists, m.existsErr
}

func (m *mockRepo) SetValidator(_ context.Context, name string, validator bson.D) error {
	if m.validatorErr != nil {
		return m.validatorErr
	}
	if m.validated == nil {
		m.validated = map[string]bson.D{}
	}
	m.validated[name] = validator
	return nil
}

func (m *mockRepo) DropCollection(_ context.Context, name string) error {
	if m.dropErr != nil {
		return m.dropErr
	}
	m.dropped = append(m.dropped, name)
	return nil
}

func (m *mockRepo) ListCollections(context.Context) ([]string, error) {
	return m.names, nil
}

var validator = bson.D{{Key: "$jsonSchema", Value: bson.D{{Key: "type", Value: "object"}}}}

// --- Tests ---

func TestCreate(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, nil)

	if err := svc.Create(context.Background(), "people", validator); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 1 || repo.created[0] != "people" {
		t.Errorf("unexpected creates: %v", repo.created)
	}
}

func TestCreate_Exists(t *testing.T) {
	svc := New(&mockRepo{createErr: &db.Error{Op: db.OpCreateCollection, Err: db.ErrCollectionExists}}, nil)

	err := svc.Create(context.Background(), "people", nil)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreate_EmptyName(t *testing.T) {
	svc := New(&mockRepo{}, nil)

	if err := svc.Create(context.Background(), "", nil); !errors.Is(err, domain.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
}

func TestEnsure_Creates(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, nil)

	created, err := svc.Ensure(context.Background(), "people", validator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created")
	}
	if len(repo.validated) != 0 {
		t.Error("validator is set at creation, not through collMod")
	}
}

func TestEnsure_ExistingReplacesValidator(t *testing.T) {
	repo := &mockRepo{exists: true}
	svc := New(repo, nil)

	created, err := svc.Ensure(context.Background(), "people", validator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected not created")
	}
	if _, ok := repo.validated["people"]; !ok {
		t.Error("expected validator update")
	}
}

func TestEnsure_ExistingWithoutValidator(t *testing.T) {
	repo := &mockRepo{exists: true}
	svc := New(repo, nil)

	if _, err := svc.Ensure(context.Background(), "people", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.validated) != 0 {
		t.Error("no validator update expected")
	}
}

func TestEnsure_CreatedConcurrently(t *testing.T) {
	repo := &mockRepo{createErr: &db.Error{Op: db.OpCreateCollection, Err: db.ErrCollectionExists}}
	svc := New(repo, nil)

	created, err := svc.Ensure(context.Background(), "people", validator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected not created")
	}
	if _, ok := repo.validated["people"]; !ok {
		t.Error("expected validator update after the race")
	}
}

func TestEnsure_Errors(t *testing.T) {
	boom := errors.New("boom")
	for name, repo := range map[string]*mockRepo{
		"exists":    {existsErr: boom},
		"create":    {createErr: boom},
		"validator": {exists: true, validatorErr: boom},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(repo, nil).Ensure(context.Background(), "people", validator)
			if !errors.Is(err, boom) {
				t.Fatalf("expected boom, got %v", err)
			}
		})
	}
}

func TestList_Sorted(t *testing.T) {
	svc := New(&mockRepo{names: []string{"people", "books", "authors"}}, nil)

	names, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names[0] != "authors" || names[2] != "people" {
		t.Errorf("unexpected order: %v", names)
	}
}

func TestDelete(t *testing.T) {
	repo := &mockRepo{exists: true}
	if err := New(repo, nil).Delete(context.Background(), "people"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.dropped) != 1 {
		t.Errorf("unexpected drops: %v", repo.dropped)
	}
}

func TestDelete_NotFound(t *testing.T) {
	err := New(&mockRepo{}, nil).Delete(context.Background(), "people")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
