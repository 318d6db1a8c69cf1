package catalog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"wildlifecore/internal/blob"
	blobmemory "wildlifecore/internal/infra/blob/memory"
	"wildlifecore/pkg/domain"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func pngUpload(name string) Upload {
	return Upload{Filename: name, ContentType: "image/png", Data: pngBytes}
}

func ptr[T any](v T) *T { return &v }

// birds is the Animals > Birds fixture: Habitat (TEXT) on Animals and
// Wingspan (NUMBER) on Birds.
type birds struct {
	svc      *Service
	blobs    *blobmemory.Store
	logs     *bytes.Buffer
	animals  domain.Category
	birds    domain.Category
	habitat  domain.Field
	wingspan domain.Field
}

func newBirds(t *testing.T, opts ...Option) birds {
	t.Helper()
	ctx := context.Background()
	logs := &bytes.Buffer{}
	blobs := blobmemory.New()
	base := []Option{
		WithBlobStore(blobs),
		WithLogger(slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	}
	svc := NewInMemoryService(nil, append(base, opts...)...)
	animals, err := svc.CreateCategory(ctx, "Animals", nil)
	require.NoError(t, err)
	birdsCat, err := svc.CreateCategory(ctx, "Birds", &animals.ID)
	require.NoError(t, err)
	habitat, err := svc.CreateField(ctx, FieldSpec{Name: "Habitat", Type: domain.FieldText, CategoryIDs: []int64{animals.ID}})
	require.NoError(t, err)
	wingspan, err := svc.CreateField(ctx, FieldSpec{Name: "Wingspan", Type: domain.FieldNumber, CategoryIDs: []int64{birdsCat.ID}})
	require.NoError(t, err)
	return birds{svc: svc, blobs: blobs, logs: logs, animals: animals, birds: birdsCat, habitat: habitat, wingspan: wingspan}
}

func (b birds) addBird(t *testing.T, name, wingspan string) RecordDetail {
	t.Helper()
	rec, err := b.svc.CreateRecord(context.Background(), RecordInput{
		Name:           name,
		ScientificName: name + " sp.",
		CategoryID:     b.birds.ID,
		Values:         map[string]string{"Habitat": "wetland", "Wingspan": wingspan},
	})
	require.NoError(t, err)
	return rec
}

func valueOf(detail RecordDetail, fieldID int64) (TypedValue, bool) {
	for _, v := range detail.Values {
		if v.FieldID == fieldID {
			return v, true
		}
	}
	return TypedValue{}, false
}

func recordIDs(records []domain.Record) []int64 {
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func domainError(t *testing.T, err error) *domain.Error {
	t.Helper()
	var derr *domain.Error
	require.True(t, errors.As(err, &derr), "expected *domain.Error, got %v", err)
	return derr
}

// failingDeletes wraps a blob store and fails every Delete.
type failingDeletes struct {
	blob.Store
}

func (failingDeletes) Delete(context.Context, string) (bool, error) {
	return false, errors.New("disk on fire")
}

// blockingRule blocks every transaction touching entity.
type blockingRule struct {
	entity domain.EntityType
}

func (blockingRule) Name() string { return "blocking" }

func (r blockingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	for _, ch := range changes {
		if ch.Entity == r.entity {
			return domain.Result{Violations: []domain.Violation{{Rule: "blocking", Severity: domain.SeverityBlock, Message: "blocked", Entity: r.entity}}}, nil
		}
	}
	return domain.Result{}, nil
}
