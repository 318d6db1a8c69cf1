package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobmemory "wildlifecore/internal/infra/blob/memory"
	"wildlifecore/pkg/domain"
)

func TestBirdMissingWingspanIsRejected(t *testing.T) {
	f := newBirds(t)
	_, err := f.svc.CreateRecord(context.Background(), RecordInput{
		Name: "Heron", ScientificName: "Ardea cinerea", CategoryID: f.birds.ID,
		Values: map[string]string{"Habitat": "wetland"},
	})
	require.Error(t, err)
	assert.True(t, domain.IsInvalidArgument(err))
	assert.Equal(t, []string{"Wingspan"}, domainError(t, err).Fields)
	assert.Contains(t, err.Error(), "missing required fields: Wingspan")

	records, err := f.svc.ListRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCreateRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	created, err := f.svc.CreateRecord(ctx, RecordInput{
		Name: "Heron", ScientificName: "Ardea cinerea", CategoryID: f.birds.ID,
		Values: map[string]string{"Habitat": "Wetland", strconv.FormatInt(f.wingspan.ID, 10): "0,185.50"},
	})
	require.NoError(t, err)

	got, err := f.svc.GetRecord(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	wing, ok := valueOf(got, f.wingspan.ID)
	require.True(t, ok)
	assert.Equal(t, "185.5", wing.Value)
	assert.Equal(t, "185.5", wing.Number.String())
	habitat, ok := valueOf(got, f.habitat.ID)
	require.True(t, ok)
	assert.Equal(t, "Wetland", habitat.Value)
	assert.Empty(t, habitat.Number)
}

func TestCreateRecordNameConflictTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	f.addBird(t, "Heron", "180")

	_, err := f.svc.CreateRecord(ctx, RecordInput{Name: "Heron", ScientificName: "Other", CategoryID: f.birds.ID})
	assert.True(t, domain.IsConflict(err), "got %v", err)
	_, err = f.svc.CreateRecord(ctx, RecordInput{Name: "Other", ScientificName: "Heron sp.", CategoryID: f.birds.ID, Values: map[string]string{"bogus": "x"}})
	assert.True(t, domain.IsConflict(err), "got %v", err)
	_, err = f.svc.CreateRecord(ctx, RecordInput{Name: "Other", ScientificName: "Another", CategoryID: 999})
	assert.True(t, domain.IsNotFound(err), "got %v", err)
	_, err = f.svc.CreateRecord(ctx, RecordInput{Name: " ", ScientificName: "Another", CategoryID: f.birds.ID})
	assert.True(t, domain.IsInvalidArgument(err), "got %v", err)
}

func TestCreateRecordCollectsEveryShapeProblem(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	photo, err := f.svc.CreateField(ctx, FieldSpec{Name: "Photo", Type: domain.FieldImage, CategoryIDs: []int64{f.birds.ID}})
	require.NoError(t, err)
	_ = photo

	_, err = f.svc.CreateRecord(ctx, RecordInput{
		Name: "Heron", ScientificName: "Ardea cinerea", CategoryID: f.birds.ID,
		Values: map[string]string{"Colour": "grey", "Photo": "not-a-file"},
		Files:  map[string]Upload{"Habitat": pngUpload("habitat.png")},
	})
	require.Error(t, err)
	derr := domainError(t, err)
	assert.Equal(t, domain.KindInvalidArgument, derr.Kind)
	assert.Equal(t, []string{"Colour", "Habitat", "Photo", "Wingspan"}, derr.Fields)
	for _, reason := range []string{reasonUnknown, reasonImageAsValue, reasonValueAsFile, reasonMissing} {
		assert.Contains(t, err.Error(), reason)
	}

	_, err = f.svc.CreateRecord(ctx, RecordInput{
		Name: "Heron", ScientificName: "Ardea cinerea", CategoryID: f.birds.ID,
		Values: map[string]string{"Habitat": "wetland", "Wingspan": "180"},
	})
	assert.Contains(t, err.Error(), reasonMissingFile+": Photo")
	assert.Zero(t, f.blobs.Len())
}

func TestCreateRecordCollectsEveryValueProblem(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	_, err := f.svc.CreateField(ctx, FieldSpec{Name: "Status", Type: domain.FieldEnum, Options: []string{"LC", "NT", "VU"}, CategoryIDs: []int64{f.animals.ID}})
	require.NoError(t, err)
	_, err = f.svc.CreateField(ctx, FieldSpec{Name: "Breeding", Type: domain.FieldMonthRange, CategoryIDs: []int64{f.animals.ID}})
	require.NoError(t, err)
	_, err = f.svc.CreateField(ctx, FieldSpec{Name: "Photo", Type: domain.FieldImage, CategoryIDs: []int64{f.birds.ID}})
	require.NoError(t, err)

	_, err = f.svc.CreateRecord(ctx, RecordInput{
		Name: "Heron", ScientificName: "Ardea cinerea", CategoryID: f.birds.ID,
		Values: map[string]string{"Habitat": "wetland", "Wingspan": "1.2.3", "Status": "EX", "Breeding": "13-2"},
		Files:  map[string]Upload{"Photo": {Filename: "notes.txt", ContentType: "text/plain", Data: []byte("hi")}},
	})
	require.Error(t, err)
	derr := domainError(t, err)
	assert.Equal(t, []string{"Breeding", "Photo", "Status", "Wingspan"}, derr.Fields)
	assert.Contains(t, err.Error(), `upload "notes.txt" is not an image: Photo`)
	assert.Zero(t, f.blobs.Len())
}

func TestCreateRecordWithImageAndMonths(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	photo, err := f.svc.CreateField(ctx, FieldSpec{Name: "Photo", Type: domain.FieldImage, CategoryIDs: []int64{f.birds.ID}})
	require.NoError(t, err)
	breeding, err := f.svc.CreateField(ctx, FieldSpec{Name: "Breeding", Type: domain.FieldMonthRange, CategoryIDs: []int64{f.animals.ID}})
	require.NoError(t, err)

	rec, err := f.svc.CreateRecord(ctx, RecordInput{
		Name: "Heron", ScientificName: "Ardea cinerea", CategoryID: f.birds.ID,
		Values: map[string]string{"Habitat": "wetland", "Wingspan": "180", "Breeding": "Nov-feb"},
		Files:  map[string]Upload{"Photo": {Filename: "heron.PNG", Data: pngBytes}},
	})
	require.NoError(t, err)
	img, ok := valueOf(rec, photo.ID)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(img.Value, "images/"))
	assert.True(t, strings.HasSuffix(img.Value, ".png"))
	info, rc, err := f.svc.OpenBlob(ctx, img.Value)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, "image/png", info.ContentType)

	months, ok := valueOf(rec, breeding.ID)
	require.True(t, ok)
	assert.Equal(t, "11-2", months.Value)
	assert.Equal(t, &domain.MonthRange{Begin: 11, End: 2}, months.Months)

	_, _, err = f.svc.OpenBlob(ctx, "images/missing.png")
	assert.True(t, domain.IsNotFound(err))
}

func TestCreateRecordRemovesBlobsWhenCommitFails(t *testing.T) {
	ctx := context.Background()
	engine := NewDefaultRulesEngine()
	engine.Register(blockingRule{entity: domain.EntityFieldValue})
	blobs := blobmemory.New()
	svc := NewInMemoryService(engine, WithBlobStore(blobs))
	cat, err := svc.CreateCategory(ctx, "Birds", nil)
	require.NoError(t, err)
	_, err = svc.CreateField(ctx, FieldSpec{Name: "Photo", Type: domain.FieldImage, CategoryIDs: []int64{cat.ID}})
	require.NoError(t, err)

	_, err = svc.CreateRecord(ctx, RecordInput{
		Name: "Heron", ScientificName: "Ardea cinerea", CategoryID: cat.ID,
		Files: map[string]Upload{"Photo": pngUpload("heron.png")},
	})
	var violation domain.RuleViolationError
	require.True(t, errors.As(err, &violation), "got %v", err)
	assert.Zero(t, blobs.Len())
	records, err := svc.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEditRecordPartialUpdate(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	heron := f.addBird(t, "Heron", "180")
	f.addBird(t, "Stork", "200")

	edited, err := f.svc.EditRecord(ctx, heron.ID, RecordEdit{Values: map[string]string{"Wingspan": "175.0"}})
	require.NoError(t, err)
	wing, _ := valueOf(edited, f.wingspan.ID)
	assert.Equal(t, "175.0", wing.Value)
	habitat, _ := valueOf(edited, f.habitat.ID)
	assert.Equal(t, "wetland", habitat.Value)

	_, err = f.svc.EditRecord(ctx, heron.ID, RecordEdit{Name: ptr("Stork")})
	assert.True(t, domain.IsConflict(err))
	_, err = f.svc.EditRecord(ctx, heron.ID, RecordEdit{Name: ptr("Heron")})
	assert.NoError(t, err, "renaming to its own name is allowed")
	_, err = f.svc.EditRecord(ctx, 999, RecordEdit{})
	assert.True(t, domain.IsNotFound(err))
	_, err = f.svc.EditRecord(ctx, heron.ID, RecordEdit{Values: map[string]string{"Wingspan": "wide"}})
	assert.True(t, domain.IsInvalidArgument(err))
	_, err = f.svc.EditRecord(ctx, heron.ID, RecordEdit{Values: map[string]string{"Diet": "fish"}})
	assert.True(t, domain.IsInvalidArgument(err))
}

func TestEditRecordCategoryChange(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	mammals, err := f.svc.CreateCategory(ctx, "Mammals", &f.animals.ID)
	require.NoError(t, err)
	_, err = f.svc.CreateField(ctx, FieldSpec{Name: "Diet", Type: domain.FieldText, CategoryIDs: []int64{mammals.ID}})
	require.NoError(t, err)
	heron := f.addBird(t, "Heron", "180")

	_, err = f.svc.EditRecord(ctx, heron.ID, RecordEdit{CategoryID: ptr(int64(999))})
	assert.True(t, domain.IsNotFound(err))

	_, err = f.svc.EditRecord(ctx, heron.ID, RecordEdit{CategoryID: &mammals.ID})
	require.Error(t, err)
	assert.Equal(t, []string{"Diet"}, domainError(t, err).Fields)

	moved, err := f.svc.EditRecord(ctx, heron.ID, RecordEdit{CategoryID: &mammals.ID, Values: map[string]string{"Diet": "fish"}})
	require.NoError(t, err)
	assert.Equal(t, mammals.ID, moved.CategoryID)
	_, hasWing := valueOf(moved, f.wingspan.ID)
	assert.False(t, hasWing, "wingspan no longer resolves for mammals")
	_, hasHabitat := valueOf(moved, f.habitat.ID)
	assert.True(t, hasHabitat, "inherited values survive the move")
}

func TestEditRecordReplacesImageBlob(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	photo, err := f.svc.CreateField(ctx, FieldSpec{Name: "Photo", Type: domain.FieldImage, CategoryIDs: []int64{f.birds.ID}})
	require.NoError(t, err)
	rec, err := f.svc.CreateRecord(ctx, RecordInput{
		Name: "Heron", ScientificName: "Ardea cinerea", CategoryID: f.birds.ID,
		Values: map[string]string{"Habitat": "wetland", "Wingspan": "180"},
		Files:  map[string]Upload{"Photo": pngUpload("a.png")},
	})
	require.NoError(t, err)
	before, _ := valueOf(rec, photo.ID)

	edited, err := f.svc.EditRecord(ctx, rec.ID, RecordEdit{Files: map[string]Upload{"Photo": pngUpload("b.png")}})
	require.NoError(t, err)
	after, _ := valueOf(edited, photo.ID)
	assert.NotEqual(t, before.Value, after.Value)
	assert.Equal(t, 1, f.blobs.Len())
	_, _, err = f.svc.OpenBlob(ctx, before.Value)
	assert.True(t, domain.IsNotFound(err))
}

func TestDeleteRecordRemovesValuesImagesAndBlobs(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	heron := f.addBird(t, "Heron", "180")
	_, err := f.svc.AddImage(ctx, heron.ID, pngUpload("gallery.png"))
	require.NoError(t, err)
	require.Equal(t, 1, f.blobs.Len())

	require.NoError(t, f.svc.DeleteRecord(ctx, heron.ID))
	_, err = f.svc.GetRecord(ctx, heron.ID)
	assert.True(t, domain.IsNotFound(err))
	assert.Zero(t, f.blobs.Len())
	assert.True(t, domain.IsNotFound(f.svc.DeleteRecord(ctx, heron.ID)))
}

func TestBlobCleanupFailureIsLoggedNotReturned(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t, WithBlobStore(failingDeletes{Store: blobmemory.New()}))
	heron := f.addBird(t, "Heron", "180")
	_, err := f.svc.AddImage(ctx, heron.ID, pngUpload("gallery.png"))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteRecord(ctx, heron.ID))
	assert.Contains(t, f.logs.String(), "blob cleanup failed")
	assert.Contains(t, f.logs.String(), "disk on fire")
}

func TestListRecordsScoped(t *testing.T) {
	ctx := context.Background()
	f := newBirds(t)
	reptiles, err := f.svc.CreateCategory(ctx, "Reptiles", &f.animals.ID)
	require.NoError(t, err)
	heron := f.addBird(t, "Heron", "180")
	gecko, err := f.svc.CreateRecord(ctx, RecordInput{Name: "Gecko", ScientificName: "Gekko gecko", CategoryID: reptiles.ID, Values: map[string]string{"Habitat": "forest"}})
	require.NoError(t, err)

	all, err := f.svc.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, heron.ID, all[0].ID)

	onlyBirds, err := f.svc.ListRecords(ctx, f.birds.ID)
	require.NoError(t, err)
	require.Len(t, onlyBirds, 1)
	assert.Equal(t, heron.ID, onlyBirds[0].ID)

	underAnimals, err := f.svc.ListRecords(ctx, f.animals.ID)
	require.NoError(t, err)
	assert.Len(t, underAnimals, 2)
	assert.Equal(t, gecko.ID, underAnimals[1].ID)

	none, err := f.svc.ListRecords(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}
