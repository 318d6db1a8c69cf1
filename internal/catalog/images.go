package catalog

import (
	"context"
	"errors"
	"io"
	"time"

	"wildlifecore/internal/blob"
	"wildlifecore/pkg/domain"
)

// AddImage stores up in the gallery of recordID.
func (s *Service) AddImage(ctx context.Context, recordID int64, up Upload) (domain.Image, error) {
	contentType, err := checkUpload(up)
	if err != nil {
		return domain.Image{}, domain.InvalidArgument(domain.EntityImage, err.Error())
	}
	var (
		created domain.Image
		saved   []string
	)
	_, err = s.run(ctx, "add_image", func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindRecord(recordID); !ok {
			return domain.NotFound(domain.EntityRecord, recordID)
		}
		ref, err := s.images.Save(ctx, up.Filename, contentType, up.Data)
		if err != nil {
			return err
		}
		saved = append(saved, ref)
		created, err = tx.CreateImage(domain.Image{RecordID: recordID, Ref: ref})
		return err
	})
	if err != nil {
		s.removeBlobs(ctx, "add_image", saved)
		return domain.Image{}, err
	}
	return created, nil
}

// ListImages returns the gallery of recordID sorted by id.
func (s *Service) ListImages(ctx context.Context, recordID int64) ([]domain.Image, error) {
	var images []domain.Image
	err := s.view(ctx, "list_images", func(view domain.TransactionView) error {
		if _, ok := view.FindRecord(recordID); !ok {
			return domain.NotFound(domain.EntityRecord, recordID)
		}
		images = view.ListImages(recordID)
		return nil
	})
	return images, err
}

// SetThumbnail selects a gallery image of the record as its thumbnail. A nil
// imageID clears it.
func (s *Service) SetThumbnail(ctx context.Context, recordID int64, imageID *int64) (domain.Record, error) {
	var updated domain.Record
	_, err := s.run(ctx, "set_thumbnail", func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateRecord(recordID, func(r *domain.Record) error {
			r.ThumbnailID = imageID
			return nil
		})
		return err
	})
	return updated, err
}

// DeleteImage removes a gallery image, clearing it as thumbnail, and then
// its blob.
func (s *Service) DeleteImage(ctx context.Context, imageID int64) error {
	var ref string
	_, err := s.run(ctx, "delete_image", func(tx domain.Transaction) error {
		img, ok := tx.Snapshot().FindImage(imageID)
		if !ok {
			return domain.NotFound(domain.EntityImage, imageID)
		}
		ref = img.Ref
		return tx.DeleteImage(imageID)
	})
	if err != nil {
		return err
	}
	s.removeBlobs(ctx, "delete_image", []string{ref})
	return nil
}

// OpenBlob returns the bytes behind an image reference. The caller closes
// the reader.
func (s *Service) OpenBlob(ctx context.Context, ref string) (blob.Info, io.ReadCloser, error) {
	info, rc, err := s.images.Open(ctx, ref)
	if errors.Is(err, blob.ErrNotFound) {
		return blob.Info{}, nil, domain.NotFoundf(domain.EntityImage, "image %s not found", ref)
	}
	return info, rc, err
}

// DefaultImageURLExpiry is used by ImageURL when no expiry is given.
const DefaultImageURLExpiry = 15 * time.Minute

// ImageURL returns a signed download URL for ref valid for ttl.
func (s *Service) ImageURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultImageURLExpiry
	}
	url, err := s.images.URL(ctx, ref, ttl)
	switch {
	case errors.Is(err, blob.ErrNotFound):
		return "", domain.NotFoundf(domain.EntityImage, "image %s not found", ref)
	case errors.Is(err, blob.ErrUnsupported):
		return "", domain.InvalidOperation(domain.EntityImage, "blob driver %s cannot sign URLs", s.images.Store().Driver())
	case err != nil:
		return "", err
	}
	return url, nil
}

// OrphanedBlobs lists image blobs no gallery image or IMAGE value refers
// to. They are left behind when best-effort cleanup fails.
func (s *Service) OrphanedBlobs(ctx context.Context) ([]blob.Info, error) {
	stored, err := s.images.List(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]struct{})
	err = s.view(ctx, "orphaned_blobs", func(view domain.TransactionView) error {
		records := view.ListRecords()
		ids := make([]int64, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		for _, ref := range blobRefs(view, ids) {
			referenced[ref] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	orphans := []blob.Info{}
	for _, info := range stored {
		if _, ok := referenced[info.Key]; !ok {
			orphans = append(orphans, info)
		}
	}
	return orphans, nil
}

// PurgeOrphanedBlobs removes every orphaned image blob and returns the keys
// it attempted. Uploads of a transaction still in flight look orphaned, so
// run it while no writes are in progress.
func (s *Service) PurgeOrphanedBlobs(ctx context.Context) ([]string, error) {
	orphans, err := s.OrphanedBlobs(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(orphans))
	for _, info := range orphans {
		keys = append(keys, info.Key)
	}
	s.removeBlobs(ctx, "purge_orphaned_blobs", keys)
	return keys, nil
}
