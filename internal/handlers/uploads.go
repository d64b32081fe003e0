package handlers

import (
	"context"
	"net/http"

	"github.com/viewtube/backend/internal/apierr"
	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/storage"
)

const maxUploadMemory = 32 << 20

// uploadFormFile streams one multipart file field into the asset store.
// required distinguishes a missing field from an upload failure.
func uploadFormFile(ctx context.Context, assets storage.AssetStore, r *http.Request, field, folder string, required bool) (models.AssetRef, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if required {
			return models.AssetRef{}, apierr.BadRequest(field + " file is required")
		}
		return models.AssetRef{}, nil
	}
	defer file.Close()

	ref, err := assets.Upload(ctx, folder, header.Filename, file)
	if err != nil {
		return models.AssetRef{}, apierr.Internal("failed to store "+field, err)
	}
	return ref, nil
}

// deleteAssetAsync releases a replaced or orphaned asset without
// blocking the response. Failures are logged and dropped.
func deleteAssetAsync(ctx context.Context, assets storage.AssetStore, ref models.AssetRef) {
	if assets == nil || ref.PublicID == "" {
		return
	}
	logger := logging.FromContext(ctx)
	go func() {
		if err := assets.Delete(context.Background(), ref.PublicID); err != nil {
			logger.Warn("delete stored asset", "publicId", ref.PublicID, "error", err)
		}
	}()
}
