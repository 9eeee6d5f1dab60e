package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aukilabs/garth/assetcache"
	"github.com/aukilabs/garth/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// DiskFetcher reads model files from the scanned models directory. It
// implements assetcache.Fetcher.
type DiskFetcher struct {
	Dir string
}

func (f DiskFetcher) Fetch(ctx context.Context, key models.AssetKey) (*models.AssetTemplate, error) {
	if !plainName(key.Category) || !plainName(key.Name) {
		return nil, errors.New("asset key is not a plain file name").
			WithType(assetcache.ErrTypeNotFound).
			WithTag("asset", key.ID())
	}

	data, err := os.ReadFile(filepath.Join(f.Dir, key.Category, key.Name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("asset file does not exist").
				WithType(assetcache.ErrTypeNotFound).
				WithTag("asset", key.ID()).
				Wrap(err)
		}
		return nil, errors.New("reading asset file failed").
			WithType(assetcache.ErrTypeTransient).
			WithTag("asset", key.ID()).
			Wrap(err)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.New("asset fetch aborted").
			WithType(assetcache.ErrTypeTransient).
			WithTag("asset", key.ID()).
			Wrap(err)
	}

	return ParseTemplate(key, data)
}

// plainName rejects path components that could escape the models directory.
func plainName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
